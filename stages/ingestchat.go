package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/domain"
)

// IngestChatHandler implements the ingest-chat-fact stage: admits
// an in-context chat assertion into the knowledge graph at the chat
// confidence tier, below a confirmed Q&A answer but above passive
// document extraction.
type IngestChatHandler struct {
	deps *Deps
	log  *common.ContextLogger
}

func NewIngestChatHandler(deps *Deps) *IngestChatHandler {
	return &IngestChatHandler{deps: deps, log: common.ComponentLogger("stage_ingest_chat")}
}

func (h *IngestChatHandler) Handle(ctx context.Context, job domain.Job) error {
	messageID, _ := job.Payload["message_id"].(string)
	dealID, _ := job.Payload["deal_id"].(string)
	organizationID, _ := job.Payload["organization_id"].(string)
	factContent, _ := job.Payload["fact_content"].(string)
	if messageID == "" || dealID == "" {
		return fmt.Errorf("permanent: job %s missing message_id or deal_id", job.ID)
	}

	name := "chat-fact-" + shortID(messageID)
	now := time.Now().UTC()

	episode := domain.Episode{
		Source:      domain.EpisodeSourceChat,
		Name:        name,
		Content:     factContent,
		ReferenceID: messageID,
		Confidence:  domain.ChatConfidence,
		OccurredAt:  now,
		IngestedAt:  now,
	}
	if err := h.deps.Graph.AddEpisode(ctx, organizationID, dealID, episode); err != nil {
		return fmt.Errorf("add chat-fact episode: %w", err)
	}

	h.log.WithField("message_id", messageID).Info("chat-fact ingested into knowledge graph")
	return nil
}
