package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/domain"
)

// IngestQAHandler implements the ingest-qa-response stage: a
// first-class entry point, not downstream of parse, that admits a
// user-confirmed Q&A exchange into the knowledge graph at the highest
// confidence tier.
type IngestQAHandler struct {
	deps *Deps
	log  *common.ContextLogger
}

func NewIngestQAHandler(deps *Deps) *IngestQAHandler {
	return &IngestQAHandler{deps: deps, log: common.ComponentLogger("stage_ingest_qa")}
}

func (h *IngestQAHandler) Handle(ctx context.Context, job domain.Job) error {
	qaItemID, _ := job.Payload["qa_item_id"].(string)
	dealID, _ := job.Payload["deal_id"].(string)
	organizationID, _ := job.Payload["organization_id"].(string)
	question, _ := job.Payload["question"].(string)
	answer, _ := job.Payload["answer"].(string)
	if qaItemID == "" || dealID == "" {
		return fmt.Errorf("permanent: job %s missing qa_item_id or deal_id", job.ID)
	}

	name := "qa-response-" + shortID(qaItemID)
	content := fmt.Sprintf("Q: %s\n\nA: %s", question, answer)
	now := time.Now().UTC()

	episode := domain.Episode{
		Source:      domain.EpisodeSourceQA,
		Name:        name,
		Content:     content,
		ReferenceID: qaItemID,
		Confidence:  domain.QAConfidence,
		OccurredAt:  now,
		IngestedAt:  now,
	}
	if err := h.deps.Graph.AddEpisode(ctx, organizationID, dealID, episode); err != nil {
		return fmt.Errorf("add qa-response episode: %w", err)
	}

	h.log.WithField("qa_item_id", qaItemID).Info("qa-response ingested into knowledge graph")
	return nil
}

// shortID truncates id to its first 8 characters, matching the
// "qa-response-"/"chat-fact-" episode naming convention.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
