package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/domain"
)

// IngestGraphHandler implements the graph-ingest stage: one
// add_episode call per chunk, idempotent on a second, non-retry delivery
// after success.
type IngestGraphHandler struct {
	deps *Deps
	log  *common.ContextLogger
}

func NewIngestGraphHandler(deps *Deps) *IngestGraphHandler {
	return &IngestGraphHandler{deps: deps, log: common.ComponentLogger("stage_ingest_graph")}
}

func (h *IngestGraphHandler) Handle(ctx context.Context, job domain.Job) error {
	payload, err := documentPayload(job)
	if err != nil {
		return err
	}
	log := h.log.WithField("document_id", payload.DocumentID)

	doc, err := h.deps.Relational.GetDocument(ctx, payload.DocumentID)
	if err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageEmbedded, job.Attempts,
			fmt.Errorf("permanent: get document: %w", err))
	}

	if doc.ProcessingStatus == domain.StatusGraphitiIngested && !payload.IsRetry {
		log.Info("graph-ingest already complete, skipping")
		return nil
	}

	if err := enterStage(ctx, h.deps.RetryManager, h.deps.Relational, payload.DocumentID, domain.StageEmbedded, payload.IsRetry); err != nil {
		return err
	}
	if err := h.deps.Relational.UpdateProcessingStatus(ctx, payload.DocumentID, domain.StatusGraphitiIngesting); err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageEmbedded, job.Attempts, err)
	}

	chunks, err := h.deps.Relational.GetChunks(ctx, payload.DocumentID)
	if err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageEmbedded, job.Attempts,
			fmt.Errorf("get chunks: %w", err))
	}

	now := time.Now().UTC()
	for i, chunk := range chunks {
		episode := domain.Episode{
			Source:      domain.EpisodeSourceDocument,
			Name:        fmt.Sprintf("document-%s-chunk-%d", payload.DocumentID, chunk.ChunkIndex),
			Content:     chunk.Content,
			ReferenceID: chunk.ID,
			Confidence:  domain.DocumentConfidence,
			OccurredAt:  now,
			IngestedAt:  now,
		}
		if err := h.deps.Graph.AddEpisode(ctx, payload.OrganizationID, payload.DealID, episode); err != nil {
			return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageEmbedded, job.Attempts,
				fmt.Errorf("add episode for chunk %d/%d: %w", i+1, len(chunks), err))
		}
	}

	if err := h.deps.Relational.UpdateProcessingStatus(ctx, payload.DocumentID, domain.StatusGraphitiIngested); err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageEmbedded, job.Attempts, err)
	}
	if err := h.deps.RetryManager.MarkStageComplete(ctx, payload.DocumentID, "embedding"); err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageEmbedded, job.Attempts, err)
	}

	log.WithField("episode_count", len(chunks)).Info("graph-ingest stage complete")

	_, err = h.deps.Queue.Enqueue(ctx, domain.Job{
		Name: domain.JobAnalyzeDocument,
		Payload: map[string]interface{}{
			"document_id":     payload.DocumentID,
			"deal_id":         payload.DealID,
			"organization_id": payload.OrganizationID,
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue analyze-document: %w", err)
	}
	return nil
}
