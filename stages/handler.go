// Package stages implements one handler per queue job name, each
// following the common envelope: retry-aware status advance, clear any
// stale processing error, do the domain work, then either mark the stage
// complete and enqueue the successor or hand the error to the retry
// manager and re-raise. Handlers are registered by job name in
// coordinator, generalizing an action-registry dispatch-by-type pattern
// from HTTP actions to queue job names.
package stages

import (
	"context"
	"fmt"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/db/repository"
	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/graph"
	"github.com/hoferino/manda-platform/llm"
	"github.com/hoferino/manda-platform/parsing"
	"github.com/hoferino/manda-platform/retry"
)

// Handler processes one dequeued Job to completion.
type Handler interface {
	Handle(ctx context.Context, job domain.Job) error
}

// Deps bundles every capability a stage handler may need. Individual
// handlers hold only the fields they use; Deps itself is constructed once
// in coordinator and passed to each handler's constructor.
type Deps struct {
	Relational    repository.RelationalRepository
	Queue         repository.QueueRepository
	RetryManager  *retry.Manager
	Graph         *graph.Client
	Models        llm.Adapter
	Embeddings    llm.EmbeddingAdapter
	Usage         *llm.Recorder
	Blobs         parsing.BlobStore
	Dispatcher    *parsing.Dispatcher
	ChunkConfig   parsing.ChunkConfig
	BatchSize     int // chunks-per-LLM-call in analyze (5 when <= 0)
	PairBatchSize int // pairs-per-LLM-call in detect-contradictions
}

// documentPayload decodes the {document_id, deal_id, organization_id,
// is_retry} shape shared by every per-document stage job.
func documentPayload(job domain.Job) (domain.DocumentJobPayload, error) {
	var p domain.DocumentJobPayload
	docID, _ := job.Payload["document_id"].(string)
	dealID, _ := job.Payload["deal_id"].(string)
	orgID, _ := job.Payload["organization_id"].(string)
	isRetry, _ := job.Payload["is_retry"].(bool)
	if docID == "" {
		return p, fmt.Errorf("permanent: job %s missing document_id", job.ID)
	}
	p.DocumentID = docID
	p.DealID = dealID
	p.OrganizationID = orgID
	p.IsRetry = isRetry
	return p, nil
}

// enterStage runs envelope steps 2–3: on retry, prepare_stage_retry
// (clears this stage's and every later stage's data, resets the cursor,
// sets the *ing status); otherwise just advances to the *ing status. Both
// paths then clear any stale processing error.
func enterStage(ctx context.Context, rm *retry.Manager, relational repository.RelationalRepository, documentID string, stage domain.Stage, isRetry bool) error {
	if isRetry {
		if err := rm.PrepareStageRetry(ctx, documentID, stage); err != nil {
			return fmt.Errorf("prepare stage retry: %w", err)
		}
	} else {
		if err := relational.UpdateProcessingStatus(ctx, documentID, ingressStatus(stage)); err != nil {
			return fmt.Errorf("advance to in-progress status: %w", err)
		}
	}
	return rm.ClearProcessingError(ctx, documentID)
}

// ingressStatus is the *ing label a fresh (non-retry) entry into stage
// sets before the stage has actually run anything, matching
// retry.Manager's private ingStatusForStage mapping so the coarse status
// is consistent regardless of whether a handler entered via a fresh run
// or a prepare_stage_retry.
func ingressStatus(stage domain.Stage) domain.ProcessingStatus {
	switch stage {
	case domain.StageParsed:
		return domain.StatusParsing
	case domain.StageEmbedded:
		return domain.StatusEmbedding
	case domain.StageAnalyzed:
		return domain.StatusAnalyzing
	case domain.StageComplete:
		return domain.StatusExtractingFinancials
	default:
		return domain.StatusProcessing
	}
}

// jobStageLabel maps the domain.Stage a handler is working towards to the
// string label retry.Manager's MarkStageComplete/failedStatusForStage
// switch on.
func jobStageLabel(stage domain.Stage) string {
	switch stage {
	case domain.StageParsed:
		return "parsing"
	case domain.StageEmbedded:
		return "embedding"
	case domain.StageAnalyzed:
		return "analyzing"
	default:
		return "extracting_financials"
	}
}

// fail runs envelope step 6: classify and persist the error through the
// retry manager, then return an error so the queue's Fail path reschedules
// or dead-letters the job.
func fail(ctx context.Context, rm *retry.Manager, documentID string, stage domain.Stage, retryCount int, cause error) error {
	if _, err := rm.HandleJobFailure(ctx, documentID, cause, jobStageLabel(stage), retryCount); err != nil {
		return fmt.Errorf("handle job failure: %w", err)
	}
	return cause
}

// enqueueBestEffort enqueues job and logs (never returns) a failure,
// matching the "best-effort enqueue" treatment given to graph-sync and
// detect-contradictions fan-out.
func enqueueBestEffort(ctx context.Context, q repository.QueueRepository, job domain.Job, log *common.ContextLogger) {
	if _, err := q.Enqueue(ctx, job); err != nil {
		log.WithError(err).WithField("job_name", job.Name).Warn("best-effort enqueue failed")
	}
}
