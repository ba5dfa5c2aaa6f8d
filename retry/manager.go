package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/db/repository"
	"github.com/hoferino/manda-platform/domain"
)

// Manager sits between stage handlers and the queue. It owns every
// mutation of Document.ProcessingError and Document.RetryHistory; no other
// package writes those fields directly.
type Manager struct {
	repo                       repository.RelationalRepository
	maxRetryAttempts           int
	maxTotalRetryAttempts      int
	manualRetryCooldownSeconds int
	log                        *common.ContextLogger
}

// Config customizes the retry thresholds; zero values fall back to the
// spec's defaults.
type Config struct {
	MaxRetryAttempts           int
	MaxTotalRetryAttempts      int
	ManualRetryCooldownSeconds int
}

func NewManager(repo repository.RelationalRepository, cfg Config) *Manager {
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if cfg.MaxTotalRetryAttempts <= 0 {
		cfg.MaxTotalRetryAttempts = DefaultMaxTotalRetryAttempts
	}
	if cfg.ManualRetryCooldownSeconds <= 0 {
		cfg.ManualRetryCooldownSeconds = DefaultManualRetryCooldownSeconds
	}
	return &Manager{
		repo:                       repo,
		maxRetryAttempts:           cfg.MaxRetryAttempts,
		maxTotalRetryAttempts:      cfg.MaxTotalRetryAttempts,
		manualRetryCooldownSeconds: cfg.ManualRetryCooldownSeconds,
		log:                        common.ComponentLogger("retry_manager"),
	}
}

// failedStatusForStage maps a job-stage label to the stage-specific
// terminal *_failed coarse status. Stages with no dedicated failed
// label (graph-ingest, contradiction detection) fall back to the generic
// terminal failed status.
func failedStatusForStage(stage string) domain.ProcessingStatus {
	switch stage {
	case "parsing":
		return domain.StatusParsingFailed
	case "embedding":
		return domain.StatusEmbeddingFailed
	case "analyzing":
		return domain.StatusAnalyzingFailed
	case "extracting_financials":
		return domain.StatusExtractingFinancialsFailed
	default:
		return domain.StatusFailed
	}
}

// ingStatusForStage maps a job-stage label to its in-progress coarse
// status, used both when advancing a fresh run and when re-entering a
// stage on retry.
func ingStatusForStage(stage string) domain.ProcessingStatus {
	switch stage {
	case "parsing":
		return domain.StatusParsing
	case "embedding":
		return domain.StatusEmbedding
	case "analyzing":
		return domain.StatusAnalyzing
	case "extracting_financials":
		return domain.StatusExtractingFinancials
	default:
		return domain.StatusProcessing
	}
}

// HandleJobFailure classifies err, persists the structured error and a
// bounded retry-history entry, and (for permanent errors) flips the
// document's coarse status to its stage-specific failed label.
func (m *Manager) HandleJobFailure(ctx context.Context, documentID string, err error, stage string, retryCount int) (ClassifiedError, error) {
	classified := Classify(err, stage, retryCount)

	if writeErr := m.repo.SetProcessingError(ctx, documentID, &domain.ProcessingError{
		Category:    string(classified.Category),
		ErrorType:   classified.ErrorType,
		Message:     classified.Message,
		ShouldRetry: classified.ShouldRetry,
		UserMessage: classified.UserMessage,
		Guidance:    classified.Guidance,
		Stage:       stage,
		Timestamp:   classified.Timestamp,
		RetryCount:  retryCount,
	}); writeErr != nil {
		return classified, fmt.Errorf("persist processing error: %w", writeErr)
	}

	if histErr := m.repo.AppendRetryHistory(ctx, documentID, domain.RetryHistoryEntry{
		Attempt:   retryCount,
		Stage:     stage,
		ErrorType: classified.ErrorType,
		Message:   classified.Message,
		Timestamp: classified.Timestamp,
	}); histErr != nil {
		return classified, fmt.Errorf("append retry history: %w", histErr)
	}

	if classified.Category == CategoryPermanent {
		if statusErr := m.repo.UpdateProcessingStatus(ctx, documentID, failedStatusForStage(stage)); statusErr != nil {
			return classified, fmt.Errorf("set failed status: %w", statusErr)
		}
	}

	m.log.WithFields(map[string]interface{}{
		"document_id": documentID,
		"stage":       stage,
		"category":    classified.Category,
		"error_type":  classified.ErrorType,
	}).Warn("job failed")

	return classified, nil
}

// ShouldRetryStage reports whether this stage has been attempted fewer
// than maxRetryAttempts times according to retry_history.
func (m *Manager) ShouldRetryStage(ctx context.Context, documentID string, stage string) (bool, int, error) {
	history, err := m.repo.GetRetryHistory(ctx, documentID)
	if err != nil {
		return false, 0, fmt.Errorf("get retry history: %w", err)
	}
	attempts := 0
	for _, e := range history {
		if e.Stage == stage {
			attempts++
		}
	}
	return attempts < m.maxRetryAttempts, attempts, nil
}

// CanManualRetry reports whether a user-initiated retry is currently
// allowed. Missing or unparseable timestamps are treated as "no
// cooldown" per spec, which AppendRetryHistory's always-UTC-now write path
// makes unreachable in practice but the check is kept explicit.
func (m *Manager) CanManualRetry(ctx context.Context, documentID string) (bool, string, error) {
	history, err := m.repo.GetRetryHistory(ctx, documentID)
	if err != nil {
		return false, "", fmt.Errorf("get retry history: %w", err)
	}
	if len(history) >= m.maxTotalRetryAttempts {
		return false, "maximum retry attempts reached for this document", nil
	}
	if len(history) == 0 {
		return true, "", nil
	}
	newest := history[0]
	if newest.Timestamp.IsZero() {
		return true, "", nil
	}
	if time.Since(newest.Timestamp) < time.Duration(m.manualRetryCooldownSeconds)*time.Second {
		return false, "retry cooldown has not elapsed", nil
	}
	return true, "", nil
}

// GetNextRetryStage returns the job name that would advance the document's
// fine cursor by one step, or empty string if already complete. The
// literal source mapping sends a PENDING cursor straight to the
// embedding/graph-ingest job, on the assumption that parsing already ran;
// that is a known quirk (REDESIGN FLAGS #2) because a document that was
// never successfully parsed has no chunks to embed. This implementation
// adds the explicit override the flag calls for: a PENDING cursor with no
// stored chunks falls back to re-running parse.
func (m *Manager) GetNextRetryStage(ctx context.Context, documentID string) (domain.JobName, error) {
	doc, err := m.repo.GetDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("get document: %w", err)
	}
	switch doc.LastCompletedStage {
	case domain.StageParsed:
		return domain.JobIngestGraphiti, nil
	case domain.StageEmbedded:
		return domain.JobAnalyzeDocument, nil
	case domain.StageAnalyzed:
		return "", nil
	case domain.StageNone:
		chunks, err := m.repo.GetChunks(ctx, documentID)
		if err != nil {
			return "", fmt.Errorf("get chunks for retry-stage decision: %w", err)
		}
		if len(chunks) == 0 {
			return domain.JobParseDocument, nil
		}
		return domain.JobIngestGraphiti, nil
	default:
		return domain.JobParseDocument, nil
	}
}

// PrepareStageRetry clears the data produced by stage and every subsequent
// stage, resets the fine cursor to stage's predecessor, and sets the
// coarse status to stage's in-progress label.
func (m *Manager) PrepareStageRetry(ctx context.Context, documentID string, stage domain.Stage) error {
	if err := m.clearStageData(ctx, documentID, stage); err != nil {
		return err
	}
	jobStage := jobStageForDomainStage(stage)
	return m.repo.UpdateProcessingStatus(ctx, documentID, ingStatusForStage(jobStage))
}

func jobStageForDomainStage(stage domain.Stage) string {
	switch stage {
	case domain.StageParsed:
		return "parsing"
	case domain.StageEmbedded:
		return "embedding"
	case domain.StageAnalyzed:
		return "analyzing"
	default:
		return "parsing"
	}
}

func (m *Manager) clearStageData(ctx context.Context, documentID string, stage domain.Stage) error {
	switch stage {
	case domain.StageParsed:
		if err := m.repo.DeleteChunks(ctx, documentID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if err := m.repo.DeleteFindings(ctx, documentID); err != nil {
			return fmt.Errorf("delete findings: %w", err)
		}
		return m.repo.UpdateLastCompletedStage(ctx, documentID, domain.StageNone)
	case domain.StageEmbedded:
		if err := m.repo.ClearChunkEmbeddings(ctx, documentID); err != nil {
			return fmt.Errorf("clear embeddings: %w", err)
		}
		if err := m.repo.DeleteFindings(ctx, documentID); err != nil {
			return fmt.Errorf("delete findings: %w", err)
		}
		return m.repo.UpdateLastCompletedStage(ctx, documentID, domain.StageParsed)
	case domain.StageAnalyzed:
		if err := m.repo.DeleteFindings(ctx, documentID); err != nil {
			return fmt.Errorf("delete findings: %w", err)
		}
		return m.repo.UpdateLastCompletedStage(ctx, documentID, domain.StageEmbedded)
	default:
		return fmt.Errorf("clear stage data: unsupported stage %q", stage)
	}
}

// MarkStageComplete advances the fine cursor and coarse status on
// successful completion of a job-stage. Pass
// the job-stage label used in the queue, not the domain.Stage cursor.
func (m *Manager) MarkStageComplete(ctx context.Context, documentID string, jobStage string) error {
	switch jobStage {
	case "parsing":
		if err := m.repo.UpdateLastCompletedStage(ctx, documentID, domain.StageParsed); err != nil {
			return err
		}
		return m.repo.UpdateProcessingStatus(ctx, documentID, domain.StatusParsed)
	case "embedding":
		if err := m.repo.UpdateLastCompletedStage(ctx, documentID, domain.StageEmbedded); err != nil {
			return err
		}
		return m.repo.UpdateProcessingStatus(ctx, documentID, domain.StatusEmbedded)
	case "analyzing":
		if err := m.repo.UpdateLastCompletedStage(ctx, documentID, domain.StageAnalyzed); err != nil {
			return err
		}
		return m.repo.UpdateProcessingStatus(ctx, documentID, domain.StatusAnalyzed)
	case "extracting_financials":
		return m.repo.UpdateProcessingStatus(ctx, documentID, domain.StatusExtractingFinancialsComplete)
	default:
		return fmt.Errorf("mark stage complete: unsupported stage %q", jobStage)
	}
}

// ClearProcessingError clears Document.ProcessingError, step 3 of the
// common stage-handler envelope.
func (m *Manager) ClearProcessingError(ctx context.Context, documentID string) error {
	return m.repo.ClearProcessingError(ctx, documentID)
}
