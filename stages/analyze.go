package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/llm"
)

// findingSchema constrains the LLM to the Finding shape (minus ids) for
// every batch call; each result may carry source_chunk_index to link it
// back to a concrete chunk.
var findingSchema = map[string]interface{}{
	"type": "array",
	"items": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text":               map[string]interface{}{"type": "string"},
			"finding_type":       map[string]interface{}{"type": "string"},
			"domain":             map[string]interface{}{"type": "string"},
			"confidence":         map[string]interface{}{"type": "number"},
			"source_chunk_index": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"text", "finding_type", "domain", "confidence"},
	},
}

const analyzeSystemPrompt = "You extract structured findings (facts, metrics, risks, opportunities, insights, assumptions) from M&A due-diligence document excerpts. Respond only with the requested JSON."

type findingResult struct {
	Text             string  `json:"text"`
	FindingType      string  `json:"finding_type"`
	Domain           string  `json:"domain"`
	Confidence       float64 `json:"confidence"`
	SourceChunkIndex *int    `json:"source_chunk_index"`
}

// AnalyzeHandler implements the analyze stage: LLM-driven finding
// extraction, best-effort graph sync, branching successor enqueue.
type AnalyzeHandler struct {
	deps *Deps
	log  *common.ContextLogger
}

func NewAnalyzeHandler(deps *Deps) *AnalyzeHandler {
	return &AnalyzeHandler{deps: deps, log: common.ComponentLogger("stage_analyze")}
}

func (h *AnalyzeHandler) Handle(ctx context.Context, job domain.Job) error {
	payload, err := documentPayload(job)
	if err != nil {
		return err
	}
	log := h.log.WithField("document_id", payload.DocumentID)

	doc, err := h.deps.Relational.GetDocument(ctx, payload.DocumentID)
	if err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageAnalyzed, job.Attempts,
			fmt.Errorf("permanent: get document: %w", err))
	}
	if err := enterStage(ctx, h.deps.RetryManager, h.deps.Relational, payload.DocumentID, domain.StageAnalyzed, payload.IsRetry); err != nil {
		return err
	}

	chunks, err := h.deps.Relational.GetChunks(ctx, payload.DocumentID)
	if err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageAnalyzed, job.Attempts,
			fmt.Errorf("get chunks: %w", err))
	}

	tier := llm.TierFlash
	if domain.CategoryForMimeType(doc.MimeType) == domain.CategorySpreadsheet {
		tier = llm.TierPro
	}

	results, err := h.extractFindings(ctx, payload, chunks, tier)
	if err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageAnalyzed, job.Attempts, err)
	}

	findings := make([]domain.Finding, 0, len(results))
	for _, r := range results {
		f := domain.Finding{
			ID:         domain.NewID(),
			DealID:     payload.DealID,
			DocumentID: payload.DocumentID,
			Text:       r.Text,
			Type:       domain.FindingType(r.FindingType),
			Domain:     domain.FindingDomain(r.Domain),
			Confidence: r.Confidence,
			Status:     domain.FindingPending,
		}
		if r.SourceChunkIndex != nil {
			for _, c := range chunks {
				if c.ChunkIndex == *r.SourceChunkIndex {
					id := c.ID
					f.ChunkID = &id
					break
				}
			}
		}
		findings = append(findings, f)
	}

	if err := h.deps.Relational.StoreFindingsAndUpdateStatus(ctx, payload.DocumentID, findings, domain.StatusAnalyzed); err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageAnalyzed, job.Attempts,
			fmt.Errorf("store findings: %w", err))
	}
	if err := h.deps.RetryManager.MarkStageComplete(ctx, payload.DocumentID, "analyzing"); err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageAnalyzed, job.Attempts, err)
	}

	// Best-effort: relational store is source of truth, so a graph-sync
	// failure is logged, not raised.
	for _, f := range findings {
		if err := h.deps.Graph.SyncFinding(ctx, payload.OrganizationID, payload.DealID, f, payload.DocumentID); err != nil {
			log.WithError(err).WithField("finding_text", f.Text).Warn("finding graph-sync failed")
		}
	}

	log.WithField("finding_count", len(findings)).Info("analyze stage complete")

	needsFinancials := domain.CategoryForMimeType(doc.MimeType) == domain.CategorySpreadsheet
	if !needsFinancials && domain.CategoryForMimeType(doc.MimeType) == domain.CategoryPDF {
		for _, c := range chunks {
			if c.ChunkType == domain.ChunkTable {
				needsFinancials = true
				break
			}
		}
	}

	if needsFinancials {
		if _, err := h.deps.Queue.Enqueue(ctx, domain.Job{
			Name: domain.JobExtractFinancials,
			Payload: map[string]interface{}{
				"document_id":     payload.DocumentID,
				"deal_id":         payload.DealID,
				"organization_id": payload.OrganizationID,
			},
		}); err != nil {
			return fmt.Errorf("enqueue extract-financials: %w", err)
		}
	} else {
		if err := h.deps.Relational.UpdateProcessingStatus(ctx, payload.DocumentID, domain.StatusComplete); err != nil {
			return fmt.Errorf("mark complete: %w", err)
		}
	}

	enqueueBestEffort(ctx, h.deps.Queue, domain.Job{
		Name: domain.JobDetectContradictions,
		Payload: map[string]interface{}{
			"deal_id":     payload.DealID,
			"document_id": payload.DocumentID,
		},
	}, log)

	return nil
}

// extractFindings sends the chunks to the LLM in batches of Deps.BatchSize
// (5 when BatchSize <= 0), one call per batch. There is no single-call mode
// that sends every chunk at once.
func (h *AnalyzeHandler) extractFindings(ctx context.Context, payload domain.DocumentJobPayload, chunks []domain.Chunk, tier llm.ModelTier) ([]findingResult, error) {
	batchSize := h.deps.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	usageCtx := llm.Context{OrganizationID: payload.OrganizationID, DealID: payload.DealID, Feature: "analyze_document"}

	var all []findingResult
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		prompt := buildChunkPrompt(batch)
		result, usage, err := h.deps.Models.Run(ctx, prompt, analyzeSystemPrompt, tier, findingSchema)
		h.deps.Usage.Record(ctx, usageCtx, usage)
		if err != nil {
			return nil, fmt.Errorf("extract findings batch %d-%d: %w", start, end, err)
		}

		batchResults, err := decodeFindingResults(result)
		if err != nil {
			return nil, fmt.Errorf("decode findings batch %d-%d: %w", start, end, err)
		}
		for i := range batchResults {
			if batchResults[i].SourceChunkIndex == nil && start+i < len(chunks) {
				idx := chunks[start+i].ChunkIndex
				batchResults[i].SourceChunkIndex = &idx
			}
		}
		all = append(all, batchResults...)
	}
	return all, nil
}

func buildChunkPrompt(chunks []domain.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "--- chunk_index=%d", c.ChunkIndex)
		if c.PageNumber != nil {
			fmt.Fprintf(&b, " page=%d", *c.PageNumber)
		}
		if c.SheetName != nil {
			fmt.Fprintf(&b, " sheet=%s", *c.SheetName)
		}
		b.WriteString(" ---\n")
		b.WriteString(c.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

func decodeFindingResults(result llm.Result) ([]findingResult, error) {
	if result.Structured != nil {
		raw, err := json.Marshal(result.Structured["findings"])
		if err != nil || len(raw) == 0 || string(raw) == "null" {
			raw, err = json.Marshal(result.Structured)
		}
		if err == nil {
			var out []findingResult
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
		}
	}
	var out []findingResult
	if err := json.Unmarshal([]byte(result.Text), &out); err != nil {
		return nil, fmt.Errorf("unmarshal finding results: %w", err)
	}
	return out, nil
}
