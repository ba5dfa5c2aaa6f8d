package stages

import (
	"context"
	"fmt"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/parsing"
)

// ParseHandler implements the parse stage: download the blob,
// dispatch to the category parser, chunk the result, persist atomically,
// enqueue the successor.
type ParseHandler struct {
	deps *Deps
	log  *common.ContextLogger
}

func NewParseHandler(deps *Deps) *ParseHandler {
	return &ParseHandler{deps: deps, log: common.ComponentLogger("stage_parse")}
}

func (h *ParseHandler) Handle(ctx context.Context, job domain.Job) error {
	payload, err := documentPayload(job)
	if err != nil {
		return err
	}
	log := h.log.WithField("document_id", payload.DocumentID)

	doc, err := h.deps.Relational.GetDocument(ctx, payload.DocumentID)
	if err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageParsed, job.Attempts,
			fmt.Errorf("permanent: get document: %w", err))
	}

	if err := enterStage(ctx, h.deps.RetryManager, h.deps.Relational, payload.DocumentID, domain.StageParsed, payload.IsRetry); err != nil {
		return err
	}

	localPath, cleanup, err := h.deps.Blobs.Download(ctx, doc.BlobReference)
	if err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageParsed, job.Attempts, err)
	}
	defer cleanup()

	result, err := h.deps.Dispatcher.Dispatch(ctx, doc.MimeType, localPath)
	if err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageParsed, job.Attempts, err)
	}

	// The category parser is responsible for producing already-chunked
	// text content (it calls parsing.ChunkText internally); tables and
	// formulas arrive as raw TableResult/FormulaResult and are chunked
	// here so the table-splitting and formula-aggregation rules live in
	// one place regardless of document category.
	chunks := append([]domain.Chunk{}, result.Chunks...)
	index := len(chunks)
	for _, t := range result.Tables {
		table := parsing.ChunkTable(t.HeaderRow, t.BodyRows, h.deps.ChunkConfig, index, t.SheetName, t.PageNumber)
		chunks = append(chunks, table...)
		index += len(table)
	}
	if len(result.Formulas) > 0 {
		chunks = append(chunks, formulaSummaryChunk(result.Formulas, index))
	}
	chunks = parsing.Reindex(chunks)
	for i := range chunks {
		chunks[i].DocumentID = payload.DocumentID
	}

	if err := h.deps.Relational.StoreChunksAndUpdateStatus(ctx, payload.DocumentID, chunks, domain.StatusParsed); err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageParsed, job.Attempts,
			fmt.Errorf("store chunks: %w", err))
	}
	if err := h.deps.RetryManager.MarkStageComplete(ctx, payload.DocumentID, "parsing"); err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageParsed, job.Attempts, err)
	}

	log.WithField("chunk_count", len(chunks)).Info("parse stage complete")

	_, err = h.deps.Queue.Enqueue(ctx, domain.Job{
		Name: domain.JobIngestGraphiti,
		Payload: map[string]interface{}{
			"document_id":     payload.DocumentID,
			"deal_id":         payload.DealID,
			"organization_id": payload.OrganizationID,
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue ingest-graphiti: %w", err)
	}
	return nil
}

// formulaSummaryChunk aggregates every detected spreadsheet formula into
// one dedicated chunk, preserved as text.
func formulaSummaryChunk(formulas []parsing.FormulaResult, index int) domain.Chunk {
	var content string
	for _, f := range formulas {
		content += fmt.Sprintf("%s!%s: %s\n", f.SheetName, f.CellReference, f.Formula)
	}
	return domain.Chunk{
		ChunkIndex: index,
		Content:    content,
		ChunkType:  domain.ChunkFormula,
		TokenCount: len(content) / 4,
		Metadata:   map[string]interface{}{"formula_count": len(formulas)},
	}
}
