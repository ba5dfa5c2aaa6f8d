package stages

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/domain"
	"github.com/hoferino/manda-platform/financials"
)

// ExtractFinancialsHandler detects whether the document is worth scanning
// for financial metrics, then identify/period/value/cell-reference each
// candidate cell or text span.
type ExtractFinancialsHandler struct {
	deps *Deps
	log  *common.ContextLogger
}

func NewExtractFinancialsHandler(deps *Deps) *ExtractFinancialsHandler {
	return &ExtractFinancialsHandler{deps: deps, log: common.ComponentLogger("stage_extract_financials")}
}

func (h *ExtractFinancialsHandler) Handle(ctx context.Context, job domain.Job) error {
	payload, err := documentPayload(job)
	if err != nil {
		return err
	}
	log := h.log.WithField("document_id", payload.DocumentID)

	if err := enterStage(ctx, h.deps.RetryManager, h.deps.Relational, payload.DocumentID, domain.StageComplete, payload.IsRetry); err != nil {
		return err
	}

	chunks, err := h.deps.Relational.GetChunks(ctx, payload.DocumentID)
	if err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageComplete, job.Attempts,
			fmt.Errorf("get chunks: %w", err))
	}

	input := financials.DetectionInput{}
	for _, c := range chunks {
		input.ChunkTexts = append(input.ChunkTexts, c.Content)
		if c.ChunkType == domain.ChunkTable {
			input.TableCells = append(input.TableCells, c.Content)
		}
		if c.ChunkType == domain.ChunkFormula {
			input.HasFormula = true
		}
	}

	score := financials.Score(input)
	if !financials.ShouldExtract(score) {
		log.WithField("score", score).Info("document below financial detection threshold, skipping extraction")
		if err := h.deps.RetryManager.MarkStageComplete(ctx, payload.DocumentID, "extracting_financials"); err != nil {
			return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageComplete, job.Attempts, err)
		}
		return nil
	}

	metrics := extractMetricsFromChunks(payload, chunks)

	if err := h.deps.Relational.StoreFinancialMetrics(ctx, payload.DocumentID, metrics); err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageComplete, job.Attempts,
			fmt.Errorf("store financial metrics: %w", err))
	}
	if err := h.deps.RetryManager.MarkStageComplete(ctx, payload.DocumentID, "extracting_financials"); err != nil {
		return fail(ctx, h.deps.RetryManager, payload.DocumentID, domain.StageComplete, job.Attempts, err)
	}

	log.WithField("metric_count", len(metrics)).Info("extract-financials stage complete")
	return nil
}

// valueTokenPattern pulls the first currency/numeric token out of a table
// cell or text row so financials.ParseValue (which expects one value, not a
// whole line) has something parseable to work with.
var valueTokenPattern = regexp.MustCompile(`[-(]?[$€£¥]?\s?[\d][\d.,]*\)?\s?(?:%|[kKmMbB]n?\b)?`)

// extractMetricsFromChunks extracts table chunks column-by-column (each
// data cell attributed to the fiscal period carried by its column's header
// cell) and text chunks line-by-line (one metric mention per line, period
// taken from the same line).
func extractMetricsFromChunks(payload domain.DocumentJobPayload, chunks []domain.Chunk) []domain.FinancialMetric {
	var metrics []domain.FinancialMetric

	for _, c := range chunks {
		switch c.ChunkType {
		case domain.ChunkTable:
			metrics = append(metrics, extractTableMetrics(payload, c)...)
		case domain.ChunkText:
			metrics = append(metrics, extractTextMetrics(payload, c)...)
		}
	}

	return metrics
}

// splitTableRow recovers a row's individual cells from a comma-delimited
// table chunk line. Spreadsheet cells never legitimately contain a comma in
// this pipeline's supported CSV input, so a plain split is sufficient.
func splitTableRow(line string) []string {
	cells := strings.Split(line, ",")
	for i, cell := range cells {
		cells[i] = strings.TrimSpace(cell)
	}
	return cells
}

// extractTableMetrics maps each data cell to the fiscal period carried by
// its column's header cell and attaches an A1-notation source_cell via
// financials.CellReference. parsing.ChunkTable always puts the header row
// first and repeats it in every split part, so row numbers start at 1 for
// the header and 2 for the first data row within this chunk. Column 0 is
// assumed to hold the row label (the metric name); column-period detection
// starts at column 1.
func extractTableMetrics(payload domain.DocumentJobPayload, c domain.Chunk) []domain.FinancialMetric {
	lines := strings.Split(c.Content, "\n")
	if len(lines) < 2 {
		return nil
	}
	header := splitTableRow(lines[0])

	columnPeriods := make(map[int]financials.PeriodMatch, len(header))
	for col := 1; col < len(header); col++ {
		if period, ok := financials.DetectPeriod(header[col]); ok {
			columnPeriods[col] = period
		}
	}
	if len(columnPeriods) == 0 {
		return nil
	}

	var metrics []domain.FinancialMetric
	for i, line := range lines[1:] {
		row := splitTableRow(line)
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		name, category, ok := financials.Identify(row[0])
		if !ok {
			continue
		}
		rowNum := i + 2

		for col := 1; col < len(header); col++ {
			period, hasPeriod := columnPeriods[col]
			if !hasPeriod || col >= len(row) {
				continue
			}
			token := valueTokenPattern.FindString(row[col])
			if token == "" {
				continue
			}
			parsed, err := financials.ParseValue(token)
			if err != nil {
				continue
			}

			metric := domain.FinancialMetric{
				ID:             domain.NewID(),
				DocumentID:     payload.DocumentID,
				DealID:         payload.DealID,
				MetricName:     name,
				MetricCategory: category,
				Value:          parsed.Value,
				SourceSheet:    c.SheetName,
				SourcePage:     c.PageNumber,
				Confidence:     0.6,
			}
			if parsed.Unit != "" {
				unit := parsed.Unit
				metric.Unit = &unit
			}
			ref := financials.CellReference(rowNum, col+1)
			metric.SourceCell = &ref

			periodType := period.Type
			metric.PeriodType = &periodType
			year := period.FiscalYear
			metric.FiscalYear = &year
			metric.IsActual = period.IsActual
			if period.Type == domain.PeriodQuarterly {
				q := period.Quarter
				metric.FiscalQuarter = &q
			}

			metrics = append(metrics, metric)
		}
	}

	return metrics
}

// extractTextMetrics scans prose lines for a single metric mention per
// line, taking both the value and the fiscal period from that same line
// since free text carries no column structure to separate them.
func extractTextMetrics(payload domain.DocumentJobPayload, c domain.Chunk) []domain.FinancialMetric {
	var metrics []domain.FinancialMetric

	for _, line := range strings.Split(c.Content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, category, ok := financials.Identify(line)
		if !ok {
			continue
		}

		token := valueTokenPattern.FindString(line)
		if token == "" {
			continue
		}
		parsed, err := financials.ParseValue(token)
		if err != nil {
			continue
		}

		metric := domain.FinancialMetric{
			ID:             domain.NewID(),
			DocumentID:     payload.DocumentID,
			DealID:         payload.DealID,
			MetricName:     name,
			MetricCategory: category,
			Value:          parsed.Value,
			SourceSheet:    c.SheetName,
			SourcePage:     c.PageNumber,
			Confidence:     0.6,
		}
		if parsed.Unit != "" {
			unit := parsed.Unit
			metric.Unit = &unit
		}
		if c.CellReference != nil {
			ref := *c.CellReference
			metric.SourceCell = &ref
		}

		if period, ok := financials.DetectPeriod(line); ok {
			periodType := period.Type
			metric.PeriodType = &periodType
			year := period.FiscalYear
			metric.FiscalYear = &year
			metric.IsActual = period.IsActual
			if period.Type == domain.PeriodQuarterly {
				q := period.Quarter
				metric.FiscalQuarter = &q
			}
		}

		metrics = append(metrics, metric)
	}

	return metrics
}
