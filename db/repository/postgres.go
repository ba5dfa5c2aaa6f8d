package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hoferino/manda-platform/db"
	"github.com/hoferino/manda-platform/domain"
)

// ErrNotFound is returned by single-row lookups that match no row.
var ErrNotFound = errors.New("repository: not found")

// PostgresRelationalRepository implements RelationalRepository over pgx.
// Documents, chunks, findings, financial_metrics and contradictions all
// live in the same database so the multi-statement operations below can be
// wrapped in a single transaction.
type PostgresRelationalRepository struct {
	db *db.PostgresDB
}

func NewPostgresRelationalRepository(pg *db.PostgresDB) *PostgresRelationalRepository {
	return &PostgresRelationalRepository{db: pg}
}

func (r *PostgresRelationalRepository) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, deal_id, organization_id, blob_reference, mime_type, display_name,
		       processing_status, last_completed_stage, processing_error, retry_history,
		       created_at, updated_at
		FROM documents WHERE id = $1
	`, documentID)
	return scanDocument(row)
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var (
		d             domain.Document
		procErrJSON   []byte
		retryHistJSON []byte
	)
	err := row.Scan(
		&d.ID, &d.DealID, &d.OrganizationID, &d.BlobReference, &d.MimeType, &d.DisplayName,
		&d.ProcessingStatus, &d.LastCompletedStage, &procErrJSON, &retryHistJSON,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if len(procErrJSON) > 0 {
		var pe domain.ProcessingError
		if err := json.Unmarshal(procErrJSON, &pe); err != nil {
			return nil, fmt.Errorf("unmarshal processing_error: %w", err)
		}
		d.ProcessingError = &pe
	}
	if len(retryHistJSON) > 0 {
		if err := json.Unmarshal(retryHistJSON, &d.RetryHistory); err != nil {
			return nil, fmt.Errorf("unmarshal retry_history: %w", err)
		}
	}
	return &d, nil
}

func (r *PostgresRelationalRepository) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	var deal domain.Deal
	err := r.db.QueryRow(ctx, `
		SELECT id, organization_id, name, created_at FROM deals WHERE id = $1
	`, dealID).Scan(&deal.ID, &deal.OrganizationID, &deal.Name, &deal.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	return &deal, nil
}

// StoreChunksAndUpdateStatus deletes, re-inserts, and flips processing_status
// in one transaction.
func (r *PostgresRelationalRepository) StoreChunksAndUpdateStatus(ctx context.Context, documentID string, chunks []domain.Chunk, newStatus domain.ProcessingStatus) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete existing chunks: %w", err)
	}

	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		var embedding []float32
		if c.Embedding != nil {
			embedding = c.Embedding
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, document_id, chunk_index, content, chunk_type,
			                     page_number, sheet_name, cell_reference, token_count,
			                     embedding, metadata)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, c.ID, documentID, c.ChunkIndex, c.Content, c.ChunkType,
			c.PageNumber, c.SheetName, c.CellReference, c.TokenCount,
			embedding, metaJSON); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := updateStatusTx(ctx, tx, documentID, newStatus); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func updateStatusTx(ctx context.Context, tx pgx.Tx, documentID string, status domain.ProcessingStatus) error {
	_, err := tx.Exec(ctx, `
		UPDATE documents SET processing_status = $1, updated_at = now() WHERE id = $2
	`, status, documentID)
	if err != nil {
		return fmt.Errorf("update processing_status: %w", err)
	}
	return nil
}

func (r *PostgresRelationalRepository) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, chunk_index, content, chunk_type, page_number,
		       sheet_name, cell_reference, token_count, embedding, metadata
		FROM chunks WHERE document_id = $1 ORDER BY chunk_index ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var (
			c        domain.Chunk
			metaJSON []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.ChunkType,
			&c.PageNumber, &c.SheetName, &c.CellReference, &c.TokenCount, &c.Embedding, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRelationalRepository) UpdateEmbeddingsAndStatus(ctx context.Context, documentID string, embeddings map[string][]float32, newStatus domain.ProcessingStatus) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for chunkID, vec := range embeddings {
		if _, err := tx.Exec(ctx, `UPDATE chunks SET embedding = $1 WHERE id = $2 AND document_id = $3`,
			vec, chunkID, documentID); err != nil {
			return fmt.Errorf("update embedding for chunk %s: %w", chunkID, err)
		}
	}
	if err := updateStatusTx(ctx, tx, documentID, newStatus); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRelationalRepository) DeleteChunks(ctx context.Context, documentID string) error {
	return r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
}

func (r *PostgresRelationalRepository) ClearChunkEmbeddings(ctx context.Context, documentID string) error {
	return r.db.Exec(ctx, `UPDATE chunks SET embedding = NULL WHERE document_id = $1`, documentID)
}

// StoreFindingsAndUpdateStatus persists findings and advances status in one
// transaction. It does not delete existing findings first: analyze
// only runs once per successful pass, and retry clears findings explicitly
// via DeleteFindings beforehand.
func (r *PostgresRelationalRepository) StoreFindingsAndUpdateStatus(ctx context.Context, documentID string, findings []domain.Finding, newStatus domain.ProcessingStatus) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range findings {
		metaJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("marshal finding metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO findings (id, deal_id, document_id, chunk_id, text, finding_type,
			                       domain, confidence, status, metadata)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, f.ID, f.DealID, documentID, f.ChunkID, f.Text, f.Type, f.Domain, f.Confidence, f.Status, metaJSON); err != nil {
			return fmt.Errorf("insert finding %s: %w", f.ID, err)
		}
	}
	if err := updateStatusTx(ctx, tx, documentID, newStatus); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRelationalRepository) GetFindingsForDeal(ctx context.Context, dealID string, excludeStatus domain.FindingStatus) ([]domain.Finding, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, deal_id, document_id, chunk_id, text, finding_type, domain, confidence, status, metadata
		FROM findings WHERE deal_id = $1 AND status != $2
		ORDER BY confidence DESC
	`, dealID, excludeStatus)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var (
			f        domain.Finding
			metaJSON []byte
		)
		if err := rows.Scan(&f.ID, &f.DealID, &f.DocumentID, &f.ChunkID, &f.Text, &f.Type, &f.Domain, &f.Confidence, &f.Status, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &f.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal finding metadata: %w", err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PostgresRelationalRepository) DeleteFindings(ctx context.Context, documentID string) error {
	return r.db.Exec(ctx, `DELETE FROM findings WHERE document_id = $1`, documentID)
}

func (r *PostgresRelationalRepository) StoreFinancialMetrics(ctx context.Context, documentID string, metrics []domain.FinancialMetric) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range metrics {
		metaJSON, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metric metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO financial_metrics (id, document_id, deal_id, metric_name, metric_category,
			                                value, unit, period_type, fiscal_year, fiscal_quarter,
			                                period_start, period_end, source_sheet, source_cell,
			                                source_page, source_formula, is_actual, confidence, metadata)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		`, m.ID, documentID, m.DealID, m.MetricName, m.MetricCategory, m.Value, m.Unit,
			m.PeriodType, m.FiscalYear, m.FiscalQuarter, m.PeriodStart, m.PeriodEnd,
			m.SourceSheet, m.SourceCell, m.SourcePage, m.SourceFormula, m.IsActual, m.Confidence, metaJSON); err != nil {
			return fmt.Errorf("insert financial metric %s: %w", m.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRelationalRepository) ContradictionExists(ctx context.Context, dealID, findingAID, findingBID string) (bool, error) {
	key := domain.UnorderedPairKey(findingAID, findingBID)
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM contradictions
			WHERE deal_id = $1 AND pair_key = $2
		)
	`, dealID, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check contradiction existence: %w", err)
	}
	return exists, nil
}

// InsertContradictionIfAbsent relies on a unique index over (deal_id,
// pair_key) to enforce the unordered-pair invariant even under concurrent
// contradiction-detection runs for the same deal.
func (r *PostgresRelationalRepository) InsertContradictionIfAbsent(ctx context.Context, c domain.Contradiction) (bool, error) {
	key := domain.UnorderedPairKey(c.FindingAID, c.FindingBID)
	tag, err := r.db.Pool().Exec(ctx, `
		INSERT INTO contradictions (id, deal_id, domain, finding_a_id, finding_b_id, pair_key,
		                             explanation, severity, confidence, status, detected_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (deal_id, pair_key) DO NOTHING
	`, c.ID, c.DealID, c.Domain, c.FindingAID, c.FindingBID, key, c.Explanation, c.Severity, c.Confidence, c.Status, c.DetectedAt)
	if err != nil {
		return false, fmt.Errorf("insert contradiction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRelationalRepository) UpdateProcessingStatus(ctx context.Context, documentID string, status domain.ProcessingStatus) error {
	return r.db.Exec(ctx, `UPDATE documents SET processing_status = $1, updated_at = now() WHERE id = $2`, status, documentID)
}

func (r *PostgresRelationalRepository) UpdateLastCompletedStage(ctx context.Context, documentID string, stage domain.Stage) error {
	return r.db.Exec(ctx, `UPDATE documents SET last_completed_stage = $1, updated_at = now() WHERE id = $2`, stage, documentID)
}

func (r *PostgresRelationalRepository) SetProcessingError(ctx context.Context, documentID string, procErr *domain.ProcessingError) error {
	data, err := json.Marshal(procErr)
	if err != nil {
		return fmt.Errorf("marshal processing error: %w", err)
	}
	return r.db.Exec(ctx, `UPDATE documents SET processing_error = $1, updated_at = now() WHERE id = $2`, data, documentID)
}

func (r *PostgresRelationalRepository) ClearProcessingError(ctx context.Context, documentID string) error {
	return r.db.Exec(ctx, `UPDATE documents SET processing_error = NULL, updated_at = now() WHERE id = $1`, documentID)
}

// AppendRetryHistory reads, appends, and writes back within one statement
// pair; the bounding to domain.MaxRetryHistoryEntries happens in Go
// (domain.AppendRetryHistory) since Postgres JSONB has no array-cap builtin
// that preserves newest-first ordering cleanly.
func (r *PostgresRelationalRepository) AppendRetryHistory(ctx context.Context, documentID string, entry domain.RetryHistoryEntry) error {
	existing, err := r.GetRetryHistory(ctx, documentID)
	if err != nil {
		return err
	}
	updated := domain.AppendRetryHistory(existing, entry)
	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal retry history: %w", err)
	}
	return r.db.Exec(ctx, `UPDATE documents SET retry_history = $1, updated_at = now() WHERE id = $2`, data, documentID)
}

func (r *PostgresRelationalRepository) GetRetryHistory(ctx context.Context, documentID string) ([]domain.RetryHistoryEntry, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT retry_history FROM documents WHERE id = $1`, documentID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get retry_history: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var history []domain.RetryHistoryEntry
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("unmarshal retry_history: %w", err)
	}
	return history, nil
}

func (r *PostgresRelationalRepository) GetFindingsUpdatedSince(ctx context.Context, dealID string, since time.Time) ([]domain.Finding, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, deal_id, document_id, chunk_id, text, finding_type, domain, confidence, status, metadata
		FROM findings
		WHERE deal_id = $1 AND updated_at >= $2 AND status IN ('validated', 'rejected')
		ORDER BY updated_at
	`, dealID, since)
	if err != nil {
		return nil, fmt.Errorf("query findings updated since: %w", err)
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var (
			f        domain.Finding
			metaJSON []byte
		)
		if err := rows.Scan(&f.ID, &f.DealID, &f.DocumentID, &f.ChunkID, &f.Text, &f.Type, &f.Domain, &f.Confidence, &f.Status, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &f.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal finding metadata: %w", err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpsertFeedbackAnalytics is keyed by the (deal_id, analysis_date) unique
// index, so a same-day rerun (e.g. an on-demand analyze-feedback call)
// replaces rather than duplicates the row.
func (r *PostgresRelationalRepository) UpsertFeedbackAnalytics(ctx context.Context, analytics domain.DealFeedbackAnalytics) error {
	domainStatsJSON, err := json.Marshal(analytics.DomainStats)
	if err != nil {
		return fmt.Errorf("marshal domain stats: %w", err)
	}
	patternsJSON, err := json.Marshal(analytics.Patterns)
	if err != nil {
		return fmt.Errorf("marshal patterns: %w", err)
	}
	recommendationsJSON, err := json.Marshal(analytics.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	return r.db.Exec(ctx, `
		INSERT INTO deal_feedback_analytics
			(id, deal_id, analysis_date, window_start, window_end, domain_stats, patterns, recommendations)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (deal_id, analysis_date) DO UPDATE SET
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			domain_stats = EXCLUDED.domain_stats,
			patterns = EXCLUDED.patterns,
			recommendations = EXCLUDED.recommendations
	`, analytics.ID, analytics.DealID, analytics.AnalysisDate, analytics.WindowStart, analytics.WindowEnd,
		domainStatsJSON, patternsJSON, recommendationsJSON)
}

func (r *PostgresRelationalRepository) ListDealsWithFeedbackActivity(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT deal_id FROM findings
		WHERE updated_at >= $1 AND status IN ('validated', 'rejected')
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list deals with feedback activity: %w", err)
	}
	defer rows.Close()

	var dealIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deal id: %w", err)
		}
		dealIDs = append(dealIDs, id)
	}
	return dealIDs, rows.Err()
}

func (r *PostgresRelationalRepository) SearchSimilarChunks(ctx context.Context, organizationID string, queryEmbedding []float32, dealID, documentID *string, limit int) ([]domain.SimilarChunkResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT c.id, c.document_id, d.display_name, d.deal_id, c.content,
		       c.chunk_type, c.page_number, c.chunk_index, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.organization_id = $1 AND c.embedding IS NOT NULL
	`
	args := []interface{}{organizationID}
	if dealID != nil {
		args = append(args, *dealID)
		query += fmt.Sprintf(" AND d.deal_id = $%d", len(args))
	}
	if documentID != nil {
		args = append(args, *documentID)
		query += fmt.Sprintf(" AND c.document_id = $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search similar chunks: %w", err)
	}
	defer rows.Close()

	var candidates []domain.SimilarChunkResult
	var embeddings [][]float32
	for rows.Next() {
		var (
			res       domain.SimilarChunkResult
			embedding []float32
		)
		if err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.DocumentName, &res.ProjectID,
			&res.ContentPreview, &res.ChunkType, &res.PageNumber, &res.ChunkIndex, &embedding); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		if len(res.ContentPreview) > 300 {
			res.ContentPreview = res.ContentPreview[:300]
		}
		candidates = append(candidates, res)
		embeddings = append(embeddings, embedding)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range candidates {
		candidates[i].Similarity = cosineSimilarity(queryEmbedding, embeddings[i])
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
