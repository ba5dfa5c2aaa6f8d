package repository

import (
	"context"
	"fmt"

	"github.com/hoferino/manda-platform/db"
)

// PostgresUsageRepository persists LLM/embedding cost and latency
// accounting rows.
type PostgresUsageRepository struct {
	db *db.PostgresDB
}

func NewPostgresUsageRepository(pg *db.PostgresDB) *PostgresUsageRepository {
	return &PostgresUsageRepository{db: pg}
}

func (r *PostgresUsageRepository) RecordUsage(ctx context.Context, rec UsageRecord) error {
	err := r.db.Exec(ctx, `
		INSERT INTO usage_records (organization_id, deal_id, user_id, feature, provider, model,
		                            input_tokens, output_tokens, cost_usd, latency_ms, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, nullableUUID(rec.OrganizationID), nullableUUID(rec.DealID), nullableString(rec.UserID),
		rec.Feature, rec.Provider, rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.CostUSD, rec.LatencyMS, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func nullableUUID(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
