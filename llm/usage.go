package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/db/repository"
)

// rate holds per-million-token pricing for a provider:model pair. Rates are illustrative list prices, overridable via
// SetRate for deployments with negotiated pricing.
type rate struct {
	inputPerM  float64
	outputPerM float64
}

var defaultRates = map[string]rate{
	"gemini:gemini-2.0-flash":      {inputPerM: 0.075, outputPerM: 0.30},
	"gemini:gemini-2.0-pro":        {inputPerM: 1.25, outputPerM: 5.00},
	"gemini:gemini-2.0-flash-lite": {inputPerM: 0.0375, outputPerM: 0.15},
	"gemini:gemini-embedding-001":  {inputPerM: 0.025},
	"voyage:voyage-3":              {inputPerM: 0.06},
}

// Recorder computes per-call cost from Usage and persists it through
// repository.UsageRepository, keyed by "provider:model".
type Recorder struct {
	repo  repository.UsageRepository
	rates map[string]rate
	log   *common.ContextLogger
}

func NewRecorder(repo repository.UsageRepository) *Recorder {
	return &Recorder{repo: repo, rates: defaultRates, log: common.ComponentLogger("usage_recorder")}
}

// SetRate overrides the pricing for a provider:model key.
func (r *Recorder) SetRate(providerModel string, inputPerM, outputPerM float64) {
	r.rates[providerModel] = rate{inputPerM: inputPerM, outputPerM: outputPerM}
}

// Context carries the tenant/feature attribution attached to every usage
// record; callers build one per stage invocation.
type Context struct {
	OrganizationID string
	DealID         string
	UserID         string
	Feature        string
}

// Record computes cost for usage and persists a UsageRecord. Failures are
// logged, not propagated — cost accounting must never fail a stage, the
// same best-effort treatment given to other side channels like graph sync.
func (r *Recorder) Record(ctx context.Context, attribution Context, usage Usage) {
	key := fmt.Sprintf("%s:%s", usage.Provider, usage.Model)
	rt := r.rates[key]
	cost := float64(usage.InputTokens)*rt.inputPerM/1e6 + float64(usage.OutputTokens)*rt.outputPerM/1e6

	err := r.repo.RecordUsage(ctx, repository.UsageRecord{
		OrganizationID: attribution.OrganizationID,
		DealID:         attribution.DealID,
		UserID:         attribution.UserID,
		Feature:        attribution.Feature,
		Provider:       usage.Provider,
		Model:          usage.Model,
		InputTokens:    usage.InputTokens,
		OutputTokens:   usage.OutputTokens,
		CostUSD:        cost,
		LatencyMS:      usage.LatencyMS,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		r.log.WithError(err).Warn("failed to persist usage record")
	}
}
