package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/hoferino/manda-platform/common"
	"github.com/hoferino/manda-platform/domain"
)

// feedbackWindow is how far back analyze-feedback looks for
// validated/rejected findings on each weekly (or on-demand) run.
const feedbackWindow = 7 * 24 * time.Hour

// AnalyzeFeedbackHandler aggregates one deal's review activity over the
// trailing window, computes per-domain stats, detects patterns, and
// upserts the analytics row.
type AnalyzeFeedbackHandler struct {
	deps *Deps
	log  *common.ContextLogger
	now  func() time.Time
}

func NewAnalyzeFeedbackHandler(deps *Deps) *AnalyzeFeedbackHandler {
	return &AnalyzeFeedbackHandler{deps: deps, log: common.ComponentLogger("stage_analyze_feedback"), now: time.Now}
}

func (h *AnalyzeFeedbackHandler) Handle(ctx context.Context, job domain.Job) error {
	dealID, _ := job.Payload["deal_id"].(string)
	if dealID == "" {
		return fmt.Errorf("permanent: job %s missing deal_id", job.ID)
	}
	log := h.log.WithField("deal_id", dealID)

	windowEnd := h.now().UTC()
	windowStart := windowEnd.Add(-feedbackWindow)

	findings, err := h.deps.Relational.GetFindingsUpdatedSince(ctx, dealID, windowStart)
	if err != nil {
		return fmt.Errorf("permanent: get findings updated since: %w", err)
	}

	byDomain := make(map[domain.FindingDomain][]domain.Finding)
	for _, f := range findings {
		byDomain[f.Domain] = append(byDomain[f.Domain], f)
	}

	analytics := domain.DealFeedbackAnalytics{
		ID:           domain.NewID(),
		DealID:       dealID,
		AnalysisDate: windowEnd,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
	}

	for fDomain, group := range byDomain {
		stats := computeDomainStats(fDomain, group)
		analytics.DomainStats = append(analytics.DomainStats, stats)

		if stats.TotalCount < domain.MinFeedbackSampleSize {
			continue
		}

		if stats.RejectionRate >= domain.RejectionRateThreshold {
			analytics.Patterns = append(analytics.Patterns, domain.FeedbackPattern{
				Type:        domain.PatternDomainBias,
				Domain:      fDomain,
				Severity:    severityFor(stats.RejectionRate, domain.RejectionRateThreshold),
				SampleSize:  stats.TotalCount,
				Metric:      stats.RejectionRate,
				Description: fmt.Sprintf("%.0f%% of %s findings were rejected in the last %d days", stats.RejectionRate*100, fDomain, int(feedbackWindow.Hours()/24)),
			})
			analytics.Recommendations = append(analytics.Recommendations,
				fmt.Sprintf("Review extraction prompts for domain %q: rejection rate %.0f%% exceeds threshold", fDomain, stats.RejectionRate*100))
		}

		if stats.CorrectionRate >= domain.CorrectionRateThreshold {
			analytics.Patterns = append(analytics.Patterns, domain.FeedbackPattern{
				Type:        domain.PatternExtractionError,
				Domain:      fDomain,
				Severity:    severityFor(stats.CorrectionRate, domain.CorrectionRateThreshold),
				SampleSize:  stats.TotalCount,
				Metric:      stats.CorrectionRate,
				Description: fmt.Sprintf("%.0f%% of %s findings required correction before review", stats.CorrectionRate*100, fDomain),
			})
		}

		baseline := domain.DefaultConfidenceThreshold(fDomain)
		if stats.ProposedThreshold != baseline {
			analytics.Patterns = append(analytics.Patterns, domain.FeedbackPattern{
				Type:        domain.PatternConfidenceDrift,
				Domain:      fDomain,
				Severity:    domain.SeverityLow,
				SampleSize:  stats.TotalCount,
				Metric:      stats.ProposedThreshold - baseline,
				Description: fmt.Sprintf("proposed confidence threshold for %s: %.2f (baseline %.2f)", fDomain, stats.ProposedThreshold, baseline),
			})
			analytics.Recommendations = append(analytics.Recommendations,
				fmt.Sprintf("Adjust confidence threshold for domain %q from %.2f to %.2f", fDomain, baseline, stats.ProposedThreshold))
		}
	}

	if err := h.deps.Relational.UpsertFeedbackAnalytics(ctx, analytics); err != nil {
		return fmt.Errorf("upsert feedback analytics: %w", err)
	}

	log.WithField("pattern_count", len(analytics.Patterns)).Info("analyze-feedback complete")
	return nil
}

// computeDomainStats derives validated/rejected/corrected counts, rates,
// and a proposed confidence threshold from one domain's feedback-window
// findings. A high rejection rate at the current acceptance threshold
// suggests raising it; the adjustment is proportional and bounded to
// [0, 1].
func computeDomainStats(fDomain domain.FindingDomain, findings []domain.Finding) domain.DomainFeedbackStats {
	stats := domain.DomainFeedbackStats{Domain: fDomain, TotalCount: len(findings)}

	var confidenceSum float64
	for _, f := range findings {
		confidenceSum += f.Confidence
		switch f.Status {
		case domain.FindingValidated:
			stats.ValidatedCount++
		case domain.FindingRejected:
			stats.RejectedCount++
		}
		if _, corrected := f.Correction(); corrected {
			stats.CorrectedCount++
		}
	}

	if stats.TotalCount > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.TotalCount)
		stats.RejectionRate = float64(stats.RejectedCount) / float64(stats.TotalCount)
		stats.CorrectionRate = float64(stats.CorrectedCount) / float64(stats.TotalCount)
	}

	baseline := domain.DefaultConfidenceThreshold(fDomain)
	stats.ProposedThreshold = baseline
	if stats.TotalCount >= domain.MinFeedbackSampleSize {
		adjustment := (stats.RejectionRate - domain.RejectionRateThreshold) * 0.2
		proposed := baseline + adjustment
		if proposed < 0 {
			proposed = 0
		}
		if proposed > 1 {
			proposed = 1
		}
		stats.ProposedThreshold = proposed
	}

	return stats
}

func severityFor(metric, threshold float64) domain.FeedbackPatternSeverity {
	ratio := metric / threshold
	switch {
	case ratio >= 2:
		return domain.SeverityHigh
	case ratio >= 1.5:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// AnalyzeFeedbackAllHandler implements analyze-feedback-all: the
// periodic fan-out that finds every deal with feedback activity in the
// window and enqueues one analyze-feedback job per deal.
type AnalyzeFeedbackAllHandler struct {
	deps *Deps
	log  *common.ContextLogger
	now  func() time.Time
}

func NewAnalyzeFeedbackAllHandler(deps *Deps) *AnalyzeFeedbackAllHandler {
	return &AnalyzeFeedbackAllHandler{deps: deps, log: common.ComponentLogger("stage_analyze_feedback_fanout"), now: time.Now}
}

func (h *AnalyzeFeedbackAllHandler) Handle(ctx context.Context, job domain.Job) error {
	since := h.now().UTC().Add(-feedbackWindow)

	dealIDs, err := h.deps.Relational.ListDealsWithFeedbackActivity(ctx, since)
	if err != nil {
		return fmt.Errorf("permanent: list deals with feedback activity: %w", err)
	}

	for _, dealID := range dealIDs {
		enqueueBestEffort(ctx, h.deps.Queue, domain.Job{
			Name:    domain.JobAnalyzeDealFeedback,
			Payload: map[string]interface{}{"deal_id": dealID},
		}, h.log)
	}

	h.log.WithField("deal_count", len(dealIDs)).Info("analyze-feedback-all fan-out complete")
	return nil
}
