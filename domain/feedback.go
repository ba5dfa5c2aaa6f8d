package domain

import "time"

// Feedback-derived signals come from the review lifecycle already recorded
// on Finding: a validated Finding is positive feedback, a
// rejected Finding is negative feedback, and a correction is a validated
// or rejected Finding whose metadata carries a "correction" record left by
// the reviewer who edited it before accepting/rejecting.

// FeedbackEventType classifies one reviewer action against a Finding for
// the purposes of analyze-feedback aggregation.
type FeedbackEventType string

const (
	FeedbackValidation FeedbackEventType = "validation"
	FeedbackRejection  FeedbackEventType = "rejection"
	FeedbackCorrection FeedbackEventType = "correction"
)

// FindingCorrection is the conventional shape of
// Finding.metadata["correction"], recorded when a reviewer edits a
// Finding's domain or confidence before validating or rejecting it.
type FindingCorrection struct {
	PreviousDomain     FindingDomain `json:"previous_domain,omitempty"`
	PreviousConfidence float64       `json:"previous_confidence"`
}

// Correction reads f.metadata["correction"] if present.
func (f *Finding) Correction() (FindingCorrection, bool) {
	if f.Metadata == nil {
		return FindingCorrection{}, false
	}
	raw, ok := f.Metadata["correction"]
	if !ok {
		return FindingCorrection{}, false
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return FindingCorrection{}, false
	}
	var c FindingCorrection
	if domainName, ok := m["previous_domain"].(string); ok {
		c.PreviousDomain = FindingDomain(domainName)
	}
	if conf, ok := m["previous_confidence"].(float64); ok {
		c.PreviousConfidence = conf
	}
	return c, true
}

// MinFeedbackSampleSize is the minimum number of feedback events a domain
// must have in the analysis window before any pattern is reported for it.
const MinFeedbackSampleSize = 10

// RejectionRateThreshold and CorrectionRateThreshold are the per-domain
// rates (rejections or corrections / total feedback events) above which a
// domain_bias or extraction_error pattern is flagged.
const (
	RejectionRateThreshold = 0.30
	CorrectionRateThreshold = 0.20
)

// DefaultConfidenceThreshold is the baseline acceptance confidence for a
// FindingDomain absent any proposed adjustment.
func DefaultConfidenceThreshold(d FindingDomain) float64 {
	switch d {
	case DomainFinancial, DomainLegal:
		return 0.70
	case DomainTechnical, DomainOperational:
		return 0.60
	case DomainMarket:
		return 0.55
	default:
		return 0.50
	}
}

// FeedbackPatternType names the kind of systemic issue analyze-feedback
// can detect in one domain's feedback over the analysis window.
type FeedbackPatternType string

const (
	PatternDomainBias      FeedbackPatternType = "domain_bias"
	PatternConfidenceDrift FeedbackPatternType = "confidence_drift"
	PatternSourceQuality   FeedbackPatternType = "source_quality"
	PatternExtractionError FeedbackPatternType = "extraction_error"
)

// FeedbackPatternSeverity buckets how strongly a pattern's signal exceeds
// its threshold.
type FeedbackPatternSeverity string

const (
	SeverityLow      FeedbackPatternSeverity = "low"
	SeverityMedium   FeedbackPatternSeverity = "medium"
	SeverityHigh     FeedbackPatternSeverity = "high"
)

// FeedbackPattern is one detected systemic issue within a domain's
// feedback for the analysis window.
type FeedbackPattern struct {
	Type        FeedbackPatternType     `json:"type"`
	Domain      FindingDomain           `json:"domain"`
	Severity    FeedbackPatternSeverity `json:"severity"`
	SampleSize  int                     `json:"sample_size"`
	Metric      float64                 `json:"metric"`
	Description string                  `json:"description"`
}

// DomainFeedbackStats aggregates one domain's feedback counts and rates
// over the analysis window.
type DomainFeedbackStats struct {
	Domain             FindingDomain `json:"domain"`
	ValidatedCount     int           `json:"validated_count"`
	RejectedCount      int           `json:"rejected_count"`
	CorrectedCount     int           `json:"corrected_count"`
	TotalCount         int           `json:"total_count"`
	AverageConfidence  float64       `json:"average_confidence"`
	RejectionRate      float64       `json:"rejection_rate"`
	CorrectionRate     float64       `json:"correction_rate"`
	ProposedThreshold  float64       `json:"proposed_threshold"`
}

// DealFeedbackAnalytics is the upserted per-(deal, analysis_date) analytics
// row produced by the analyze-feedback stage.
type DealFeedbackAnalytics struct {
	ID            string                 `json:"id"`
	DealID        string                 `json:"deal_id"`
	AnalysisDate  time.Time              `json:"analysis_date"`
	WindowStart   time.Time              `json:"window_start"`
	WindowEnd     time.Time              `json:"window_end"`
	DomainStats   []DomainFeedbackStats  `json:"domain_stats"`
	Patterns      []FeedbackPattern      `json:"patterns"`
	Recommendations []string             `json:"recommendations"`
}
