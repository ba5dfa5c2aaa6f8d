package domain

import "time"

// ContradictionStatus is the review lifecycle of a detected Contradiction.
type ContradictionStatus string

const (
	ContradictionUnresolved ContradictionStatus = "unresolved"
	ContradictionResolved   ContradictionStatus = "resolved"
	ContradictionDismissed  ContradictionStatus = "dismissed"
)

// Contradiction is a deal-scoped pair of Findings the LLM judged to
// conflict. FindingAID/FindingBID are stored as an unordered pair: detection
// must dedup (a, b) against (b, a) before persisting.
type Contradiction struct {
	ID          string               `json:"id"`
	DealID      string               `json:"deal_id"`
	Domain      FindingDomain        `json:"domain"`
	FindingAID  string               `json:"finding_a_id"`
	FindingBID  string               `json:"finding_b_id"`
	Explanation string               `json:"explanation"`
	Severity    string               `json:"severity"`
	Confidence  float64              `json:"confidence"`
	Status      ContradictionStatus  `json:"status"`
	DetectedAt  time.Time            `json:"detected_at"`
}

// UnorderedPairKey returns a dedup key stable under argument order, used to
// collapse (a, b) and (b, a) into a single candidate before the LLM call.
func UnorderedPairKey(a, b string) string {
	if a <= b {
		return a + "|" + b
	}
	return b + "|" + a
}
