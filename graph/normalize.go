package graph

import (
	"regexp"
	"strings"
)

// companySuffixes strips legal-entity suffix variants so that
// "ABC Corp", "ABC Inc.", and "ABC LLC" all normalize to the same key.
var companySuffixes = regexp.MustCompile(`(?i)\b(corp(oration)?|inc(orporated)?|llc|ltd|limited|gmbh|plc|holdings?|group|co)\b\.?`)

var punctuation = regexp.MustCompile(`[^\w\s]`)
var whitespace = regexp.MustCompile(`\s+`)

// parentheticalTitle strips a parenthesized title or qualifier from a
// person name, e.g. "Jane Doe (CFO)" -> "Jane Doe".
var parentheticalTitle = regexp.MustCompile(`\s*\([^)]*\)`)

// protectedMetricNames must never be auto-merged even when their surface
// strings collide after normalization: they are semantically distinct
// metrics, not alternate spellings of one metric.
var protectedMetricNames = map[string]bool{
	"revenue": true, "net revenue": true, "gross revenue": true, "recurring revenue": true,
	"arr": true, "mrr": true,
	"gross margin": true, "net margin": true, "operating margin": true, "ebitda margin": true,
}

// NormalizeCompanyName lowercases, strips legal-suffix variants and
// punctuation, and collapses whitespace, producing the key used to decide
// whether two company mentions should merge.
func NormalizeCompanyName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = companySuffixes.ReplaceAllString(n, "")
	n = punctuation.ReplaceAllString(n, "")
	n = whitespace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// NormalizePersonName strips a parenthesized title, lowercases, and
// collapses whitespace, while preserving initials (no token other than
// the parenthesized title is removed, and punctuation is kept).
func NormalizePersonName(name string) string {
	n := parentheticalTitle.ReplaceAllString(name, "")
	n = strings.ToLower(strings.TrimSpace(n))
	n = whitespace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// IsProtectedMetricName reports whether normalizedMetricName must never be
// auto-merged with another metric, regardless of surface-string collision.
func IsProtectedMetricName(normalizedMetricName string) bool {
	return protectedMetricNames[strings.ToLower(strings.TrimSpace(normalizedMetricName))]
}
