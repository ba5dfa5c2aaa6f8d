// Package financials implements the extract-financials stage's detector,
// metric/synonym table, period and value parsing, and cell-reference
// construction. No reference implementation does financial-document
// parsing, so this is built on regexp/strconv by necessity.
package financials

import (
	"regexp"
	"strings"
)

// DetectionThreshold is the minimum confidence score (0-100) required to
// proceed with metric extraction; below it the stage skips extraction and
// marks the document complete.
const DetectionThreshold = 30

var headerPattern = regexp.MustCompile(`(?i)\b(balance sheet|income statement|profit.?(and|&).?loss|p&l|cash flow|statement of (operations|financial position)|bilanz|gewinn.?und.?verlustrechnung)\b`)
var tablePattern = regexp.MustCompile(`(?i)\b(total|subtotal|fiscal year|q[1-4]\s*20\d\d|fy\s*20\d\d)\b`)
var formulaPattern = regexp.MustCompile(`^\s*=`)
var currencyCellPattern = regexp.MustCompile(`[$€£¥]\s*[\d.,]+`)

// DetectionInput is the minimal view of a parsed document the detector
// scores; callers pass table cell text and surrounding chunk text
// separately since tables carry much stronger signal.
type DetectionInput struct {
	ChunkTexts []string
	TableCells []string
	HasFormula bool
}

// Score computes a 0-100 confidence that input is a financial document,
// from header/table/formula/currency-cell pattern matches.
func Score(input DetectionInput) int {
	score := 0

	for _, t := range input.ChunkTexts {
		if headerPattern.MatchString(t) {
			score += 30
			break
		}
	}

	tableHits := 0
	for _, cell := range input.TableCells {
		if tablePattern.MatchString(cell) {
			tableHits++
		}
		if currencyCellPattern.MatchString(cell) {
			tableHits++
		}
		if formulaPattern.MatchString(cell) {
			tableHits++
		}
	}
	if tableHits > 0 {
		score += 25
	}
	if tableHits >= 5 {
		score += 20
	}
	if input.HasFormula {
		score += 15
	}

	for _, cell := range input.TableCells {
		if currencyCellPattern.MatchString(strings.TrimSpace(cell)) {
			score += 5
			if score >= 100 {
				break
			}
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// ShouldExtract reports whether score clears DetectionThreshold.
func ShouldExtract(score int) bool {
	return score >= DetectionThreshold
}
