package financials

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hoferino/manda-platform/domain"
)

// PeriodMatch is a detected fiscal period reference.
type PeriodMatch struct {
	Type      domain.PeriodType
	FiscalYear int
	Quarter    int // 1-4, zero when Type != PeriodQuarterly
	Month      int // 1-12, zero when Type != PeriodMonthly
	IsActual   bool
}

// yearSuffixPattern matches a fiscal year with an actual/estimate/forecast/
// projection suffix, e.g. "2023A", "2024E", "FY2025P". "A" denotes actual;
// any of E/F/P denote a non-actual (estimate/forecast/projection) figure.
var yearSuffixPattern = regexp.MustCompile(`(?i)\b(?:FY\s?)?(20\d\d)\s?([AEFP])\b`)

var quarterPattern = regexp.MustCompile(`(?i)\bQ([1-4])\s?(20\d\d)\b`)

var bareYearPattern = regexp.MustCompile(`\b(20\d\d)\b`)

var monthNames = map[string]int{
	"january": 1, "jan": 1, "february": 2, "feb": 2, "march": 3, "mar": 3,
	"april": 4, "apr": 4, "may": 5, "june": 6, "jun": 6, "july": 7, "jul": 7,
	"august": 8, "aug": 8, "september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10, "november": 11, "nov": 11, "december": 12, "dec": 12,
}

var monthYearPattern = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(20\d\d)\b`)

// DetectPeriod scans text for the first recognizable period reference,
// checking quarter, then year-with-suffix, then month-year, then a bare
// year (treated as an actual annual figure), in that priority order.
func DetectPeriod(text string) (PeriodMatch, bool) {
	if m := quarterPattern.FindStringSubmatch(text); m != nil {
		q, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[2])
		return PeriodMatch{Type: domain.PeriodQuarterly, FiscalYear: y, Quarter: q, IsActual: true}, true
	}

	if m := yearSuffixPattern.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		suffix := strings.ToUpper(m[2])
		return PeriodMatch{Type: domain.PeriodAnnual, FiscalYear: y, IsActual: suffix == "A"}, true
	}

	if m := monthYearPattern.FindStringSubmatch(text); m != nil {
		month := monthNames[strings.ToLower(m[1])]
		y, _ := strconv.Atoi(m[2])
		return PeriodMatch{Type: domain.PeriodMonthly, FiscalYear: y, Month: month, IsActual: true}, true
	}

	if m := bareYearPattern.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		return PeriodMatch{Type: domain.PeriodAnnual, FiscalYear: y, IsActual: true}, true
	}

	return PeriodMatch{}, false
}
