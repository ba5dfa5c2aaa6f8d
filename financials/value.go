package financials

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// currencySymbolToISO maps a currency symbol to its ISO 4217 code.
var currencySymbolToISO = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

var multiplierSuffix = map[string]float64{
	"k": 1e3,
	"m": 1e6, "mn": 1e6,
	"b": 1e9, "bn": 1e9,
}

var cleanupPattern = regexp.MustCompile(`[,\s]`)
var trailingMultiplierPattern = regexp.MustCompile(`(?i)([\d.]+)\s*(k|mn|bn|m|b)\b`)
var parenNegativePattern = regexp.MustCompile(`^\(\s*(.+?)\s*\)$`)

// ParsedValue is the result of parsing a raw financial cell/text value.
type ParsedValue struct {
	Value     string // fixed-point decimal string, e.g. "-1234.50"
	Unit      string // ISO currency code, "%" for percentages, or "" for bare numbers
	IsPercent bool
}

// ParseValue parses a raw cell value: currency symbols become ISO unit
// codes, parenthesized values are accounting negatives, thousand
// separators and K/M/B/mn/bn multiplier suffixes are normalized away into
// the numeric value itself.
func ParseValue(raw string) (ParsedValue, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedValue{}, fmt.Errorf("empty value")
	}

	negative := false
	if m := parenNegativePattern.FindStringSubmatch(s); m != nil {
		negative = true
		s = m[1]
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}

	unit := ""
	for symbol, iso := range currencySymbolToISO {
		if strings.Contains(s, symbol) {
			unit = iso
			s = strings.ReplaceAll(s, symbol, "")
			break
		}
	}

	isPercent := false
	if strings.Contains(s, "%") {
		isPercent = true
		unit = "%"
		s = strings.ReplaceAll(s, "%", "")
	}

	s = strings.TrimSpace(s)

	multiplier := 1.0
	if m := trailingMultiplierPattern.FindStringSubmatch(s); m != nil {
		multiplier = multiplierSuffix[strings.ToLower(m[2])]
		s = m[1]
	}

	s = cleanupPattern.ReplaceAllString(s, "")

	f, ok := new(big.Float).SetPrec(128).SetString(s)
	if !ok {
		return ParsedValue{}, fmt.Errorf("unparseable numeric value %q", raw)
	}
	if multiplier != 1.0 {
		f.Mul(f, big.NewFloat(multiplier))
	}
	if negative {
		f.Neg(f)
	}

	return ParsedValue{
		Value:     f.Text('f', 2),
		Unit:      unit,
		IsPercent: isPercent,
	}, nil
}
