package financials

import (
	"regexp"
	"strings"

	"github.com/hoferino/manda-platform/domain"
)

// metricRule maps a synonym pattern (English and German terms) to the
// canonical metric_name/metric_category pair.
type metricRule struct {
	pattern  *regexp.Regexp
	name     string
	category domain.MetricCategory
}

var metricRules = []metricRule{
	// More specific synonyms are listed before the generic terms they
	// would otherwise be swallowed by (e.g. "net revenue" before "revenue").
	{regexp.MustCompile(`(?i)\b(net revenue|nettoumsatz)\b`), "net_revenue", domain.CategoryIncomeStatement},
	{regexp.MustCompile(`(?i)\b(annual recurring revenue|recurring revenue|\barr\b)\b`), "arr", domain.CategoryIncomeStatement},
	{regexp.MustCompile(`(?i)\b(monthly recurring revenue|\bmrr\b)\b`), "mrr", domain.CategoryIncomeStatement},
	{regexp.MustCompile(`(?i)\b(revenue|sales|turnover|umsatz|umsatzerl[oö]se)\b`), "revenue", domain.CategoryIncomeStatement},
	{regexp.MustCompile(`(?i)\bebitda\b`), "ebitda", domain.CategoryIncomeStatement},
	{regexp.MustCompile(`(?i)\bebit\b`), "ebit", domain.CategoryIncomeStatement},
	{regexp.MustCompile(`(?i)\b(net income|net profit|jahres[uü]berschuss|reingewinn)\b`), "net_income", domain.CategoryIncomeStatement},
	{regexp.MustCompile(`(?i)\b(gross profit|bruttogewinn)\b`), "gross_profit", domain.CategoryIncomeStatement},
	{regexp.MustCompile(`(?i)\b(operating expenses|opex|betriebsaufwand)\b`), "operating_expenses", domain.CategoryIncomeStatement},
	{regexp.MustCompile(`(?i)\b(cost of goods sold|cogs|herstellungskosten)\b`), "cogs", domain.CategoryIncomeStatement},

	{regexp.MustCompile(`(?i)\b(total assets|bilanzsumme|gesamtverm[oö]gen)\b`), "total_assets", domain.CategoryBalanceSheet},
	{regexp.MustCompile(`(?i)\b(total liabilities|verbindlichkeiten)\b`), "total_liabilities", domain.CategoryBalanceSheet},
	{regexp.MustCompile(`(?i)\b(shareholders.? equity|stockholders.? equity|eigenkapital)\b`), "shareholders_equity", domain.CategoryBalanceSheet},
	{regexp.MustCompile(`(?i)\b(cash and cash equivalents|zahlungsmittel)\b`), "cash_and_equivalents", domain.CategoryBalanceSheet},
	{regexp.MustCompile(`(?i)\b(accounts receivable|forderungen)\b`), "accounts_receivable", domain.CategoryBalanceSheet},
	{regexp.MustCompile(`(?i)\b(accounts payable|verbindlichkeiten aus lieferungen)\b`), "accounts_payable", domain.CategoryBalanceSheet},
	{regexp.MustCompile(`(?i)\bbilanz\b`), "balance_sheet_total", domain.CategoryBalanceSheet},

	{regexp.MustCompile(`(?i)\b(operating cash flow|cashflow aus betriebst[aä]tigkeit)\b`), "operating_cash_flow", domain.CategoryCashFlow},
	{regexp.MustCompile(`(?i)\b(free cash flow|fcf)\b`), "free_cash_flow", domain.CategoryCashFlow},
	{regexp.MustCompile(`(?i)\b(capital expenditures|capex|investitionen)\b`), "capex", domain.CategoryCashFlow},

	{regexp.MustCompile(`(?i)\b(gross margin %|gross margin percent)\b`), "gross_margin_pct", domain.CategoryRatio},
	{regexp.MustCompile(`(?i)\b(net margin|net margin %)\b`), "net_margin_pct", domain.CategoryRatio},
	{regexp.MustCompile(`(?i)\b(ebitda margin)\b`), "ebitda_margin_pct", domain.CategoryRatio},
	{regexp.MustCompile(`(?i)\b(debt.to.equity|verschuldungsgrad)\b`), "debt_to_equity", domain.CategoryRatio},
	{regexp.MustCompile(`(?i)\b(current ratio)\b`), "current_ratio", domain.CategoryRatio},
}

// Identify matches label against the synonym table, returning the
// canonical metric name and category, or ok=false if no rule matches.
// Rules are checked in order; more specific synonyms (e.g. "net revenue")
// are listed before their more general counterpart ("revenue").
func Identify(label string) (name string, category domain.MetricCategory, ok bool) {
	trimmed := strings.TrimSpace(label)
	for _, r := range metricRules {
		if r.pattern.MatchString(trimmed) {
			return r.name, r.category, true
		}
	}
	return "", "", false
}
