package domain

// MetricCategory groups a FinancialMetric by statement type.
type MetricCategory string

const (
	CategoryIncomeStatement MetricCategory = "income_statement"
	CategoryBalanceSheet    MetricCategory = "balance_sheet"
	CategoryCashFlow        MetricCategory = "cash_flow"
	CategoryRatio           MetricCategory = "ratio"
)

// PeriodType classifies the reporting cadence of a FinancialMetric.
type PeriodType string

const (
	PeriodAnnual    PeriodType = "annual"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodMonthly   PeriodType = "monthly"
)

// FinancialMetric is a typed numeric extraction bound to a period and unit.
type FinancialMetric struct {
	ID             string                 `json:"id"`
	DocumentID     string                 `json:"document_id"`
	DealID         string                 `json:"deal_id"`
	MetricName     string                 `json:"metric_name"`
	MetricCategory MetricCategory         `json:"metric_category"`
	Value          string                 `json:"value"` // fixed-point decimal string
	Unit           *string                `json:"unit,omitempty"`
	PeriodType     *PeriodType            `json:"period_type,omitempty"`
	FiscalYear     *int                   `json:"fiscal_year,omitempty"`
	FiscalQuarter  *int                   `json:"fiscal_quarter,omitempty"`
	PeriodStart    *string                `json:"period_start,omitempty"`
	PeriodEnd      *string                `json:"period_end,omitempty"`
	SourceSheet    *string                `json:"source_sheet,omitempty"`
	SourceCell     *string                `json:"source_cell,omitempty"`
	SourcePage     *int                   `json:"source_page,omitempty"`
	SourceFormula  *string                `json:"source_formula,omitempty"`
	IsActual       bool                   `json:"is_actual"`
	Confidence     float64                `json:"confidence"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
