package domain

// FindingType classifies the shape of a structured extraction.
type FindingType string

const (
	FindingFact       FindingType = "fact"
	FindingMetric     FindingType = "metric"
	FindingRisk       FindingType = "risk"
	FindingOpportunity FindingType = "opportunity"
	FindingInsight    FindingType = "insight"
	FindingAssumption FindingType = "assumption"
)

// FindingDomain classifies the business domain a Finding belongs to; also
// used to bucket contradiction detection.
type FindingDomain string

const (
	DomainFinancial  FindingDomain = "financial"
	DomainOperational FindingDomain = "operational"
	DomainMarket     FindingDomain = "market"
	DomainLegal      FindingDomain = "legal"
	DomainTechnical  FindingDomain = "technical"
	DomainGeneral    FindingDomain = "general"
)

// FindingStatus is the review lifecycle of a Finding.
type FindingStatus string

const (
	FindingPending   FindingStatus = "pending"
	FindingValidated FindingStatus = "validated"
	FindingRejected  FindingStatus = "rejected"
)

// Finding is a structured extraction from one or more chunks.
type Finding struct {
	ID         string                 `json:"id"`
	DealID     string                 `json:"deal_id"`
	DocumentID string                 `json:"document_id"`
	ChunkID    *string                `json:"chunk_id,omitempty"`
	Text       string                 `json:"text"`
	Type       FindingType            `json:"finding_type"`
	Domain     FindingDomain          `json:"domain"`
	Confidence float64                `json:"confidence"`
	Status     FindingStatus          `json:"status"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// SourceReference is the conventional shape of Finding.metadata["source_reference"].
type SourceReference struct {
	Page          *int    `json:"page,omitempty"`
	SheetName     *string `json:"sheet_name,omitempty"`
	CellReference *string `json:"cell_reference,omitempty"`
}

// DateReferenced extracts the optional metadata.date_referenced string used
// by contradiction pre-filtering.
func (f *Finding) DateReferenced() (string, bool) {
	if f.Metadata == nil {
		return "", false
	}
	v, ok := f.Metadata["date_referenced"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
