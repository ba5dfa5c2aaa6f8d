// Package domain holds the entities shared across the deal-processing
// pipeline: organizations, deals, documents, chunks, findings, financial
// metrics, contradictions, and the job envelope. Nothing in this package
// talks to a database or a queue; it is the vocabulary the rest of the
// module shares.
package domain

import "time"

// ProcessingStatus is the coarse, externally visible label on a Document.
type ProcessingStatus string

const (
	StatusPending                      ProcessingStatus = "pending"
	StatusProcessing                   ProcessingStatus = "processing"
	StatusParsing                      ProcessingStatus = "parsing"
	StatusParsed                       ProcessingStatus = "parsed"
	StatusGraphitiIngesting            ProcessingStatus = "graphiti_ingesting"
	StatusGraphitiIngested             ProcessingStatus = "graphiti_ingested"
	StatusEmbedding                    ProcessingStatus = "embedding"
	StatusEmbedded                     ProcessingStatus = "embedded"
	StatusAnalyzing                    ProcessingStatus = "analyzing"
	StatusAnalyzed                     ProcessingStatus = "analyzed"
	StatusExtractingFinancials         ProcessingStatus = "extracting_financials"
	StatusComplete                     ProcessingStatus = "complete"
	StatusFailed                       ProcessingStatus = "failed"
	StatusParsingFailed                ProcessingStatus = "parsing_failed"
	StatusEmbeddingFailed              ProcessingStatus = "embedding_failed"
	StatusAnalyzingFailed              ProcessingStatus = "analyzing_failed"
	StatusExtractingFinancialsFailed   ProcessingStatus = "extracting_financials_failed"
	StatusExtractingFinancialsComplete ProcessingStatus = "extracting_financials_complete"
)

// Stage is the fine, internal cursor that drives retry.
type Stage string

const (
	StageNone     Stage = "pending"
	StageParsed   Stage = "parsed"
	StageEmbedded Stage = "embedded"
	StageAnalyzed Stage = "analyzed"
	StageComplete Stage = "complete"
)

// stageOrder is the authoritative internal stage sequence.
var stageOrder = []Stage{StageNone, StageParsed, StageEmbedded, StageAnalyzed, StageComplete}

// NextStage returns the successor of s. StageComplete is a fixed point.
func NextStage(s Stage) Stage {
	for i, st := range stageOrder {
		if st == s {
			if i == len(stageOrder)-1 {
				return st
			}
			return stageOrder[i+1]
		}
	}
	return StageNone
}

// StageLabelForStatus maps a fine stage to the coarse status reached on
// completing it (Parsed, Embedded, Analyzed, Complete; Pending for any other
// stage), used when a handler advances the cursor on success.
func StageLabelForStatus(s Stage) ProcessingStatus {
	switch s {
	case StageParsed:
		return StatusParsed
	case StageEmbedded:
		return StatusEmbedded
	case StageAnalyzed:
		return StatusAnalyzed
	case StageComplete:
		return StatusComplete
	default:
		return StatusPending
	}
}

// MimeCategory classifies a document's mime type for parser dispatch.
type MimeCategory string

const (
	CategoryPDF         MimeCategory = "pdf"
	CategorySpreadsheet MimeCategory = "spreadsheet"
	CategoryWord        MimeCategory = "word"
	CategoryImage       MimeCategory = "image"
)

// CategoryForMimeType maps a raw mime type string to its parser category.
// Unknown types return the empty category, which stands for
// "unsupported".
func CategoryForMimeType(mimeType string) MimeCategory {
	switch mimeType {
	case "application/pdf":
		return CategoryPDF
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel",
		"text/csv":
		return CategorySpreadsheet
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword":
		return CategoryWord
	case "image/png", "image/jpeg", "image/tiff", "image/webp":
		return CategoryImage
	default:
		return ""
	}
}

// ProcessingError is the structured, persisted shape of Document.processing_error.
type ProcessingError struct {
	Category     string    `json:"category"`
	ErrorType    string    `json:"error_type"`
	Message      string    `json:"message"`
	ShouldRetry  bool      `json:"should_retry"`
	UserMessage  string    `json:"user_message"`
	Guidance     string    `json:"guidance,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	StackTrace   string    `json:"stack_trace,omitempty"`
	RetryCount   int       `json:"retry_count"`
}

// RetryHistoryEntry is one element of the bounded Document.retry_history list.
type RetryHistoryEntry struct {
	Attempt   int       `json:"attempt"`
	Stage     string    `json:"stage"`
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxRetryHistoryEntries bounds Document.retry_history.
const MaxRetryHistoryEntries = 10

// Document is the raw uploaded artifact driven through the pipeline.
type Document struct {
	ID                string            `json:"id"`
	DealID            string            `json:"deal_id"`
	OrganizationID    string            `json:"organization_id"`
	BlobReference     string            `json:"blob_reference"`
	MimeType          string            `json:"mime_type"`
	DisplayName       string            `json:"display_name"`
	ProcessingStatus  ProcessingStatus  `json:"processing_status"`
	LastCompletedStage Stage            `json:"last_completed_stage"`
	ProcessingError   *ProcessingError  `json:"processing_error,omitempty"`
	RetryHistory      []RetryHistoryEntry `json:"retry_history"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// AppendRetryHistory inserts e at the front of the bounded history, newest
// first by timestamp, trimmed to MaxRetryHistoryEntries.
func AppendRetryHistory(history []RetryHistoryEntry, e RetryHistoryEntry) []RetryHistoryEntry {
	updated := make([]RetryHistoryEntry, 0, len(history)+1)
	updated = append(updated, e)
	updated = append(updated, history...)
	if len(updated) > MaxRetryHistoryEntries {
		updated = updated[:MaxRetryHistoryEntries]
	}
	return updated
}
