package parsing

import (
	"context"
	"fmt"
	"strings"

	"github.com/hoferino/manda-platform/domain"
)

// MimeCategory is the coarse file category the parse stage dispatches the
// file to the matching parser on.
type MimeCategory string

const (
	CategoryPDF         MimeCategory = "pdf"
	CategorySpreadsheet MimeCategory = "spreadsheet"
	CategoryWord        MimeCategory = "word"
	CategoryImage       MimeCategory = "image"
)

var mimeToCategory = map[string]MimeCategory{
	"application/pdf": CategoryPDF,

	"application/vnd.ms-excel": CategorySpreadsheet,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": CategorySpreadsheet,
	"text/csv": CategorySpreadsheet,

	"application/msword": CategoryWord,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": CategoryWord,

	"image/png":  CategoryImage,
	"image/jpeg": CategoryImage,
	"image/tiff": CategoryImage,
}

// CategoryFor maps a mime type to its parsing category. Unrecognized mime
// types return ok=false; the caller treats that as a permanent
// unsupported_format error.
func CategoryFor(mimeType string) (MimeCategory, bool) {
	c, ok := mimeToCategory[strings.ToLower(strings.TrimSpace(mimeType))]
	return c, ok
}

// IsSpreadsheet reports whether mimeType's category requires the financial
// extraction branch unconditionally.
func IsSpreadsheet(mimeType string) bool {
	c, ok := CategoryFor(mimeType)
	return ok && c == CategorySpreadsheet
}

// ParseResult is the output of a category parser.
type ParseResult struct {
	Chunks      []domain.Chunk
	Tables      []TableResult
	Formulas    []FormulaResult
	Metadata    map[string]interface{}
	TotalPages  *int
	TotalSheets *int
	ParseTimeMS int64
	Errors      []string
	Warnings    []string
}

// TableResult is one detected table, prior to chunking.
type TableResult struct {
	HeaderRow  string
	BodyRows   []string
	SheetName  *string
	PageNumber *int
}

// FormulaResult is one detected spreadsheet formula, preserved as text
// rather than its computed value.
type FormulaResult struct {
	CellReference string
	SheetName     string
	Formula       string
}

// Parser parses a downloaded blob at localPath into a ParseResult.
type Parser interface {
	Parse(ctx context.Context, localPath string) (ParseResult, error)
}

// Dispatcher routes a mime type to its registered Parser.
type Dispatcher struct {
	parsers map[MimeCategory]Parser
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{parsers: make(map[MimeCategory]Parser)}
}

func (d *Dispatcher) Register(category MimeCategory, p Parser) {
	d.parsers[category] = p
}

// Dispatch parses localPath using the parser registered for mimeType's
// category.
func (d *Dispatcher) Dispatch(ctx context.Context, mimeType, localPath string) (ParseResult, error) {
	category, ok := CategoryFor(mimeType)
	if !ok {
		return ParseResult{}, fmt.Errorf("unsupported format: mime type %q has no registered category", mimeType)
	}
	parser, ok := d.parsers[category]
	if !ok {
		return ParseResult{}, fmt.Errorf("unsupported format: no parser registered for category %q", category)
	}
	return parser.Parse(ctx, localPath)
}
