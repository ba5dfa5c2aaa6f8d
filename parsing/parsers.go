package parsing

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/hoferino/manda-platform/domain"
)

// The category parsers below are capability stubs: Docling-equivalent PDF
// understanding and cell-level spreadsheet reading are out of scope. Each
// extracts what it reasonably can from the raw bytes — readable text runs,
// delimited rows, a formula-less placeholder. The PDF and Word parsers
// chunk their extracted text themselves with ChunkText; table-splitting and
// formula aggregation are left to the caller (ParseHandler).

// PDFParser does a best-effort text extraction from a PDF's literal text
// show operators. It does not reconstruct layout, tables, or images; a
// proper extraction backend (e.g. a Docling service) is the production
// replacement for this stub.
type PDFParser struct {
	Chunking ChunkConfig
}

func NewPDFParser(cfg ChunkConfig) *PDFParser {
	return &PDFParser{Chunking: cfg}
}

var pdfTextOperator = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)

func (p *PDFParser) Parse(ctx context.Context, localPath string) (ParseResult, error) {
	raw, err := os.ReadFile(localPath)
	if err != nil {
		return ParseResult{}, fmt.Errorf("read pdf: %w", err)
	}

	matches := pdfTextOperator.FindAllSubmatch(raw, -1)
	var sb strings.Builder
	for _, m := range matches {
		sb.Write(unescapePDFString(m[1]))
		sb.WriteByte(' ')
	}

	result := ParseResult{Metadata: map[string]interface{}{"source_bytes": len(raw)}}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		result.Warnings = append(result.Warnings, "no extractable text found; pdf may be scanned or image-only")
		return result, nil
	}
	result.Chunks = ChunkText(text, p.Chunking, 0, nil)
	return result, nil
}

func unescapePDFString(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) {
			i++
			switch b[i] {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, b[i])
			}
			continue
		}
		out = append(out, b[i])
	}
	return out
}

// SpreadsheetParser handles delimited text (CSV) directly; binary
// spreadsheet formats (xlsx/xls) are read as a single opaque table with a
// warning, since cell-level reading is explicitly out of scope.
type SpreadsheetParser struct {
	Chunking ChunkConfig
}

func NewSpreadsheetParser(cfg ChunkConfig) *SpreadsheetParser {
	return &SpreadsheetParser{Chunking: cfg}
}

func (p *SpreadsheetParser) Parse(ctx context.Context, localPath string) (ParseResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return ParseResult{}, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	if !strings.EqualFold(strings.TrimPrefix(extOf(localPath), "."), "csv") {
		return ParseResult{
			Tables: []TableResult{{
				HeaderRow: "sheet",
				BodyRows:  []string{"binary spreadsheet content not individually cell-parsed"},
			}},
			Warnings: []string{"binary spreadsheet formats are read as a single opaque table; cell-level reading is out of scope"},
		}, nil
	}

	var header string
	var rows []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if header == "" {
			header = line
			continue
		}
		rows = append(rows, line)
	}
	if err := scanner.Err(); err != nil {
		return ParseResult{}, fmt.Errorf("scan csv: %w", err)
	}
	if header == "" {
		return ParseResult{Warnings: []string{"empty spreadsheet"}}, nil
	}
	return ParseResult{Tables: []TableResult{{HeaderRow: header, BodyRows: rows}}}, nil
}

// WordParser extracts the document's readable plain-text content. It does
// not preserve styling, headers/footers, or embedded objects.
type WordParser struct {
	Chunking ChunkConfig
}

func NewWordParser(cfg ChunkConfig) *WordParser {
	return &WordParser{Chunking: cfg}
}

var printableRun = regexp.MustCompile(`[\x20-\x7E]{8,}`)

func (p *WordParser) Parse(ctx context.Context, localPath string) (ParseResult, error) {
	raw, err := os.ReadFile(localPath)
	if err != nil {
		return ParseResult{}, fmt.Errorf("read word document: %w", err)
	}

	if strings.HasSuffix(strings.ToLower(localPath), ".txt") {
		return ParseResult{Chunks: ChunkText(string(raw), p.Chunking, 0, nil)}, nil
	}

	runs := printableRun.FindAll(raw, -1)
	var sb strings.Builder
	for _, r := range runs {
		sb.Write(r)
		sb.WriteByte('\n')
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return ParseResult{Warnings: []string{"no extractable text found"}}, nil
	}
	return ParseResult{Chunks: ChunkText(text, p.Chunking, 0, nil)}, nil
}

// ImageParser has no OCR backend; it records the image as a single
// metadata-only chunk (the file extension and byte size; no caption or
// filename) so the document still produces a chunk rather than failing
// outright.
type ImageParser struct{}

func NewImageParser() *ImageParser { return &ImageParser{} }

func (p *ImageParser) Parse(ctx context.Context, localPath string) (ParseResult, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return ParseResult{}, fmt.Errorf("stat image: %w", err)
	}
	return ParseResult{
		Chunks: []domain.Chunk{{
			ChunkIndex: 0,
			Content:    fmt.Sprintf("[image: %s, %d bytes, no OCR text available]", extOf(localPath), info.Size()),
			ChunkType:  domain.ChunkImage,
			TokenCount: 16,
		}},
		Warnings: []string{"OCR extraction not implemented; image stored as a placeholder chunk"},
	}, nil
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i:]
}
