// Package parsing implements the parse stage's chunking algorithm and
// mime-category dispatch. No reference implementation of document chunking
// exists, so this is built straight from first principles.
package parsing

import (
	"regexp"
	"strings"

	"github.com/hoferino/manda-platform/domain"
)

// ChunkConfig carries the token budgets the chunker must preserve.
type ChunkConfig struct {
	MinTokens     int
	MaxTokens     int
	OverlapTokens int
}

// DefaultChunkConfig holds the documented default chunk sizing.
var DefaultChunkConfig = ChunkConfig{MinTokens: 512, MaxTokens: 1024, OverlapTokens: 50}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)
var sentenceSplit = regexp.MustCompile(`(?:[.!?])\s+`)

// estimateTokens approximates token count from character count, matching
// the common ~4-chars-per-token heuristic; exact tokenization depends on
// the embedding model's tokenizer and isn't needed for chunk boundary
// decisions.
func estimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}

// ChunkText splits content into token-bounded chunks, paragraph-first with
// sentence-level and token-window fallbacks. startIndex is the
// chunk_index to assign to the first produced chunk; the caller is
// responsible for keeping chunk_index dense and globally ordered across a
// whole document.
func ChunkText(content string, cfg ChunkConfig, startIndex int, pageNumber *int) []domain.Chunk {
	var chunks []domain.Chunk
	index := startIndex

	paragraphs := paragraphSplit.Split(strings.TrimSpace(content), -1)
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, piece := range splitToFit(para, cfg) {
			chunks = append(chunks, domain.Chunk{
				ChunkIndex: index,
				Content:    piece,
				ChunkType:  domain.ChunkText,
				PageNumber: pageNumber,
				TokenCount: estimateTokens(piece),
			})
			index++
		}
	}
	return chunks
}

// splitToFit returns para unchanged if it fits within MaxTokens; otherwise
// splits at sentence boundaries, and for any resulting sentence group that
// still exceeds MaxTokens, falls back to a fixed token window with overlap.
func splitToFit(para string, cfg ChunkConfig) []string {
	if estimateTokens(para) <= cfg.MaxTokens {
		return []string{para}
	}

	sentences := sentenceSplit.Split(para, -1)
	var groups []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			groups = append(groups, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		st := estimateTokens(sentence)
		if currentTokens+st > cfg.MaxTokens && current.Len() > 0 {
			flush()
		}
		current.WriteString(sentence)
		current.WriteString(". ")
		currentTokens += st
	}
	flush()

	var out []string
	for _, g := range groups {
		if estimateTokens(g) <= cfg.MaxTokens {
			out = append(out, g)
			continue
		}
		out = append(out, tokenWindowSplit(g, cfg)...)
	}
	return out
}

// tokenWindowSplit is the last-resort splitter for a single run-on span
// with no sentence boundaries, sliding a fixed character window sized to
// MaxTokens with OverlapTokens of overlap between consecutive windows.
func tokenWindowSplit(text string, cfg ChunkConfig) []string {
	maxChars := cfg.MaxTokens * 4
	overlapChars := cfg.OverlapTokens * 4
	if maxChars <= overlapChars {
		overlapChars = 0
	}

	var windows []string
	start := 0
	for start < len(text) {
		end := start + maxChars
		if end > len(text) {
			end = len(text)
		}
		windows = append(windows, strings.TrimSpace(text[start:end]))
		if end == len(text) {
			break
		}
		start = end - overlapChars
	}
	return windows
}

// ChunkTable produces one or more table chunks for headerRow + bodyRows,
// keeping the table whole when it fits, else splitting with the header
// row repeated in every part and metadata.is_complete_table=false.
func ChunkTable(headerRow string, bodyRows []string, cfg ChunkConfig, startIndex int, sheetName *string, pageNumber *int) []domain.Chunk {
	full := headerRow + "\n" + strings.Join(bodyRows, "\n")
	if estimateTokens(full) <= cfg.MaxTokens {
		return []domain.Chunk{{
			ChunkIndex: startIndex,
			Content:    full,
			ChunkType:  domain.ChunkTable,
			SheetName:  sheetName,
			PageNumber: pageNumber,
			TokenCount: estimateTokens(full),
			Metadata:   map[string]interface{}{"is_complete_table": true},
		}}
	}

	var parts []domain.Chunk
	index := startIndex
	partNum := 1
	var current strings.Builder
	current.WriteString(headerRow)
	currentTokens := estimateTokens(headerRow)

	flush := func() {
		parts = append(parts, domain.Chunk{
			ChunkIndex: index,
			Content:    current.String(),
			ChunkType:  domain.ChunkTable,
			SheetName:  sheetName,
			PageNumber: pageNumber,
			TokenCount: estimateTokens(current.String()),
			Metadata: map[string]interface{}{
				"is_complete_table": false,
				"table_part":        partNum,
			},
		})
		index++
		partNum++
		current.Reset()
		current.WriteString(headerRow)
		currentTokens = estimateTokens(headerRow)
	}

	for _, row := range bodyRows {
		rt := estimateTokens(row)
		if currentTokens+rt > cfg.MaxTokens {
			flush()
		}
		current.WriteString("\n")
		current.WriteString(row)
		currentTokens += rt
	}
	if strings.TrimSpace(current.String()) != strings.TrimSpace(headerRow) {
		flush()
	}

	return parts
}

// Reindex rewrites ChunkIndex across chunks so it is dense, zero-based,
// and globally ordered — required when a document's parser produces
// chunks in multiple passes (text, then tables, then formula summary)
// that must be merged into one sequence.
func Reindex(chunks []domain.Chunk) []domain.Chunk {
	for i := range chunks {
		chunks[i].ChunkIndex = i
	}
	return chunks
}
