package parsing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoferino/manda-platform/domain"
)

func TestChunkText_ShortContentIsOneChunk(t *testing.T) {
	chunks := ChunkText("a short paragraph of text.", DefaultChunkConfig, 0, nil)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, domain.ChunkText, chunks[0].ChunkType)
}

func TestChunkText_BlankContentProducesNoChunks(t *testing.T) {
	chunks := ChunkText("   \n\n  ", DefaultChunkConfig, 0, nil)
	assert.Empty(t, chunks)
}

func TestChunkText_MultipleParagraphsIndexSequentially(t *testing.T) {
	content := "first paragraph.\n\nsecond paragraph.\n\nthird paragraph."
	chunks := ChunkText(content, DefaultChunkConfig, 5, nil)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, 5+i, c.ChunkIndex)
	}
}

func TestChunkText_OversizedParagraphSplitsAtSentenceBoundaries(t *testing.T) {
	cfg := ChunkConfig{MinTokens: 1, MaxTokens: 10, OverlapTokens: 2}
	sentence := "This is one sentence that repeats. "
	content := strings.Repeat(sentence, 20)
	chunks := ChunkText(content, cfg, 0, nil)
	assert.Greater(t, len(chunks), 1)
}

func TestChunkText_RunOnTextFallsBackToTokenWindow(t *testing.T) {
	cfg := ChunkConfig{MinTokens: 1, MaxTokens: 5, OverlapTokens: 1}
	content := strings.Repeat("x", 500) // no paragraph or sentence boundaries
	chunks := ChunkText(content, cfg, 0, nil)
	assert.Greater(t, len(chunks), 1)
}

func TestChunkText_PageNumberPropagated(t *testing.T) {
	page := 3
	chunks := ChunkText("content", DefaultChunkConfig, 0, &page)
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].PageNumber)
	assert.Equal(t, 3, *chunks[0].PageNumber)
}

func TestChunkTable_FitsAsSingleCompleteChunk(t *testing.T) {
	chunks := ChunkTable("name,value", []string{"a,1", "b,2"}, DefaultChunkConfig, 0, nil, nil)
	require.Len(t, chunks, 1)
	assert.Equal(t, true, chunks[0].Metadata["is_complete_table"])
	assert.Equal(t, domain.ChunkTable, chunks[0].ChunkType)
}

func TestChunkTable_SplitsWithRepeatedHeaderWhenOversized(t *testing.T) {
	cfg := ChunkConfig{MinTokens: 1, MaxTokens: 5, OverlapTokens: 0}
	header := "col1,col2"
	var rows []string
	for i := 0; i < 50; i++ {
		rows = append(rows, "value_a_long_enough,value_b_long_enough")
	}
	chunks := ChunkTable(header, rows, cfg, 0, nil, nil)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.Equal(t, false, c.Metadata["is_complete_table"])
		assert.True(t, strings.HasPrefix(c.Content, header))
	}
}

func TestChunkTable_SheetNamePropagated(t *testing.T) {
	sheet := "Sheet1"
	chunks := ChunkTable("h", []string{"r1"}, DefaultChunkConfig, 0, &sheet, nil)
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].SheetName)
	assert.Equal(t, "Sheet1", *chunks[0].SheetName)
}

func TestReindex_MakesIndexDenseAndZeroBased(t *testing.T) {
	chunks := []domain.Chunk{{ChunkIndex: 7}, {ChunkIndex: 2}, {ChunkIndex: 99}}
	reindexed := Reindex(chunks)
	for i, c := range reindexed {
		assert.Equal(t, i, c.ChunkIndex)
	}
}
