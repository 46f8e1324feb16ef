package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		size       int
		overlap    int
		wantChunks int
	}{
		{
			name:       "empty text yields no chunks",
			text:       "",
			size:       512,
			overlap:    64,
			wantChunks: 0,
		},
		{
			name:       "whitespace only yields no chunks",
			text:       "   \n\t  ",
			size:       512,
			overlap:    64,
			wantChunks: 0,
		},
		{
			name:       "short text yields a single chunk",
			text:       "Monthly rent is $1,200 payable on the first.",
			size:       512,
			overlap:    64,
			wantChunks: 1,
		},
		{
			name:       "text at exactly the window size yields a single chunk",
			text:       strings.Repeat("a", 512),
			size:       512,
			overlap:    64,
			wantChunks: 1,
		},
		{
			name:       "text one rune over the window yields two chunks",
			text:       strings.Repeat("a", 513),
			size:       512,
			overlap:    64,
			wantChunks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkText(tt.text, tt.size, tt.overlap)
			assert.Len(t, chunks, tt.wantChunks)
		})
	}
}

func TestChunkTextWindowAdvance(t *testing.T) {
	// 1000 runes with size 512 and overlap 64: windows start at 0, 448, 896.
	text := strings.Repeat("x", 1000)
	chunks := ChunkText(text, 512, 64)

	assert.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].CharStart)
	assert.Equal(t, 512, chunks[0].CharEnd)
	assert.Equal(t, 448, chunks[1].CharStart)
	assert.Equal(t, 960, chunks[1].CharEnd)
	assert.Equal(t, 896, chunks[2].CharStart)
	assert.Equal(t, 1000, chunks[2].CharEnd)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestChunkTextDropsEmptyWindowsWithoutConsumingIndex(t *testing.T) {
	// A run of whitespace wide enough to make a middle window blank.
	text := strings.Repeat("a", 400) + strings.Repeat(" ", 600) + strings.Repeat("b", 400)
	chunks := ChunkText(text, 512, 64)

	var indices []int
	for _, c := range chunks {
		indices = append(indices, c.Index)
		assert.NotEmpty(t, c.Content)
	}
	// Indices stay contiguous from zero even when windows are dropped.
	for i, idx := range indices {
		assert.Equal(t, i, idx)
	}
}

func TestChunkTextIsDeterministic(t *testing.T) {
	text := strings.Repeat("The tenant agrees to pay rent monthly. ", 50)
	first := ChunkText(text, 512, 64)
	second := ChunkText(text, 512, 64)
	assert.Equal(t, first, second)
}

func TestChunkTextHandlesMultibyteRunes(t *testing.T) {
	// Window boundaries count runes, not bytes.
	text := strings.Repeat("é", 600)
	chunks := ChunkText(text, 512, 64)

	assert.Len(t, chunks, 2)
	assert.Equal(t, 512, len([]rune(chunks[0].Content)))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 5, EstimateTokens("monthly rent is one thousand"))
	assert.Equal(t, 2, EstimateTokens("  spaced   out  "))
}
