package services

import "strings"

// Default sliding-window parameters for chunking extracted page text.
const (
	ChunkSize    = 512
	ChunkOverlap = 64
)

// TextChunk is one retained window of a chunking pass.
type TextChunk struct {
	Content   string
	Index     int
	CharStart int
	CharEnd   int
}

// ChunkText splits text into overlapping fixed-size windows. The window
// advances by size-overlap characters each step; windows that are empty
// after trimming are dropped without consuming an index. The result is a
// pure function of (text, size, overlap), which re-ingestion relies on for
// reproducible chunk boundaries.
func ChunkText(text string, size, overlap int) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = ChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = ChunkOverlap
	}

	runes := []rune(text)
	var chunks []TextChunk
	start := 0
	idx := 0

	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, TextChunk{
				Content:   content,
				Index:     idx,
				CharStart: start,
				CharEnd:   end,
			})
			idx++
		}

		// A window that reached the end covers the rest of the text; a
		// further overlap-only window would duplicate its tail.
		if end >= len(runes) {
			break
		}
		start += size - overlap
	}

	return chunks
}

// EstimateTokens is the rough whitespace-split token estimate stored with
// each chunk.
func EstimateTokens(content string) int {
	return len(strings.Fields(content))
}
