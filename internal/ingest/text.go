package ingest

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// chunkText splits plain text and markdown into blank-line-delimited
// paragraphs. Paragraph numbers are 1-based positions in the split, so they
// stay stable even when blank paragraphs are skipped.
func chunkText(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text document: %w", err)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	paragraphs := strings.Split(text, "\n\n")

	var chunks []Chunk
	for i, paragraph := range paragraphs {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:     trimmed,
			Metadata: map[string]string{"paragraph": strconv.Itoa(i + 1)},
		})
	}
	return chunks, nil
}
