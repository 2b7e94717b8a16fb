package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// chunkPDF emits one chunk per non-blank page. Pages whose text cannot be
// extracted are skipped; a whole-file read failure is an error.
func chunkPDF(path string) ([]Chunk, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF document: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var chunks []Chunk
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // unextractable page, the rest of the document still counts
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		chunks = append(chunks, Chunk{
			Text:     text,
			Metadata: map[string]string{"page": strconv.Itoa(pageNum)},
		})
	}
	return chunks, nil
}
