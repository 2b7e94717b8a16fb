package ingest

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockSelector matches the block-level elements worth indexing: paragraphs,
// headings down to level 4 and list items. Deeper headings and layout
// elements carry too little standalone meaning to retrieve.
const blockSelector = "p, h1, h2, h3, h4, li"

// chunkHTML extracts one chunk per block-level element of interest, in
// document order, skipping elements with no text.
func chunkHTML(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening HTML document: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML document: %w", err)
	}

	var chunks []Chunk
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Text:     text,
			Metadata: map[string]string{"element": goquery.NodeName(sel)},
		})
	})
	return chunks, nil
}
