// Package ingest extracts ordered text chunks from source documents.
//
// A chunk is the minimal retrievable unit: a piece of text plus locator
// metadata saying where in the document it came from (page, element,
// paragraph or row). Chunking semantics depend on the file format and are
// dispatched by extension through an explicit chunker table:
//
//	.pdf          one chunk per non-blank page        metadata "page"
//	.html, .htm   one chunk per block element         metadata "element"
//	.txt, .md     one chunk per paragraph             metadata "paragraph"
//	.csv          one chunk per row                   metadata "row"
//	.xlsx, .xls   one chunk per row                   metadata "row"
//
// An unsupported extension logs a warning and yields zero chunks; only an
// unreadable file is an error, and it is fatal for that document alone.
package ingest

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// Chunk is one extracted (text, metadata) pair, in document order.
type Chunk struct {
	Text     string
	Metadata map[string]string
}

// chunkFunc extracts the ordered chunks of a single file.
type chunkFunc func(path string) ([]Chunk, error)

// Ingestor turns source documents into ordered chunks.
type Ingestor struct {
	chunkers map[string]chunkFunc
	logger   *slog.Logger
}

// New creates an Ingestor with the full chunker table.
func New(logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}

	ing := &Ingestor{logger: logger}
	ing.chunkers = map[string]chunkFunc{
		".pdf":  chunkPDF,
		".html": chunkHTML,
		".htm":  chunkHTML,
		".txt":  chunkText,
		".md":   chunkText,
		".csv":  chunkCSV,
		".xlsx": ing.chunkWorkbook,
		".xls":  ing.chunkWorkbook,
	}
	return ing
}

// Chunks extracts the ordered chunks of the file at path, dispatching on its
// extension. Unsupported extensions yield (nil, nil) after a warning; the
// document simply contributes nothing to the index.
func (ing *Ingestor) Chunks(path string) ([]Chunk, error) {
	ext := strings.ToLower(filepath.Ext(path))

	chunker, ok := ing.chunkers[ext]
	if !ok {
		ing.logger.Warn("unsupported document format, skipping", "path", path, "extension", ext)
		return nil, nil
	}

	return chunker(path)
}

// Supported reports whether the extension (including the dot) has a chunker.
func (ing *Ingestor) Supported(ext string) bool {
	_, ok := ing.chunkers[strings.ToLower(ext)]
	return ok
}
