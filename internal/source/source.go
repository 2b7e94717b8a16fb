// Package source manages the catalog of medical source documents:
// guidelines, textbooks, articles and tabular references registered by an
// administrator. The catalog records where each document's file lives and
// whether it has been indexed into the similarity store.
//
// Deleting a source removes its file and catalog row but leaves previously
// indexed vectors in place; retrieval from an orphaned source still works,
// it just cannot be traced back to a catalog entry.
package source

import (
	"errors"
	"time"
)

// ErrNotFound indicates the requested source does not exist in the catalog.
var ErrNotFound = errors.New("source not found")

// Common source type values. The field is free-form; these cover the corpus
// we actually ingest.
const (
	TypeGuideline = "guideline"
	TypeTextbook  = "textbook"
	TypeArticle   = "article"
)

// Source is one registered source document.
type Source struct {
	ID              int64
	Title           string
	Type            string
	Publisher       string
	PublicationDate time.Time
	URL             string
	LocalPath       string
	Indexed         bool
	IndexDate       *time.Time
	CreatedAt       time.Time
}
