package vector

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync"
)

// Entry is the lookup record stored alongside each vector: the chunk text
// and its locator metadata (source id, title, type, page/paragraph/...).
type Entry struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Hit is a single search result: the vector id and its Euclidean distance
// to the query. Smaller distance means more similar.
type Hit struct {
	ID       int
	Distance float64
}

// Store is an append-only flat L2 index with a synchronized metadata lookup.
type Store struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	lookup  map[string]Entry // keyed by decimal vector id, matching the snapshot format

	dir    string // snapshot directory; empty for purely in-memory stores
	logger *slog.Logger
}

// New creates an empty in-memory store for vectors of the given dimension.
func New(dim int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		dim:    dim,
		lookup: make(map[string]Entry),
		logger: logger,
	}
}

// Dimension returns the fixed vector dimension of the store.
func (s *Store) Dimension() int {
	return s.dim
}

// Count returns the number of vectors in the index.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Add appends a vector with its lookup entry and returns the assigned id.
// Ids are sequential and 0-based: the first Add returns 0, the next 1, and
// so on. The vector must match the store dimension.
func (s *Store) Add(vec []float32, text string, metadata map[string]string) (int, error) {
	if len(vec) != s.dim {
		return 0, fmt.Errorf("vector dimension %d does not match store dimension %d", len(vec), s.dim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := len(s.vectors)
	// Copy so the caller cannot mutate indexed data afterwards.
	v := make([]float32, s.dim)
	copy(v, vec)
	s.vectors = append(s.vectors, v)
	s.lookup[strconv.Itoa(id)] = Entry{Text: text, Metadata: metadata}

	return id, nil
}

// Get returns the lookup entry for a vector id.
func (s *Store) Get(id int) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.lookup[strconv.Itoa(id)]
	return entry, ok
}

// Search returns up to k hits ordered by ascending Euclidean distance to the
// query vector. An empty store yields an empty result, not an error. A query
// of the wrong dimension also yields an empty result; retrieval degrades to
// "nothing found" rather than failing the caller.
func (s *Store) Search(query []float32, k int) []Hit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 || k <= 0 {
		return []Hit{}
	}
	if len(query) != s.dim {
		s.logger.Warn("query dimension mismatch, returning no hits",
			"query_dim", len(query), "store_dim", s.dim)
		return []Hit{}
	}

	hits := make([]Hit, len(s.vectors))
	for i, v := range s.vectors {
		hits[i] = Hit{ID: i, Distance: euclidean(query, v)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID // stable order for equal distances
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
