package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/caduceus-ai/caduceus/internal/config"
	"github.com/caduceus-ai/caduceus/internal/engine"
	"github.com/caduceus-ai/caduceus/internal/ingest"
	"github.com/caduceus-ai/caduceus/internal/log"
	"github.com/caduceus-ai/caduceus/internal/source"
	"github.com/caduceus-ai/caduceus/internal/vector"
)

const (
	// answerMaxTokens bounds grounded answer generation.
	answerMaxTokens = 2048

	// reasonMaxTokens bounds differential-diagnosis generation, which
	// produces longer structured output.
	reasonMaxTokens = 3072

	// assessmentStop terminates reasoning generation at the closing
	// delimiter of the assessment section.
	assessmentStop = "</ASSESSMENT>"

	// embedRateLimit caps embedding calls per second. Provider quotas for
	// embedding endpoints are typically per-minute; five per second stays
	// well under the default Gemini tier.
	embedRateLimit = rate.Limit(5)
	embedRateBurst = 5
)

// Catalog is the slice of the source catalog the pipeline needs: resolving
// a source record before ingestion and flagging it once indexed.
type Catalog interface {
	Get(ctx context.Context, id int64) (*source.Source, error)
	MarkIndexed(ctx context.Context, id int64, when time.Time) error
}

// Result is one retrieved passage with its relevance score in (0, 1].
type Result struct {
	Text     string
	Metadata map[string]string
	Score    float64
}

// SourceRef identifies a source document cited by a grounded answer.
type SourceRef struct {
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	Relevance float64 `json:"relevance"`
}

// Answer is the outcome of a grounded answering call.
type Answer struct {
	Text       string      `json:"answer"`
	Sources    []SourceRef `json:"sources"`
	TokensUsed int         `json:"tokens_used"`
}

// Assessment is the outcome of a structured reasoning call.
type Assessment struct {
	Text       string  `json:"assessment"`
	Confidence float64 `json:"confidence"`
	TokensUsed int     `json:"tokens_used"`
}

// Service owns the retrieval pipeline: it embeds chunks and queries,
// maintains the vector store, and drives grounded generation. One Service
// is constructed at startup and shared by all request paths; the vector
// store serializes writers internally.
type Service struct {
	embedder  ai.Embedder
	engine    engine.Client
	store     *vector.Store
	catalog   Catalog
	ingestor  *ingest.Ingestor
	limiter   *rate.Limiter
	batchSize int
	topK      int
	logger    log.Logger
}

// New assembles the pipeline. batchSize controls how many insertions may
// accumulate before a snapshot is persisted; topK is the retrieval depth
// used by Answer.
func New(embedder ai.Embedder, client engine.Client, store *vector.Store, catalog Catalog, ingestor *ingest.Ingestor, cfg *config.Config, logger log.Logger) *Service {
	return &Service{
		embedder:  embedder,
		engine:    client,
		store:     store,
		catalog:   catalog,
		ingestor:  ingestor,
		limiter:   rate.NewLimiter(embedRateLimit, embedRateBurst),
		batchSize: cfg.BatchSize,
		topK:      cfg.TopK,
		logger:    logger,
	}
}

// IndexSource ingests one source document into the vector store. Already
// indexed sources are a no-op, so repeated calls never duplicate vectors.
// Chunks are embedded and added in chunking order; a chunk whose embedding
// fails is skipped and logged while the rest of the document continues.
// Snapshots are persisted every batch of insertions and once more at the
// end; persistence failure never aborts indexing.
func (s *Service) IndexSource(ctx context.Context, id int64) error {
	src, err := s.catalog.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("index source %d: %w", id, err)
	}

	if src.Indexed {
		s.logger.Info("source already indexed", "source_id", id, "title", src.Title)
		return nil
	}

	chunks, err := s.ingestor.Chunks(src.LocalPath)
	if err != nil {
		return fmt.Errorf("index source %d: %w", id, err)
	}

	added := 0
	for _, chunk := range chunks {
		vec, err := s.embed(ctx, chunk.Text)
		if err != nil {
			s.logger.Error("embedding failed, skipping chunk",
				"source_id", id, "error", err)
			continue
		}

		metadata := map[string]string{
			"source_id":    strconv.FormatInt(src.ID, 10),
			"source_title": src.Title,
			"source_type":  src.Type,
		}
		for k, v := range chunk.Metadata {
			metadata[k] = v
		}

		if _, err := s.store.Add(vec, chunk.Text, metadata); err != nil {
			s.logger.Error("vector add failed, skipping chunk",
				"source_id", id, "error", err)
			continue
		}
		added++

		if added%s.batchSize == 0 {
			s.persistBestEffort()
		}
	}

	s.persistBestEffort()

	if err := s.catalog.MarkIndexed(ctx, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("index source %d: %w", id, err)
	}

	s.logger.Info("source indexed",
		"source_id", id, "title", src.Title,
		"chunks", len(chunks), "vectors_added", added)
	return nil
}

// Search embeds the query and returns the k nearest passages ordered by
// descending relevance, where score = 1/(1+distance). Retrieval never
// fails hard: an empty store, a failed query embedding, or a lookup entry
// missing for a returned id all degrade to fewer (or zero) results.
func (s *Service) Search(ctx context.Context, query string, k int) []Result {
	if s.store.Count() == 0 {
		s.logger.Warn("vector store is empty")
		return []Result{}
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		s.logger.Error("query embedding failed", "error", err)
		return []Result{}
	}

	hits := s.store.Search(vec, k)
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		entry, ok := s.store.Get(hit.ID)
		if !ok {
			s.logger.Warn("vector id missing from lookup", "id", hit.ID)
			continue
		}
		results = append(results, Result{
			Text:     entry.Text,
			Metadata: entry.Metadata,
			Score:    1.0 / (1.0 + hit.Distance),
		})
	}
	return results
}

// Answer retrieves the most relevant passages for the query, composes a
// grounded prompt, and generates an answer. An empty store yields a
// well-formed answer with no sources rather than an error; only the
// generation call itself can fail.
func (s *Service) Answer(ctx context.Context, query string, patient *PatientContext, temperature float32) (*Answer, error) {
	results := s.Search(ctx, query, s.topK)
	if len(results) == 0 {
		s.logger.Warn("no relevant passages found", "query", query)
	}

	var contextText strings.Builder
	sources := make([]SourceRef, 0, len(results))
	for _, res := range results {
		contextText.WriteString("Information: " + res.Text + "\n\n")
		sources = append(sources, SourceRef{
			Title:     metadataOr(res.Metadata, "source_title", "unknown source"),
			Type:      metadataOr(res.Metadata, "source_type", "unknown"),
			Relevance: res.Score,
		})
	}

	prompt := GroundingPrompt(query, contextText.String(), patient)

	completion, err := s.engine.Complete(ctx, engine.Request{
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("answer query: %w", err)
	}

	return &Answer{
		Text:       completion.Text,
		Sources:    sources,
		TokensUsed: completion.TotalTokens,
	}, nil
}

// Reason generates a structured medical assessment for the given patient.
// Generation stops at the closing assessment delimiter; the returned
// confidence is the deterministic heuristic over the generated text.
func (s *Service) Reason(ctx context.Context, patient PatientContext, additionalContext string, temperature float32) (*Assessment, error) {
	prompt := ReasoningPrompt(patient, additionalContext)

	completion, err := s.engine.Complete(ctx, engine.Request{
		Prompt:        prompt,
		Temperature:   temperature,
		MaxTokens:     reasonMaxTokens,
		StopSequences: []string{assessmentStop},
	})
	if err != nil {
		return nil, fmt.Errorf("generate assessment: %w", err)
	}

	return &Assessment{
		Text:       completion.Text,
		Confidence: Confidence(completion.Text),
		TokensUsed: completion.TotalTokens,
	}, nil
}

// Supported reports whether documents with the given extension can be
// ingested.
func (s *Service) Supported(ext string) bool {
	return s.ingestor.Supported(ext)
}

// Persist flushes the vector store snapshot. Exposed for shutdown.
func (s *Service) Persist() error {
	return s.store.Persist()
}

func (s *Service) persistBestEffort() {
	if err := s.store.Persist(); err != nil {
		s.logger.Error("snapshot persist failed", "error", err)
	}
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed rate limit: %w", err)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embed text: empty embedding response")
	}
	return resp.Embeddings[0].Embedding, nil
}

func metadataOr(metadata map[string]string, key, fallback string) string {
	if v, ok := metadata[key]; ok && v != "" {
		return v
	}
	return fallback
}
