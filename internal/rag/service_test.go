package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/caduceus-ai/caduceus/internal/config"
	"github.com/caduceus-ai/caduceus/internal/engine"
	"github.com/caduceus-ai/caduceus/internal/ingest"
	"github.com/caduceus-ai/caduceus/internal/log"
	"github.com/caduceus-ai/caduceus/internal/source"
	"github.com/caduceus-ai/caduceus/internal/vector"
)

// mockEmbedder returns a fixed vector per text, or a default, and can be
// told to fail for specific texts.
type mockEmbedder struct {
	vectors map[string][]float32
	failOn  map[string]bool
	calls   []string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(_ api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	text := req.Input[0].Content[0].Text
	m.calls = append(m.calls, text)

	if m.failOn[text] {
		return nil, errors.New("embedding unavailable")
	}

	vec, ok := m.vectors[text]
	if !ok {
		vec = []float32{1, 0, 0}
	}
	return &ai.EmbedResponse{Embeddings: []*ai.Embedding{{Embedding: vec}}}, nil
}

// mockClient records the last generation request and returns a canned
// completion.
type mockClient struct {
	last       *engine.Request
	completion *engine.Completion
	err        error
}

func (m *mockClient) Complete(_ context.Context, req engine.Request) (*engine.Completion, error) {
	m.last = &req
	if m.err != nil {
		return nil, m.err
	}
	return m.completion, nil
}

type mockCatalog struct {
	sources map[int64]*source.Source
	marked  []int64
}

func (m *mockCatalog) Get(_ context.Context, id int64) (*source.Source, error) {
	src, ok := m.sources[id]
	if !ok {
		return nil, source.ErrNotFound
	}
	return src, nil
}

func (m *mockCatalog) MarkIndexed(_ context.Context, id int64, when time.Time) error {
	src, ok := m.sources[id]
	if !ok {
		return source.ErrNotFound
	}
	m.marked = append(m.marked, id)
	src.Indexed = true
	src.IndexDate = &when
	return nil
}

func newTestService(t *testing.T, embedder *mockEmbedder, client *mockClient, catalog *mockCatalog) (*Service, *vector.Store) {
	t.Helper()

	logger := log.NewNop()
	store := vector.New(3, logger)
	cfg := &config.Config{BatchSize: config.DefaultBatchSize, TopK: config.DefaultTopK}

	svc := New(embedder, client, store, catalog, ingest.New(logger), cfg, logger)
	return svc, store
}

func writeSourceFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestIndexSource_AddsVectorsAndMarksIndexed(t *testing.T) {
	path := writeSourceFile(t, "sepsis.md", "Early recognition matters.\n\nStart antibiotics within one hour.")
	catalog := &mockCatalog{sources: map[int64]*source.Source{
		7: {ID: 7, Title: "Sepsis Guideline", Type: source.TypeGuideline, LocalPath: path},
	}}
	embedder := &mockEmbedder{}
	svc, store := newTestService(t, embedder, &mockClient{}, catalog)

	if err := svc.IndexSource(context.Background(), 7); err != nil {
		t.Fatalf("IndexSource() error: %v", err)
	}

	if store.Count() != 2 {
		t.Errorf("store.Count() = %d, want 2", store.Count())
	}
	if len(catalog.marked) != 1 || catalog.marked[0] != 7 {
		t.Errorf("marked sources = %v, want [7]", catalog.marked)
	}

	entry, ok := store.Get(0)
	if !ok {
		t.Fatal("store.Get(0) missing")
	}
	if entry.Text != "Early recognition matters." {
		t.Errorf("entry text = %q", entry.Text)
	}
	want := map[string]string{
		"source_id":    "7",
		"source_title": "Sepsis Guideline",
		"source_type":  source.TypeGuideline,
		"paragraph":    "1",
	}
	for k, v := range want {
		if entry.Metadata[k] != v {
			t.Errorf("metadata[%q] = %q, want %q", k, entry.Metadata[k], v)
		}
	}
}

func TestIndexSource_AlreadyIndexedIsNoop(t *testing.T) {
	path := writeSourceFile(t, "note.md", "One paragraph.")
	catalog := &mockCatalog{sources: map[int64]*source.Source{
		1: {ID: 1, Title: "Note", Type: source.TypeArticle, LocalPath: path, Indexed: true},
	}}
	embedder := &mockEmbedder{}
	svc, store := newTestService(t, embedder, &mockClient{}, catalog)

	if err := svc.IndexSource(context.Background(), 1); err != nil {
		t.Fatalf("IndexSource() error: %v", err)
	}
	if err := svc.IndexSource(context.Background(), 1); err != nil {
		t.Fatalf("IndexSource() second call error: %v", err)
	}

	if store.Count() != 0 {
		t.Errorf("store.Count() = %d, want 0 for already indexed source", store.Count())
	}
	if len(embedder.calls) != 0 {
		t.Errorf("embedder called %d times, want 0", len(embedder.calls))
	}
	if len(catalog.marked) != 0 {
		t.Errorf("marked sources = %v, want none", catalog.marked)
	}
}

func TestIndexSource_EmbedFailureSkipsChunk(t *testing.T) {
	path := writeSourceFile(t, "doc.md", "Good chunk.\n\nBad chunk.\n\nAnother good chunk.")
	catalog := &mockCatalog{sources: map[int64]*source.Source{
		3: {ID: 3, Title: "Doc", Type: source.TypeArticle, LocalPath: path},
	}}
	embedder := &mockEmbedder{failOn: map[string]bool{"Bad chunk.": true}}
	svc, store := newTestService(t, embedder, &mockClient{}, catalog)

	if err := svc.IndexSource(context.Background(), 3); err != nil {
		t.Fatalf("IndexSource() error: %v", err)
	}

	if store.Count() != 2 {
		t.Errorf("store.Count() = %d, want 2 (failed chunk skipped)", store.Count())
	}
	if len(catalog.marked) != 1 {
		t.Errorf("source not marked indexed despite partial success")
	}
}

func TestIndexSource_UnreadableFileFails(t *testing.T) {
	catalog := &mockCatalog{sources: map[int64]*source.Source{
		5: {ID: 5, Title: "Gone", Type: source.TypeArticle, LocalPath: "/nonexistent/gone.md"},
	}}
	svc, _ := newTestService(t, &mockEmbedder{}, &mockClient{}, catalog)

	if err := svc.IndexSource(context.Background(), 5); err == nil {
		t.Fatal("IndexSource() with unreadable file returned nil error")
	}
	if len(catalog.marked) != 0 {
		t.Errorf("source marked indexed despite ingestion failure")
	}
}

func TestIndexSource_UnknownSource(t *testing.T) {
	svc, _ := newTestService(t, &mockEmbedder{}, &mockClient{}, &mockCatalog{sources: map[int64]*source.Source{}})

	err := svc.IndexSource(context.Background(), 42)
	if !errors.Is(err, source.ErrNotFound) {
		t.Errorf("IndexSource() error = %v, want ErrNotFound", err)
	}
}

func TestSearch_EmptyStore(t *testing.T) {
	svc, _ := newTestService(t, &mockEmbedder{}, &mockClient{}, &mockCatalog{})

	results := svc.Search(context.Background(), "anything", 5)
	if len(results) != 0 {
		t.Errorf("Search() on empty store = %v, want empty", results)
	}
}

func TestSearch_ScoresDescendingBoundedByOne(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"query": {0, 0, 0},
	}}
	svc, store := newTestService(t, embedder, &mockClient{}, &mockCatalog{})

	// Distances from the origin: 0, 1, 2.
	mustAdd(t, store, []float32{0, 0, 0}, "exact", nil)
	mustAdd(t, store, []float32{1, 0, 0}, "near", nil)
	mustAdd(t, store, []float32{2, 0, 0}, "far", nil)

	results := svc.Search(context.Background(), "query", 3)
	if len(results) != 3 {
		t.Fatalf("Search() returned %d results, want 3", len(results))
	}

	if results[0].Text != "exact" || results[0].Score != 1.0 {
		t.Errorf("results[0] = {%q, %v}, want exact match with score 1.0",
			results[0].Text, results[0].Score)
	}
	if results[1].Score != 0.5 {
		t.Errorf("results[1].Score = %v, want 0.5 for distance 1", results[1].Score)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score >= results[i-1].Score {
			t.Errorf("scores not strictly descending at %d: %v then %v",
				i, results[i-1].Score, results[i].Score)
		}
	}
	for _, res := range results {
		if res.Score <= 0 || res.Score > 1 {
			t.Errorf("score %v out of (0, 1]", res.Score)
		}
	}
}

func TestSearch_EmbedFailureDegradesToEmpty(t *testing.T) {
	embedder := &mockEmbedder{failOn: map[string]bool{"query": true}}
	svc, store := newTestService(t, embedder, &mockClient{}, &mockCatalog{})
	mustAdd(t, store, []float32{1, 0, 0}, "entry", nil)

	results := svc.Search(context.Background(), "query", 5)
	if len(results) != 0 {
		t.Errorf("Search() with failed query embedding = %v, want empty", results)
	}
}

func TestAnswer_EmptyStoreIsWellFormed(t *testing.T) {
	client := &mockClient{completion: &engine.Completion{Text: "Insufficient context.", TotalTokens: 42}}
	svc, _ := newTestService(t, &mockEmbedder{}, client, &mockCatalog{})

	answer, err := svc.Answer(context.Background(), "what is the dose?", nil, 0.1)
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}

	if answer.Text != "Insufficient context." {
		t.Errorf("answer text = %q", answer.Text)
	}
	if answer.Sources == nil || len(answer.Sources) != 0 {
		t.Errorf("answer.Sources = %v, want empty non-nil slice", answer.Sources)
	}
	if answer.TokensUsed != 42 {
		t.Errorf("answer.TokensUsed = %d, want 42", answer.TokensUsed)
	}
}

func TestAnswer_GroundsPromptInRetrievedPassages(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"pneumonia therapy": {0, 0, 0},
	}}
	client := &mockClient{completion: &engine.Completion{Text: "Amoxicillin.", TotalTokens: 10}}
	svc, store := newTestService(t, embedder, client, &mockCatalog{})

	mustAdd(t, store, []float32{0, 0, 0}, "Amoxicillin is first-line.", map[string]string{
		"source_title": "CAP Guideline",
		"source_type":  source.TypeGuideline,
	})

	answer, err := svc.Answer(context.Background(), "pneumonia therapy", nil, 0.1)
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}

	if client.last == nil {
		t.Fatal("generation client was not called")
	}
	if !strings.Contains(client.last.Prompt, "Information: Amoxicillin is first-line.") {
		t.Errorf("prompt missing labeled passage:\n%s", client.last.Prompt)
	}
	if client.last.MaxTokens != answerMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", client.last.MaxTokens, answerMaxTokens)
	}

	if len(answer.Sources) != 1 {
		t.Fatalf("answer.Sources = %v, want one entry", answer.Sources)
	}
	ref := answer.Sources[0]
	if ref.Title != "CAP Guideline" || ref.Type != source.TypeGuideline || ref.Relevance != 1.0 {
		t.Errorf("source ref = %+v", ref)
	}
}

func TestAnswer_MissingSourceMetadataFallsBack(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float32{"q": {0, 0, 0}}}
	client := &mockClient{completion: &engine.Completion{Text: "ok"}}
	svc, store := newTestService(t, embedder, client, &mockCatalog{})
	mustAdd(t, store, []float32{0, 0, 0}, "orphaned text", nil)

	answer, err := svc.Answer(context.Background(), "q", nil, 0.1)
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}

	ref := answer.Sources[0]
	if ref.Title != "unknown source" || ref.Type != "unknown" {
		t.Errorf("source ref = %+v, want fallback title and type", ref)
	}
}

func TestAnswer_GenerationErrorSurfaces(t *testing.T) {
	client := &mockClient{err: errors.New("model unavailable")}
	svc, _ := newTestService(t, &mockEmbedder{}, client, &mockCatalog{})

	if _, err := svc.Answer(context.Background(), "q", nil, 0.1); err == nil {
		t.Fatal("Answer() with failing generation returned nil error")
	}
}

func TestReason_StopSequenceAndConfidence(t *testing.T) {
	assessment := strings.Repeat("Likely acute coronary syndrome, possibly unstable angina. ", 10)
	client := &mockClient{completion: &engine.Completion{Text: assessment, TotalTokens: 500}}
	svc, _ := newTestService(t, &mockEmbedder{}, client, &mockCatalog{})

	result, err := svc.Reason(context.Background(), samplePatient(), "troponin pending", 0.1)
	if err != nil {
		t.Fatalf("Reason() error: %v", err)
	}

	if client.last.MaxTokens != reasonMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", client.last.MaxTokens, reasonMaxTokens)
	}
	if len(client.last.StopSequences) != 1 || client.last.StopSequences[0] != assessmentStop {
		t.Errorf("StopSequences = %v, want [%q]", client.last.StopSequences, assessmentStop)
	}
	if !strings.Contains(client.last.Prompt, "<PATIENT_INFORMATION>") {
		t.Error("prompt missing patient section")
	}

	if result.Text != assessment {
		t.Errorf("assessment text = %q", result.Text)
	}
	if result.Confidence != Confidence(assessment) {
		t.Errorf("Confidence = %v, want %v", result.Confidence, Confidence(assessment))
	}
	if result.TokensUsed != 500 {
		t.Errorf("TokensUsed = %d, want 500", result.TokensUsed)
	}
}

func mustAdd(t *testing.T, store *vector.Store, vec []float32, text string, metadata map[string]string) {
	t.Helper()
	if _, err := store.Add(vec, text, metadata); err != nil {
		t.Fatalf("store.Add(%q): %v", text, err)
	}
}
