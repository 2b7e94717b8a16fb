package app

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/caduceus-ai/caduceus/internal/chat"
	"github.com/caduceus-ai/caduceus/internal/config"
	"github.com/caduceus-ai/caduceus/internal/database"
	"github.com/caduceus-ai/caduceus/internal/engine"
	"github.com/caduceus-ai/caduceus/internal/ingest"
	"github.com/caduceus-ai/caduceus/internal/log"
	"github.com/caduceus-ai/caduceus/internal/rag"
	"github.com/caduceus-ai/caduceus/internal/security"
	"github.com/caduceus-ai/caduceus/internal/source"
	"github.com/caduceus-ai/caduceus/internal/vector"
)

// Setup creates and initializes the application. On error, everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	client, err := engine.NewGenkitClient(g, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Engine = client

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	vectors, err := vector.Open(cfg.VectorDir, cfg.Dimension, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	a.Vectors = vectors

	guard, err := security.NewPathGuard([]string{cfg.SourceDir})
	if err != nil {
		return nil, fmt.Errorf("building path guard: %w", err)
	}
	a.Catalog = source.New(db, guard, logger)
	a.RAG = rag.New(embedder, client, vectors, a.Catalog, ingest.New(logger), cfg, logger)

	a.Chats = chat.NewStore(db, logger)
	a.Responder = chat.NewResponder(a.Chats, a.RAG, logger)

	logger.Info("application initialized",
		"provider", cfg.Provider,
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel,
		"vectors", vectors.Count())

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, fmt.Errorf("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	default: // gemini
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, fmt.Errorf("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
// The ollama embedder is keyed by server address; gemini by model name.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
