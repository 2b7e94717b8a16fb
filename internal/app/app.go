// Package app assembles the application: configuration, the Genkit
// runtime, the embedder, the vector store, SQLite persistence, and the
// retrieval pipeline. One App is constructed at startup and shared by all
// commands; Close releases everything in reverse order.
package app

import (
	"database/sql"
	"errors"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/caduceus-ai/caduceus/internal/chat"
	"github.com/caduceus-ai/caduceus/internal/config"
	"github.com/caduceus-ai/caduceus/internal/engine"
	"github.com/caduceus-ai/caduceus/internal/log"
	"github.com/caduceus-ai/caduceus/internal/rag"
	"github.com/caduceus-ai/caduceus/internal/source"
	"github.com/caduceus-ai/caduceus/internal/vector"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Engine   engine.Client

	DB      *sql.DB
	Vectors *vector.Store
	Catalog *source.Catalog
	RAG     *rag.Service

	Chats     *chat.Store
	Responder *chat.Responder
}

// Close shuts the application down: it waits for in-flight background
// answers, flushes a final vector snapshot, and closes the database.
func (a *App) Close() error {
	a.Logger.Info("shutting down")

	if a.Responder != nil {
		a.Responder.Close()
	}

	var errs []error
	if a.RAG != nil {
		if err := a.RAG.Persist(); err != nil {
			a.Logger.Error("final snapshot persist failed", "error", err)
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
