// Package cmd implements the caduceus command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caduceus-ai/caduceus/internal/app"
	"github.com/caduceus-ai/caduceus/internal/config"
	"github.com/caduceus-ai/caduceus/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "caduceus",
	Short: "Caduceus - a retrieval-grounded medical assistant for physicians",
	Long: `Caduceus answers medical questions grounded in an indexed corpus of
guidelines, textbooks, and articles. Add source documents, index them into
the vector store, then search, ask, or start a chat.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// withApp loads configuration, assembles the application, runs fn, and
// shuts everything down afterwards.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}()

	return fn(ctx, a)
}
