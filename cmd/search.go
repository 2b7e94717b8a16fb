package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caduceus-ai/caduceus/internal/app"
	"github.com/caduceus-ai/caduceus/internal/config"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find the most relevant indexed passages for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runSearch(ctx, a, joinArgs(args))
		})
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", config.DefaultTopK, "number of passages to return")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(ctx context.Context, a *app.App, query string) error {
	results := a.RAG.Search(ctx, query, searchTopK)
	if len(results) == 0 {
		fmt.Println("No matching passages. Index documents first with: caduceus index <source-id>")
		return nil
	}

	for i, res := range results {
		title := res.Metadata["source_title"]
		if title == "" {
			title = "unknown source"
		}
		fmt.Printf("%d. [%.3f] %s\n", i+1, res.Score, title)
		fmt.Printf("   %s\n", res.Text)
	}
	return nil
}
