package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/caduceus-ai/caduceus/internal/app"
)

var indexCmd = &cobra.Command{
	Use:   "index [source-id]",
	Short: "Index a source document into the vector store",
	Long: `Index extracts chunks from a source document, embeds them, and adds
them to the vector store. Indexing an already indexed source is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid source id %q", args[0])
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.RAG.IndexSource(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Indexed source %d (%d vectors total)\n", id, a.Vectors.Count())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
