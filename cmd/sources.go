package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/caduceus-ai/caduceus/internal/app"
	"github.com/caduceus-ai/caduceus/internal/source"
)

var (
	sourceTitle     string
	sourceType      string
	sourcePublisher string
	sourceDate      string
	sourceURL       string
	indexAfterAdd   bool
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage the source document catalog",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List source documents, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runSourcesList)
	},
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add [file]",
	Short: "Add a document to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runSourcesAdd(ctx, a, args[0])
		})
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a document and its stored file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid source id %q", args[0])
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			return runSourcesRemove(ctx, a, id)
		})
	},
}

func init() {
	sourcesAddCmd.Flags().StringVar(&sourceTitle, "title", "", "document title (defaults to the file name)")
	sourcesAddCmd.Flags().StringVar(&sourceType, "type", source.TypeArticle, "document type: guideline, textbook, or article")
	sourcesAddCmd.Flags().StringVar(&sourcePublisher, "publisher", "", "publishing organization")
	sourcesAddCmd.Flags().StringVar(&sourceDate, "date", "", "publication date (YYYY-MM-DD)")
	sourcesAddCmd.Flags().StringVar(&sourceURL, "url", "", "canonical URL of the document")
	sourcesAddCmd.Flags().BoolVar(&indexAfterAdd, "index", false, "index the document immediately after adding")

	sourcesCmd.AddCommand(sourcesListCmd, sourcesAddCmd, sourcesRemoveCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesList(ctx context.Context, a *app.App) error {
	sources, err := a.Catalog.List(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("No source documents. Add one with: caduceus sources add <file>")
		return nil
	}

	for _, src := range sources {
		status := "not indexed"
		if src.Indexed {
			status = "indexed"
			if src.IndexDate != nil {
				status = "indexed " + src.IndexDate.Format("2006-01-02")
			}
		}
		fmt.Printf("%4d  %-40s  %-10s  %s\n", src.ID, src.Title, src.Type, status)
	}
	return nil
}

func runSourcesAdd(ctx context.Context, a *app.App, path string) error {
	if !a.RAG.Supported(filepath.Ext(path)) {
		return fmt.Errorf("unsupported document format %q", filepath.Ext(path))
	}

	var publicationDate time.Time
	if sourceDate != "" {
		parsed, err := time.Parse("2006-01-02", sourceDate)
		if err != nil {
			return fmt.Errorf("invalid publication date %q, want YYYY-MM-DD", sourceDate)
		}
		publicationDate = parsed
	}

	title := sourceTitle
	if title == "" {
		title = filepath.Base(path)
	}

	localPath, err := copyIntoSourceDir(path, a.Config.SourceDir)
	if err != nil {
		return err
	}

	src := &source.Source{
		Title:           title,
		Type:            sourceType,
		Publisher:       sourcePublisher,
		PublicationDate: publicationDate,
		URL:             sourceURL,
		LocalPath:       localPath,
	}
	if err := a.Catalog.Create(ctx, src); err != nil {
		return err
	}
	fmt.Printf("Added source %d: %s\n", src.ID, src.Title)

	if indexAfterAdd {
		if err := a.RAG.IndexSource(ctx, src.ID); err != nil {
			return err
		}
		fmt.Printf("Indexed source %d\n", src.ID)
	}
	return nil
}

func runSourcesRemove(ctx context.Context, a *app.App, id int64) error {
	if err := a.Catalog.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Removed source %d\n", id)
	return nil
}

// copyIntoSourceDir stores an administrator-supplied file under the
// managed source directory with a collision-free name.
func copyIntoSourceDir(path, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating source directory: %w", err)
	}

	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening document: %w", err)
	}
	defer in.Close()

	dest := filepath.Join(dir, uuid.NewString()+filepath.Ext(path))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("storing document: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("storing document: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("storing document: %w", err)
	}
	return dest, nil
}
