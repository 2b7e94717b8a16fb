package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caduceus-ai/caduceus/internal/database"
	"github.com/caduceus-ai/caduceus/internal/log"
	"github.com/caduceus-ai/caduceus/internal/security"
)

func testCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating database: %v", err)
	}

	sourceDir := t.TempDir()
	guard, err := security.NewPathGuard([]string{sourceDir})
	if err != nil {
		t.Fatalf("building path guard: %v", err)
	}

	return New(db, guard, log.NewNop()), sourceDir
}

func TestCatalog_CreateAndGet(t *testing.T) {
	cat, _ := testCatalog(t)
	ctx := context.Background()

	s := &Source{
		Title:     "Sepsis management guideline",
		Type:      TypeGuideline,
		Publisher: "ESCMID",
		LocalPath: "/data/sources/sepsis.pdf",
	}
	if err := cat.Create(ctx, s); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if s.ID == 0 {
		t.Fatal("Create() did not assign an id")
	}
	if s.Indexed {
		t.Error("new source is marked indexed")
	}

	got, err := cat.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if got.Title != s.Title || got.Type != TypeGuideline || got.Publisher != "ESCMID" {
		t.Errorf("Get() = %+v, want created source", got)
	}
	if got.Indexed || got.IndexDate != nil {
		t.Errorf("Get() indexed state = (%v, %v), want (false, nil)", got.Indexed, got.IndexDate)
	}
}

func TestCatalog_Get_NotFound(t *testing.T) {
	cat, _ := testCatalog(t)

	if _, err := cat.Get(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(42) = %v, want ErrNotFound", err)
	}
}

func TestCatalog_List_NewestFirst(t *testing.T) {
	cat, _ := testCatalog(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		if err := cat.Create(ctx, &Source{Title: title, Type: TypeArticle, LocalPath: "/tmp/" + title}); err != nil {
			t.Fatal(err)
		}
	}

	sources, err := cat.List(ctx)
	if err != nil {
		t.Fatalf("List(): %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("List() returned %d sources, want 3", len(sources))
	}
	if sources[0].Title != "third" || sources[2].Title != "first" {
		t.Errorf("List() order = [%s, %s, %s], want newest first",
			sources[0].Title, sources[1].Title, sources[2].Title)
	}
}

func TestCatalog_MarkIndexed(t *testing.T) {
	cat, _ := testCatalog(t)
	ctx := context.Background()

	s := &Source{Title: "doc", Type: TypeTextbook, LocalPath: "/tmp/doc.md"}
	if err := cat.Create(ctx, s); err != nil {
		t.Fatal(err)
	}

	when := time.Now()
	if err := cat.MarkIndexed(ctx, s.ID, when); err != nil {
		t.Fatalf("MarkIndexed(): %v", err)
	}

	got, err := cat.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Indexed {
		t.Error("source not marked indexed")
	}
	if got.IndexDate == nil {
		t.Fatal("index date not set")
	}

	if err := cat.MarkIndexed(ctx, 999, when); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkIndexed(999) = %v, want ErrNotFound", err)
	}
}

func TestCatalog_Delete_RemovesFileAndRow(t *testing.T) {
	cat, sourceDir := testCatalog(t)
	ctx := context.Background()

	path := filepath.Join(sourceDir, "doc.md")
	if err := os.WriteFile(path, []byte("content"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := &Source{Title: "doc", Type: TypeArticle, LocalPath: path}
	if err := cat.Create(ctx, s); err != nil {
		t.Fatal(err)
	}

	if err := cat.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete(): %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("backing file still exists after Delete: %v", err)
	}
	if _, err := cat.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete = %v, want ErrNotFound", err)
	}
}

func TestCatalog_Delete_MissingFileIsNotFatal(t *testing.T) {
	cat, _ := testCatalog(t)
	ctx := context.Background()

	s := &Source{Title: "doc", Type: TypeArticle, LocalPath: "/nonexistent/doc.md"}
	if err := cat.Create(ctx, s); err != nil {
		t.Fatal(err)
	}

	if err := cat.Delete(ctx, s.ID); err != nil {
		t.Errorf("Delete() with missing file = %v, want nil", err)
	}
}

func TestCatalog_Delete_LeavesFilesOutsideSourceDir(t *testing.T) {
	cat, _ := testCatalog(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "outside.md")
	if err := os.WriteFile(path, []byte("content"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := &Source{Title: "doc", Type: TypeArticle, LocalPath: path}
	if err := cat.Create(ctx, s); err != nil {
		t.Fatal(err)
	}

	if err := cat.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete(): %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("file outside the source directory was removed: %v", err)
	}
	if _, err := cat.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete = %v, want ErrNotFound", err)
	}
}
