package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caduceus-ai/caduceus/internal/security"
)

// Catalog provides access to the sources table. The *sql.DB is owned by the
// caller; Catalog never closes it.
type Catalog struct {
	db     *sql.DB
	guard  *security.PathGuard
	logger *slog.Logger
}

// New creates a Catalog over an already-migrated database. The guard
// confines backing-file removal to the managed directories; nil disables
// file removal entirely.
func New(db *sql.DB, guard *security.PathGuard, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{db: db, guard: guard, logger: logger}
}

// Create registers a new source and fills in its ID and CreatedAt.
// New sources always start un-indexed.
func (c *Catalog) Create(ctx context.Context, s *Source) error {
	now := time.Now().UTC()

	var pubDate any
	if !s.PublicationDate.IsZero() {
		pubDate = s.PublicationDate.UTC()
	}

	result, err := c.db.ExecContext(ctx,
		`INSERT INTO sources (title, source_type, publisher, publication_date, url, local_path, indexed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		s.Title, s.Type, s.Publisher, pubDate, s.URL, s.LocalPath, now,
	)
	if err != nil {
		return fmt.Errorf("creating source: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting source id: %w", err)
	}

	s.ID = id
	s.Indexed = false
	s.IndexDate = nil
	s.CreatedAt = now
	return nil
}

// Get returns the source with the given id, or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id int64) (*Source, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, title, source_type, publisher, publication_date, url, local_path, indexed, index_date, created_at
		 FROM sources WHERE id = ?`, id)

	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting source %d: %w", id, err)
	}
	return s, nil
}

// List returns all sources, newest first.
func (c *Catalog) List(ctx context.Context) ([]*Source, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, title, source_type, publisher, publication_date, url, local_path, indexed, index_date, created_at
		 FROM sources ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sources []*Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	return sources, nil
}

// MarkIndexed records that the source has been indexed at the given time.
func (c *Catalog) MarkIndexed(ctx context.Context, id int64, when time.Time) error {
	result, err := c.db.ExecContext(ctx,
		"UPDATE sources SET indexed = 1, index_date = ? WHERE id = ?",
		when.UTC(), id)
	if err != nil {
		return fmt.Errorf("marking source %d indexed: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking source %d indexed: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// Delete removes the source's backing file and its catalog row. A file that
// cannot be removed is logged, not fatal; the row is removed regardless.
// Vectors already indexed from this source are left untouched.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	s, err := c.Get(ctx, id)
	if err != nil {
		return err
	}

	if s.LocalPath != "" && c.guard != nil {
		path, err := c.guard.Validate(s.LocalPath)
		if err != nil {
			c.logger.Error("refusing to remove source file", "path", s.LocalPath, "error", err)
		} else if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.Error("removing source file", "path", path, "error", err)
		}
	}

	if _, err := c.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting source %d: %w", id, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanSource.
type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*Source, error) {
	var (
		s         Source
		pubDate   sql.NullTime
		indexDate sql.NullTime
		indexed   int
	)
	err := row.Scan(&s.ID, &s.Title, &s.Type, &s.Publisher, &pubDate,
		&s.URL, &s.LocalPath, &indexed, &indexDate, &s.CreatedAt)
	if err != nil {
		return nil, err
	}

	s.Indexed = indexed != 0
	if pubDate.Valid {
		s.PublicationDate = pubDate.Time
	}
	if indexDate.Valid {
		t := indexDate.Time
		s.IndexDate = &t
	}
	return &s, nil
}
