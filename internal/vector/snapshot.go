package vector

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

// Snapshot artifact names under the store directory. Both must exist and be
// mutually consistent to resume from disk.
const (
	indexFile  = "index.gob"
	lookupFile = "lookup.json"
	lockFile   = ".snapshot.lock"
)

// indexSnapshot is the on-disk form of the similarity index.
type indexSnapshot struct {
	Dimension int
	Vectors   [][]float32
}

// Open restores a store from the snapshots in dir, creating the directory if
// needed. Any load failure (missing artifact, corrupt data, dimension
// mismatch, index/lookup divergence) falls back to a fresh empty store at
// the configured dimension, which is persisted immediately so both artifacts
// exist from the first start.
func Open(dir string, dim int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating vector directory: %w", err)
	}

	s, err := load(dir, logger)
	if err != nil {
		logger.Warn("loading vector snapshots failed, starting with empty store",
			"dir", dir, "dimension", dim, "error", err)

		s = New(dim, logger)
		s.dir = dir
		if perr := s.Persist(); perr != nil {
			return nil, fmt.Errorf("persisting fresh store: %w", perr)
		}
		return s, nil
	}

	if s.dim != dim {
		logger.Warn("snapshot dimension differs from configuration, starting with empty store",
			"snapshot_dim", s.dim, "configured_dim", dim)

		s = New(dim, logger)
		s.dir = dir
		if perr := s.Persist(); perr != nil {
			return nil, fmt.Errorf("persisting fresh store: %w", perr)
		}
		return s, nil
	}

	logger.Info("vector store loaded", "dir", dir, "count", len(s.vectors), "dimension", s.dim)
	return s, nil
}

// load reads both snapshot artifacts and verifies they agree.
func load(dir string, logger *slog.Logger) (*Store, error) {
	f, err := os.Open(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, fmt.Errorf("opening index snapshot: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var snap indexSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding index snapshot: %w", err)
	}
	if snap.Dimension <= 0 {
		return nil, fmt.Errorf("index snapshot has invalid dimension %d", snap.Dimension)
	}
	for i, v := range snap.Vectors {
		if len(v) != snap.Dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, snapshot dimension is %d", i, len(v), snap.Dimension)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, lookupFile))
	if err != nil {
		return nil, fmt.Errorf("reading lookup snapshot: %w", err)
	}

	lookup := make(map[string]Entry)
	if err := json.Unmarshal(data, &lookup); err != nil {
		return nil, fmt.Errorf("decoding lookup snapshot: %w", err)
	}

	// The lookup key set must be exactly {0, ..., count-1}; anything else
	// means the snapshots diverged and retrieval cannot be trusted.
	if len(lookup) != len(snap.Vectors) {
		return nil, fmt.Errorf("lookup has %d entries, index has %d vectors", len(lookup), len(snap.Vectors))
	}
	for id := range len(snap.Vectors) {
		if _, ok := lookup[strconv.Itoa(id)]; !ok {
			return nil, fmt.Errorf("lookup is missing entry for vector id %d", id)
		}
	}

	return &Store{
		dim:     snap.Dimension,
		vectors: snap.Vectors,
		lookup:  lookup,
		dir:     dir,
		logger:  logger,
	}, nil
}

// Persist atomically writes both snapshot artifacts. Concurrent writers
// (separate processes sharing the directory) are serialized with a file
// lock; within the process the store lock already serializes writers.
// Persist on a store created with New and no directory is a no-op.
func (s *Store) Persist() error {
	if s.dir == "" {
		return nil
	}

	s.mu.RLock()
	snap := indexSnapshot{Dimension: s.dim, Vectors: s.vectors}
	indexData, err := encodeIndex(snap)
	if err != nil {
		s.mu.RUnlock()
		return fmt.Errorf("encoding index snapshot: %w", err)
	}
	lookupData, err := json.Marshal(s.lookup)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding lookup snapshot: %w", err)
	}

	lock := flock.New(filepath.Join(s.dir, lockFile))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking snapshot directory: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if err := writeFileAtomic(filepath.Join(s.dir, indexFile), indexData); err != nil {
		return fmt.Errorf("writing index snapshot: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, lookupFile), lookupData); err != nil {
		return fmt.Errorf("writing lookup snapshot: %w", err)
	}

	s.logger.Debug("vector snapshots written", "dir", s.dir, "count", len(snap.Vectors))
	return nil
}

func encodeIndex(snap indexSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over the destination, so readers never observe a torn snapshot.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
