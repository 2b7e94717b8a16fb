// Package security guards filesystem paths handled on behalf of source
// documents. Catalog rows carry file locators; a tampered or stale row
// must never cause a read or delete outside the managed directories.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathGuard confines file operations to a set of allowed root
// directories, resolving symlinks so a link inside an allowed root cannot
// point elsewhere.
type PathGuard struct {
	roots []string
}

// NewPathGuard builds a guard over the given root directories. At least
// one root is required.
func NewPathGuard(roots []string) (*PathGuard, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("path guard needs at least one root directory")
	}

	abs := make([]string, 0, len(roots))
	for _, root := range roots {
		resolved, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", root, err)
		}
		abs = append(abs, filepath.Clean(resolved))
	}
	return &PathGuard{roots: abs}, nil
}

// Validate returns the absolute path when it lies under one of the
// allowed roots, following symlinks. Paths outside every root are
// rejected.
func (g *PathGuard) Validate(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", path, err)
	}

	if !g.within(abs) {
		return "", fmt.Errorf("path %s is outside the managed directories", abs)
	}

	// A symlink under an allowed root must also resolve under one.
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("resolving %s: %w", abs, err)
	}
	if real != abs && !g.within(real) {
		return "", fmt.Errorf("path %s resolves outside the managed directories", abs)
	}
	return real, nil
}

func (g *PathGuard) within(abs string) bool {
	for _, root := range g.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
