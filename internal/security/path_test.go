package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPathGuard_RequiresRoot(t *testing.T) {
	if _, err := NewPathGuard(nil); err == nil {
		t.Fatal("NewPathGuard(nil) returned nil error")
	}
}

func TestValidate_AllowsPathsUnderRoot(t *testing.T) {
	root := t.TempDir()
	guard, err := NewPathGuard([]string{root})
	if err != nil {
		t.Fatalf("NewPathGuard() error: %v", err)
	}

	path := filepath.Join(root, "guideline.pdf")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	got, err := guard.Validate(path)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got == "" {
		t.Error("Validate() returned empty path")
	}
}

func TestValidate_AllowsMissingFileUnderRoot(t *testing.T) {
	root := t.TempDir()
	guard, err := NewPathGuard([]string{root})
	if err != nil {
		t.Fatalf("NewPathGuard() error: %v", err)
	}

	if _, err := guard.Validate(filepath.Join(root, "not-yet-written.pdf")); err != nil {
		t.Errorf("Validate() on missing file under root error: %v", err)
	}
}

func TestValidate_RejectsOutsideRoot(t *testing.T) {
	guard, err := NewPathGuard([]string{t.TempDir()})
	if err != nil {
		t.Fatalf("NewPathGuard() error: %v", err)
	}

	for _, path := range []string{"/etc/passwd", filepath.Join(t.TempDir(), "other.pdf")} {
		if _, err := guard.Validate(path); err == nil {
			t.Errorf("Validate(%q) returned nil error", path)
		}
	}
}

func TestValidate_RejectsTraversal(t *testing.T) {
	root := t.TempDir()
	guard, err := NewPathGuard([]string{root})
	if err != nil {
		t.Fatalf("NewPathGuard() error: %v", err)
	}

	if _, err := guard.Validate(filepath.Join(root, "..", "escape.pdf")); err == nil {
		t.Error("Validate() allowed upward traversal")
	}
}

func TestValidate_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(outside, []byte("x"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	link := filepath.Join(root, "innocent.pdf")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	guard, err := NewPathGuard([]string{root})
	if err != nil {
		t.Fatalf("NewPathGuard() error: %v", err)
	}
	if _, err := guard.Validate(link); err == nil {
		t.Error("Validate() allowed symlink escaping the root")
	}
}
