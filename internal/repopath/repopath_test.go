package repopath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rybkr/gitpast/internal/gittest"
	"github.com/rybkr/gitpast/internal/vcserr"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		tail string
		want string
	}{
		{"a/../b", "b"},
		{"a/b/c", "a/b/c"},
		{"./a/./b", "a/b"},
		{"a/b/../../c", "c"},
		{"a/..", ""},
		{".", ""},
		{"", ""},
		{"a//b/", "a/b"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.tail)
		if err != nil {
			t.Errorf("Normalize(%q) failed: %v", tt.tail, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.tail, got, tt.want)
		}
		if strings.Contains("/"+got+"/", "/./") || strings.Contains("/"+got+"/", "/../") {
			t.Errorf("Normalize(%q) = %q still has dot segments", tt.tail, got)
		}
	}
}

func TestNormalizeCannotClimb(t *testing.T) {
	for _, tail := range []string{"..", "../a", "a/../..", "./.."} {
		_, err := Normalize(tail)
		if !errors.Is(err, vcserr.ErrCannotClimb) {
			t.Errorf("Normalize(%q): expected CannotClimb, got %v", tail, err)
		}
		if !vcserr.IsFatal(err) {
			t.Errorf("Normalize(%q): CannotClimb should be fatal", tail)
		}
	}
}

// repoDir creates an empty repository and returns its root with symlinks
// resolved, so expectations do not depend on how the temp dir is reached.
func repoDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	gittest.Init(t, dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSplit(t *testing.T) {
	dir := repoDir(t)
	if err := os.MkdirAll(filepath.Join(dir, "live"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path     string
		wantLive string
		wantTail string
	}{
		{dir + "/live", dir + "/live", ""},
		{dir + "/live/", dir + "/live", ""},
		{dir + "/live/gone/file.txt", dir + "/live", "gone/file.txt"},
		{dir + "/gone/../x", dir, "gone/../x"},
	}
	for _, tt := range tests {
		live, tail, err := Split(tt.path)
		if err != nil {
			t.Errorf("Split(%q) failed: %v", tt.path, err)
			continue
		}
		if live != tt.wantLive || tail != tt.wantTail {
			t.Errorf("Split(%q) = %q, %q; want %q, %q", tt.path, live, tail, tt.wantLive, tt.wantTail)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	dir := repoDir(t)
	writeFile(t, filepath.Join(dir, "hw", "top.sch"), "")
	if err := os.Symlink("hw", filepath.Join(dir, "link")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"existing file", dir + "/hw/top.sch", "hw/top.sch"},
		{"existing dir with slash", dir + "/hw/", "hw"},
		{"dead tail", dir + "/old/parts/lib.sch", "old/parts/lib.sch"},
		{"dead tail with dots", dir + "/old/./parts/../lib.sch", "old/lib.sch"},
		{"symlink in live part", dir + "/link/top.sch", "hw/top.sch"},
		{"symlink before dead tail", dir + "/link/gone.sch", "hw/gone.sch"},
		{"live dot dot", dir + "/hw/../hw/top.sch", "hw/top.sch"},
		{"repository root", dir, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(dir, tt.path)
			if err != nil {
				t.Fatalf("Canonicalize(%q) failed: %v", tt.path, err)
			}
			if got != tt.want {
				t.Fatalf("Canonicalize(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeRelativePath(t *testing.T) {
	dir := repoDir(t)
	writeFile(t, filepath.Join(dir, "hw", "top.sch"), "")
	t.Chdir(filepath.Join(dir, "hw"))

	got, err := Canonicalize(dir, "top.sch")
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if got != "hw/top.sch" {
		t.Fatalf("got %q, want hw/top.sch", got)
	}

	got, err = Canonicalize(dir, "../removed/a.sch")
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if got != "removed/a.sch" {
		t.Fatalf("got %q, want removed/a.sch", got)
	}
}

func TestCanonicalizeCannotClimb(t *testing.T) {
	dir := repoDir(t)

	_, err := Canonicalize(dir, dir+"/gone/../../x")
	if !errors.Is(err, vcserr.ErrCannotClimb) {
		t.Fatalf("expected CannotClimb, got %v", err)
	}
}

func TestCanonicalizeNotADirectory(t *testing.T) {
	dir := repoDir(t)
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")

	if _, err := Canonicalize(file, file); !errors.Is(err, vcserr.ErrNotADirectory) {
		t.Fatalf("expected NotADirectory for a file root, got %v", err)
	}
	if _, err := Canonicalize(filepath.Join(dir, "missing"), file); !errors.Is(err, vcserr.ErrNotADirectory) {
		t.Fatalf("expected NotADirectory for a missing root, got %v", err)
	}
}

func TestCanonicalizeOutsideRepository(t *testing.T) {
	dir := repoDir(t)
	outside, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(outside, "plain.sch"), "")
	if err := os.Symlink(outside, filepath.Join(dir, "escape")); err != nil {
		t.Fatal(err)
	}

	_, err = Canonicalize(dir, dir+"/escape/plain.sch")
	if !errors.Is(err, vcserr.ErrOutsideRepository) {
		t.Fatalf("expected OutsideRepository, got %v", err)
	}
	if vcserr.IsFatal(err) {
		t.Fatalf("OutsideRepository should be recoverable")
	}
}

func TestCanonicalizeIntoOtherRepository(t *testing.T) {
	dir := repoDir(t)
	other := repoDir(t)
	writeFile(t, filepath.Join(other, "lib.sch"), "")
	if err := os.Symlink(other, filepath.Join(dir, "vendor")); err != nil {
		t.Fatal(err)
	}

	_, err := Canonicalize(dir, dir+"/vendor/lib.sch")
	if !errors.Is(err, vcserr.ErrDivergentPaths) {
		t.Fatalf("expected DivergentPaths, got %v", err)
	}
	if !vcserr.IsFatal(err) {
		t.Fatalf("DivergentPaths should be fatal")
	}

	// The other repository's own root still works.
	got, err := Canonicalize(other, dir+"/vendor/lib.sch")
	if err != nil {
		t.Fatalf("Canonicalize against the other root failed: %v", err)
	}
	if got != "lib.sch" {
		t.Fatalf("got %q, want lib.sch", got)
	}
}
