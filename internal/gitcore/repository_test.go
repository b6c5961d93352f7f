package gitcore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBranchesReturnsCopy(t *testing.T) {
	repo := &Repository{
		refs: map[string]Hash{
			"refs/heads/main":          "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			"refs/tags/v1.0":  "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		},
	}

	branches := repo.Branches()
	if len(branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(branches))
	}
	if _, ok := branches["refs/heads/main"]; !ok {
		t.Fatalf("expected main branch in result")
	}

	branches["refs/heads/feature"] = "cccccccccccccccccccccccccccccccccccccccc"
	if _, exists := repo.refs["refs/heads/feature"]; exists {
		t.Fatalf("repository refs should not be affected by branches map mutations")
	}
}

func TestResolveRefDirectHash(t *testing.T) {
	tempDir := t.TempDir()
	repo := &Repository{gitDir: tempDir, commonDir: tempDir}

	hash := "0123456789abcdef0123456789abcdef01234567"
	refPath := filepath.Join(tempDir, "refs", "heads", "main")
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		t.Fatalf("failed to create refs directory: %v", err)
	}
	if err := os.WriteFile(refPath, []byte(hash+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write ref file: %v", err)
	}

	resolved, err := repo.resolveRef(refPath, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resolved != Hash(hash) {
		t.Fatalf("unexpected resolved hash: %s", resolved)
	}
}

func TestResolveRefSymbolic(t *testing.T) {
	tempDir := t.TempDir()
	repo := &Repository{gitDir: tempDir, commonDir: tempDir}

	headHash := "89abcdef0123456789abcdef0123456789abcdef"
	targetRef := filepath.Join(tempDir, "refs", "heads", "main")
	if err := os.MkdirAll(filepath.Dir(targetRef), 0o755); err != nil {
		t.Fatalf("failed to create refs directory: %v", err)
	}
	if err := os.WriteFile(targetRef, []byte(headHash+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write target ref: %v", err)
	}

	symbolicPath := filepath.Join(tempDir, "HEAD")
	if err := os.WriteFile(symbolicPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		t.Fatalf("failed to write symbolic ref: %v", err)
	}

	resolved, err := repo.resolveRef(symbolicPath, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resolved != Hash(headHash) {
		t.Fatalf("unexpected resolved hash: %s", resolved)
	}
}

func TestResolveRefCycle(t *testing.T) {
	tempDir := t.TempDir()
	repo := &Repository{gitDir: tempDir, commonDir: tempDir}

	loop := filepath.Join(tempDir, "refs", "heads", "loop")
	if err := os.MkdirAll(filepath.Dir(loop), 0o755); err != nil {
		t.Fatalf("failed to create refs directory: %v", err)
	}
	if err := os.WriteFile(loop, []byte("ref: refs/heads/loop\n"), 0o644); err != nil {
		t.Fatalf("failed to write ref file: %v", err)
	}

	if _, err := repo.resolveRef(loop, 0); err == nil {
		t.Fatalf("expected error for self-referencing symbolic ref")
	}
}

func TestLookupRefPrecedence(t *testing.T) {
	repo := &Repository{
		head: "1111111111111111111111111111111111111111",
		refs: map[string]Hash{
			"refs/tags/v1":             "2222222222222222222222222222222222222222",
			"refs/heads/v1":            "3333333333333333333333333333333333333333",
			"refs/heads/main":          "4444444444444444444444444444444444444444",
			"refs/remotes/origin/HEAD": "5555555555555555555555555555555555555555",
		},
	}

	tests := []struct {
		name string
		want Hash
	}{
		{"HEAD", "1111111111111111111111111111111111111111"},
		{"v1", "2222222222222222222222222222222222222222"},
		{"main", "4444444444444444444444444444444444444444"},
		{"heads/main", "4444444444444444444444444444444444444444"},
		{"origin", "5555555555555555555555555555555555555555"},
	}
	for _, tt := range tests {
		got, ok := repo.lookupRef(tt.name)
		if !ok || got != tt.want {
			t.Errorf("lookupRef(%q) = %s, %v; want %s", tt.name, got, ok, tt.want)
		}
	}
	if _, ok := repo.lookupRef("missing"); ok {
		t.Errorf("expected missing ref to fail lookup")
	}
}
