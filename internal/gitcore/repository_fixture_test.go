package gitcore_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rybkr/gitpast/internal/gitcore"
	"github.com/rybkr/gitpast/internal/gittest"
	"github.com/rybkr/gitpast/internal/vcserr"
)

// threeCommits builds main = c1 <- c2 <- c3 where hello.txt changes in every
// commit and docs/guide.md appears in c2.
func threeCommits(t *testing.T) (*gittest.Repo, [3]gitcore.Hash) {
	t.Helper()

	fx := gittest.Init(t, t.TempDir())
	c1 := fx.CommitFiles("first", map[string]string{"hello.txt": "one\n"})
	c2 := fx.CommitFiles("second", map[string]string{
		"hello.txt":     "two\n",
		"docs/guide.md": "# Guide\n",
	}, c1)
	c3 := fx.CommitFiles("third\n\nwith a body", map[string]string{
		"hello.txt":     "three\n",
		"docs/guide.md": "# Guide\n",
	}, c2)
	fx.SetRef("refs/heads/main", c3)
	return fx, [3]gitcore.Hash{c1, c2, c3}
}

func openFixture(t *testing.T, fx *gittest.Repo) *gitcore.Repository {
	t.Helper()
	repo, err := gitcore.Open(fx.Dir)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", fx.Dir, err)
	}
	return repo
}

func TestOpenReadsHead(t *testing.T) {
	fx, commits := threeCommits(t)
	repo := openFixture(t, fx)

	if repo.Head() != commits[2] {
		t.Errorf("Head() = %s, want %s", repo.Head(), commits[2])
	}
	if repo.HeadRef() != "refs/heads/main" {
		t.Errorf("HeadRef() = %q, want refs/heads/main", repo.HeadRef())
	}
	if repo.HeadDetached() {
		t.Errorf("HEAD should not be detached")
	}
	if repo.GitDir() != fx.GitDir {
		t.Errorf("GitDir() = %s, want %s", repo.GitDir(), fx.GitDir)
	}
	if repo.WorkDir() != fx.Dir {
		t.Errorf("WorkDir() = %s, want %s", repo.WorkDir(), fx.Dir)
	}
}

func TestOpenFromSubdirectory(t *testing.T) {
	fx, _ := threeCommits(t)
	sub := fx.Path("a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	repo, err := gitcore.Open(sub)
	if err != nil {
		t.Fatalf("Open from subdirectory failed: %v", err)
	}
	if repo.WorkDir() != fx.Dir {
		t.Errorf("WorkDir() = %s, want %s", repo.WorkDir(), fx.Dir)
	}
}

func TestOpenMissingPath(t *testing.T) {
	_, err := gitcore.Open(filepath.Join(t.TempDir(), "does", "not", "exist"))
	if !errors.Is(err, vcserr.ErrRepositoryNotFound) {
		t.Fatalf("expected RepositoryNotFound, got %v", err)
	}
}

func TestOpenLinkedWorktree(t *testing.T) {
	fx, commits := threeCommits(t)

	// A linked worktree keeps HEAD in its own git dir and shares the rest.
	wtGitDir := filepath.Join(fx.GitDir, "worktrees", "wt")
	if err := os.MkdirAll(wtGitDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(wtGitDir, "commondir"), []byte("../..\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(wtGitDir, "HEAD"), []byte(string(commits[0])+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wt := filepath.Join(t.TempDir(), "wt")
	if err := os.MkdirAll(wt, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(wt, ".git"), []byte("gitdir: "+wtGitDir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo, err := gitcore.Open(wt)
	if err != nil {
		t.Fatalf("Open(worktree) failed: %v", err)
	}
	if !repo.HeadDetached() || repo.Head() != commits[0] {
		t.Errorf("expected detached HEAD at %s, got %s (detached=%v)", commits[0], repo.Head(), repo.HeadDetached())
	}
	if _, err := repo.Revision("main"); err != nil {
		t.Errorf("shared refs should resolve from a worktree: %v", err)
	}
}

func TestRevision(t *testing.T) {
	fx, commits := threeCommits(t)
	fx.SetRef("refs/tags/v1", fx.Tag("v1", commits[0], gitcore.CommitObject))
	repo := openFixture(t, fx)

	tests := []struct {
		rev  string
		want gitcore.Hash
	}{
		{"", commits[2]},
		{"HEAD", commits[2]},
		{"main", commits[2]},
		{"refs/heads/main", commits[2]},
		{"HEAD~1", commits[1]},
		{"HEAD^", commits[1]},
		{"HEAD~2", commits[0]},
		{"main^^", commits[0]},
		{"HEAD^0", commits[2]},
		{"v1", commits[0]},
		{string(commits[1]), commits[1]},
		{string(commits[1])[:8], commits[1]},
		{string(commits[2])[:4], commits[2]},
	}
	for _, tt := range tests {
		commit, err := repo.Revision(tt.rev)
		if err != nil {
			// Four-character prefixes may collide in the loose store.
			if len(tt.rev) == 4 {
				continue
			}
			t.Errorf("Revision(%q) failed: %v", tt.rev, err)
			continue
		}
		if commit.ID != tt.want {
			t.Errorf("Revision(%q) = %s, want %s", tt.rev, commit.ID.Short(), tt.want.Short())
		}
	}
}

func TestRevisionErrors(t *testing.T) {
	fx, commits := threeCommits(t)
	repo := openFixture(t, fx)

	for _, rev := range []string{"nope", "HEAD~3", "HEAD^2", "zzzz"} {
		if _, err := repo.Revision(rev); !errors.Is(err, vcserr.ErrNotFound) {
			t.Errorf("Revision(%q): expected NotFound, got %v", rev, err)
		}
	}

	commit, err := repo.ReadCommit(commits[0])
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Revision(string(commit.Tree)); !errors.Is(err, vcserr.ErrNotACommit) {
		t.Errorf("tree id as revision: expected NotACommit, got %v", err)
	}
}

func TestRevisionEmptyRepository(t *testing.T) {
	fx := gittest.Init(t, t.TempDir())
	repo := openFixture(t, fx)

	if repo.Head() != "" {
		t.Errorf("expected no HEAD commit, got %s", repo.Head())
	}
	if _, err := repo.Revision("HEAD"); !errors.Is(err, vcserr.ErrNotFound) {
		t.Errorf("expected NotFound for HEAD without commits, got %v", err)
	}
}

func TestFetchBlob(t *testing.T) {
	fx, _ := threeCommits(t)
	repo := openFixture(t, fx)

	tests := []struct {
		rev  string
		path string
		want string
	}{
		{"HEAD", "hello.txt", "three\n"},
		{"", "hello.txt", "three\n"},
		{"HEAD~1", "hello.txt", "two\n"},
		{"HEAD~2", "hello.txt", "one\n"},
		{"HEAD", "docs/guide.md", "# Guide\n"},
		{"HEAD", "/docs/guide.md", "# Guide\n"},
	}
	for _, tt := range tests {
		blob, err := repo.FetchBlob(tt.rev, tt.path)
		if err != nil {
			t.Errorf("FetchBlob(%q, %q) failed: %v", tt.rev, tt.path, err)
			continue
		}
		if string(blob.Data) != tt.want {
			t.Errorf("FetchBlob(%q, %q) = %q, want %q", tt.rev, tt.path, blob.Data, tt.want)
		}
		if blob.Size() != len(tt.want) {
			t.Errorf("Size() = %d, want %d", blob.Size(), len(tt.want))
		}
	}
}

func TestFetchBlobErrors(t *testing.T) {
	fx, _ := threeCommits(t)
	repo := openFixture(t, fx)

	if _, err := repo.FetchBlob("HEAD~2", "docs/guide.md"); !errors.Is(err, vcserr.ErrNotFound) {
		t.Errorf("file added later: expected NotFound, got %v", err)
	}
	if _, err := repo.FetchBlob("HEAD", "docs"); !errors.Is(err, vcserr.ErrNotABlob) {
		t.Errorf("directory: expected NotABlob, got %v", err)
	}
	if _, err := repo.FetchBlob("HEAD", "hello.txt/inner"); !errors.Is(err, vcserr.ErrNotFound) {
		t.Errorf("path below a file: expected NotFound, got %v", err)
	}
	if _, err := repo.FetchBlob("missing", "hello.txt"); !errors.Is(err, vcserr.ErrNotFound) {
		t.Errorf("unknown revision: expected NotFound, got %v", err)
	}
}

func TestTreeEntryByPath(t *testing.T) {
	fx, commits := threeCommits(t)
	repo := openFixture(t, fx)

	commit, err := repo.ReadCommit(commits[2])
	if err != nil {
		t.Fatal(err)
	}

	root, err := repo.TreeEntryByPath(commit.Tree, "")
	if err != nil || !root.IsTree() || root.ID != commit.Tree {
		t.Errorf("empty path should name the root tree, got %+v, %v", root, err)
	}

	docs, err := repo.TreeEntryByPath(commit.Tree, "docs")
	if err != nil || !docs.IsTree() {
		t.Fatalf("expected docs to be a tree, got %+v, %v", docs, err)
	}
	tree, err := repo.ReadTree(docs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Entries) != 1 || tree.Entries[0].Name != "guide.md" {
		t.Errorf("unexpected docs entries: %+v", tree.Entries)
	}
}

func TestLocateStripsMissingComponents(t *testing.T) {
	fx, _ := threeCommits(t)

	repo, ok := gitcore.Locate(fx.Path("gone", "deeper", "file.txt"))
	if !ok {
		t.Fatalf("expected repository to be located")
	}
	if repo.WorkDir() != fx.Dir {
		t.Errorf("WorkDir() = %s, want %s", repo.WorkDir(), fx.Dir)
	}
}

func TestLocateOutsideRepository(t *testing.T) {
	if _, ok := gitcore.Locate(filepath.Join(t.TempDir(), "plain.txt")); ok {
		t.Fatalf("expected no repository for a plain temp directory")
	}
	if _, ok := gitcore.Locate("relative-name-only"); ok {
		t.Fatalf("a bare relative name has no repository")
	}
}

func TestSame(t *testing.T) {
	fx, _ := threeCommits(t)
	a := openFixture(t, fx)
	b := openFixture(t, fx)
	if !a.Same(b) {
		t.Errorf("two handles on one repository should be the same")
	}

	other := gittest.Init(t, t.TempDir())
	c := openFixture(t, other)
	if a.Same(c) {
		t.Errorf("distinct repositories should differ")
	}
	if a.Same(nil) {
		t.Errorf("nil is never the same repository")
	}
}

func TestStatusCleanAndDirty(t *testing.T) {
	fx, _ := threeCommits(t)
	fx.Checkout(map[string]string{
		"hello.txt":     "three\n",
		"docs/guide.md": "# Guide\n",
	})
	repo := openFixture(t, fx)

	dirty, err := repo.IsDirty()
	if err != nil {
		t.Fatalf("IsDirty failed: %v", err)
	}
	if dirty {
		status, _ := repo.GetStatus()
		t.Fatalf("fresh checkout should be clean, got %+v", status.Entries)
	}

	if err := os.WriteFile(fx.Path("scratch.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if dirty, _ := repo.IsDirty(); dirty {
		t.Errorf("untracked files must not make the tree dirty")
	}

	fx.Touch("hello.txt", "four\n")
	dirty, err = repo.IsDirty()
	if err != nil {
		t.Fatalf("IsDirty failed: %v", err)
	}
	if !dirty {
		t.Errorf("modified tracked file should make the tree dirty")
	}

	status, err := repo.GetStatus()
	if err != nil {
		t.Fatal(err)
	}
	var sawModified, sawUntracked bool
	for _, entry := range status.Entries {
		switch {
		case entry.Path == "hello.txt" && entry.WorktreeStatus == "M":
			sawModified = true
		case entry.Path == "scratch.txt" && entry.Untracked():
			sawUntracked = true
		}
	}
	if !sawModified || !sawUntracked {
		t.Errorf("unexpected status entries: %+v", status.Entries)
	}
}

func TestStatusDeletedFile(t *testing.T) {
	fx, _ := threeCommits(t)
	fx.Checkout(map[string]string{
		"hello.txt":     "three\n",
		"docs/guide.md": "# Guide\n",
	})
	if err := os.Remove(fx.Path("docs", "guide.md")); err != nil {
		t.Fatal(err)
	}
	repo := openFixture(t, fx)

	if dirty, err := repo.IsDirty(); err != nil || !dirty {
		t.Fatalf("deleted tracked file should be dirty, got %v, %v", dirty, err)
	}
}

func TestIsDirtyTrackedChanges(t *testing.T) {
	tests := []struct {
		name      string
		checkout  map[string]string
		untracked []string
		dirty     bool
	}{
		{
			name:      "untracked only",
			checkout:  map[string]string{"hello.txt": "three\n", "docs/guide.md": "# Guide\n"},
			untracked: []string{"scratch.txt", "build/out/board.pdf"},
			dirty:     false,
		},
		{
			name:      "staged change",
			checkout:  map[string]string{"hello.txt": "four\n", "docs/guide.md": "# Guide\n"},
			untracked: []string{"scratch.txt"},
			dirty:     true,
		},
		{
			name:     "file added to the index",
			checkout: map[string]string{"hello.txt": "three\n", "docs/guide.md": "# Guide\n", "notes.txt": "n\n"},
			dirty:    true,
		},
		{
			name:     "file removed from the index",
			checkout: map[string]string{"hello.txt": "three\n"},
			dirty:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx, _ := threeCommits(t)
			fx.Checkout(tt.checkout)
			for _, p := range tt.untracked {
				full := fx.Path(p)
				if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			repo := openFixture(t, fx)

			dirty, err := repo.IsDirty()
			if err != nil {
				t.Fatalf("IsDirty failed: %v", err)
			}
			if dirty != tt.dirty {
				t.Errorf("IsDirty() = %v, want %v", dirty, tt.dirty)
			}

			status, err := repo.GetStatus()
			if err != nil {
				t.Fatalf("GetStatus failed: %v", err)
			}
			if status.IsDirty() != dirty {
				t.Errorf("GetStatus().IsDirty() = %v, IsDirty() = %v", status.IsDirty(), dirty)
			}
			untracked := 0
			for _, entry := range status.Entries {
				if entry.Untracked() {
					untracked++
				}
			}
			if untracked != len(tt.untracked) {
				t.Errorf("GetStatus listed %d untracked files, want %d", untracked, len(tt.untracked))
			}
		})
	}
}

func TestHashObjectMatchesGit(t *testing.T) {
	// git hash-object of an empty blob.
	if got := gitcore.HashObject(gitcore.BlobObject, nil); got != "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391" {
		t.Fatalf("HashObject(empty blob) = %s", got)
	}
}
