// Package gittest builds small git repositories on disk for tests by writing
// loose objects, refs and an index directly.
package gittest

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/rybkr/gitpast/internal/gitcore"
)

// Epoch is the timestamp of the first commit a Repo writes. Every later
// commit is one minute newer.
const Epoch = 1713800000

// Repo is a repository under construction.
type Repo struct {
	t      testing.TB
	Dir    string
	GitDir string
	clock  int64
}

// Init creates an empty repository with HEAD pointing at refs/heads/main.
func Init(t testing.TB, dir string) *Repo {
	t.Helper()

	gitDir := filepath.Join(dir, ".git")
	for _, sub := range []string{"objects", "refs/heads", "refs/tags"} {
		if err := os.MkdirAll(filepath.Join(gitDir, sub), 0o755); err != nil {
			t.Fatalf("mkdir %s failed: %v", sub, err)
		}
	}
	repo := &Repo{t: t, Dir: dir, GitDir: gitDir, clock: Epoch}
	repo.writeFile(filepath.Join(gitDir, "HEAD"), "ref: refs/heads/main\n")
	repo.writeFile(filepath.Join(gitDir, "config"),
		"[core]\n\trepositoryformatversion = 0\n\tfilemode = true\n\tbare = false\n")
	return repo
}

// Object writes a loose object and returns its id.
func (r *Repo) Object(typ gitcore.ObjectType, data []byte) gitcore.Hash {
	r.t.Helper()

	id := gitcore.HashObject(typ, data)
	objectPath := filepath.Join(r.GitDir, "objects", string(id[:2]), string(id[2:]))
	if _, err := os.Stat(objectPath); err == nil {
		return id
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	fmt.Fprintf(zw, "%s %d\x00", typ, len(data))
	zw.Write(data)
	if err := zw.Close(); err != nil {
		r.t.Fatalf("compress object failed: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
		r.t.Fatalf("mkdir object dir failed: %v", err)
	}
	if err := os.WriteFile(objectPath, buf.Bytes(), 0o444); err != nil {
		r.t.Fatalf("write object failed: %v", err)
	}
	return id
}

// Blob writes a blob.
func (r *Repo) Blob(content string) gitcore.Hash {
	r.t.Helper()
	return r.Object(gitcore.BlobObject, []byte(content))
}

// Tree writes the trees for a set of slash-separated paths and returns the
// root tree id.
func (r *Repo) Tree(files map[string]string) gitcore.Hash {
	r.t.Helper()

	type node struct {
		files map[string]string
		dirs  map[string]map[string]string
	}
	n := node{files: map[string]string{}, dirs: map[string]map[string]string{}}
	for p, content := range files {
		head, rest, nested := strings.Cut(p, "/")
		if !nested {
			n.files[head] = content
			continue
		}
		if n.dirs[head] == nil {
			n.dirs[head] = map[string]string{}
		}
		n.dirs[head][rest] = content
	}

	var entries []gitcore.TreeEntry
	for name, content := range n.files {
		entries = append(entries, gitcore.TreeEntry{Mode: gitcore.ModeBlob, Name: name, ID: r.Blob(content)})
	}
	for name, sub := range n.dirs {
		entries = append(entries, gitcore.TreeEntry{Mode: gitcore.ModeTree, Name: name, ID: r.Tree(sub)})
	}
	return r.TreeEntries(entries)
}

// TreeEntries writes a single tree object from explicit entries.
func (r *Repo) TreeEntries(entries []gitcore.TreeEntry) gitcore.Hash {
	r.t.Helper()

	// Git orders directories as if their name ended in "/".
	sortKey := func(e gitcore.TreeEntry) string {
		if e.Mode == gitcore.ModeTree {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool { return sortKey(entries[i]) < sortKey(entries[j]) })

	var buf bytes.Buffer
	for _, entry := range entries {
		fmt.Fprintf(&buf, "%s %s\x00", entry.Mode, entry.Name)
		buf.Write(rawHash(r.t, entry.ID))
	}
	return r.Object(gitcore.TreeObject, buf.Bytes())
}

// Commit writes a commit of tree with the given parents.
func (r *Repo) Commit(tree gitcore.Hash, message string, parents ...gitcore.Hash) gitcore.Hash {
	r.t.Helper()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", tree)
	for _, parent := range parents {
		fmt.Fprintf(&buf, "parent %s\n", parent)
	}
	fmt.Fprintf(&buf, "author Test User <test@example.com> %d +0000\n", r.clock)
	fmt.Fprintf(&buf, "committer Test User <test@example.com> %d +0000\n", r.clock)
	fmt.Fprintf(&buf, "\n%s\n", message)
	r.clock += 60

	return r.Object(gitcore.CommitObject, buf.Bytes())
}

// CommitFiles writes a tree of files and a commit of it.
func (r *Repo) CommitFiles(message string, files map[string]string, parents ...gitcore.Hash) gitcore.Hash {
	r.t.Helper()
	return r.Commit(r.Tree(files), message, parents...)
}

// Tag writes an annotated tag object pointing at target.
func (r *Repo) Tag(name string, target gitcore.Hash, typ gitcore.ObjectType) gitcore.Hash {
	r.t.Helper()

	body := fmt.Sprintf("object %s\ntype %s\ntag %s\ntagger Test User <test@example.com> %d +0000\n\n%s\n",
		target, typ, name, r.clock, name)
	return r.Object(gitcore.TagObject, []byte(body))
}

// SetRef points a full ref name (e.g. "refs/heads/main") at id.
func (r *Repo) SetRef(name string, id gitcore.Hash) {
	r.t.Helper()
	r.writeFile(filepath.Join(r.GitDir, filepath.FromSlash(name)), string(id)+"\n")
}

// SetHead makes HEAD a symbolic ref to name.
func (r *Repo) SetHead(name string) {
	r.t.Helper()
	r.writeFile(filepath.Join(r.GitDir, "HEAD"), "ref: "+name+"\n")
}

// Checkout writes files into the working tree and records them in the index,
// leaving a clean status relative to a commit of the same files.
func (r *Repo) Checkout(files map[string]string) {
	r.t.Helper()

	paths := make([]string, 0, len(files))
	for p, content := range files {
		r.writeFile(filepath.Join(r.Dir, filepath.FromSlash(p)), content)
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	buf.WriteString("DIRC")
	binary.Write(&buf, binary.BigEndian, uint32(2))
	binary.Write(&buf, binary.BigEndian, uint32(len(paths)))

	for _, p := range paths {
		info, err := os.Stat(filepath.Join(r.Dir, filepath.FromSlash(p)))
		if err != nil {
			r.t.Fatalf("stat %s failed: %v", p, err)
		}
		mtime := info.ModTime()
		start := buf.Len()

		fields := []uint32{
			uint32(mtime.Unix()), uint32(mtime.Nanosecond()),
			uint32(mtime.Unix()), uint32(mtime.Nanosecond()),
			0, 0, 0o100644, 0, 0, uint32(info.Size()),
		}
		binary.Write(&buf, binary.BigEndian, fields)
		buf.Write(rawHash(r.t, gitcore.HashObject(gitcore.BlobObject, []byte(files[p]))))
		binary.Write(&buf, binary.BigEndian, uint16(len(p)))
		buf.WriteString(p)

		entryLen := buf.Len() - start
		padding := 8 - entryLen%8
		buf.Write(make([]byte, padding))
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	if err := os.WriteFile(filepath.Join(r.GitDir, "index"), buf.Bytes(), 0o644); err != nil {
		r.t.Fatalf("write index failed: %v", err)
	}
}

// Touch rewrites a working tree file without updating the index and pushes
// its mtime forward so stat data no longer matches.
func (r *Repo) Touch(p, content string) {
	r.t.Helper()
	full := filepath.Join(r.Dir, filepath.FromSlash(p))
	r.writeFile(full, content)
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(full, later, later); err != nil {
		r.t.Fatalf("chtimes %s failed: %v", p, err)
	}
}

// Path joins slash-separated elements onto the working tree root.
func (r *Repo) Path(elem ...string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(path.Join(elem...)))
}

func (r *Repo) writeFile(p, content string) {
	r.t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		r.t.Fatalf("mkdir %s failed: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s failed: %v", p, err)
	}
}

func rawHash(t testing.TB, id gitcore.Hash) []byte {
	t.Helper()
	raw, err := hex.DecodeString(string(id))
	if err != nil || len(raw) != 20 {
		t.Fatalf("invalid hash %q: %v", id, err)
	}
	return raw
}
