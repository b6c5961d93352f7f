package gitcore

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/rybkr/gitpast/internal/vcserr"
)

// Tree entry modes as they appear in tree objects.
const (
	ModeTree      = "40000"
	ModeBlob      = "100644"
	ModeExec      = "100755"
	ModeSymlink   = "120000"
	ModeSubmodule = "160000"
)

// TreeEntry is one name in a tree object.
type TreeEntry struct {
	Mode string
	Name string
	ID   Hash
}

// IsTree reports whether the entry is a subdirectory.
func (e TreeEntry) IsTree() bool {
	return e.Mode == ModeTree
}

// IsBlob reports whether the entry refers to file content (symlinks included,
// their blob holds the link target).
func (e TreeEntry) IsBlob() bool {
	return e.Mode == ModeBlob || e.Mode == ModeExec || e.Mode == ModeSymlink
}

// Tree is a parsed tree object.
type Tree struct {
	ID      Hash
	Entries []TreeEntry
}

// ReadTree loads and parses a tree object.
func (r *Repository) ReadTree(id Hash) (*Tree, error) {
	obj, err := r.readObject(id)
	if err != nil {
		return nil, r.missing(id, err)
	}
	if obj.typ != TreeObject {
		return nil, fmt.Errorf("%s: %s object is not a tree", id.Short(), obj.typ)
	}

	entries, err := parseTree(obj.data)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", id.Short(), err)
	}
	return &Tree{ID: id, Entries: entries}, nil
}

// parseTree decodes a sequence of "<mode> <name>\x00<20-byte id>" records.
func parseTree(content []byte) ([]TreeEntry, error) {
	var entries []TreeEntry

	for len(content) > 0 {
		spaceIdx := bytes.IndexByte(content, ' ')
		if spaceIdx == -1 {
			return nil, fmt.Errorf("missing mode separator")
		}
		mode := string(content[:spaceIdx])
		content = content[spaceIdx+1:]

		nullIdx := bytes.IndexByte(content, 0)
		if nullIdx == -1 {
			return nil, fmt.Errorf("missing name terminator")
		}
		name := string(content[:nullIdx])
		content = content[nullIdx+1:]

		if len(content) < 20 {
			return nil, fmt.Errorf("truncated entry %q", name)
		}
		var raw [20]byte
		copy(raw[:], content[:20])
		hash, err := NewHashFromBytes(raw)
		if err != nil {
			return nil, err
		}
		content = content[20:]

		entries = append(entries, TreeEntry{Mode: mode, Name: name, ID: hash})
	}

	return entries, nil
}

// Find returns the entry called name.
func (t *Tree) Find(name string) (TreeEntry, bool) {
	for _, entry := range t.Entries {
		if entry.Name == name {
			return entry, true
		}
	}
	return TreeEntry{}, false
}

// TreeEntryByPath walks from the root tree down a slash-separated path.
func (r *Repository) TreeEntryByPath(root Hash, p string) (TreeEntry, error) {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return TreeEntry{Mode: ModeTree, ID: root}, nil
	}

	current := root
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		tree, err := r.ReadTree(current)
		if err != nil {
			return TreeEntry{}, err
		}
		entry, ok := tree.Find(segment)
		if !ok {
			return TreeEntry{}, vcserr.Errorf(vcserr.NotFound, p,
				"the path '%s' does not exist in the given tree", strings.Join(segments[:i+1], "/"))
		}
		if i == len(segments)-1 {
			return entry, nil
		}
		if !entry.IsTree() {
			return TreeEntry{}, vcserr.Errorf(vcserr.NotFound, p,
				"'%s' is not a directory", strings.Join(segments[:i+1], "/"))
		}
		current = entry.ID
	}

	return TreeEntry{}, vcserr.New(vcserr.NotFound, p, "")
}

// readTreeRecursive flattens a tree into path -> blob id.
func (r *Repository) readTreeRecursive(treeHash Hash, prefix string, result map[string]Hash) error {
	tree, err := r.ReadTree(treeHash)
	if err != nil {
		return err
	}

	for _, entry := range tree.Entries {
		fullPath := path.Join(prefix, entry.Name)
		if entry.IsTree() {
			if err := r.readTreeRecursive(entry.ID, fullPath, result); err != nil {
				return err
			}
			continue
		}
		result[fullPath] = entry.ID
	}

	return nil
}

// headTree returns the flattened tree of the HEAD commit, empty when there is none.
func (r *Repository) headTree() (map[string]Hash, error) {
	result := make(map[string]Hash)

	head := r.Head()
	if head == "" {
		return result, nil
	}
	commit, err := r.ReadCommit(head)
	if err != nil {
		return nil, err
	}
	if err := r.readTreeRecursive(commit.Tree, "", result); err != nil {
		return nil, err
	}
	return result, nil
}
