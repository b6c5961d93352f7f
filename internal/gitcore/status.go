package gitcore

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

type Status struct {
	Entries []StatusEntry
}

type StatusEntry struct {
	Path           string
	IndexStatus    string
	WorktreeStatus string
}

func (e *StatusEntry) String() string {
	x, y := e.IndexStatus, e.WorktreeStatus
	if x == "" {
		x = " "
	}
	if y == "" {
		y = " "
	}
	return fmt.Sprintf("%s%s %s", x, y, e.Path)
}

// Untracked reports whether the entry is a file git does not know about.
func (e *StatusEntry) Untracked() bool {
	return e.IndexStatus == "?"
}

// IsDirty reports whether tracked content differs from HEAD, either staged
// or in the working tree. Untracked files do not count.
func (s *Status) IsDirty() bool {
	for _, entry := range s.Entries {
		if !entry.Untracked() && (entry.IndexStatus != "" || entry.WorktreeStatus != "") {
			return true
		}
	}
	return false
}

// GetStatus compares HEAD, the index and the working tree. A bare
// repository has nothing to compare and reports a clean status.
func (r *Repository) GetStatus() (*Status, error) {
	if r.IsBare() {
		return &Status{Entries: []StatusEntry{}}, nil
	}

	index, statusEntries, err := r.trackedChanges(false)
	if err != nil {
		return nil, err
	}
	statusEntries = append(statusEntries, r.findUntrackedFiles(index.Entries)...)

	sort.SliceStable(statusEntries, func(i, j int) bool {
		return statusEntries[i].Path < statusEntries[j].Path
	})

	return &Status{
		Entries: statusEntries,
	}, nil
}

// IsDirty reports whether the working tree or index differs from HEAD.
// Only tracked files are looked at, so the work tree is never walked.
func (r *Repository) IsDirty() (bool, error) {
	if r.IsBare() {
		return false, nil
	}
	_, entries, err := r.trackedChanges(true)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// trackedChanges compares the index with HEAD and then the working tree
// with the index. With stopEarly it skips the working tree once the index
// already differs.
func (r *Repository) trackedChanges(stopEarly bool) (*Index, []StatusEntry, error) {
	index, err := r.GetIndex()
	if err != nil {
		return nil, nil, err
	}
	headTree, err := r.headTree()
	if err != nil {
		return nil, nil, err
	}

	entries := r.compareIndexWithHeadTree(index.Entries, headTree)
	if stopEarly && len(entries) > 0 {
		return index, entries, nil
	}
	entries = append(entries, r.compareWorkingTreeWithIndex(index.Entries)...)
	return index, entries, nil
}

// PrintStatus imitates 'git status -s', mostly for debugging purposes.
func (r *Repository) PrintStatus(w io.Writer) error {
	status, err := r.GetStatus()
	if err != nil {
		return err
	}
	for _, entry := range status.Entries {
		if entry.IndexStatus != "" || entry.WorktreeStatus != "" {
			fmt.Fprintln(w, entry.String())
		}
	}
	return nil
}

// PrintIndex imitates 'git ls-files -s'.
func (r *Repository) PrintIndex(w io.Writer) error {
	index, err := r.GetIndex()
	if err != nil {
		return err
	}
	for _, entry := range index.Entries {
		fmt.Fprintf(w, "%06o %s %d\t%s\n", entry.StatInfo.Mode, entry.ID(), entry.Stage(), entry.Path)
	}
	return nil
}

func (r *Repository) compareIndexWithHeadTree(indexEntries []IndexEntry, headTree map[string]Hash) []StatusEntry {
	entries := make([]StatusEntry, 0)

	indexMap := make(map[string]IndexEntry)
	for _, entry := range indexEntries {
		indexMap[entry.Path] = entry
	}

	for _, entry := range indexEntries {
		if entry.Stage() != 0 {
			entries = append(entries, StatusEntry{Path: entry.Path, IndexStatus: "U", WorktreeStatus: "U"})
			continue
		}
		headHash, existsInHead := headTree[entry.Path]

		if !existsInHead {
			entries = append(entries, StatusEntry{
				Path:        entry.Path,
				IndexStatus: "A",
			})
		} else if headHash != entry.ID() {
			entries = append(entries, StatusEntry{
				Path:        entry.Path,
				IndexStatus: "M",
			})
		}
	}

	for path := range headTree {
		if _, existsInIndex := indexMap[path]; !existsInIndex {
			entries = append(entries, StatusEntry{
				Path:        path,
				IndexStatus: "D",
			})
		}
	}

	return entries
}

func (r *Repository) compareWorkingTreeWithIndex(indexEntries []IndexEntry) []StatusEntry {
	entries := make([]StatusEntry, 0)

	for _, entry := range indexEntries {
		if entry.Stage() != 0 {
			continue
		}
		workingPath := filepath.Join(r.workDir, filepath.FromSlash(entry.Path))

		info, err := os.Lstat(workingPath)
		if err != nil {
			entries = append(entries, StatusEntry{
				Path:           entry.Path,
				WorktreeStatus: "D",
			})
			continue
		}
		if info.IsDir() {
			// Submodule checkouts are not compared.
			continue
		}

		// Matching stat data means the file is unchanged; otherwise hash it.
		if info.ModTime().Equal(entry.StatInfo.MTime) && uint32(info.Size()) == entry.StatInfo.Size {
			continue
		}
		hash, err := HashFile(workingPath)
		if err != nil {
			continue
		}
		if hash != entry.ID() {
			entries = append(entries, StatusEntry{
				Path:           entry.Path,
				WorktreeStatus: "M",
			})
		}
	}

	return entries
}

// findUntrackedFiles lists files missing from the index. Ignore rules are
// not evaluated, so build products show up here too.
func (r *Repository) findUntrackedFiles(indexEntries []IndexEntry) []StatusEntry {
	entries := make([]StatusEntry, 0)

	indexMap := make(map[string]bool)
	for _, entry := range indexEntries {
		indexMap[entry.Path] = true
	}

	filepath.WalkDir(r.workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Name() == ".git" {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(r.workDir, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if !indexMap[relPath] {
			entries = append(entries, StatusEntry{
				Path:           relPath,
				IndexStatus:    "?",
				WorktreeStatus: "?",
			})
		}

		return nil
	})

	return entries
}
