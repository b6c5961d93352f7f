package gitcore

import (
	"context"

	"github.com/rybkr/gitpast/internal/vcserr"
)

// DefaultRevision is used when a lookup names no revision.
const DefaultRevision = "HEAD"

// FetchBlob returns the content of the file at repoPath (relative to the
// repository root, slash separated) in the given revision.
func (r *Repository) FetchBlob(rev, repoPath string) (*Blob, error) {
	if rev == "" {
		rev = DefaultRevision
	}
	commit, err := r.Revision(rev)
	if err != nil {
		return nil, err
	}
	return r.BlobAt(commit, repoPath)
}

// BlobAt returns the content of the file at repoPath in an already resolved commit.
func (r *Repository) BlobAt(commit *Commit, repoPath string) (*Blob, error) {
	entry, err := r.TreeEntryByPath(commit.Tree, repoPath)
	if err != nil {
		return nil, err
	}
	if !entry.IsBlob() {
		return nil, vcserr.New(vcserr.NotABlob, repoPath, "")
	}

	r.log.Log(context.Background(), LevelTrace, "object", "id", entry.ID.Short(), "path", repoPath)
	return r.ReadBlob(entry.ID)
}
