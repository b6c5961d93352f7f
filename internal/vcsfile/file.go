// Package vcsfile opens files by designator, "[revision:]path", reading them
// from the git history of the repository that holds them or, failing that,
// from the filesystem.
package vcsfile

import (
	"log/slog"
	"os"
	"strings"

	"github.com/rybkr/gitpast/internal/gitcore"
	"github.com/rybkr/gitpast/internal/vcserr"
)

// File is an opened designator. Name may be rewritten while resolving a file
// relative to Related; after Open returns, a File does not change.
type File struct {
	Name     string
	Revision string
	Related  *File

	repo   *gitcore.Repository
	commit *gitcore.Commit
	blob   *gitcore.Blob
	plain  []byte
}

// Repository returns the repository the file was read from, or nil for a
// plain file.
func (f *File) Repository() *gitcore.Repository { return f.repo }

// Commit returns the commit the file was read from, or nil for a plain file.
func (f *File) Commit() *gitcore.Commit { return f.commit }

// Blob returns the blob the file was read from, or nil for a plain file.
func (f *File) Blob() *gitcore.Blob { return f.blob }

// InRepository reports whether the content came from git history.
func (f *File) InRepository() bool { return f.blob != nil }

// Data returns the file content. For files read from git the slice belongs
// to the repository's object cache and must not be modified.
func (f *File) Data() []byte {
	if f.blob != nil {
		return f.blob.Data
	}
	return f.plain
}

// Read streams the content line by line. See ForEachLine.
func (f *File) Read(visit func(lineno int, line string) bool) bool {
	return ForEachLine(f.Data(), visit)
}

// Open opens designator with the default logger. See Resolver.Open.
func Open(designator string, related *File) (*File, error) {
	return NewResolver(slog.Default()).Open(designator, related)
}

// Open resolves designator, trying git history first. When no repository
// can provide the file it is read from the filesystem instead, unless the
// designator names a revision. Fatal resolution errors are returned without
// falling back.
func (r *Resolver) Open(designator string, related *File) (*File, error) {
	revision, name := SplitDesignator(designator)
	f := &File{Name: name, Revision: revision, Related: related}

	err := r.Resolve(f)
	if err == nil {
		return f, nil
	}
	if vcserr.IsFatal(err) {
		return nil, err
	}
	if revision != "" {
		return nil, err
	}
	r.log.Debug("reading plain file", "name", designator, "reason", err)

	data, readErr := os.ReadFile(designator)
	if readErr != nil {
		return nil, vcserr.Wrap(vcserr.NotFound, designator, readErr)
	}
	return &File{Name: designator, Related: related, plain: data}, nil
}

// SplitDesignator separates "revision:path". A designator that exists as a
// file, starts with ':' or starts with a drive letter is all path.
func SplitDesignator(designator string) (revision, path string) {
	colon := strings.IndexByte(designator, ':')
	if colon <= 0 {
		return "", designator
	}
	if colon == 1 && isDriveLetter(designator[0]) {
		return "", designator
	}
	if _, err := os.Stat(designator); err == nil {
		return "", designator
	}
	return designator[:colon], designator[colon+1:]
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
