package vcsfile

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/rybkr/gitpast/internal/gitcore"
	"github.com/rybkr/gitpast/internal/repopath"
	"github.com/rybkr/gitpast/internal/vcserr"
)

// crossRepoWarning is shared by all resolvers so the warning appears once
// per process.
var crossRepoWarning sync.Once

// Resolver finds the blob behind a File.
type Resolver struct {
	log *slog.Logger
}

// NewResolver returns a Resolver that logs to log.
func NewResolver(log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{log: log}
}

// Resolve fills in the repository, commit and blob of f. A file with a
// related file and no revision of its own is first looked up in the related
// file's commit. If that fails, f is looked up in the repository holding
// f.Name at f.Revision (HEAD by default).
func (r *Resolver) Resolve(f *File) error {
	name := f.Name
	err := r.resolveRelated(f)
	if err == nil || vcserr.IsFatal(err) {
		return err
	}
	if !errors.Is(err, errNoRelated) {
		r.log.Debug("related lookup failed", "name", f.Name, "reason", err)
	}
	f.Name = name

	repo, ok := gitcore.LocateWithLogger(f.Name, r.log)
	if !ok {
		return vcserr.New(vcserr.RepositoryNotFound, f.Name, "not found")
	}
	r.log.Debug("using repository", "path", repo.GitDir())

	rev := f.Revision
	if rev == "" {
		rev = gitcore.DefaultRevision
	}
	commit, err := repo.Revision(rev)
	if err != nil {
		return err
	}
	return r.access(f, repo, commit, f.Name)
}

// errNoRelated marks a file that does not qualify for related lookup.
var errNoRelated = errors.New("no related file")

func (r *Resolver) resolveRelated(f *File) error {
	related := f.Related
	if related == nil || f.Revision != "" || related.repo == nil {
		return errNoRelated
	}

	if repo, ok := gitcore.LocateWithLogger(f.Name, r.log); ok {
		return r.inRepository(f, repo)
	}
	return r.graft(f)
}

// inRepository reads f from the commit of its related file if both live in
// the same repository.
func (r *Resolver) inRepository(f *File, repo *gitcore.Repository) error {
	related := f.Related
	if !repo.Same(related.repo) {
		crossRepoWarning.Do(func() {
			r.log.Warn("looking up a related file in a different repository is not implemented",
				"name", f.Name, "related", related.Name)
		})
		return vcserr.New(vcserr.CrossRepository, f.Name, "")
	}
	return r.access(f, related.repo, related.commit, f.Name)
}

// graft places f next to its related file. If the grafted path lands in a
// repository, that repository decides; otherwise the related file's commit
// is searched for it.
func (r *Resolver) graft(f *File) error {
	related := f.Related
	grafted := Graft(related.Name, f.Name)
	r.log.Debug("trying graft", "related", related.Name, "name", f.Name, "grafted", grafted)

	if repo, ok := gitcore.LocateWithLogger(grafted, r.log); ok {
		f.Name = grafted
		return r.inRepository(f, repo)
	}

	if err := r.access(f, related.repo, related.commit, grafted); err != nil {
		return err
	}
	f.Name = grafted
	return nil
}

// access reads name from commit, converting it to a path inside repo first.
func (r *Resolver) access(f *File, repo *gitcore.Repository, commit *gitcore.Commit, name string) error {
	r.log.Debug("repo dir", "path", repo.WorkDir())
	rel, err := repopath.CanonicalizeWithLogger(repo.WorkDir(), name, r.log)
	if err != nil {
		return err
	}

	blob, err := repo.BlobAt(commit, rel)
	if err != nil {
		return err
	}
	r.log.Info("reading", "name", name, "revision", commit.ShortID())

	f.repo, f.commit, f.blob = repo, commit, blob
	return nil
}

// Graft joins name onto the directory of base without touching the
// filesystem: Graft("sub/dir/top.sch", "other.sch") is "sub/dir/other.sch".
// An absolute name, or a base without a directory, leaves name unchanged.
func Graft(base, name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	slash := strings.LastIndexByte(base, '/')
	if slash < 0 {
		return name
	}
	return base[:slash+1] + name
}
