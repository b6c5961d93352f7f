package gitcore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rybkr/gitpast/internal/vcserr"
)

// Repository is a read-only handle on a Git repository's object store and
// working tree.
type Repository struct {
	gitDir    string
	commonDir string
	workDir   string

	packIndices  []*PackIndex
	refs         map[string]Hash
	head         Hash
	headRef      string
	headDetached bool

	objects map[Hash]*rawObject

	log *slog.Logger
	mu  sync.RWMutex
}

// rawObject is an inflated object body without its "type size\x00" header.
type rawObject struct {
	typ  ObjectType
	data []byte
}

// Open creates and initializes a new Repository instance.
// path can be either:
//   - The working directory (will find .git within)
//   - The .git directory itself
//   - A subdirectory of the working directory
func Open(path string) (*Repository, error) {
	gitDir, workDir, err := findGitDirectory(path)
	if err != nil {
		return nil, err
	}

	commonDir := resolveCommonDir(gitDir)
	if err := validateGitDirectory(gitDir, commonDir); err != nil {
		return nil, err
	}

	repo := &Repository{
		gitDir:    gitDir,
		commonDir: commonDir,
		workDir:   workDir,
		refs:      make(map[string]Hash),
		objects:   make(map[Hash]*rawObject),
		log:       slog.Default(),
	}

	if err := repo.loadPackIndices(); err != nil {
		return nil, fmt.Errorf("failed to load pack indices: %w", err)
	}
	if err := repo.loadRefs(); err != nil {
		return nil, fmt.Errorf("failed to load refs: %w", err)
	}

	return repo, nil
}

// SetLogger replaces the logger used for diagnostics.
func (r *Repository) SetLogger(log *slog.Logger) {
	if log != nil {
		r.log = log
	}
}

// Name returns the repository's directory name.
func (r *Repository) Name() string {
	return filepath.Base(r.workDir)
}

// GitDir returns the absolute path of the git directory.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// WorkDir returns the root of the working tree. For a bare repository this
// is the git directory's parent.
func (r *Repository) WorkDir() string {
	return r.workDir
}

// Same reports whether both handles refer to the same repository.
func (r *Repository) Same(other *Repository) bool {
	if r == nil || other == nil {
		return false
	}
	if r == other || r.gitDir == other.gitDir {
		return true
	}
	a, errA := os.Stat(r.gitDir)
	b, errB := os.Stat(other.gitDir)
	return errA == nil && errB == nil && os.SameFile(a, b)
}

// Head returns the commit HEAD points to, or "" in a repository without commits.
func (r *Repository) Head() Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.head
}

// HeadRef returns the symbolic ref HEAD points to, or "" when detached.
func (r *Repository) HeadRef() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.headRef
}

// HeadDetached reports whether HEAD names a commit directly.
func (r *Repository) HeadDetached() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.headDetached
}

// Branches returns a copy of all branch references.
func (r *Repository) Branches() map[string]Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	branches := make(map[string]Hash)
	for ref, hash := range r.refs {
		if strings.HasPrefix(ref, "refs/heads/") {
			branches[ref] = hash
		}
	}
	return branches
}

// Refs returns a copy of all loaded references.
func (r *Repository) Refs() map[string]Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make(map[string]Hash, len(r.refs))
	for ref, hash := range r.refs {
		refs[ref] = hash
	}
	return refs
}

// findGitDirectory locates the .git directory starting from the given path.
// Returns both the .git directory and the working directory.
func findGitDirectory(startPath string) (gitDir string, workDir string, err error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", "", vcserr.Wrap(vcserr.RepositoryNotFound, startPath, err)
	}
	if !info.IsDir() {
		absPath = filepath.Dir(absPath)
	}

	if filepath.Base(absPath) == ".git" {
		return absPath, filepath.Dir(absPath), nil
	}
	if isBareGitDir(absPath) {
		return absPath, filepath.Dir(absPath), nil
	}

	currentPath := absPath
	for {
		gitPath := filepath.Join(currentPath, ".git")

		info, err := os.Stat(gitPath)
		if err == nil {
			if info.IsDir() {
				return gitPath, currentPath, nil
			}
			return handleGitFile(gitPath, currentPath)
		}

		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return "", "", vcserr.New(vcserr.RepositoryNotFound, startPath,
				"not a git repository (or any parent up to mount point)")
		}
		currentPath = parentPath
	}
}

// isBareGitDir recognizes a directory that holds a git layout directly.
func isBareGitDir(dir string) bool {
	return validateGitDirectory(dir, resolveCommonDir(dir)) == nil
}

// resolveCommonDir follows the commondir file linked worktrees carry. Objects
// and refs live there, while HEAD and the index stay in the worktree's git dir.
func resolveCommonDir(gitDir string) string {
	content, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}
	dir := strings.TrimSpace(string(content))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(gitDir, dir)
	}
	return filepath.Clean(dir)
}

// handleGitFile handles the case where .git is a file (worktrees, submodules).
// .git file format: "gitdir: /path/to/actual/.git"
func handleGitFile(gitFilePath string, workDir string) (string, string, error) {
	content, err := os.ReadFile(gitFilePath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read .git file: %w", err)
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return "", "", fmt.Errorf("invalid .git file format: %s", gitFilePath)
	}

	gitDir := strings.TrimPrefix(line, "gitdir: ")
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(filepath.Dir(gitFilePath), gitDir)
	}
	gitDir = filepath.Clean(gitDir)

	if _, err := os.Stat(gitDir); err != nil {
		return "", "", fmt.Errorf("gitdir points to non-existent directory: %s", gitDir)
	}

	return gitDir, workDir, nil
}

// validateGitDirectory checks if the directory is a valid Git repository.
func validateGitDirectory(gitDir, commonDir string) error {
	info, err := os.Stat(gitDir)
	if err != nil {
		return fmt.Errorf("git directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("git path is not a directory: %s", gitDir)
	}

	requiredPaths := []string{
		filepath.Join(commonDir, "objects"),
		filepath.Join(commonDir, "refs"),
		filepath.Join(gitDir, "HEAD"),
	}
	for _, path := range requiredPaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("invalid git repository, missing: %s", filepath.Base(path))
		}
	}

	return nil
}
