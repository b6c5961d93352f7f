package gitcore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxSymrefDepth bounds chains of symbolic refs.
const maxSymrefDepth = 10

// loadRefs loads all Git references (branches, tags, remotes) into the refs map.
func (r *Repository) loadRefs() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadPackedRefs(); err != nil {
		return fmt.Errorf("failed to load packed refs: %w", err)
	}
	for _, prefix := range []string{"heads", "tags", "remotes"} {
		if err := r.loadLooseRefs(prefix); err != nil {
			return fmt.Errorf("failed to load refs/%s: %w", prefix, err)
		}
	}
	if err := r.loadHEAD(); err != nil {
		return fmt.Errorf("failed to load head: %w", err)
	}

	return nil
}

// loadPackedRefs reads the packed-refs file. Loose refs loaded afterwards
// take precedence, as they do in git.
func (r *Repository) loadPackedRefs() error {
	file, err := os.Open(filepath.Join(r.commonDir, "packed-refs"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Comments carry traits, "^" lines the peeled target of the tag above.
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		hash, err := NewHash(parts[0])
		if err != nil {
			r.log.Debug("skipping packed ref", "line", line, "error", err)
			continue
		}
		r.refs[parts[1]] = hash
	}
	return scanner.Err()
}

// loadLooseRefs recursively loads all refs in a directory.
// prefix is like "heads" for branches, or "tags" for tags.
func (r *Repository) loadLooseRefs(prefix string) error {
	refsDir := filepath.Join(r.commonDir, "refs", prefix)

	if _, err := os.Stat(refsDir); errors.Is(err, fs.ErrNotExist) {
		// No refs of this type yet (e.g., new repo with no tags), this is ok.
		return nil
	} else if err != nil {
		return err
	}

	return filepath.WalkDir(refsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(r.commonDir, path)
		if err != nil {
			return err
		}

		refName := filepath.ToSlash(relPath)
		hash, err := r.resolveRef(path, 0)
		if err != nil {
			// Log the error but continue with other potentially valid refs.
			r.log.Warn("error resolving ref", "ref", refName, "error", err)
			return nil
		}

		r.refs[refName] = hash
		return nil
	})
}

// loadHEAD reads and caches HEAD information
func (r *Repository) loadHEAD() error {
	headPath := filepath.Join(r.gitDir, "HEAD")
	content, err := os.ReadFile(headPath)
	if err != nil {
		return fmt.Errorf("failed to read HEAD: %w", err)
	}

	line := strings.TrimSpace(string(content))

	if strings.HasPrefix(line, "ref: ") {
		r.headRef = strings.TrimPrefix(line, "ref: ")
		r.headDetached = false

		if hash, exists := r.refs[r.headRef]; exists {
			r.head = hash
		} else {
			r.head = "" // New repository with no commits, this is ok.
		}
	} else {
		r.headDetached = true
		r.headRef = ""

		hash, err := NewHash(line)
		if err != nil {
			return fmt.Errorf("invalid HEAD: %w", err)
		}
		r.head = hash
	}

	return nil
}

// resolveRef reads a single ref file and returns its hash.
// Handles both direct hashes and symbolic refs.
func (r *Repository) resolveRef(path string, depth int) (Hash, error) {
	if depth > maxSymrefDepth {
		return "", fmt.Errorf("symbolic ref chain too deep at %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	line := strings.TrimSpace(string(content))

	if strings.HasPrefix(line, "ref: ") {
		targetRef := strings.TrimPrefix(line, "ref: ")
		targetPath := filepath.Join(r.commonDir, filepath.FromSlash(targetRef))
		if _, err := os.Stat(targetPath); err != nil {
			if hash, ok := r.refs[targetRef]; ok {
				return hash, nil
			}
		}
		return r.resolveRef(targetPath, depth+1)
	}

	hash, err := NewHash(line)
	if err != nil {
		return "", fmt.Errorf("invalid hash in ref file %s: %w", path, err)
	}
	return hash, nil
}

// lookupRef finds a ref by the short names git accepts, in git's order of
// precedence.
func (r *Repository) lookupRef(name string) (Hash, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "HEAD" {
		return r.head, r.head != ""
	}
	candidates := []string{
		name,
		"refs/" + name,
		"refs/tags/" + name,
		"refs/heads/" + name,
		"refs/remotes/" + name,
		"refs/remotes/" + name + "/HEAD",
	}
	for _, candidate := range candidates {
		if hash, ok := r.refs[candidate]; ok {
			return hash, true
		}
	}
	return "", false
}
