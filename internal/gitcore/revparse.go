package gitcore

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rybkr/gitpast/internal/vcserr"
)

// minAbbrev is the shortest hash prefix accepted, as in git.
const minAbbrev = 4

// maxTagDepth bounds chains of tags pointing at tags.
const maxTagDepth = 16

// Revision resolves a revision string to a commit. Accepted forms are HEAD,
// ref names (full or short), full and abbreviated hashes, each optionally
// followed by any sequence of ~N and ^N.
func (r *Repository) Revision(rev string) (*Commit, error) {
	if rev == "" {
		rev = "HEAD"
	}

	base, ops := splitRevision(rev)
	id, err := r.resolveName(base)
	if err != nil {
		return nil, err
	}

	commit, err := r.peelToCommit(id, rev)
	if err != nil {
		return nil, err
	}

	for _, op := range ops {
		commit, err = r.applyRevisionOp(commit, op, rev)
		if err != nil {
			return nil, err
		}
	}
	return commit, nil
}

// revisionOp is one "~N" or "^N" step.
type revisionOp struct {
	kind byte
	n    int
}

// splitRevision separates "base~2^2" into "base" and its navigation steps.
// Malformed steps end the parse; what they leave in base fails later lookup.
func splitRevision(rev string) (string, []revisionOp) {
	i := strings.IndexAny(rev, "~^")
	if i <= 0 {
		return rev, nil
	}

	base, rest := rev[:i], rev[i:]
	var ops []revisionOp
	for rest != "" {
		kind := rest[0]
		if kind != '~' && kind != '^' {
			return rev, nil
		}
		rest = rest[1:]

		j := 0
		for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
			j++
		}
		n := 1
		if j > 0 {
			var err error
			if n, err = strconv.Atoi(rest[:j]); err != nil {
				return rev, nil
			}
		}
		ops = append(ops, revisionOp{kind: kind, n: n})
		rest = rest[j:]
	}
	return base, ops
}

func (r *Repository) applyRevisionOp(commit *Commit, op revisionOp, rev string) (*Commit, error) {
	switch op.kind {
	case '^':
		if op.n == 0 {
			return commit, nil
		}
		if op.n > len(commit.Parents) {
			return nil, vcserr.Errorf(vcserr.NotFound, rev, "commit %s has no parent %d", commit.ShortID(), op.n)
		}
		return r.ReadCommit(commit.Parents[op.n-1])
	default:
		for i := 0; i < op.n; i++ {
			if len(commit.Parents) == 0 {
				return nil, vcserr.Errorf(vcserr.NotFound, rev, "commit %s has no parent", commit.ShortID())
			}
			next, err := r.ReadCommit(commit.Parents[0])
			if err != nil {
				return nil, err
			}
			commit = next
		}
		return commit, nil
	}
}

// resolveName maps a ref name or (abbreviated) hash to an object id.
func (r *Repository) resolveName(name string) (Hash, error) {
	if hash, ok := r.lookupRef(name); ok {
		return hash, nil
	}
	if name == "HEAD" {
		return "", vcserr.New(vcserr.NotFound, name, "reference HEAD has no commits yet")
	}
	if len(name) == 40 {
		if hash, err := NewHash(name); err == nil {
			return hash, nil
		}
	}
	if len(name) >= minAbbrev && len(name) < 40 && isHex(name) {
		return r.findByPrefix(strings.ToLower(name))
	}
	return "", vcserr.New(vcserr.NotFound, name, "revision not found")
}

// peelToCommit follows annotated tags until a commit is reached.
func (r *Repository) peelToCommit(id Hash, rev string) (*Commit, error) {
	for depth := 0; depth < maxTagDepth; depth++ {
		typ, err := r.ObjectType(id)
		if err != nil {
			return nil, err
		}
		switch typ {
		case CommitObject:
			return r.ReadCommit(id)
		case TagObject:
			tag, err := r.ReadTag(id)
			if err != nil {
				return nil, err
			}
			id = tag.Object
		default:
			return nil, vcserr.Errorf(vcserr.NotACommit, rev, "%s is a %s", id.Short(), typ)
		}
	}
	return nil, fmt.Errorf("%s: tag chain too deep", rev)
}

// findByPrefix looks for exactly one object whose id starts with prefix.
func (r *Repository) findByPrefix(prefix string) (Hash, error) {
	matches := make(map[Hash]struct{})

	dir := filepath.Join(r.commonDir, "objects", prefix[:2])
	if entries, err := os.ReadDir(dir); err == nil {
		for _, entry := range entries {
			candidate := Hash(prefix[:2] + entry.Name())
			if candidate.IsValid() && strings.HasPrefix(string(candidate), prefix) {
				matches[candidate] = struct{}{}
			}
		}
	}

	r.mu.RLock()
	for _, idx := range r.packIndices {
		for id := range idx.offsets {
			if strings.HasPrefix(string(id), prefix) {
				matches[id] = struct{}{}
			}
		}
	}
	r.mu.RUnlock()

	switch len(matches) {
	case 0:
		return "", vcserr.New(vcserr.NotFound, prefix, "revision not found")
	case 1:
		for id := range matches {
			return id, nil
		}
	}
	return "", fmt.Errorf("%s: short object id is ambiguous (%d candidates)", prefix, len(matches))
}

func isHex(s string) bool {
	if len(s)%2 == 1 {
		s += "0"
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
