// Package repopath turns filesystem paths, including paths whose tail no
// longer exists on disk, into paths relative to a repository's work tree.
package repopath

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rybkr/gitpast/internal/gitcore"
	"github.com/rybkr/gitpast/internal/vcserr"
)

// Canonicalize returns path relative to repoRoot, with symlinks in the
// existing part of path resolved and "." and ".." removed from the part that
// does not exist anymore.
func Canonicalize(repoRoot, path string) (string, error) {
	return CanonicalizeWithLogger(repoRoot, path, slog.Default())
}

// CanonicalizeWithLogger is Canonicalize with an explicit logger.
func CanonicalizeWithLogger(repoRoot, path string, log *slog.Logger) (string, error) {
	rootInfo, err := os.Stat(repoRoot)
	if err != nil {
		return "", vcserr.Wrap(vcserr.NotADirectory, repoRoot, err)
	}
	if !rootInfo.IsDir() {
		return "", vcserr.New(vcserr.NotADirectory, repoRoot, "not a directory")
	}

	abs, err := absolute(path)
	if err != nil {
		return "", vcserr.Wrap(vcserr.CannotResolve, path, err)
	}

	live, tail, err := split(abs, log)
	if err != nil {
		return "", vcserr.Wrap(vcserr.CannotResolve, path, err)
	}

	log.Log(context.Background(), gitcore.LevelTrace, "input tail", "tail", tail)
	tail, err = Normalize(tail)
	if err != nil {
		return "", vcserr.New(vcserr.CannotClimb, path, "")
	}
	log.Log(context.Background(), gitcore.LevelTrace, "output tail", "tail", tail)

	resolved, err := filepath.EvalSymlinks(live)
	if err != nil {
		return "", vcserr.Wrap(vcserr.CannotResolve, live, err)
	}
	log.Log(context.Background(), gitcore.LevelTrace, "realpath", "path", live, "resolved", resolved)

	full := resolved
	if tail != "" {
		full = filepath.Join(resolved, tail)
	}
	log.Debug("full object path", "path", full)

	// A symlink in the live part may lead anywhere, possibly out of every
	// repository.
	if _, ok := gitcore.LocateWithLogger(full, log); !ok {
		return "", vcserr.New(vcserr.OutsideRepository, full, "outside repository")
	}

	rel, ok := relativeTo(rootInfo, full, log)
	if !ok {
		return "", vcserr.Errorf(vcserr.DivergentPaths, full, "divergent paths: repository %s", repoRoot)
	}
	log.Debug("path in repo", "path", rel)
	return rel, nil
}

// Split separates an absolute path into its longest prefix that exists on
// disk and the remaining dead tail.
func Split(path string) (live, tail string, err error) {
	abs, err := absolute(path)
	if err != nil {
		return "", "", vcserr.Wrap(vcserr.CannotResolve, path, err)
	}
	live, tail, err = split(abs, slog.Default())
	if err != nil {
		return "", "", vcserr.Wrap(vcserr.CannotResolve, path, err)
	}
	return live, tail, nil
}

func split(abs string, log *slog.Logger) (string, string, error) {
	live, tail := abs, ""
	for {
		log.Log(context.Background(), gitcore.LevelTrace, "probing", "path", live, "tail", tail)
		if _, err := os.Stat(live); err == nil {
			return live, tail, nil
		} else if live == "/" {
			return "", "", err
		}

		slash := strings.LastIndexByte(live, '/')
		if tail == "" {
			tail = live[slash+1:]
		} else {
			tail = live[slash+1:] + "/" + tail
		}
		live = live[:slash]
		if live == "" {
			live = "/"
		}
	}
}

// Normalize removes "." and ".." segments from a slash-separated relative
// path without consulting the filesystem. A ".." with nothing left to cancel
// fails with CannotClimb.
func Normalize(tail string) (string, error) {
	var out []string
	for _, segment := range strings.Split(tail, "/") {
		switch segment {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return "", vcserr.New(vcserr.CannotClimb, tail, "can't climb out of dead path")
			}
			out = out[:len(out)-1]
		default:
			out = append(out, segment)
		}
	}
	return strings.Join(out, "/"), nil
}

// relativeTo walks up from full until a prefix is the same file as root and
// returns what was cut off.
func relativeTo(root os.FileInfo, full string, log *slog.Logger) (string, bool) {
	prefix, tail := full, ""
	for {
		log.Log(context.Background(), gitcore.LevelTrace, "trying", "path", prefix, "tail", tail)
		if info, err := os.Stat(prefix); err == nil && os.SameFile(info, root) {
			return tail, true
		}
		if prefix == "/" {
			return "", false
		}

		slash := strings.LastIndexByte(prefix, '/')
		if slash < 0 {
			return "", false
		}
		if tail == "" {
			tail = prefix[slash+1:]
		} else {
			tail = prefix[slash+1:] + "/" + tail
		}
		prefix = prefix[:slash]
		if prefix == "" {
			prefix = "/"
		}
	}
}

// absolute prefixes relative paths with the working directory without
// cleaning them: ".." must stay in place until it is known which part of the
// path is dead.
func absolute(path string) (string, error) {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		path = strings.TrimSuffix(filepath.ToSlash(cwd), "/") + "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path, nil
}
