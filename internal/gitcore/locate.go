package gitcore

import (
	"context"
	"log/slog"
	"strings"
)

// LevelTrace is more verbose than slog.LevelDebug, for per-step probing.
const LevelTrace = slog.LevelDebug - 4

// Locate finds the repository holding path. Path components that do not
// exist on the current filesystem (a file or directory that was removed or
// renamed since some revision) are stripped one at a time until a repository
// opens. The boolean is false when no repository is found, which callers
// treat as "an ordinary file", not as an error.
func Locate(path string) (*Repository, bool) {
	return LocateWithLogger(path, slog.Default())
}

// LocateWithLogger is Locate with an explicit logger for the probing trace.
func LocateWithLogger(path string, log *slog.Logger) (*Repository, bool) {
	tmp := path
	for {
		probe := tmp
		if probe == "" {
			probe = "/"
		}
		log.Log(context.Background(), LevelTrace, "trying", "path", probe)

		if repo, err := Open(probe); err == nil {
			repo.SetLogger(log)
			return repo, true
		}

		slash := strings.LastIndexByte(tmp, '/')
		if slash < 0 {
			return nil, false
		}
		tmp = tmp[:slash]
	}
}
