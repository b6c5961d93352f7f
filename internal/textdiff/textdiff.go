// Package textdiff compares the line content of two file revisions.
package textdiff

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/rybkr/gitpast/internal/vcsfile"
)

// Side is one input of a comparison.
type Side struct {
	Name  string
	Lines []string
}

// FromFile collects the lines of an opened file, each terminated by '\n'.
func FromFile(f *vcsfile.File) Side {
	return Side{Name: Label(f), Lines: Lines(f.Data())}
}

// Label names a file the way it was asked for, "rev:path" for history.
func Label(f *vcsfile.File) string {
	if f.InRepository() && f.Revision != "" {
		return f.Revision + ":" + f.Name
	}
	return f.Name
}

// Lines splits data into '\n'-terminated lines.
func Lines(data []byte) []string {
	var lines []string
	vcsfile.ForEachLine(data, func(_ int, line string) bool {
		lines = append(lines, line+"\n")
		return true
	})
	return lines
}

// Unified renders a unified diff with context lines around each hunk. Equal
// inputs give an empty string.
func Unified(a, b Side, context int) (string, error) {
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a.Lines,
		B:        b.Lines,
		FromFile: a.Name,
		ToFile:   b.Name,
		Context:  context,
	})
	if err != nil {
		return "", fmt.Errorf("diffing %s and %s: %w", a.Name, b.Name, err)
	}
	return out, nil
}

// Stat counts changed lines.
type Stat struct {
	Added   int
	Removed int
}

func (s Stat) String() string {
	return fmt.Sprintf("+%d -%d", s.Added, s.Removed)
}

// Count tallies insertions and deletions between a and b.
func Count(a, b []string) Stat {
	var s Stat
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'd':
			s.Removed += op.I2 - op.I1
		case 'i':
			s.Added += op.J2 - op.J1
		case 'r':
			s.Removed += op.I2 - op.I1
			s.Added += op.J2 - op.J1
		}
	}
	return s
}
