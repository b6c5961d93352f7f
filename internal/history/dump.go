package history

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Style colours Dump output. The zero value prints plain text.
type Style struct {
	Enabled bool
	ID      lipgloss.Style
	Summary lipgloss.Style
	Dirty   lipgloss.Style
}

// StyleFor returns a coloured style when w is a terminal and a plain one
// otherwise.
func StyleFor(w io.Writer) Style {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return Style{}
	}
	r := lipgloss.NewRenderer(f)
	return Style{
		Enabled: true,
		ID:      r.NewStyle().Foreground(lipgloss.Color("3")),
		Summary: r.NewStyle(),
		Dirty:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (s Style) render(style lipgloss.Style, text string) string {
	if !s.Enabled {
		return text
	}
	return style.Render(text)
}

// Dump writes one line per node in Iterate order: the node indented by two
// spaces per branch column, then the short id and summary. Uncommitted
// changes print as "dirty".
func Dump(w io.Writer, g *Graph, root NodeID, style Style) error {
	bw := bufio.NewWriter(w)
	Iterate(g, root, func(n *Node) bool {
		if n.Kind == Uncommitted {
			bw.WriteString(style.render(style.Dirty, "dirty"))
			bw.WriteByte('\n')
			return true
		}
		bw.WriteString(strings.Repeat("  ", n.Branch))
		bw.WriteString(style.render(style.ID, n.ShortID()))
		bw.WriteString("  ")
		bw.WriteString(style.render(style.Summary, n.Summary()))
		bw.WriteByte('\n')
		return true
	})
	return bw.Flush()
}
