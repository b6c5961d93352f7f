package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rybkr/gitpast/internal/gitcore"
	"github.com/rybkr/gitpast/internal/history"
)

// Info describes the repository being served.
type Info struct {
	Name     string `json:"name"`
	GitDir   string `json:"gitDir"`
	WorkDir  string `json:"workDir"`
	Head     string `json:"head"`
	HeadRef  string `json:"headRef,omitempty"`
	Detached bool   `json:"detached"`
}

// NodeView is a history node as sent to clients. Parents hold the ids of
// the node's older links.
type NodeView struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Short   string   `json:"short,omitempty"`
	Summary string   `json:"summary"`
	Author  string   `json:"author,omitempty"`
	When    string   `json:"when,omitempty"`
	Branch  int      `json:"branch"`
	Parents []string `json:"parents"`
}

// GraphView lists nodes newest first, in history.Iterate order.
type GraphView struct {
	Root  string     `json:"root"`
	Nodes []NodeView `json:"nodes"`
}

// StatusView is the short status of the working tree.
type StatusView struct {
	Dirty   bool     `json:"dirty"`
	Entries []string `json:"entries"`
}

// State is everything served for one look at the repository.
type State struct {
	Info   Info
	Graph  GraphView
	Status StatusView

	graph *history.Graph
	root  history.NodeID
}

const uncommittedID = "uncommitted"

func nodeID(n *history.Node) string {
	if n.Kind != history.Real {
		return uncommittedID
	}
	return string(n.Commit.ID)
}

// NewGraphView flattens g for JSON.
func NewGraphView(g *history.Graph, root history.NodeID) GraphView {
	view := GraphView{Root: nodeID(g.Node(root)), Nodes: make([]NodeView, 0, g.Len())}
	history.Iterate(g, root, func(n *history.Node) bool {
		nv := NodeView{
			ID:      nodeID(n),
			Kind:    n.Kind.String(),
			Short:   n.ShortID(),
			Summary: n.Summary(),
			Branch:  n.Branch,
			Parents: make([]string, 0, len(n.Older)),
		}
		if n.Kind == history.Real {
			nv.Author = n.Commit.Author.Name
			nv.When = n.Commit.When().UTC().Format(time.RFC3339)
		}
		for _, older := range n.Older {
			nv.Parents = append(nv.Parents, nodeID(g.Node(older)))
		}
		view.Nodes = append(view.Nodes, nv)
		return true
	})
	return view
}

// repoRoot is the path that reopens repo.
func repoRoot(repo *gitcore.Repository) string {
	if repo.IsBare() {
		return repo.GitDir()
	}
	return repo.WorkDir()
}

// Collect opens the repository at path afresh, so that moved refs and new
// objects are seen, and gathers its state.
func Collect(path string, opts history.Options, log *slog.Logger) (*State, error) {
	repo, err := gitcore.Open(path)
	if err != nil {
		return nil, err
	}
	repo.SetLogger(log)
	opts.Log = log

	g, root, err := history.Build(repo, opts)
	if err != nil {
		return nil, fmt.Errorf("building history: %w", err)
	}

	status, err := repo.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	sv := StatusView{Dirty: status.IsDirty(), Entries: make([]string, 0, len(status.Entries))}
	for i := range status.Entries {
		sv.Entries = append(sv.Entries, status.Entries[i].String())
	}

	return &State{
		Info: Info{
			Name:     repo.Name(),
			GitDir:   repo.GitDir(),
			WorkDir:  repo.WorkDir(),
			Head:     string(repo.Head()),
			HeadRef:  repo.HeadRef(),
			Detached: repo.HeadDetached(),
		},
		Graph:  NewGraphView(g, root),
		Status: sv,
		graph:  g,
		root:   root,
	}, nil
}
