// Package history builds the commit ancestry graph reachable from a
// revision and walks it newest first.
package history

import "github.com/rybkr/gitpast/internal/gitcore"

// NodeID addresses a node in its Graph.
type NodeID int

// Kind tells a commit node from the synthetic node that stands for changes
// in the working tree.
type Kind int

const (
	Real Kind = iota
	Uncommitted
)

func (k Kind) String() string {
	switch k {
	case Real:
		return "commit"
	case Uncommitted:
		return "uncommitted"
	}
	return "unknown"
}

// Node is one vertex of the history graph. Older lists parents in the
// commit's parent order; Newer lists children in the order they were linked,
// so Newer[0] is the child the node was first reached from.
type Node struct {
	ID     NodeID
	Kind   Kind
	Commit *gitcore.Commit // nil unless Kind is Real
	Branch int             // display column, fixed at creation
	Newer  []NodeID
	Older  []NodeID
}

// ShortID returns the abbreviated commit id, or "" for uncommitted changes.
func (n *Node) ShortID() string {
	if n.Kind != Real {
		return ""
	}
	return n.Commit.ShortID()
}

// Summary returns the commit summary line.
func (n *Node) Summary() string {
	if n.Kind != Real {
		return "Uncommitted changes"
	}
	return n.Commit.Summary()
}

// Graph owns every node of one build.
type Graph struct {
	nodes []*Node
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

func (g *Graph) add(kind Kind, commit *gitcore.Commit, branch int) *Node {
	n := &Node{ID: NodeID(len(g.nodes)), Kind: kind, Commit: commit, Branch: branch}
	g.nodes = append(g.nodes, n)
	return n
}

// link records that newer has older as a parent.
func (g *Graph) link(newer, older NodeID) {
	g.nodes[newer].Older = append(g.nodes[newer].Older, older)
	g.nodes[older].Newer = append(g.nodes[older].Newer, newer)
}
