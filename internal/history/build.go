package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rybkr/gitpast/internal/gitcore"
)

// Source is the part of a repository the builder reads.
// *gitcore.Repository implements it.
type Source interface {
	Revision(rev string) (*gitcore.Commit, error)
	ReadCommit(id gitcore.Hash) (*gitcore.Commit, error)
	IsDirty() (bool, error)
}

// Options tune Build. The zero value builds the full history of HEAD with a
// node for uncommitted changes when the work tree is dirty.
type Options struct {
	// Revision to start from; HEAD when empty. Uncommitted changes belong
	// to HEAD, so any other revision never gets the uncommitted node.
	Revision string
	// Limit caps the number of commit nodes. 0 means no limit.
	Limit int
	// Exact looks parents up in an index of every node instead of searching
	// the branches explored so far.
	Exact bool
	// SkipDirty never adds the uncommitted-changes node.
	SkipDirty bool
	Log       *slog.Logger
}

// frame is one pending node of the depth-first walk.
type frame struct {
	node     NodeID
	parents  []gitcore.Hash
	next     int
	branches []NodeID
}

type builder struct {
	src     Source
	opts    Options
	log     *slog.Logger
	graph   *Graph
	index   map[gitcore.Hash]NodeID
	commits int
}

// Build walks the ancestry of the start revision depth first, parents in
// order. A parent already reached through one of the branches opened so far
// is linked instead of being added again, so merges join their branch lines.
// Every new side branch gets the next display column.
//
// The returned root is the start commit's node, or the uncommitted-changes
// node in front of it.
func Build(src Source, opts Options) (*Graph, NodeID, error) {
	b := &builder{
		src:   src,
		opts:  opts,
		log:   opts.Log,
		graph: &Graph{},
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if opts.Exact {
		b.index = make(map[gitcore.Hash]NodeID)
	}

	rev := opts.Revision
	if rev == "" {
		rev = gitcore.DefaultRevision
	}
	head, err := src.Revision(rev)
	if err != nil {
		return nil, 0, err
	}

	root := b.newNode(head, 0)
	if err := b.walk(root); err != nil {
		return nil, 0, err
	}
	b.log.Debug("history built", "revision", rev, "nodes", b.graph.Len())

	if opts.SkipDirty || rev != gitcore.DefaultRevision {
		return b.graph, root.ID, nil
	}
	dirty, err := src.IsDirty()
	if err != nil {
		return nil, 0, fmt.Errorf("checking work tree: %w", err)
	}
	if !dirty {
		return b.graph, root.ID, nil
	}

	uncommitted := b.graph.add(Uncommitted, nil, 0)
	b.graph.link(uncommitted.ID, root.ID)
	return b.graph, uncommitted.ID, nil
}

func (b *builder) newNode(commit *gitcore.Commit, branch int) *Node {
	n := b.graph.add(Real, commit, branch)
	b.commits++
	if b.index != nil {
		b.index[commit.ID] = n.ID
	}
	return n
}

// walk expands root and everything below it. Each frame carries the
// branches its node may merge into: the siblings created before it at every
// level above, but not the node itself.
func (b *builder) walk(root *Node) error {
	stack := []*frame{{node: root.ID, parents: root.Commit.Parents}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.parents) {
			stack = stack[:len(stack)-1]
			continue
		}
		parentID := top.parents[top.next]
		top.next++

		if found, ok := b.find(top.branches, parentID); ok {
			b.graph.link(top.node, found)
			continue
		}
		if b.opts.Limit > 0 && b.commits >= b.opts.Limit {
			continue
		}

		commit, err := b.src.ReadCommit(parentID)
		if err != nil {
			return fmt.Errorf("reading parent of %s: %w", b.graph.Node(top.node).ShortID(), err)
		}
		b.log.Log(context.Background(), gitcore.LevelTrace, "commit",
			"id", commit.ShortID(), "branches", len(top.branches), "parents", len(commit.Parents))

		n := b.newNode(commit, len(top.branches))
		b.graph.link(top.node, n.ID)

		inherited := make([]NodeID, len(top.branches))
		copy(inherited, top.branches)
		top.branches = append(top.branches, n.ID)

		stack = append(stack, &frame{node: n.ID, parents: commit.Parents, branches: inherited})
	}
	return nil
}

// find returns the node for id if one exists below any of the branches.
func (b *builder) find(branches []NodeID, id gitcore.Hash) (NodeID, bool) {
	if b.index != nil {
		n, ok := b.index[id]
		return n, ok
	}
	for _, branch := range branches {
		if n, ok := b.findBelow(branch, id); ok {
			return n, true
		}
	}
	return 0, false
}

// findBelow searches the nodes first reached from start, start included.
func (b *builder) findBelow(start NodeID, id gitcore.Hash) (NodeID, bool) {
	pending := []NodeID{start}
	for len(pending) > 0 {
		current := b.graph.Node(pending[len(pending)-1])
		pending = pending[:len(pending)-1]
		if current.Commit.ID == id {
			return current.ID, true
		}
		for i := len(current.Older) - 1; i >= 0; i-- {
			older := b.graph.Node(current.Older[i])
			if older.Newer[0] == current.ID {
				pending = append(pending, older.ID)
			}
		}
	}
	return 0, false
}
