package history

// Iterate visits every node reachable from root, newest first: a node is
// visited only after all nodes in its Newer list have been. Parents are
// taken in order, depth first, so a mainline is listed before the branches
// merged into it. Iterate returns false if visit stopped the walk.
func Iterate(g *Graph, root NodeID, visit func(*Node) bool) bool {
	type step struct {
		node NodeID
		next int
	}

	seen := make([]int, g.Len())
	if !visit(g.Node(root)) {
		return false
	}
	stack := []step{{node: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		current := g.Node(top.node)
		if top.next == len(current.Older) {
			stack = stack[:len(stack)-1]
			continue
		}
		older := g.Node(current.Older[top.next])
		top.next++

		seen[older.ID]++
		if seen[older.ID] != len(older.Newer) {
			continue
		}
		if !visit(older) {
			return false
		}
		stack = append(stack, step{node: older.ID})
	}
	return true
}
