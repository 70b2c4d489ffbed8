package cfg

// ReverseReversePostorder returns node IDs starting at from and walking
// backward through predecessor edges in postorder, reversed: from itself
// comes first, then its nearest predecessor, then predecessors further
// back, ending at a node with no predecessors (typically the function's
// entry). Nodes not reachable backward from from are not included.
//
// Bound-recovery strategy 5 walks this order looking for the first block
// whose terminator compares the function's argument, so the nearest
// enclosing comparison is found before any comparison further up the call
// chain, grounded on original_source's ReverseReversePostorder as used by
// getBoundFromArgument.
func ReverseReversePostorder(g *Graph, from int) []int {
	visited := make(map[int]bool)
	var post []int
	var visit func(int)
	visit = func(v int) {
		visited[v] = true
		for _, p := range g.Preds(v) {
			if !visited[p] {
				visit(p)
			}
		}
		post = append(post, v)
	}
	visit(from)

	rev := make([]int, len(post))
	for i, v := range post {
		rev[len(post)-1-i] = v
	}
	return rev
}
