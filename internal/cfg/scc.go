package cfg

// SCCOrder returns the graph's nodes grouped into strongly connected
// components, in topological order of the condensation: every component
// appears before the components it has edges into, so the entry comes
// first and iterating this slice front-to-back visits definitions before
// uses for a forward dataflow fixpoint. Within a component, node order is
// unspecified.
//
// Tarjan's algorithm, run once over the whole graph.
func SCCOrder(g *Graph) [][]int {
	t := &tarjan{
		g:       g,
		index:   make(map[int]int),
		lowlink: make(map[int]int),
		onStack: make(map[int]bool),
	}
	for _, n := range g.Nodes {
		if _, seen := t.index[n.ID]; !seen {
			t.strongConnect(n.ID)
		}
	}
	// Tarjan's strongConnect closes a component only after every
	// component reachable from it has already closed, so raw emission
	// order runs from sinks to sources. Reverse it to get sources (the
	// function entry) first, the order a forward fixpoint needs.
	out := make([][]int, len(t.components))
	for i, comp := range t.components {
		out[len(t.components)-1-i] = comp
	}
	return out
}

type tarjan struct {
	g          *Graph
	counter    int
	index      map[int]int
	lowlink    map[int]int
	onStack    map[int]bool
	stack      []int
	components [][]int
}

func (t *tarjan) strongConnect(v int) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.g.Nodes[v].Succs {
		w := e.NodeID
		if _, seen := t.index[w]; !seen {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var comp []int
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		t.components = append(t.components, comp)
	}
}
