package cfg

import (
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"
)

// ToLattice converts g to a lattice.FuncCFG for rendering or for feeding
// into other lattice-based tooling.
func ToLattice(g *Graph) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: g.Name}
	for _, n := range g.Nodes {
		lb := &lattice.BasicBlock{
			ID:    n.ID,
			Start: n.Start,
			End:   n.End,
			Term:  n.IsTerm,
		}
		for _, e := range n.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: e.NodeID, Cond: e.Cond})
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}

// DumpDOT renders g as Graphviz DOT, for inspecting the graph a jump-table
// detection run derived its control flow from.
func DumpDOT(g *Graph) string {
	cg := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{ToLattice(g)}}
	return render.DOTCFG(cg, g.Name)
}
