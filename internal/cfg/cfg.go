// Package cfg builds and orders control-flow graphs over decoded
// instructions, generalizing the leader/partition/successor construction
// the reference disassembler uses for a single instruction set to work
// uniformly across architectures by reading the already-classified
// Semantic of each instruction instead of re-deriving it from raw bytes.
package cfg

import (
	"sort"

	"jtcore/internal/ir"
)

// Edge is a control-flow successor edge out of a Node.
type Edge struct {
	NodeID int
	Cond   string // "" = unconditional, "T" = taken, "F" = fallthrough/not-taken
}

// Node is a maximal straight-line run of instructions within one Graph.
type Node struct {
	ID      int
	Start   int // index into Graph.Insts, inclusive
	End     int // index into Graph.Insts, exclusive
	Succs   []Edge
	IsEntry bool
	IsTerm  bool // ends in an indirect jump or an unconditional branch leaving the function
}

// Graph is a function's control-flow graph, flattened to one contiguous
// instruction stream across its blocks.
type Graph struct {
	Name  string
	Func  *ir.Function
	Insts []ir.Instruction
	Nodes []Node
}

// Build constructs the control-flow graph of fn using a three-pass
// leader/partition/successor algorithm: find block leaders, partition the
// instruction stream by leader, then compute each block's successor edges
// from its last instruction's Semantic.
func Build(fn *ir.Function) *Graph {
	insts := flatten(fn)
	g := &Graph{Name: fn.Name, Func: fn, Insts: insts}
	if len(insts) == 0 {
		return g
	}

	funcStart := insts[0].Address
	funcEnd := insts[len(insts)-1].Address + 1

	addrToIdx := make(map[uint64]int, len(insts))
	for i, inst := range insts {
		addrToIdx[inst.Address] = i
		if end := inst.Address + uint64(len(inst.Raw)); end > funcEnd {
			funcEnd = end
		}
	}

	leaders := map[int]bool{0: true}
	for i, inst := range insts {
		if !isTerminatorLike(inst) {
			continue
		}
		if i+1 < len(insts) {
			leaders[i+1] = true
		}
		if target, ok := branchTarget(inst); ok && target >= funcStart && target < funcEnd {
			if idx, ok := addrToIdx[target]; ok {
				leaders[idx] = true
			}
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	nodes := make([]Node, len(sorted))
	leaderToNode := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		nodes[i] = Node{ID: i, Start: start, End: end, IsEntry: start == 0}
		leaderToNode[start] = i
	}

	for i := range nodes {
		n := &nodes[i]
		if n.End <= n.Start {
			continue
		}
		last := insts[n.End-1]

		if !isTerminatorLike(last) {
			if next, ok := leaderToNode[n.End]; ok {
				n.Succs = append(n.Succs, Edge{NodeID: next})
			}
			continue
		}

		if last.Semantic.Kind == ir.IndirectJump {
			n.IsTerm = true
			continue
		}

		targetNode := -1
		if target, ok := branchTarget(last); ok && target >= funcStart && target < funcEnd {
			if idx, ok := addrToIdx[target]; ok {
				if nid, ok := leaderToNode[idx]; ok {
					targetNode = nid
				}
			}
		}

		if last.Semantic.Kind == ir.ControlFlowConditional {
			if targetNode >= 0 {
				n.Succs = append(n.Succs, Edge{NodeID: targetNode, Cond: "T"})
			}
			if next, ok := leaderToNode[n.End]; ok {
				n.Succs = append(n.Succs, Edge{NodeID: next, Cond: "F"})
			}
		} else {
			if targetNode >= 0 {
				n.Succs = append(n.Succs, Edge{NodeID: targetNode})
			} else {
				n.IsTerm = true
			}
		}
	}

	g.Nodes = nodes
	return g
}

func flatten(fn *ir.Function) []ir.Instruction {
	var insts []ir.Instruction
	for _, b := range fn.Blocks {
		insts = append(insts, b.Instructions...)
	}
	return insts
}

func isTerminatorLike(inst ir.Instruction) bool {
	switch inst.Semantic.Kind {
	case ir.DirectBranch, ir.ControlFlowConditional, ir.IndirectJump:
		return true
	}
	return false
}

func branchTarget(inst ir.Instruction) (uint64, bool) {
	switch inst.Semantic.Kind {
	case ir.DirectBranch, ir.ControlFlowConditional:
		return inst.Semantic.BranchTarget, true
	}
	return 0, false
}

// NodeAt returns the node containing the instruction at addr, if any.
func (g *Graph) NodeAt(addr uint64) (*Node, int, bool) {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		for idx := n.Start; idx < n.End; idx++ {
			if g.Insts[idx].Address == addr {
				return n, idx, true
			}
		}
	}
	return nil, 0, false
}

// Preds returns the IDs of nodes with an edge into n.
func (g *Graph) Preds(nodeID int) []int {
	var preds []int
	for _, n := range g.Nodes {
		for _, e := range n.Succs {
			if e.NodeID == nodeID {
				preds = append(preds, n.ID)
				break
			}
		}
	}
	return preds
}
