// Package slicer builds the symbolic register/memory state that the
// jump-table detector's pattern library runs against: a backward slicer
// (Engine A) for the variable-length ISA's tight PC-relative idiom, and a
// whole-function forward use-def analysis (Engine B) for the fixed-width
// ISA, where bound recovery has to reach across blocks.
package slicer

import (
	"jtcore/internal/cfg"
	"jtcore/internal/ir"
	"jtcore/internal/tree"
)

// State is the symbolic state produced by visiting one instruction.
type State struct {
	Graph   *cfg.Graph
	NodeID  int
	InstIdx int
	Inst    ir.Instruction

	// RegDef/MemDef hold what this instruction itself wrote: the register
	// (or memory location) and the tree assigned to it. Absent if this
	// instruction does not write that location.
	RegDef map[ir.RegisterID]tree.Tree
	MemDef map[tree.Tree]tree.Tree

	// RegTree/MemTree are the full symbolic snapshot after this
	// instruction: every live register's current tree, and every memory
	// location written so far mapped to its value tree.
	RegTree map[ir.RegisterID]tree.Tree
	MemTree map[tree.Tree]tree.Tree

	// RegRef[r] lists the states whose RegDef[r] is the definition
	// reaching this state's use of r. RegUse[r] is the reverse edge: the
	// states that use this state's RegDef[r].
	RegRef map[ir.RegisterID][]*State
	RegUse map[ir.RegisterID][]*State

	// MemRef[r] lists the states whose MemDef may be loaded through
	// register r holding an address at this state.
	MemRef map[ir.RegisterID][]*State

	// HasJumpTaken/JumpTaken record, for a state associated with a
	// conditional edge traversal, which edge (taken or fall-through) this
	// state belongs to.
	HasJumpTaken bool
	JumpTaken    bool
}

func newState(g *cfg.Graph, nodeID, instIdx int) *State {
	inst := g.Insts[instIdx]
	return &State{
		Graph:   g,
		NodeID:  nodeID,
		InstIdx: instIdx,
		Inst:    inst,
		RegDef:  make(map[ir.RegisterID]tree.Tree),
		MemDef:  make(map[tree.Tree]tree.Tree),
		RegTree: make(map[ir.RegisterID]tree.Tree),
		MemTree: make(map[tree.Tree]tree.Tree),
		RegRef:  make(map[ir.RegisterID][]*State),
		RegUse:  make(map[ir.RegisterID][]*State),
		MemRef:  make(map[ir.RegisterID][]*State),
	}
}

// RegDefTree returns the tree this state's instruction assigned to reg, if
// any.
func (s *State) RegDefTree(reg ir.RegisterID) (tree.Tree, bool) {
	t, ok := s.RegDef[reg]
	return t, ok
}

// ConditionState pairs a State whose instruction is a Compare with the CFG
// edge polarity the slice reached it through. Engine A accumulates these
// as its ConditionList.
type ConditionState struct {
	State     *State
	Mnemonic  string
	JumpTaken bool
}
