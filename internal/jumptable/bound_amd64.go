package jumptable

import (
	"jtcore/internal/ir"
	"jtcore/internal/slicer"
	"jtcore/internal/tree"
)

type cmpOperator int

const (
	opNone cmpOperator = iota
	opGT
	opGE
	opLT
	opLE
	opEQ
	opNE
	opSign
)

var amd64Operators = map[string]cmpOperator{
	"ja":  opGT,
	"jae": opGE,
	"jb":  opLT,
	"jbe": opLE,
	"jg":  opGT,
	"jge": opGE,
	"jl":  opLT,
	"jle": opLE,
	"je":  opEQ,
	"jne": opNE,
	"js":  opSign,
}

// flagsTree returns whichever flags register cs's defining state wrote.
// ConditionList states are already normalized by the slicer to be the
// state that produced the comparison, not the branch that consumes it.
func flagsTree(s *slicer.State) (tree.Tree, bool) {
	for _, fr := range []ir.RegisterID{ir.EFLAGS, ir.NZCV, ir.ONETIMENZCV} {
		if t, ok := s.RegDef[fr]; ok {
			return t, true
		}
	}
	return tree.Zero, false
}

func flipOperator(op cmpOperator) cmpOperator {
	switch op {
	case opGT:
		return opLE
	case opGE:
		return opLT
	case opLT:
		return opGE
	case opLE:
		return opGT
	case opEQ:
		return opNE
	case opNE:
		return opEQ
	default:
		return op
	}
}

// ParseBoundAMD64 recovers the bound from a backward slice's ConditionList
// (engine A), per the variable-length ISA's compare-then-branch idiom: each
// condition state's flags tree normalizes to a Comparison with a constant
// on one side, the branch mnemonic gives the operator, and the operator
// flips if the slice followed the fall-through edge rather than the taken
// one. indexExpr is the table-index tree the descriptor is building
// around; only a condition whose non-constant side equals it can bound it.
func ParseBoundAMD64(a *tree.Arena, conditions []slicer.ConditionState, indexExpr tree.Tree) (BoundResult, bool) {
	for _, cs := range conditions {
		flags, ok := flagsTree(cs.State)
		if !ok || a.Kind(flags) != tree.KindComparison {
			continue
		}

		op, ok := amd64Operators[cs.Mnemonic]
		if !ok {
			continue
		}
		if op == opSign {
			return BoundResult{}, false
		}

		left, right := a.Left(flags), a.Right(flags)
		nonConst := left
		constSide := right
		if a.Kind(right) != tree.KindConstant && a.Kind(left) == tree.KindConstant {
			nonConst, constSide = right, left
			op = flipOperator(op)
		}
		if a.Kind(constSide) != tree.KindConstant {
			continue
		}

		if !cs.JumpTaken {
			op = flipOperator(op)
		}

		if nonConst != indexExpr {
			continue
		}

		b := a.Value(constSide)
		switch op {
		case opLE:
			return BoundResult{Bound: b, Entries: b + 1, Mnemonic: cs.Mnemonic}, true
		case opLT:
			return BoundResult{Bound: b - 1, Entries: b, Mnemonic: cs.Mnemonic}, true
		}
	}
	return BoundResult{}, false
}
