package jumptable

import (
	"testing"

	"jtcore/internal/cfg"
	"jtcore/internal/ir"
	"jtcore/internal/slicer"
	"jtcore/internal/tree"
)

func TestOneTimeCompareDetected(t *testing.T) {
	a := tree.NewArena()
	const w0 ir.RegisterID = 0

	def := freshState()
	cbz := freshState()
	cbz.RegDef[ir.ONETIMENZCV] = a.Comparison(a.PhysicalRegister(w0), a.Constant(0))
	def.RegUse[w0] = []*slicer.State{cbz}

	anchor := freshState()
	anchor.RegRef[w0] = []*slicer.State{def}

	if !oneTimeCompareDetected(anchor, w0) {
		t.Fatalf("oneTimeCompareDetected = false, want true: a CBZ-style reader folds its own comparison")
	}
}

func TestOneTimeCompareDetectedNoMatch(t *testing.T) {
	a := tree.NewArena()
	const w0 ir.RegisterID = 0

	def := freshState()
	mov := freshState()
	mov.RegDef[ir.NZCV] = a.Comparison(a.PhysicalRegister(w0), a.Constant(4))
	def.RegUse[w0] = []*slicer.State{mov}

	anchor := freshState()
	anchor.RegRef[w0] = []*slicer.State{def}

	if oneTimeCompareDetected(anchor, w0) {
		t.Fatalf("oneTimeCompareDetected = true, want false: a persistent-flags compare is not the one-time slot")
	}
}

// a two-level index table: the outer jump's index register is itself
// loaded from a secondary table, `*(base + offset)`, where base was
// computed as `page + 13` a few instructions earlier. The strategy
// recovers 13 as the table's entry count by re-reading that same
// base-plus-constant computation, not by resolving any address.
func TestParseBoundIndexTableIndirection(t *testing.T) {
	a := tree.NewArena()
	const base, offset, idx ir.RegisterID = 2, 1, 0

	anc := freshState()
	anc.RegDef[base] = a.Addition(a.PhysicalRegister(base), a.Constant(13))

	s := freshState()
	s.RegDef[idx] = a.Dereference(a.Addition(a.PhysicalRegister(base), a.PhysicalRegister(offset)), 8)
	s.RegRef[base] = []*slicer.State{anc}

	res, ok := ParseBound(a, s, idx, nil)
	if !ok {
		t.Fatalf("ParseBound did not recover the index-table bound")
	}
	if res.Bound != 12 || res.Entries != 13 {
		t.Fatalf("ParseBound = %+v, want Bound 12, Entries 13", res)
	}
}

// argumentDerivedFunc builds a four-block chain carrying two candidate
// comparisons of the same live-in register w0, one far upstream and one
// immediately before the use:
//
//	cmp  w0, #9
//	b.hi out-of-range     ; block 0, falls through to block 1
//	cmp  w0, #4
//	b.hi out-of-range     ; block 1, falls through to block 2
//	b    block3            ; block 2, unconditional, no use of w0
//	mov  w5, w0             ; block 3, jumpState
//
// w0 is never locally redefined, so it is a live-in value (a parameter).
// directCompareBound's single-edge adjacency check fails for both
// comparisons, since neither compare's block is an immediate predecessor
// of block 3. A reader that just walks w0's uses in whatever order they
// were recorded would reach block 0's compare first and report bound 9;
// the nearest enclosing comparison is block 1's, bound 4, which is what a
// predecessor-ward walk from the use finds first.
func argumentDerivedFunc() *ir.Function {
	const w0, w5 ir.RegisterID = 0, 5
	insts := []ir.Instruction{
		{
			Address: 0x1000, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "CMP", Operands: []ir.Operand{
				{Kind: ir.OperandReg, Reg: w0}, {Kind: ir.OperandImm, Imm: 9},
			}},
			Semantic: ir.Semantic{Kind: ir.Compare},
		},
		{
			Address: 0x1004, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "b.hi"},
			Semantic: ir.Semantic{Kind: ir.ControlFlowConditional, Mnemonic: "b.hi", BranchTarget: 0x9000},
		},
		{
			Address: 0x1008, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "CMP", Operands: []ir.Operand{
				{Kind: ir.OperandReg, Reg: w0}, {Kind: ir.OperandImm, Imm: 4},
			}},
			Semantic: ir.Semantic{Kind: ir.Compare},
		},
		{
			Address: 0x100c, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "b.hi"},
			Semantic: ir.Semantic{Kind: ir.ControlFlowConditional, Mnemonic: "b.hi", BranchTarget: 0x9004},
		},
		{
			Address: 0x1010, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "B"},
			Semantic: ir.Semantic{Kind: ir.DirectBranch, BranchTarget: 0x1014},
		},
		{
			Address: 0x1014, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "MOV", Operands: []ir.Operand{
				{Kind: ir.OperandReg, Reg: w5}, {Kind: ir.OperandReg, Reg: w0},
			}},
			Semantic: ir.Semantic{Kind: ir.Move},
		},
	}
	return &ir.Function{Name: "argchain", Arch: ir.ARM64, Blocks: []ir.Block{{Name: "entry", Instructions: insts}}}
}

func TestParseBoundArgumentDerivedMultiHop(t *testing.T) {
	a := tree.NewArena()
	const w0 ir.RegisterID = 0
	g := cfg.Build(argumentDerivedFunc())

	jumpNode, instIdx, ok := g.NodeAt(0x1014)
	if !ok {
		t.Fatalf("NodeAt(0x1014) did not find the final block")
	}

	fn := slicer.Analyze(a, ir.ARM64, g)
	jumpState := fn.StateAt(instIdx)
	if jumpState.NodeID != jumpNode.ID {
		t.Fatalf("StateAt returned node %d, want %d", jumpState.NodeID, jumpNode.ID)
	}

	// Strategy 1 alone must fail here: neither compare's block is an
	// immediate predecessor of the use.
	if _, ok := directCompareBound(a, jumpState, w0); ok {
		t.Fatalf("directCompareBound succeeded despite the distance; the fixture no longer isolates strategy 5")
	}

	res, ok := ParseBound(a, jumpState, w0, fn)
	if !ok {
		t.Fatalf("ParseBound did not recover the argument-derived bound")
	}
	if res.Bound != 4 || res.Entries != 5 || res.Mnemonic != "b.hi" {
		t.Fatalf("ParseBound = %+v, want Bound 4, Entries 5, Mnemonic b.hi (the nearest comparison, not the bound-9 compare further upstream)", res)
	}
}
