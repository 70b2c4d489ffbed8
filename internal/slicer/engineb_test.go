package slicer

import (
	"testing"

	"jtcore/internal/cfg"
	"jtcore/internal/ir"
	"jtcore/internal/tree"
)

func straightLineArgFunc() *ir.Function {
	const x0, x1, x2 ir.RegisterID = 0, 1, 2
	insts := []ir.Instruction{
		{
			Address: 0x1000, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "MOV", Operands: []ir.Operand{
				{Kind: ir.OperandReg, Reg: x1}, {Kind: ir.OperandReg, Reg: x0},
			}},
			Semantic: ir.Semantic{Kind: ir.Move},
		},
		{
			Address: 0x1004, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "ADD", Operands: []ir.Operand{
				{Kind: ir.OperandReg, Reg: x2}, {Kind: ir.OperandReg, Reg: x1}, {Kind: ir.OperandReg, Reg: x0},
			}},
			Semantic: ir.Semantic{Kind: ir.Arithmetic},
		},
		{
			Address: 0x1008, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "BR", Operands: []ir.Operand{{Kind: ir.OperandReg, Reg: x2}}},
			Semantic: ir.Semantic{Kind: ir.IndirectJump, TargetRegister: x2},
		},
	}
	return &ir.Function{Name: "argf", Arch: ir.ARM64, Blocks: []ir.Block{{Name: "entry", Instructions: insts}}}
}

func TestAnalyzeSeedsLiveInSentinelOnce(t *testing.T) {
	a := tree.NewArena()
	const x0 ir.RegisterID = 0
	g := cfg.Build(straightLineArgFunc())
	f := Analyze(a, ir.ARM64, g)

	s0 := f.StateAt(0)
	refs0 := s0.RegRef[x0]
	if len(refs0) == 0 {
		t.Fatalf("MOV x1,x0 has no RegRef[x0] entry")
	}
	if !IsLiveIn(refs0[0]) {
		t.Fatalf("x0 is never locally written, its definer should be the live-in sentinel")
	}

	s1 := f.StateAt(1)
	refs1 := s1.RegRef[x0]
	if len(refs1) == 0 {
		t.Fatalf("ADD x2,x1,x0 has no RegRef[x0] entry")
	}
	if refs1[0] != refs0[0] {
		t.Fatalf("two separate readers of the same live-in register got different sentinels: %v != %v", refs1[0], refs0[0])
	}
}

func TestAnalyzeJumpReachesItsDefinerViaRegRef(t *testing.T) {
	a := tree.NewArena()
	const x2 ir.RegisterID = 2
	g := cfg.Build(straightLineArgFunc())
	f := Analyze(a, ir.ARM64, g)

	jumpState := f.StateAt(2)
	addState := f.StateAt(1)

	refs := jumpState.RegRef[x2]
	if len(refs) != 1 || refs[0] != addState {
		t.Fatalf("indirect jump's RegRef[x2] = %v, want exactly [the ADD's state]", refs)
	}

	target, ok := jumpState.RegTree[x2]
	if !ok {
		t.Fatalf("jump state has no RegTree[x2]")
	}
	const x0, x1 ir.RegisterID = 0, 1
	want := a.Addition(a.PhysicalRegister(x1), a.PhysicalRegister(x0))
	if target != want {
		t.Fatalf("RegTree[x2] at the jump = %v, want Addition(x1,x0) = %v", target, want)
	}
}

func TestAnalyzeIndirectJumpDefinesNothing(t *testing.T) {
	a := tree.NewArena()
	g := cfg.Build(straightLineArgFunc())
	f := Analyze(a, ir.ARM64, g)
	jumpState := f.StateAt(2)
	if len(jumpState.RegDef) != 0 {
		t.Fatalf("indirect jump's own RegDef is non-empty: %v", jumpState.RegDef)
	}
}

func TestAnalyzeLiveInSentinelsAreFreshPerCall(t *testing.T) {
	a := tree.NewArena()
	const x0 ir.RegisterID = 0
	g1 := cfg.Build(straightLineArgFunc())
	g2 := cfg.Build(straightLineArgFunc())

	f1 := Analyze(a, ir.ARM64, g1)
	f2 := Analyze(a, ir.ARM64, g2)

	s1 := f1.StateAt(0).RegRef[x0][0]
	s2 := f2.StateAt(0).RegRef[x0][0]
	if s1 == s2 {
		t.Fatalf("two independent Analyze calls shared a live-in sentinel")
	}
}

func TestAnalyzeTerminatesAndFillsEveryStateAcrossALoop(t *testing.T) {
	a := tree.NewArena()
	insts := []ir.Instruction{
		{
			Address: 0x3000, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "MOV", Operands: []ir.Operand{
				{Kind: ir.OperandReg, Reg: 1}, {Kind: ir.OperandReg, Reg: 0},
			}},
			Semantic: ir.Semantic{Kind: ir.Move},
		},
		{
			Address: 0x3004, Raw: []byte{0, 0, 0, 0},
			Assembly: ir.Assembly{Mnemonic: "CMP", Operands: []ir.Operand{
				{Kind: ir.OperandReg, Reg: 1}, {Kind: ir.OperandImm, Imm: 10},
			}},
			Semantic: ir.Semantic{Kind: ir.Compare},
		},
		{
			Address: 0x3008, Raw: []byte{0, 0, 0, 0},
			Semantic: ir.Semantic{Kind: ir.ControlFlowConditional, Mnemonic: "b.lt", BranchTarget: 0x3004},
		},
	}
	fn := &ir.Function{Name: "loop", Arch: ir.ARM64, Blocks: []ir.Block{{Name: "entry", Instructions: insts}}}
	g := cfg.Build(fn)

	f := Analyze(a, ir.ARM64, g)
	for i := range g.Insts {
		if f.StateAt(i) == nil {
			t.Fatalf("state %d was never populated", i)
		}
	}
}
