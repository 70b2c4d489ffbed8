package ir

import (
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

// Reference decoding for the fixed-width ISA, built on arm64asm.Decode the
// same way the disassembler this package generalizes decodes its own
// instruction stream. Most operands come straight off arm64asm's typed Args:
// registers, branch targets (PCRel), and bare immediates (Imm) are exported
// fields. A few encodings — the shift-and-immediate pair behind ADD/SUBS's
// immediate form, MOVZ's shifted 16-bit immediate, and a base+offset memory
// reference — wrap their numeric fields in ImmShift/MemImmediate, which
// arm64asm deliberately keeps unexported; those are recovered by parsing the
// argument's own String() text, which the library guarantees is a decimal or
// "#0x.."-prefixed literal, rather than re-deriving the bit layout ourselves.
func extractReg(raw uint32, shift uint) RegisterID {
	return RegisterID((raw >> shift) & 0x1F)
}

// regIndex maps an arm64asm register argument to the flat 0-31 index the
// rest of the package uses, matching the raw Rd/Rn/Rm bit field regardless
// of whether the instruction read it as a 32-bit or 64-bit name.
func regIndex(r arm64asm.Reg) RegisterID {
	switch {
	case r >= arm64asm.X0 && r <= arm64asm.XZR:
		return RegisterID(r - arm64asm.X0)
	case r >= arm64asm.W0 && r <= arm64asm.WZR:
		return RegisterID(r - arm64asm.W0)
	default:
		return RegisterID(r) & 0x1F
	}
}

func regSPIndex(r arm64asm.RegSP) RegisterID {
	return regIndex(arm64asm.Reg(r))
}

// argRegIndex reads a register index out of an arm64asm.Arg that may be
// either a plain Reg or a RegSP, as ADD/ADDS's destination and source can be
// either depending on the exact encoding.
func argRegIndex(a arm64asm.Arg) RegisterID {
	switch r := a.(type) {
	case arm64asm.Reg:
		return regIndex(r)
	case arm64asm.RegSP:
		return regSPIndex(r)
	default:
		return NoRegister
	}
}

// parseImmShiftText recovers the immediate and shift amount arm64asm packs
// into an unexported ImmShift, whose String() renders as "#0x4" or
// "#0x4, LSL #12"/"#0x4, MSL #12".
func parseImmShiftText(s string) (imm int64, shift int64) {
	parts := strings.SplitN(s, ",", 2)
	imm, _ = strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(parts[0]), "#"), 0, 64)
	if len(parts) != 2 {
		return imm, 0
	}
	fields := strings.Fields(parts[1])
	if len(fields) != 2 {
		return imm, 0
	}
	shift, _ = strconv.ParseInt(strings.TrimPrefix(fields[1], "#"), 10, 64)
	return imm, shift
}

// parseMemImmDisp recovers the displacement arm64asm packs into an
// unexported MemImmediate, whose String() renders the offset as "[Xn,#16]"
// (AddrOffset mode, the only mode this decoder's patterns need).
func parseMemImmDisp(s string) int64 {
	i := strings.Index(s, "#")
	if i < 0 {
		return 0
	}
	s = strings.TrimSuffix(s[i+1:], "]")
	s = strings.TrimSuffix(s, "!")
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// DecodeARM64 decodes one fixed-width-ISA instruction from its raw 32-bit
// encoding at the given address, classifying it by Semantic and producing
// normalized Operands. It recognizes the subset of the instruction set the
// jump-table detector's pattern library depends on: branches, compares,
// compare-and-branch, LDR loads, ADRP and MOVZ moves, and the arithmetic
// idioms used to compute jump-table addresses. Stores and register-to-
// register moves decode as UNKNOWN.
func DecodeARM64(raw uint32, addr uint64) Instruction {
	inst := Instruction{Address: addr, Raw: encode32(raw)}

	parsed, err := arm64asm.Decode(inst.Raw)
	if err != nil {
		inst.Assembly = Assembly{Mnemonic: "UNKNOWN"}
		inst.Semantic = Semantic{Kind: Other}
		inst.Assembly.Mode = GetMode(ARM64, inst.Assembly.Operands)
		return inst
	}

	switch parsed.Op {
	case arm64asm.RET:
		rn := regIndex(parsed.Args[0].(arm64asm.Reg))
		inst.Assembly = Assembly{Mnemonic: "RET", Operands: []Operand{{Kind: OperandReg, Reg: rn}}}
		inst.Semantic = Semantic{Kind: IndirectJump, TargetRegister: rn}

	case arm64asm.BR:
		rn := regIndex(parsed.Args[0].(arm64asm.Reg))
		inst.Assembly = Assembly{Mnemonic: "BR", Operands: []Operand{{Kind: OperandReg, Reg: rn}}}
		inst.Semantic = Semantic{Kind: IndirectJump, TargetRegister: rn}

	case arm64asm.BLR:
		rn := regIndex(parsed.Args[0].(arm64asm.Reg))
		inst.Assembly = Assembly{Mnemonic: "BLR", Operands: []Operand{{Kind: OperandReg, Reg: rn}}}
		inst.Semantic = Semantic{Kind: Other}

	case arm64asm.BL:
		off := int64(parsed.Args[0].(arm64asm.PCRel))
		target := uint64(int64(addr) + off)
		inst.Assembly = Assembly{Mnemonic: "BL", Operands: []Operand{{Kind: OperandImm, Imm: int64(target)}}}
		inst.Semantic = Semantic{Kind: Other, Mnemonic: "bl", BranchTarget: target}

	case arm64asm.B:
		if cond, ok := parsed.Args[0].(arm64asm.Cond); ok {
			off := int64(parsed.Args[1].(arm64asm.PCRel))
			target := uint64(int64(addr) + off)
			name := strings.ToLower(cond.String())
			inst.Assembly = Assembly{Mnemonic: "B." + name, Operands: []Operand{{Kind: OperandImm, Imm: int64(target)}}}
			inst.Semantic = Semantic{Kind: ControlFlowConditional, Mnemonic: "b." + name, BranchTarget: target}
		} else {
			off := int64(parsed.Args[0].(arm64asm.PCRel))
			target := uint64(int64(addr) + off)
			inst.Assembly = Assembly{Mnemonic: "B", Operands: []Operand{{Kind: OperandImm, Imm: int64(target)}}}
			inst.Semantic = Semantic{Kind: DirectBranch, Mnemonic: "b", BranchTarget: target}
		}

	case arm64asm.CBZ, arm64asm.CBNZ:
		rt := regIndex(parsed.Args[0].(arm64asm.Reg))
		off := int64(parsed.Args[1].(arm64asm.PCRel))
		target := uint64(int64(addr) + off)
		mnem := "CBZ"
		if parsed.Op == arm64asm.CBNZ {
			mnem = "CBNZ"
		}
		inst.Assembly = Assembly{Mnemonic: mnem, Operands: []Operand{
			{Kind: OperandReg, Reg: rt},
			{Kind: OperandImm, Imm: int64(target)},
		}}
		inst.Semantic = Semantic{Kind: ControlFlowConditional, Mnemonic: mnem, BranchTarget: target, TargetRegister: rt}

	case arm64asm.SUBS:
		rd := regIndex(parsed.Args[0].(arm64asm.Reg))
		rn := regSPIndex(parsed.Args[1].(arm64asm.RegSP))
		imm12, shift := parseImmShiftText(parsed.Args[2].String())
		imm12 <<= shift
		if rd == 31 {
			inst.Assembly = Assembly{Mnemonic: "CMP", Operands: []Operand{
				{Kind: OperandReg, Reg: rn},
				{Kind: OperandImm, Imm: imm12},
			}}
			inst.Semantic = Semantic{Kind: Compare}
		} else {
			inst.Assembly = Assembly{Mnemonic: "SUBS", Operands: []Operand{
				{Kind: OperandReg, Reg: rd}, {Kind: OperandReg, Reg: rn}, {Kind: OperandImm, Imm: imm12},
			}}
			inst.Semantic = Semantic{Kind: Arithmetic}
		}

	case arm64asm.ADD, arm64asm.ADDS:
		// The shifted-register encoding (Rd, Rn, Rm, #amount) packs its shift
		// operand in an unexported RegExtshiftAmount; the jump-table address
		// idioms this decoder exists for never rely on that shift, so the Rm
		// register is read directly off the raw encoding (bits 16-20, the
		// same field across every GP ADD/ADDS form) rather than parsed out
		// of text meant for display.
		rd := argRegIndex(parsed.Args[0])
		rn := argRegIndex(parsed.Args[1])
		switch parsed.Args[2].(type) {
		case arm64asm.ImmShift:
			imm12, shift := parseImmShiftText(parsed.Args[2].String())
			imm12 <<= shift
			inst.Assembly = Assembly{Mnemonic: "ADD", Operands: []Operand{
				{Kind: OperandReg, Reg: rd}, {Kind: OperandReg, Reg: rn}, {Kind: OperandImm, Imm: imm12},
			}}
		default:
			rm := extractReg(raw, 16)
			inst.Assembly = Assembly{Mnemonic: "ADD", Operands: []Operand{
				{Kind: OperandReg, Reg: rd}, {Kind: OperandReg, Reg: rn}, {Kind: OperandReg, Reg: rm},
			}}
		}
		inst.Semantic = Semantic{Kind: Arithmetic}

	case arm64asm.ADRP:
		rd := regIndex(parsed.Args[0].(arm64asm.Reg))
		off := int64(parsed.Args[1].(arm64asm.PCRel))
		target := (addr &^ 0xFFF) + uint64(off)
		inst.Assembly = Assembly{Mnemonic: "ADRP", Operands: []Operand{
			{Kind: OperandReg, Reg: rd}, {Kind: OperandImm, Imm: int64(target)},
		}}
		inst.Semantic = Semantic{Kind: Move}

	case arm64asm.LDR:
		rt := regIndex(parsed.Args[0].(arm64asm.Reg))
		switch mem := parsed.Args[1].(type) {
		case arm64asm.MemExtend:
			inst.Assembly = Assembly{Mnemonic: "LDR", Operands: []Operand{
				{Kind: OperandReg, Reg: rt},
				{Kind: OperandMem, Mem: MemOperand{Base: regSPIndex(mem.Base), Index: regIndex(mem.Index), Scale: 1 << int(mem.Amount)}},
			}}
			inst.Semantic = Semantic{Kind: Memory}
		case arm64asm.MemImmediate:
			disp := parseMemImmDisp(mem.String())
			inst.Assembly = Assembly{Mnemonic: "LDR", Operands: []Operand{
				{Kind: OperandReg, Reg: rt},
				{Kind: OperandMem, Mem: MemOperand{Base: regSPIndex(mem.Base), Index: NoRegister, Disp: disp}},
			}}
			inst.Semantic = Semantic{Kind: Memory}
		default:
			inst.Assembly = Assembly{Mnemonic: "UNKNOWN"}
			inst.Semantic = Semantic{Kind: Other}
		}

	case arm64asm.MOVZ:
		rd := regIndex(parsed.Args[0].(arm64asm.Reg))
		imm16, shift := parseImmShiftText(parsed.Args[1].String())
		mnem, operands := NormalizeOperands(ARM64, "MOVZ", []Operand{
			{Kind: OperandReg, Reg: rd},
			{Kind: OperandImm, Imm: imm16 << uint(shift)},
		})
		inst.Assembly = Assembly{Mnemonic: mnem, Operands: operands}
		inst.Semantic = Semantic{Kind: Move}

	case arm64asm.UBFM:
		rd := regIndex(parsed.Args[0].(arm64asm.Reg))
		rn := regIndex(parsed.Args[1].(arm64asm.Reg))
		immr := int64(parsed.Args[2].(arm64asm.Imm).Imm)
		imms := int64(parsed.Args[3].(arm64asm.Imm).Imm)
		width := int64(32)
		if raw&0x80000000 != 0 {
			width = 64
		}
		shift := (width - immr) & (width - 1)
		if imms == width-1 && shift != 0 {
			inst.Assembly = Assembly{Mnemonic: "LSL", Operands: []Operand{
				{Kind: OperandReg, Reg: rd}, {Kind: OperandReg, Reg: rn}, {Kind: OperandImm, Imm: shift},
			}}
		} else {
			inst.Assembly = Assembly{Mnemonic: "UBFM", Operands: []Operand{
				{Kind: OperandReg, Reg: rd}, {Kind: OperandReg, Reg: rn},
				{Kind: OperandImm, Imm: immr}, {Kind: OperandImm, Imm: imms},
			}}
		}
		inst.Semantic = Semantic{Kind: Arithmetic}

	default:
		inst.Assembly = Assembly{Mnemonic: "UNKNOWN"}
		inst.Semantic = Semantic{Kind: Other}
	}

	inst.Assembly.Mode = GetMode(ARM64, inst.Assembly.Operands)
	return inst
}

func encode32(raw uint32) []byte {
	return []byte{byte(raw), byte(raw >> 8), byte(raw >> 16), byte(raw >> 24)}
}
