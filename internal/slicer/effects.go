package slicer

import (
	"jtcore/internal/ir"
	"jtcore/internal/tree"
)

// Lookup resolves how an instruction's operand names a register. It
// always hands back PhysicalRegister(r): an instruction's own effect is
// one step, expressed in terms of the registers it reads by name, not
// whatever those registers previously held. Resolving what a register
// held earlier is a separate, explicit walk back through RegRef/RegTree
// (see ParseBaseAddress, SearchUpDef) rather than something Effect does
// for its caller — the same one-definition-per-instruction shape
// RegDef/RegTree already expose.
type Lookup func(ir.RegisterID) tree.Tree

func defaultLookup(a *tree.Arena) Lookup {
	return func(r ir.RegisterID) tree.Tree {
		return a.PhysicalRegister(r)
	}
}

func operandWidth(mnemonic string, arch ir.Arch) int {
	switch {
	case hasSuffix(mnemonic, "B"):
		return 1
	case hasSuffix(mnemonic, "H"):
		return 2
	case mnemonic == "MOVSXD":
		return 4
	}
	if arch == ir.ARM64 {
		return 8
	}
	return 8
}

func hasSuffix(s, suf string) bool {
	return len(s) > len(suf) && s[len(s)-len(suf):] == suf
}

func memAddressTree(a *tree.Arena, lookup Lookup, m ir.MemOperand, nextAddr uint64) tree.Tree {
	var addr tree.Tree
	if m.Base == ir.PC {
		addr = a.Addition(a.Address(m.Disp), a.RegisterRIP(int64(nextAddr)))
		return addr
	}
	if m.Base != ir.NoRegister {
		addr = lookup(m.Base)
	}
	if m.Index != ir.NoRegister {
		idx := lookup(m.Index)
		if m.Scale > 1 {
			idx = a.LogicalShiftLeft(idx, a.Constant(scaleShift(m.Scale)))
		}
		if addr.Valid() {
			addr = a.Addition(addr, idx)
		} else {
			addr = idx
		}
	}
	if m.Disp != 0 {
		if addr.Valid() {
			addr = a.Addition(addr, a.Constant(m.Disp))
		} else {
			addr = a.Address(m.Disp)
		}
	}
	return addr
}

// scaleShift converts a hardware addressing-mode scale factor (x86's SIB
// scale, or 1 shifted left by ARM64's register-offset extend amount) to the
// shift count the scale represents. Both ISAs restrict scale to a power of two no wider
// than the pointer size, so this never loses precision.
func scaleShift(scale int) int64 {
	var shift int64
	for s := scale; s > 1; s >>= 1 {
		shift++
	}
	return shift
}

func operandTree(a *tree.Arena, lookup Lookup, op ir.Operand, width int, nextAddr uint64) tree.Tree {
	switch op.Kind {
	case ir.OperandReg:
		return lookup(op.Reg)
	case ir.OperandImm:
		return a.Constant(op.Imm)
	case ir.OperandMem:
		addr := memAddressTree(a, lookup, op.Mem, nextAddr)
		return a.Dereference(addr, width)
	}
	return tree.Zero
}

// ReadRegisters returns the architectural registers inst's operands read,
// including memory-operand base/index registers. Used to link RegRef/
// RegUse edges and to test that canonicalization preserves the read set.
func ReadRegisters(inst ir.Instruction) []ir.RegisterID {
	var regs []ir.RegisterID
	ops := inst.Assembly.Operands
	isDestOnly := func(i int) bool {
		if i != 0 || len(ops) < 2 || ops[0].Kind != ir.OperandReg {
			return false
		}
		switch inst.Semantic.Kind {
		case ir.Move, ir.Memory:
			// A move or load's destination is a pure write: "mov x1, x0"
			// never reads the prior value of x1. A store's first operand is
			// the value being stored, which it reads.
			m := inst.Assembly.Mnemonic
			return m != "STR" && m != "STRB" && m != "STRH"
		case ir.Arithmetic:
			// A three-operand RISC form ("add x1, x2, x3") writes a
			// destination distinct from its sources. A two-operand x86
			// form ("add rax, rcx") folds the destination into its own
			// left operand, so ops[0] is read as well as written.
			return len(ops) == 3
		}
		return false
	}
	for i, op := range ops {
		if isDestOnly(i) {
			continue
		}
		switch op.Kind {
		case ir.OperandReg:
			regs = append(regs, op.Reg)
		case ir.OperandMem:
			if op.Mem.Base != ir.NoRegister && op.Mem.Base != ir.PC {
				regs = append(regs, op.Mem.Base)
			}
			if op.Mem.Index != ir.NoRegister {
				regs = append(regs, op.Mem.Index)
			}
		}
	}
	// A store's destination memory operand's base/index are reads even
	// though the overall operand is the write target.
	if inst.Semantic.Kind == ir.Memory && len(ops) == 2 && ops[1].Kind == ir.OperandMem {
		if ops[1].Mem.Base != ir.NoRegister && ops[1].Mem.Base != ir.PC {
			regs = append(regs, ops[1].Mem.Base)
		}
		if ops[1].Mem.Index != ir.NoRegister {
			regs = append(regs, ops[1].Mem.Index)
		}
	}
	// A conditional branch other than CBZ/CBNZ carries no register
	// operand of its own; it reads whichever flags register the
	// preceding compare defined, and that edge has to be explicit for
	// the ConditionList walk to reach the comparison across instructions.
	mnem := inst.Assembly.Mnemonic
	if inst.Semantic.Kind == ir.ControlFlowConditional && mnem != "CBZ" && mnem != "CBNZ" {
		if len(mnem) >= 2 && (mnem[:2] == "b." || mnem[:2] == "B.") {
			regs = append(regs, ir.NZCV)
		} else {
			regs = append(regs, ir.EFLAGS)
		}
	}
	return regs
}

// WrittenRegisters returns the architectural registers inst defines. It is
// not told the architecture, so for a Compare it lists both EFLAGS and
// NZCV, while Effect defines only the one belonging to the function's Arch.
func WrittenRegisters(inst ir.Instruction) []ir.RegisterID {
	ops := inst.Assembly.Operands
	switch inst.Semantic.Kind {
	case ir.Move, ir.Arithmetic:
		if len(ops) > 0 && ops[0].Kind == ir.OperandReg {
			return []ir.RegisterID{ops[0].Reg}
		}
	case ir.Memory:
		if len(ops) == 2 && ops[0].Kind == ir.OperandReg && ops[1].Kind == ir.OperandMem {
			return []ir.RegisterID{ops[0].Reg}
		}
	case ir.Compare:
		return []ir.RegisterID{ir.EFLAGS, ir.NZCV}
	}
	return nil
}

// Effect applies inst's symbolic effect, returning what it defines: the
// registers it writes (with their new tree) and the memory locations it
// writes (address-tree to value-tree). Every register operand it reads
// renders as that register's own PhysicalRegister placeholder — what the
// register held before this instruction ran is the caller's concern, not
// this function's.
func Effect(a *tree.Arena, arch ir.Arch, inst ir.Instruction) (regDefs map[ir.RegisterID]tree.Tree, memDefs map[tree.Tree]tree.Tree) {
	regDefs = make(map[ir.RegisterID]tree.Tree)
	memDefs = make(map[tree.Tree]tree.Tree)
	lookup := defaultLookup(a)
	nextAddr := inst.Address + uint64(len(inst.Raw))
	ops := inst.Assembly.Operands
	mnem := inst.Assembly.Mnemonic
	width := operandWidth(mnem, arch)

	flagsReg := ir.EFLAGS
	if arch == ir.ARM64 {
		flagsReg = ir.NZCV
	}

	switch inst.Semantic.Kind {
	case ir.Compare:
		if len(ops) == 2 {
			l := operandTree(a, lookup, ops[0], width, nextAddr)
			r := operandTree(a, lookup, ops[1], width, nextAddr)
			regDefs[flagsReg] = a.Comparison(l, r)
		}
		return

	case ir.ControlFlowConditional:
		// CBZ/CBNZ carry their own one-time comparison against zero and
		// define the one-time flags slot rather than the persistent one.
		if mnem == "CBZ" || mnem == "CBNZ" {
			if len(ops) >= 1 {
				l := operandTree(a, lookup, ops[0], width, nextAddr)
				regDefs[ir.ONETIMENZCV] = a.Comparison(l, a.Constant(0))
			}
		}
		return

	case ir.IndirectJump, ir.DirectBranch:
		return

	case ir.Memory:
		if mnem == "LDR" || mnem == "LDRB" || mnem == "LDRH" || mnem == "LDRSB" || mnem == "LDRSH" || mnem == "LDRSW" {
			if len(ops) == 2 && ops[0].Kind == ir.OperandReg {
				regDefs[ops[0].Reg] = operandTree(a, lookup, ops[1], width, nextAddr)
			}
			return
		}
		if mnem == "STR" || mnem == "STRB" || mnem == "STRH" {
			if len(ops) == 2 && ops[1].Kind == ir.OperandMem {
				addr := memAddressTree(a, lookup, ops[1].Mem, nextAddr)
				memDefs[addr] = operandTree(a, lookup, ops[0], width, nextAddr)
			}
			return
		}

	case ir.Move:
		switch mnem {
		case "MOV", "MOVZ":
			if len(ops) == 2 && ops[0].Kind == ir.OperandReg {
				if ops[1].Kind == ir.OperandMem {
					regDefs[ops[0].Reg] = operandTree(a, lookup, ops[1], width, nextAddr)
				} else {
					regDefs[ops[0].Reg] = operandTree(a, lookup, ops[1], width, nextAddr)
				}
			}
		case "MOVSXD", "MOVZX", "MOVSX":
			if len(ops) == 2 && ops[0].Kind == ir.OperandReg {
				regDefs[ops[0].Reg] = operandTree(a, lookup, ops[1], 4, nextAddr)
			}
		case "LEA":
			if len(ops) == 2 && ops[0].Kind == ir.OperandReg && ops[1].Kind == ir.OperandMem {
				regDefs[ops[0].Reg] = memAddressTree(a, lookup, ops[1].Mem, nextAddr)
			}
		case "ADRP":
			if len(ops) == 2 && ops[0].Kind == ir.OperandReg && ops[1].Kind == ir.OperandImm {
				regDefs[ops[0].Reg] = a.Address(ops[1].Imm)
			}
		}
		return

	case ir.Arithmetic:
		switch mnem {
		case "ADD":
			if len(ops) == 3 && ops[0].Kind == ir.OperandReg {
				l := operandTree(a, lookup, ops[1], width, nextAddr)
				r := operandTree(a, lookup, ops[2], width, nextAddr)
				regDefs[ops[0].Reg] = a.Addition(l, r)
			} else if len(ops) == 2 && ops[0].Kind == ir.OperandReg {
				l := lookup(ops[0].Reg)
				r := operandTree(a, lookup, ops[1], width, nextAddr)
				regDefs[ops[0].Reg] = a.Addition(l, r)
			}
		case "SUB", "SUBS":
			if len(ops) == 3 && ops[0].Kind == ir.OperandReg {
				l := operandTree(a, lookup, ops[1], width, nextAddr)
				r := operandTree(a, lookup, ops[2], width, nextAddr)
				if ops[0].Reg != ir.NoRegister {
					regDefs[ops[0].Reg] = a.Addition(l, a.Multiplication(r, a.Constant(-1)))
				}
			}
		case "SHL", "LSL":
			if len(ops) == 3 && ops[0].Kind == ir.OperandReg {
				l := operandTree(a, lookup, ops[1], width, nextAddr)
				r := operandTree(a, lookup, ops[2], width, nextAddr)
				regDefs[ops[0].Reg] = a.LogicalShiftLeft(l, r)
			} else if len(ops) == 2 && ops[0].Kind == ir.OperandReg {
				l := lookup(ops[0].Reg)
				r := operandTree(a, lookup, ops[1], width, nextAddr)
				regDefs[ops[0].Reg] = a.LogicalShiftLeft(l, r)
			}
		case "UBFM":
			// Treated as an opaque arithmetic result: no closed-form tree
			// shape the detector's patterns need to see through.
		}
		return
	}
	return
}
