package ir

import "golang.org/x/arch/x86/x86asm"

// Reference decoding for the variable-length ISA. Unlike the fixed-width
// decoder, this one classifies instructions from x86asm's already-structured
// Args rather than from raw bit masks: there is no bit-mask precedent for
// this architecture to follow, and x86asm's decoded Reg/Mem/Rel/Imm shapes
// are already exactly the classification the jump-table detector needs.

// DecodeAMD64 decodes one variable-length-ISA instruction from its raw
// bytes at the given address, classifying it by Semantic and producing
// normalized Operands.
func DecodeAMD64(raw []byte, addr uint64) (Instruction, error) {
	dec, err := x86asm.Decode(raw, 64)
	if err != nil {
		return Instruction{}, err
	}

	inst := Instruction{Address: addr, Raw: raw[:dec.Len]}
	operands := make([]Operand, 0, 4)
	for _, arg := range dec.Args {
		if arg == nil {
			break
		}
		operands = append(operands, convertArg(arg))
	}

	mnemonic := dec.Op.String()
	inst.Assembly = Assembly{Mnemonic: mnemonic, Operands: operands, Mode: GetMode(AMD64, operands)}
	inst.Semantic = classifyAMD64(dec, addr, operands)
	return inst, nil
}

func convertArg(arg x86asm.Arg) Operand {
	switch a := arg.(type) {
	case x86asm.Reg:
		return Operand{Kind: OperandReg, Reg: RegisterID(a)}
	case x86asm.Mem:
		base := RegisterID(a.Base)
		switch a.Base {
		case 0:
			base = NoRegister
		case x86asm.RIP:
			base = PC
		}
		index := RegisterID(a.Index)
		if a.Index == 0 {
			index = NoRegister
		}
		return Operand{Kind: OperandMem, Mem: MemOperand{
			Base:  base,
			Index: index,
			Scale: int(a.Scale),
			Disp:  a.Disp,
		}}
	case x86asm.Rel:
		return Operand{Kind: OperandImm, Imm: int64(a)}
	case x86asm.Imm:
		return Operand{Kind: OperandImm, Imm: int64(a)}
	default:
		return Operand{}
	}
}

var amd64ConditionalJumps = map[x86asm.Op]string{
	x86asm.JA: "ja", x86asm.JAE: "jae", x86asm.JB: "jb", x86asm.JBE: "jbe",
	x86asm.JE: "je", x86asm.JNE: "jne", x86asm.JG: "jg", x86asm.JGE: "jge",
	x86asm.JL: "jl", x86asm.JLE: "jle", x86asm.JS: "js",
}

func classifyAMD64(dec x86asm.Inst, addr uint64, operands []Operand) Semantic {
	switch dec.Op {
	case x86asm.JMP:
		if len(operands) == 1 && operands[0].Kind == OperandImm {
			return Semantic{Kind: DirectBranch, Mnemonic: "jmp", BranchTarget: resolveRel(dec, addr)}
		}
		if len(operands) == 1 && operands[0].Kind == OperandReg {
			return Semantic{Kind: IndirectJump, TargetRegister: operands[0].Reg}
		}
		if len(operands) == 1 && operands[0].Kind == OperandMem {
			return Semantic{Kind: IndirectJump, TargetRegister: NoRegister}
		}
	case x86asm.RET:
		return Semantic{Kind: IndirectJump, TargetRegister: NoRegister}
	case x86asm.CMP:
		return Semantic{Kind: Compare}
	case x86asm.LEA:
		return Semantic{Kind: Move}
	case x86asm.MOV, x86asm.MOVSXD, x86asm.MOVZX, x86asm.MOVSX:
		return Semantic{Kind: Move}
	case x86asm.SHL, x86asm.ADD, x86asm.SUB, x86asm.IMUL:
		return Semantic{Kind: Arithmetic}
	}
	if mnem, ok := amd64ConditionalJumps[dec.Op]; ok {
		return Semantic{Kind: ControlFlowConditional, Mnemonic: mnem, BranchTarget: resolveRel(dec, addr)}
	}
	return Semantic{Kind: Other}
}

func resolveRel(dec x86asm.Inst, addr uint64) uint64 {
	for _, arg := range dec.Args {
		if rel, ok := arg.(x86asm.Rel); ok {
			return uint64(int64(addr) + int64(dec.Len) + int64(rel))
		}
	}
	return 0
}
