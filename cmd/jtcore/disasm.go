package main

import (
	"flag"
	"fmt"

	"jtcore/internal/ir"
)

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	ff := bindFuncFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fn, err := loadFunction(ff)
	if err != nil {
		return err
	}

	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			fmt.Printf("%#08x  %-8s %-28s %s\n",
				inst.Address, inst.Assembly.Mnemonic, formatOperands(fn.Arch, inst.Assembly.Operands), inst.Semantic.Kind)
		}
	}
	return nil
}

func formatOperands(arch ir.Arch, operands []ir.Operand) string {
	s := ""
	for i, op := range operands {
		if i > 0 {
			s += ", "
		}
		s += formatOperand(op)
	}
	return s
}

func formatOperand(op ir.Operand) string {
	switch op.Kind {
	case ir.OperandReg:
		return fmt.Sprintf("r%d", op.Reg)
	case ir.OperandImm:
		return fmt.Sprintf("#%#x", op.Imm)
	case ir.OperandMem:
		m := op.Mem
		s := "["
		if m.Base != ir.NoRegister {
			s += fmt.Sprintf("r%d", m.Base)
		}
		if m.Index != ir.NoRegister {
			s += fmt.Sprintf("+r%d", m.Index)
			if m.Scale > 1 {
				s += fmt.Sprintf("*%d", m.Scale)
			}
		}
		if m.Disp != 0 {
			s += fmt.Sprintf("%+#x", m.Disp)
		}
		return s + "]"
	default:
		return "?"
	}
}
