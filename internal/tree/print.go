package tree

import (
	"fmt"
	"strings"
)

// String renders t for diagnostics. It is not part of the package's
// contract — callers must not parse it.
func String(a *Arena, t Tree) string {
	var b strings.Builder
	writeTree(&b, a, t)
	return b.String()
}

func writeTree(b *strings.Builder, a *Arena, t Tree) {
	if !t.Valid() {
		b.WriteString("<nil>")
		return
	}
	switch a.Kind(t) {
	case KindConstant:
		fmt.Fprintf(b, "%d", a.Value(t))
	case KindAddress:
		fmt.Fprintf(b, "0x%x", a.Value(t))
	case KindPhysicalRegister:
		fmt.Fprintf(b, "reg(%d)", a.Register(t))
	case KindRegisterRIP:
		fmt.Fprintf(b, "rip(0x%x)", a.Value(t))
	case KindAddition:
		b.WriteByte('(')
		writeTree(b, a, a.Left(t))
		b.WriteString(" + ")
		writeTree(b, a, a.Right(t))
		b.WriteByte(')')
	case KindMultiplication:
		b.WriteByte('(')
		writeTree(b, a, a.Left(t))
		b.WriteString(" * ")
		writeTree(b, a, a.Right(t))
		b.WriteByte(')')
	case KindLogicalShiftLeft:
		b.WriteByte('(')
		writeTree(b, a, a.Left(t))
		b.WriteString(" << ")
		writeTree(b, a, a.Right(t))
		b.WriteByte(')')
	case KindDereference:
		fmt.Fprintf(b, "deref%d[", a.Width(t))
		writeTree(b, a, a.Operand(t))
		b.WriteByte(']')
	case KindComparison:
		b.WriteString("cmp(")
		writeTree(b, a, a.Left(t))
		b.WriteString(", ")
		writeTree(b, a, a.Right(t))
		b.WriteByte(')')
	case KindMultipleParents:
		b.WriteString("phi(")
		for i, p := range a.Parents(t) {
			if i > 0 {
				b.WriteString(", ")
			}
			writeTree(b, a, p)
		}
		b.WriteByte(')')
	default:
		b.WriteString("?")
	}
}
