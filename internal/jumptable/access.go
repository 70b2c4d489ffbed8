package jumptable

import (
	"jtcore/internal/ir"
	"jtcore/internal/slicer"
	"jtcore/internal/tree"
)

var accessForm1Pattern = tree.Unary(tree.KindDereference,
	tree.Binary(tree.KindAddition,
		tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)),
		tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister))))

var accessForm2Pattern = tree.Unary(tree.KindDereference,
	tree.Binary(tree.KindAddition,
		tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)),
		tree.Binary(tree.KindLogicalShiftLeft,
			tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)),
			tree.Capture(tree.TerminalOf(tree.KindConstant)))))

// Access is what parseTableAccess recovers: the table's base address, the
// per-element scale, the register holding the index used to compute the
// load, and the load's own state — the right anchor for bound recovery to
// search from, since it is the instruction that actually reads IndexReg.
type Access struct {
	TableBase uint64
	Scale     int
	IndexReg  ir.RegisterID
	State     *slicer.State
}

// ParseTableAccess searches upward from anchor through indexReg's reaching
// definitions for a load of the shape Access Form 1 or Access Form 2.
// anchor must be a state that reads indexReg directly — the instruction
// that combines indexReg into a jump target, or the jump itself when
// indexReg is its own target register — so the backward walk through
// RegRef has somewhere to start. On a match it requires that the access's
// own base register resolve via ParseBaseAddress; that resolved address is
// the table base, and the scale is the Dereference's load width, never the
// shift amount — the shift scales the loaded *entry* toward a target,
// which is a separate concern from the table's own element stride.
func ParseTableAccess(a *tree.Arena, anchor *slicer.State, indexReg ir.RegisterID) (Access, bool) {
	var result Access

	tryForm := func(pattern tree.Pattern) bool {
		return slicer.SearchUpDef(a, anchor, indexReg, pattern, func(s *slicer.State, cap tree.TreeCapture) bool {
			baseReg := a.Register(cap.Get(0))
			base, ok := ParseBaseAddress(a, s, baseReg)
			if !ok {
				return false
			}
			def, _ := s.RegDefTree(indexReg)
			result = Access{
				TableBase: base,
				Scale:     a.Width(def),
				IndexReg:  a.Register(cap.Get(1)),
				State:     s,
			}
			return true
		})
	}

	if tryForm(accessForm1Pattern) {
		return result, true
	}
	if tryForm(accessForm2Pattern) {
		return result, true
	}
	return result, false
}
