package tree

import "testing"

func TestTerminalOfAndRegisterIs(t *testing.T) {
	a := NewArena()
	r := a.PhysicalRegister(5)
	c := a.Constant(5)

	if _, ok := Match(a, TerminalOf(KindPhysicalRegister), r); !ok {
		t.Fatalf("TerminalOf(KindPhysicalRegister) did not match a PhysicalRegister node")
	}
	if _, ok := Match(a, TerminalOf(KindPhysicalRegister), c); ok {
		t.Fatalf("TerminalOf(KindPhysicalRegister) matched a Constant node")
	}
	if _, ok := Match(a, RegisterIs(5), r); !ok {
		t.Fatalf("RegisterIs(5) did not match PhysicalRegister(5)")
	}
	if _, ok := Match(a, RegisterIs(6), r); ok {
		t.Fatalf("RegisterIs(6) matched PhysicalRegister(5)")
	}
}

func TestConstantIs(t *testing.T) {
	a := NewArena()
	c := a.Constant(9)
	if _, ok := Match(a, ConstantIs(9), c); !ok {
		t.Fatalf("ConstantIs(9) did not match Constant(9)")
	}
	if _, ok := Match(a, ConstantIs(10), c); ok {
		t.Fatalf("ConstantIs(10) matched Constant(9)")
	}
}

func TestUnaryAndBinary(t *testing.T) {
	a := NewArena()
	base := a.PhysicalRegister(1)
	idx := a.PhysicalRegister(2)
	add := a.Addition(base, idx)
	deref := a.Dereference(add, 8)

	accessPattern := Unary(KindDereference,
		Binary(KindAddition,
			TerminalOf(KindPhysicalRegister),
			TerminalOf(KindPhysicalRegister)))

	if _, ok := Match(a, accessPattern, deref); !ok {
		t.Fatalf("access pattern did not match Dereference(Addition(reg, reg))")
	}

	// A bare addition (no surrounding Dereference) must not match a Unary
	// pattern expecting a Dereference shell.
	if _, ok := Match(a, accessPattern, add); ok {
		t.Fatalf("access pattern matched a bare Addition with no Dereference")
	}

	// Swapping one child for a Constant must fail the match.
	wrong := a.Addition(base, a.Constant(4))
	if _, ok := Match(a, Binary(KindAddition, TerminalOf(KindPhysicalRegister), TerminalOf(KindPhysicalRegister)), wrong); ok {
		t.Fatalf("Binary pattern matched Addition(reg, constant) against an all-register shape")
	}
}

func TestCaptureOrderIsLeftToRight(t *testing.T) {
	a := NewArena()
	base := a.PhysicalRegister(10)
	idx := a.PhysicalRegister(20)
	scale := a.Constant(2)
	shifted := a.LogicalShiftLeft(idx, scale)
	add := a.Addition(base, shifted)

	// Mirrors accessForm2Pattern's shape: base captured first, then the
	// shifted index's register, then the shift amount.
	pattern := Binary(KindAddition,
		Capture(TerminalOf(KindPhysicalRegister)),
		Binary(KindLogicalShiftLeft,
			Capture(TerminalOf(KindPhysicalRegister)),
			Capture(TerminalOf(KindConstant))))

	cap, ok := Match(a, pattern, add)
	if !ok {
		t.Fatalf("pattern did not match Addition(reg, reg << const)")
	}
	if cap.Len() != 3 {
		t.Fatalf("cap.Len() = %d, want 3", cap.Len())
	}
	if cap.Get(0) != base {
		t.Fatalf("cap.Get(0) = %v, want base %v", cap.Get(0), base)
	}
	if cap.Get(1) != idx {
		t.Fatalf("cap.Get(1) = %v, want idx %v", cap.Get(1), idx)
	}
	if cap.Get(2) != scale {
		t.Fatalf("cap.Get(2) = %v, want scale %v", cap.Get(2), scale)
	}
}

func TestCaptureRollsBackOnFailure(t *testing.T) {
	a := NewArena()
	base := a.PhysicalRegister(1)
	wrongRight := a.Constant(7) // not a PhysicalRegister, so the right Capture fails

	pattern := Binary(KindAddition,
		Capture(TerminalOf(KindPhysicalRegister)),
		Capture(TerminalOf(KindPhysicalRegister)))

	add := a.Addition(base, wrongRight)
	cap, ok := Match(a, pattern, add)
	if ok {
		t.Fatalf("pattern matched Addition(reg, constant) against an all-register shape")
	}
	if cap.Len() != 0 {
		t.Fatalf("failed match left %d stale captures, want 0", cap.Len())
	}
}

func TestAny(t *testing.T) {
	a := NewArena()
	c := a.Constant(1)
	if _, ok := Match(a, Any(), c); !ok {
		t.Fatalf("Any() did not match a present tree")
	}
	if _, ok := Match(a, Any(), Zero); ok {
		t.Fatalf("Any() matched the Zero sentinel")
	}
}
