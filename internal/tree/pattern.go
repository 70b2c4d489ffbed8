package tree

import "jtcore/internal/ir"

// TreeCapture holds the subtrees captured by a successful match, in the
// left-to-right order their Capture combinators appear in the pattern.
type TreeCapture struct {
	items []Tree
}

// Len returns the number of captured subtrees.
func (c TreeCapture) Len() int { return len(c.items) }

// Get returns the i'th captured subtree. It panics if i is out of range,
// matching the contract that callers only call Get after a successful
// match against a pattern whose capture count they know statically.
func (c TreeCapture) Get(i int) Tree { return c.items[i] }

// Pattern is a declarative predicate over trees. Patterns are composed
// from the primitives below and matched with Match. A Pattern never
// mutates the tree it examines.
type Pattern func(a *Arena, t Tree, cap *TreeCapture) bool

// Match runs p against t and returns the ordered captures on success.
// Match is a pure function of (p, t): running it twice yields identical
// results.
func Match(a *Arena, p Pattern, t Tree) (TreeCapture, bool) {
	var cap TreeCapture
	if p(a, t, &cap) {
		return cap, true
	}
	return TreeCapture{}, false
}

// Any matches any present tree.
func Any() Pattern {
	return func(a *Arena, t Tree, cap *TreeCapture) bool {
		return t.Valid()
	}
}

// TerminalOf matches any leaf node of the given kind, regardless of its
// value. Only terminal kinds (Constant, Address, PhysicalRegister,
// RegisterRIP) are meaningful here.
func TerminalOf(kind Kind) Pattern {
	return func(a *Arena, t Tree, cap *TreeCapture) bool {
		return t.Valid() && a.Kind(t) == kind
	}
}

// ConstantIs matches a Constant node whose literal value equals v.
func ConstantIs(v int64) Pattern {
	return func(a *Arena, t Tree, cap *TreeCapture) bool {
		return t.Valid() && a.Kind(t) == KindConstant && a.Value(t) == v
	}
}

// RegisterIs matches a PhysicalRegister node naming exactly r.
func RegisterIs(r ir.RegisterID) Pattern {
	return func(a *Arena, t Tree, cap *TreeCapture) bool {
		return t.Valid() && a.Kind(t) == KindPhysicalRegister && a.Register(t) == r
	}
}

// Unary matches a node of the given kind whose sole operand matches
// operand. Only meaningful for Dereference.
func Unary(kind Kind, operand Pattern) Pattern {
	return func(a *Arena, t Tree, cap *TreeCapture) bool {
		if !t.Valid() || a.Kind(t) != kind {
			return false
		}
		return operand(a, a.Operand(t), cap)
	}
}

// Binary matches a node of the given kind whose left and right children
// match left and right respectively.
func Binary(kind Kind, left, right Pattern) Pattern {
	return func(a *Arena, t Tree, cap *TreeCapture) bool {
		if !t.Valid() || a.Kind(t) != kind {
			return false
		}
		return left(a, a.Left(t), cap) && right(a, a.Right(t), cap)
	}
}

// Capture wraps p. On success, the subtree t is appended to the capture
// list at the position corresponding to where this combinator appears in
// the pattern, before any nested Capture inside p. On failure the capture
// list is left exactly as it was before this combinator ran.
func Capture(p Pattern) Pattern {
	return func(a *Arena, t Tree, cap *TreeCapture) bool {
		idx := len(cap.items)
		cap.items = append(cap.items, t)
		if !p(a, t, cap) {
			cap.items = cap.items[:idx]
			return false
		}
		return true
	}
}
