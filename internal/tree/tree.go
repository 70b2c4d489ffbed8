// Package tree implements the symbolic expression trees used by the
// slicer and jump-table detector: an algebraic representation of values
// over registers, memory, constants, and address literals.
//
// Trees are immutable once built. Construction goes through an Arena that
// interns nodes by structural hash, so two calls that build the same
// expression return the same handle and equality is a single integer
// comparison. Do not rely on garbage collection of trees — a tree's
// lifetime is tied to the Arena that built it.
package tree

import "jtcore/internal/ir"

// Kind identifies the node shape of a Tree.
type Kind int

const (
	KindConstant Kind = iota
	KindAddress
	KindPhysicalRegister
	KindRegisterRIP
	KindAddition
	KindMultiplication
	KindLogicalShiftLeft
	KindDereference
	KindComparison
	KindMultipleParents
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "Constant"
	case KindAddress:
		return "Address"
	case KindPhysicalRegister:
		return "PhysicalRegister"
	case KindRegisterRIP:
		return "RegisterRIP"
	case KindAddition:
		return "Addition"
	case KindMultiplication:
		return "Multiplication"
	case KindLogicalShiftLeft:
		return "LogicalShiftLeft"
	case KindDereference:
		return "Dereference"
	case KindComparison:
		return "Comparison"
	case KindMultipleParents:
		return "MultipleParents"
	default:
		return "Unknown"
	}
}

// Tree is a handle into an Arena. The zero value, Zero, denotes "no tree".
type Tree int

// Zero is the sentinel handle for "no tree present".
const Zero Tree = 0

// Valid reports whether t refers to a real node.
func (t Tree) Valid() bool { return t != Zero }

type node struct {
	kind    Kind
	value   int64
	reg     ir.RegisterID
	width   int
	left    Tree
	right   Tree
	parents []Tree
}

type fixedKey struct {
	kind  Kind
	value int64
	reg   ir.RegisterID
	width int
	left  Tree
	right Tree
}

// Arena owns a set of interned tree nodes. The zero Arena is not usable;
// construct one with NewArena.
type Arena struct {
	nodes  []node
	fixed  map[fixedKey]Tree
	multi  map[string]Tree
}

// NewArena creates an empty Arena.
func NewArena() *Arena {
	return &Arena{
		nodes: make([]node, 1), // index 0 reserved for Zero
		fixed: make(map[fixedKey]Tree),
		multi: make(map[string]Tree),
	}
}

func (a *Arena) intern(n node) Tree {
	if n.kind == KindMultipleParents {
		key := multiKey(n.parents)
		if h, ok := a.multi[key]; ok {
			return h
		}
		n.parents = append([]Tree(nil), n.parents...)
		a.nodes = append(a.nodes, n)
		h := Tree(len(a.nodes) - 1)
		a.multi[key] = h
		return h
	}

	key := fixedKey{kind: n.kind, value: n.value, reg: n.reg, width: n.width, left: n.left, right: n.right}
	if h, ok := a.fixed[key]; ok {
		return h
	}
	a.nodes = append(a.nodes, n)
	h := Tree(len(a.nodes) - 1)
	a.fixed[key] = h
	return h
}

func multiKey(parents []Tree) string {
	buf := make([]byte, 0, len(parents)*5)
	for _, p := range parents {
		v := int(p)
		for v > 0 {
			buf = append(buf, byte('0'+v%10))
			v /= 10
		}
		buf = append(buf, ',')
	}
	return string(buf)
}

// Constant builds an integer literal node.
func (a *Arena) Constant(v int64) Tree {
	return a.intern(node{kind: KindConstant, value: v})
}

// Address builds an absolute code/data address literal node.
func (a *Arena) Address(v int64) Tree {
	return a.intern(node{kind: KindAddress, value: v})
}

// PhysicalRegister builds a node holding the current symbolic value of an
// architectural register.
func (a *Arena) PhysicalRegister(r ir.RegisterID) Tree {
	return a.intern(node{kind: KindPhysicalRegister, reg: r})
}

// RegisterRIP builds a node for the value of the program counter at the
// next instruction. The value is known statically once the owning
// instruction's address and size are known.
func (a *Arena) RegisterRIP(v int64) Tree {
	return a.intern(node{kind: KindRegisterRIP, value: v})
}

// Addition builds l + r.
func (a *Arena) Addition(l, r Tree) Tree {
	return a.intern(node{kind: KindAddition, left: l, right: r})
}

// Multiplication builds l * r.
func (a *Arena) Multiplication(l, r Tree) Tree {
	return a.intern(node{kind: KindMultiplication, left: l, right: r})
}

// LogicalShiftLeft builds l << r.
func (a *Arena) LogicalShiftLeft(l, r Tree) Tree {
	return a.intern(node{kind: KindLogicalShiftLeft, left: l, right: r})
}

// Dereference builds a load of width bytes from address x.
func (a *Arena) Dereference(x Tree, width int) Tree {
	return a.intern(node{kind: KindDereference, left: x, width: width})
}

// Comparison builds the result of a compare instruction, l compared to r.
func (a *Arena) Comparison(l, r Tree) Tree {
	return a.intern(node{kind: KindComparison, left: l, right: r})
}

// MultipleParents builds a phi-like merge across CFG predecessors. Order
// of parents is preserved and is part of the node's identity.
func (a *Arena) MultipleParents(parents []Tree) Tree {
	return a.intern(node{kind: KindMultipleParents, parents: parents})
}

// Kind returns the node kind of t.
func (a *Arena) Kind(t Tree) Kind { return a.nodes[t].kind }

// Value returns the literal value of a Constant, Address, or RegisterRIP
// node.
func (a *Arena) Value(t Tree) int64 { return a.nodes[t].value }

// Register returns the register of a PhysicalRegister node.
func (a *Arena) Register(t Tree) ir.RegisterID { return a.nodes[t].reg }

// Width returns the load width of a Dereference node.
func (a *Arena) Width(t Tree) int { return a.nodes[t].width }

// Left returns the left child of a binary node, or the sole operand of a
// unary (Dereference) node.
func (a *Arena) Left(t Tree) Tree { return a.nodes[t].left }

// Operand is an alias for Left, used when t is known to be unary.
func (a *Arena) Operand(t Tree) Tree { return a.nodes[t].left }

// Right returns the right child of a binary node.
func (a *Arena) Right(t Tree) Tree { return a.nodes[t].right }

// Parents returns the parent list of a MultipleParents node.
func (a *Arena) Parents(t Tree) []Tree { return a.nodes[t].parents }

// Equal reports whether a and b refer to the same tree. Because nodes are
// interned, this is always a direct handle comparison.
func Equal(a, b Tree) bool { return a == b }
