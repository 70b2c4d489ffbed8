package jumptable

import (
	"jtcore/internal/cfg"
	"jtcore/internal/ir"
	"jtcore/internal/slicer"
	"jtcore/internal/tree"
)

// BoundResult is what a successful parseBound strategy recovers.
type BoundResult struct {
	Bound    int64
	Entries  int64
	Mnemonic string
}

var indexTablePattern = tree.Unary(tree.KindDereference,
	tree.Binary(tree.KindAddition,
		tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)),
		tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister))))

// ParseBound recovers the bound (largest legal index) for reg at
// jumpState, trying the five strategies in order. fn is the whole-function
// Engine B result jumpState came from; strategy 5 needs it to fetch other
// blocks' own terminator states directly. The second return value is false
// if every strategy failed — the descriptor stays bound-unknown.
func ParseBound(a *tree.Arena, jumpState *slicer.State, reg ir.RegisterID, fn *slicer.Function) (BoundResult, bool) {
	return parseBound(a, jumpState, reg, fn, map[ir.RegisterID]bool{})
}

func parseBound(a *tree.Arena, jumpState *slicer.State, reg ir.RegisterID, fn *slicer.Function, visiting map[ir.RegisterID]bool) (BoundResult, bool) {
	if visiting[reg] {
		return BoundResult{}, false
	}
	visiting[reg] = true

	// Strategy 1: direct compare.
	if res, ok := directCompareBound(a, jumpState, reg); ok {
		return res, true
	}

	// Strategy 2: compare-and-branch. Recognized but never fabricated.
	if oneTimeCompareDetected(jumpState, reg) {
		return BoundResult{}, false
	}

	// Strategy 3: move through a register chain.
	definers := definingStates(jumpState, reg)
	for _, s := range definers {
		def, ok := s.RegDefTree(reg)
		if !ok {
			continue
		}
		if a.Kind(def) == tree.KindPhysicalRegister {
			gamma := a.Register(def)
			if res, ok := parseBound(a, jumpState, gamma, fn, visiting); ok {
				return res, true
			}
		}
	}

	// Strategy 4: index-table indirection.
	for _, s := range definers {
		def, ok := s.RegDefTree(reg)
		if !ok {
			continue
		}
		if cap, ok := tree.Match(a, indexTablePattern, def); ok {
			base := a.Register(cap.Get(0))
			found := slicer.SearchUpDef(a, s, base, computedPattern, func(ss *slicer.State, ccap tree.TreeCapture) bool {
				return true
			})
			if found {
				// The outer jump's entry count is the captured constant
				// from the secondary table's own base-plus-offset
				// resolution, recovered structurally rather than
				// resolving an address: the entries figure is the
				// relevant output, not the address itself.
				if entries, ok := captureIndexTableEntries(a, s, base); ok {
					return BoundResult{Bound: entries - 1, Entries: entries}, true
				}
			}
		}
	}

	// Strategy 5: argument-derived bound. Gated on reg naming a value the
	// function never locally redefines — a parameter or loop variable
	// supplied by a caller rather than computed here.
	if isLiveInOnly(jumpState, reg) {
		if res, ok := argumentDerivedBound(a, jumpState, reg, fn); ok {
			return res, true
		}
	}

	return BoundResult{}, false
}

// compareDefinesFlags reports whether cmpState's instruction compares reg
// against a constant and writes that comparison into a flags register,
// returning the constant.
func compareDefinesFlags(a *tree.Arena, cmpState *slicer.State, reg ir.RegisterID) (int64, bool) {
	for _, fr := range []ir.RegisterID{ir.NZCV, ir.EFLAGS} {
		def, ok := cmpState.RegDef[fr]
		if !ok || a.Kind(def) != tree.KindComparison {
			continue
		}
		left := a.Left(def)
		right := a.Right(def)
		if a.Kind(left) == tree.KindPhysicalRegister && a.Register(left) == reg && a.Kind(right) == tree.KindConstant {
			return a.Value(right), true
		}
	}
	return 0, false
}

// directCompareBound looks for a compare of reg whose branch falls through
// (or jumps) into anchor's block. It walks forward from reg's own
// definition rather than from anchor itself: anchor only reads reg, and
// RegUse edges run forward from whoever wrote it, so the compare — a
// sibling reader of that same definition — is only reachable by first
// stepping back to the definer.
func directCompareBound(a *tree.Arena, anchor *slicer.State, reg ir.RegisterID) (BoundResult, bool) {
	var result BoundResult
	found := false

	for _, definer := range definingStates(anchor, reg) {
		slicer.WalkUses(definer, reg, func(cmpState *slicer.State) bool {
			b, ok := compareDefinesFlags(a, cmpState, reg)
			if !ok {
				return false
			}

			term, ok := blockTerminator(cmpState)
			if !ok || term.Semantic.Kind != ir.ControlFlowConditional {
				return false
			}
			if !succeedsInto(cmpState.Graph, cmpState.NodeID, anchor.NodeID) {
				return false
			}

			switch term.Semantic.Mnemonic {
			case "b.ls", "b.hi":
				result = BoundResult{Bound: b, Entries: b + 1, Mnemonic: term.Semantic.Mnemonic}
				found = true
				return true
			}
			return false
		})
		if found {
			return result, true
		}
	}

	return result, found
}

func oneTimeCompareDetected(anchor *slicer.State, reg ir.RegisterID) bool {
	for _, definer := range definingStates(anchor, reg) {
		if slicer.WalkUses(definer, reg, func(s *slicer.State) bool {
			_, ok := s.RegDef[ir.ONETIMENZCV]
			return ok
		}) {
			return true
		}
	}
	return false
}

// isLiveInOnly reports whether every state that could define reg at anchor
// is the synthetic live-in standing in for an argument never locally
// redefined.
func isLiveInOnly(anchor *slicer.State, reg ir.RegisterID) bool {
	for _, s := range definingStates(anchor, reg) {
		if !slicer.IsLiveIn(s) {
			return false
		}
	}
	return true
}

func blockTerminator(s *slicer.State) (ir.Instruction, bool) {
	n := s.Graph.Nodes[s.NodeID]
	if n.End <= n.Start {
		return ir.Instruction{}, false
	}
	return s.Graph.Insts[n.End-1], true
}

func succeedsInto(g *cfg.Graph, fromNode, toNode int) bool {
	for _, e := range g.Nodes[fromNode].Succs {
		if e.NodeID == toNode {
			return true
		}
	}
	return false
}

func captureIndexTableEntries(a *tree.Arena, s *slicer.State, base ir.RegisterID) (int64, bool) {
	var entries int64
	found := false
	slicer.SearchUpDef(a, s, base, computedPattern, func(_ *slicer.State, cap tree.TreeCapture) bool {
		entries = a.Value(cap.Get(1))
		found = true
		return true
	})
	return entries, found
}

// argumentComparisonPattern matches a flags-register definition that
// compares a physical register against a constant, capturing both so the
// compared register can be checked against the register a candidate block
// is asked about.
var argumentComparisonPattern = tree.Binary(tree.KindComparison,
	tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)),
	tree.Capture(tree.TerminalOf(tree.KindConstant)))

// argumentDerivedBound handles a reg whose every definer is the synthetic
// live-in standing in for an argument: reg is never locally redefined, so
// there is no def-use chain of its own to walk forward from. Instead it
// walks fn's graph from jumpState's own block backward through predecessor
// edges, nearest block first, and at each candidate block reruns the
// compare test against that block's own terminator — rescanning every
// block rather than following reg's dataflow, since the comparison that
// bounds an argument can sit in a block reg is never read in at all,
// grounded on original_source's getBoundFromArgument.
func argumentDerivedBound(a *tree.Arena, jumpState *slicer.State, reg ir.RegisterID, fn *slicer.Function) (BoundResult, bool) {
	if fn == nil {
		return BoundResult{}, false
	}

	order := cfg.ReverseReversePostorder(jumpState.Graph, jumpState.NodeID)
	for _, nodeID := range order[1:] {
		n := jumpState.Graph.Nodes[nodeID]
		if n.End <= n.Start {
			continue
		}
		term := fn.StateAt(n.End - 1)
		if term.Inst.Semantic.Kind != ir.ControlFlowConditional {
			continue
		}
		mnem := term.Inst.Semantic.Mnemonic
		if mnem != "b.ls" && mnem != "b.hi" {
			continue
		}

		if res, ok := compareUpFromTerminator(a, term, reg, mnem); ok {
			return res, true
		}
	}

	return BoundResult{}, false
}

// compareUpFromTerminator searches backward from a conditional branch's own
// flags use for the comparison that set it, reporting a bound if that
// comparison names reg.
func compareUpFromTerminator(a *tree.Arena, term *slicer.State, reg ir.RegisterID, mnem string) (BoundResult, bool) {
	var result BoundResult
	found := false
	for _, fr := range []ir.RegisterID{ir.NZCV, ir.EFLAGS} {
		slicer.SearchUpDef(a, term, fr, argumentComparisonPattern, func(_ *slicer.State, cap tree.TreeCapture) bool {
			if a.Register(cap.Get(0)) != reg {
				return false
			}
			b := a.Value(cap.Get(1))
			result = BoundResult{Bound: b, Entries: b + 1, Mnemonic: mnem}
			found = true
			return true
		})
		if found {
			return result, true
		}
	}
	return result, false
}
