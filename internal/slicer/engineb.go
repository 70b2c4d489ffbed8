package slicer

import (
	"jtcore/internal/cfg"
	"jtcore/internal/ir"
	"jtcore/internal/tree"
)

// Function is the whole-function result of Engine B: the state produced
// by every instruction, keyed by its index into Graph.Insts.
type Function struct {
	Graph  *cfg.Graph
	States []*State // parallel to Graph.Insts
}

// StateAt returns the state for the instruction at instIdx.
func (f *Function) StateAt(instIdx int) *State { return f.States[instIdx] }

// Analyze runs Engine B: a whole-function forward use-def analysis.
// Blocks are visited in SCC-condensation order; within an SCC, all member
// blocks are revisited until no member block's entry register trees change
// (the fixpoint the spec requires for loop bodies that redefine table-index
// registers). Entry memory trees are recomputed on every pass but are not
// compared, so a change confined to memory does not trigger another pass.
func Analyze(a *tree.Arena, arch ir.Arch, g *cfg.Graph) *Function {
	f := &Function{Graph: g, States: make([]*State, len(g.Insts))}
	if len(g.Nodes) == 0 {
		return f
	}

	sccs := cfg.SCCOrder(g)
	entryRegTree := map[int]map[ir.RegisterID]tree.Tree{}
	entryMemTree := map[int]map[tree.Tree]tree.Tree{}
	exitProv := map[int]map[ir.RegisterID][]*State{}
	stored := map[[2]int]*State{}
	liveIn := map[ir.RegisterID]*State{}

	for _, comp := range sccs {
		changed := true
		for changed {
			changed = false
			for _, nodeID := range comp {
				regIn, memIn, provIn := mergeEntry(a, g, nodeID, entryRegTree, entryMemTree, exitProv, stored)
				regOut, memOut, provOut := processNode(a, arch, g, nodeID, regIn, memIn, provIn, f, stored, liveIn)
				if !sameRegTree(entryRegTree[nodeID], regIn) {
					changed = true
				}
				entryRegTree[nodeID] = regIn
				entryMemTree[nodeID] = memIn
				exitProv[nodeID] = provOut
				_ = regOut
				_ = memOut
			}
		}
	}
	return f
}

func mergeEntry(a *tree.Arena, g *cfg.Graph, nodeID int, entryRegTree map[int]map[ir.RegisterID]tree.Tree, entryMemTree map[int]map[tree.Tree]tree.Tree, exitProv map[int]map[ir.RegisterID][]*State, stored map[[2]int]*State) (map[ir.RegisterID]tree.Tree, map[tree.Tree]tree.Tree, map[ir.RegisterID][]*State) {
	preds := g.Preds(nodeID)
	if len(preds) == 0 {
		return map[ir.RegisterID]tree.Tree{}, map[tree.Tree]tree.Tree{}, map[ir.RegisterID][]*State{}
	}

	type predExit struct {
		reg  map[ir.RegisterID]tree.Tree
		mem  map[tree.Tree]tree.Tree
		prov map[ir.RegisterID][]*State
	}
	var exits []predExit
	for _, p := range preds {
		n := g.Nodes[p]
		var reg map[ir.RegisterID]tree.Tree
		var mem map[tree.Tree]tree.Tree
		if n.End > n.Start {
			lastIdx := n.End - 1
			if s := stored[[2]int{p, lastIdx}]; s != nil {
				reg, mem = s.RegTree, s.MemTree
			}
		}
		if reg == nil {
			reg, mem = entryRegTree[p], entryMemTree[p]
		}
		exits = append(exits, predExit{reg: reg, mem: mem, prov: exitProv[p]})
	}

	prov := map[ir.RegisterID][]*State{}
	for _, e := range exits {
		for r, states := range e.prov {
			prov[r] = append(prov[r], states...)
		}
	}

	if len(exits) == 1 {
		return copyRegTree(exits[0].reg), copyMemTree(exits[0].mem), prov
	}

	merged := map[ir.RegisterID]tree.Tree{}
	seen := map[ir.RegisterID]bool{}
	for _, e := range exits {
		for r := range e.reg {
			seen[r] = true
		}
	}
	for r := range seen {
		var parents []tree.Tree
		agree := true
		var first tree.Tree
		for i, e := range exits {
			t, ok := e.reg[r]
			if !ok {
				t = a.PhysicalRegister(r)
			}
			if i == 0 {
				first = t
			} else if t != first {
				agree = false
			}
			parents = append(parents, t)
		}
		if agree {
			merged[r] = first
		} else {
			// Splice nested merges into one duplicate-free parent list, so
			// a loop's back edge reproduces the same node on the next pass.
			var flat []tree.Tree
			inFlat := map[tree.Tree]bool{}
			for _, p := range parents {
				subs := []tree.Tree{p}
				if a.Kind(p) == tree.KindMultipleParents {
					subs = a.Parents(p)
				}
				for _, q := range subs {
					if !inFlat[q] {
						inFlat[q] = true
						flat = append(flat, q)
					}
				}
			}
			merged[r] = a.MultipleParents(flat)
		}
	}

	mmerged := map[tree.Tree]tree.Tree{}
	for _, e := range exits {
		for addr, val := range e.mem {
			if existing, ok := mmerged[addr]; ok && existing != val {
				mmerged[addr] = a.MultipleParents([]tree.Tree{existing, val})
			} else {
				mmerged[addr] = val
			}
		}
	}
	return merged, mmerged, prov
}

func processNode(a *tree.Arena, arch ir.Arch, g *cfg.Graph, nodeID int, regIn map[ir.RegisterID]tree.Tree, memIn map[tree.Tree]tree.Tree, provIn map[ir.RegisterID][]*State, f *Function, stored map[[2]int]*State, liveIn map[ir.RegisterID]*State) (map[ir.RegisterID]tree.Tree, map[tree.Tree]tree.Tree, map[ir.RegisterID][]*State) {
	n := g.Nodes[nodeID]
	regCur := copyRegTree(regIn)
	memCur := copyMemTree(memIn)
	lastDef := map[ir.RegisterID][]*State{}
	for r, states := range provIn {
		lastDef[r] = states
	}

	for idx := n.Start; idx < n.End; idx++ {
		s := newState(g, nodeID, idx)
		defs, memDefs := Effect(a, arch, s.Inst)

		for _, r := range ReadRegisters(s.Inst) {
			defs := lastDef[r]
			if len(defs) == 0 {
				// r is read before this function ever writes it: a
				// parameter or a loop counter seeded by the caller. A
				// synthetic live-in state stands in as its definition so
				// RegRef/RegUse edges exist for it at all — without this,
				// every instruction reading an argument register directly
				// would be unreachable from every other.
				defs = []*State{liveInState(liveIn, r)}
				lastDef[r] = defs
			}
			for _, def := range defs {
				s.RegRef[r] = append(s.RegRef[r], def)
				def.RegUse[r] = append(def.RegUse[r], s)
			}
		}

		for r, t := range defs {
			s.RegDef[r] = t
			regCur[r] = t
			lastDef[r] = []*State{s}
		}
		for addr, val := range memDefs {
			s.MemDef[addr] = val
			memCur[addr] = val
		}

		if base, ok := memLoadBase(s.Inst); ok {
			s.MemRef[base] = collectMemDefAncestors(s, base)
		}

		s.RegTree = copyRegTree(regCur)
		s.MemTree = copyMemTree(memCur)
		f.States[idx] = s
		stored[[2]int{nodeID, idx}] = s
	}
	return regCur, memCur, lastDef
}

// liveInState returns the synthetic definition standing in for reg's value
// at function entry, creating it on first reference. Its NodeID is -1,
// which IsLiveIn uses to tell a real local definition from an implicit
// argument.
func liveInState(liveIn map[ir.RegisterID]*State, reg ir.RegisterID) *State {
	if s, ok := liveIn[reg]; ok {
		return s
	}
	s := &State{
		NodeID:  -1,
		InstIdx: -1,
		RegDef:  make(map[ir.RegisterID]tree.Tree),
		MemDef:  make(map[tree.Tree]tree.Tree),
		RegTree: make(map[ir.RegisterID]tree.Tree),
		MemTree: make(map[tree.Tree]tree.Tree),
		RegRef:  make(map[ir.RegisterID][]*State),
		RegUse:  make(map[ir.RegisterID][]*State),
		MemRef:  make(map[ir.RegisterID][]*State),
	}
	liveIn[reg] = s
	return s
}

// IsLiveIn reports whether s is the synthetic definition standing in for a
// register's value at function entry, rather than a real instruction.
func IsLiveIn(s *State) bool {
	return s.NodeID == -1
}

func memLoadBase(inst ir.Instruction) (ir.RegisterID, bool) {
	if inst.Semantic.Kind != ir.Memory {
		return 0, false
	}
	ops := inst.Assembly.Operands
	if len(ops) != 2 || ops[1].Kind != ir.OperandMem {
		return 0, false
	}
	base := ops[1].Mem.Base
	if base == ir.NoRegister || base == ir.PC {
		return 0, false
	}
	return base, true
}

// collectMemDefAncestors walks transitively backward through RegRef[reg]
// from s, collecting every reached state whose MemDef is non-empty: the
// states whose stores α's base-address-resolution strategy (the
// saved/reloaded case) needs to inspect.
func collectMemDefAncestors(s *State, reg ir.RegisterID) []*State {
	visited := map[*State]bool{}
	var out []*State
	queue := append([]*State{}, s.RegRef[reg]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if len(cur.MemDef) > 0 {
			out = append(out, cur)
		}
		queue = append(queue, cur.RegRef[reg]...)
	}
	return out
}

func copyRegTree(m map[ir.RegisterID]tree.Tree) map[ir.RegisterID]tree.Tree {
	out := make(map[ir.RegisterID]tree.Tree, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyMemTree(m map[tree.Tree]tree.Tree) map[tree.Tree]tree.Tree {
	out := make(map[tree.Tree]tree.Tree, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sameRegTree(a, b map[ir.RegisterID]tree.Tree) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
