package slicer

import (
	"jtcore/internal/cfg"
	"jtcore/internal/ir"
	"jtcore/internal/tree"
)

// SliceAt runs Engine A: a backward slice from the instruction at
// (nodeID, instIdx), normally an indirect jump. It returns that
// instruction's State (taken from a whole-function Engine B run, so it
// reflects every path into the jump) together with the ConditionList,
// gathered by walking predecessor edges backward: every Compare state on a
// CFG path into the jump, paired with the branch mnemonic and which edge
// (taken or fall-through) the path followed.
func SliceAt(a *tree.Arena, arch ir.Arch, g *cfg.Graph, nodeID, instIdx int) (*State, []ConditionState) {
	fn := Analyze(a, arch, g)
	jumpState := fn.StateAt(instIdx)
	conditions := conditionList(g, fn, nodeID)
	return jumpState, conditions
}

// conditionList walks backward from nodeID over CFG predecessor edges,
// recording the Compare state guarding every conditional edge on a path
// into nodeID. Flags-register flow (not textual scanning) decides which
// terminators count: only ControlFlowConditional terminators whose flags
// register def resolves to a Comparison tree qualify.
func conditionList(g *cfg.Graph, fn *Function, nodeID int) []ConditionState {
	var out []ConditionState
	visited := map[int]bool{nodeID: true}
	queue := []int{nodeID}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, predID := range g.Preds(cur) {
			n := g.Nodes[predID]
			if n.End <= n.Start {
				continue
			}
			lastIdx := n.End - 1
			last := g.Insts[lastIdx]

			var cond string
			for _, e := range n.Succs {
				if e.NodeID == cur {
					cond = e.Cond
					break
				}
			}

			if last.Semantic.Kind == ir.ControlFlowConditional {
				state := fn.StateAt(lastIdx)
				if cmpState, ok := FlagsCompare(state); ok {
					out = append(out, ConditionState{
						State:     cmpState,
						Mnemonic:  last.Semantic.Mnemonic,
						JumpTaken: cond == "T",
					})
				}
			}

			if !visited[predID] {
				visited[predID] = true
				queue = append(queue, predID)
			}
		}
	}
	return out
}

// FlagsCompare finds the state that actually defines a flags register
// reaching s: s itself if its own instruction defines a flags register (the
// CBZ/CBNZ case, which folds its own one-time comparison in), otherwise
// the ancestor state linked through RegRef that the preceding compare
// instruction produced.
func FlagsCompare(s *State) (*State, bool) {
	for _, fr := range []ir.RegisterID{ir.EFLAGS, ir.NZCV, ir.ONETIMENZCV} {
		if _, ok := s.RegDef[fr]; ok {
			return s, true
		}
		for _, def := range s.RegRef[fr] {
			if _, ok := def.RegDef[fr]; ok {
				return def, true
			}
		}
	}
	return nil, false
}
