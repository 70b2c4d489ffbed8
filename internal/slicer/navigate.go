package slicer

import (
	"jtcore/internal/ir"
	"jtcore/internal/tree"
)

// SearchUpDef walks transitively backward through RegRef[reg] from state,
// attempting pattern against each reached state's RegDef[reg]. It calls
// visit on every match and stops as soon as visit returns true, returning
// true in that case. A match whose visit rejects it (returns false) does
// not stop the walk: older reaching definitions further up RegRef[reg] are
// still explored, the same as states whose RegDef[reg] didn't match
// pattern at all. Traversal is breadth-first and visited-deduplicated so
// cyclic RegRef graphs (loops in the CFG) terminate.
func SearchUpDef(a *tree.Arena, start *State, reg ir.RegisterID, pattern tree.Pattern, visit func(*State, tree.TreeCapture) bool) bool {
	visited := map[*State]bool{}
	queue := append([]*State{}, start.RegRef[reg]...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if visited[s] {
			continue
		}
		visited[s] = true

		if def, ok := s.RegDefTree(reg); ok {
			if cap, ok := tree.Match(a, pattern, def); ok {
				if visit(s, cap) {
					return true
				}
			}
		}
		queue = append(queue, s.RegRef[reg]...)
	}
	return false
}

// SearchDownDef is SearchUpDef's symmetric counterpart, walking forward
// through RegUse[reg].
func SearchDownDef(a *tree.Arena, start *State, reg ir.RegisterID, pattern tree.Pattern, visit func(*State, tree.TreeCapture) bool) bool {
	visited := map[*State]bool{}
	queue := append([]*State{}, start.RegUse[reg]...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if visited[s] {
			continue
		}
		visited[s] = true

		if def, ok := s.RegDefTree(reg); ok {
			if cap, ok := tree.Match(a, pattern, def); ok {
				if visit(s, cap) {
					return true
				}
			}
		}
		queue = append(queue, s.RegUse[reg]...)
	}
	return false
}

// WalkUses walks forward through RegUse[reg] from start, calling visit on
// every reached state regardless of whether that state redefines reg — the
// primitive bound recovery needs to find a downstream instruction that
// merely reads reg (a compare, a compare-and-branch) rather than one that
// folds reg into a new value. Traversal is breadth-first and
// visited-deduplicated; it stops and returns true as soon as visit does.
func WalkUses(start *State, reg ir.RegisterID, visit func(*State) bool) bool {
	visited := map[*State]bool{}
	queue := append([]*State{}, start.RegUse[reg]...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if visited[s] {
			continue
		}
		visited[s] = true
		if visit(s) {
			return true
		}
		queue = append(queue, s.RegUse[reg]...)
	}
	return false
}
