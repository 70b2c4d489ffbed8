package jumptable

import (
	"jtcore/internal/ir"
	"jtcore/internal/slicer"
	"jtcore/internal/tree"
)

var computedPattern = tree.Binary(tree.KindAddition,
	tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)),
	tree.Capture(tree.TerminalOf(tree.KindConstant)))

var savedReloadedPattern = tree.Unary(tree.KindDereference,
	tree.Capture(tree.Binary(tree.KindAddition,
		tree.TerminalOf(tree.KindPhysicalRegister),
		tree.TerminalOf(tree.KindConstant))))

// ParseBaseAddress resolves reg's numeric base address at state s: the
// first successful strategy of Literal, Computed, and Saved/reloaded.
// Returns (0, false) if none succeed — "not a base candidate," which the
// caller interprets as license to retry with the other captured register.
func ParseBaseAddress(a *tree.Arena, s *slicer.State, reg ir.RegisterID) (uint64, bool) {
	candidates := ParseBaseAddressCandidates(a, s, reg)
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[0], true
}

// ParseBaseAddressCandidates runs every base-resolution strategy to
// completion rather than stopping at the first hit, so callers that care
// about the open question of multiple candidate tables can see all of
// them. The first entry is what ParseBaseAddress alone would have
// returned.
func ParseBaseAddressCandidates(a *tree.Arena, s *slicer.State, reg ir.RegisterID) []uint64 {
	return parseBaseAddressCandidates(a, s, reg, map[baseKey]bool{})
}

type baseKey struct {
	s   *slicer.State
	reg ir.RegisterID
}

func parseBaseAddressCandidates(a *tree.Arena, s *slicer.State, reg ir.RegisterID, visited map[baseKey]bool) []uint64 {
	key := baseKey{s, reg}
	if visited[key] {
		return nil
	}
	visited[key] = true

	t, ok := s.RegTree[reg]
	if !ok {
		return nil
	}

	var out []uint64

	// Strategy 1: Literal — an ADRP page or a RIP-relative LEA, evaluated
	// directly with no further recursion.
	if a.Kind(t) == tree.KindAddress {
		out = append(out, uint64(a.Value(t)))
		return out
	}
	if a.Kind(t) == tree.KindAddition && a.Kind(a.Left(t)) == tree.KindAddress && a.Kind(a.Right(t)) == tree.KindRegisterRIP {
		out = append(out, uint64(a.Value(a.Left(t))+a.Value(a.Right(t))))
		return out
	}

	// Strategy 2: Computed — base register plus a constant page offset,
	// e.g. the second half of an adrp+add pair. regDef(alpha) names gamma
	// by its own register identity, not gamma's value, so resolving gamma
	// means walking to whichever state's RegRef this read reaches — which,
	// for the common self-referencing "x1 = x1 + off" shape, is a strict
	// ancestor of s, never s itself.
	if cap, ok := tree.Match(a, computedPattern, t); ok {
		gamma := a.Register(cap.Get(0))
		off := a.Value(cap.Get(1))
		for _, def := range s.RegRef[gamma] {
			for _, page := range parseBaseAddressCandidates(a, def, gamma, visited) {
				out = append(out, uint64(int64(page)+off))
			}
		}
	}

	// Strategy 3: Saved/reloaded — a spilled base register reloaded from
	// the stack or a data section.
	if cap, ok := tree.Match(a, savedReloadedPattern, t); ok {
		loc := cap.Get(0)
		delta := a.Register(a.Left(loc))
		for _, definer := range definingStates(s, reg) {
			for _, ancestor := range definer.MemRef[delta] {
				for addr, val := range ancestor.MemDef {
					if addr != loc {
						continue
					}
					if a.Kind(val) != tree.KindPhysicalRegister {
						continue
					}
					candidateReg := a.Register(val)
					out = append(out, parseBaseAddressCandidates(a, ancestor, candidateReg, visited)...)
				}
			}
		}
	}

	return out
}

// definingStates returns the states whose RegDef[reg] is the definition
// reaching s: s itself if s's own instruction wrote reg, otherwise the
// predecessor states recorded in s.RegRef[reg].
func definingStates(s *slicer.State, reg ir.RegisterID) []*slicer.State {
	if _, ok := s.RegDef[reg]; ok {
		return []*slicer.State{s}
	}
	return s.RegRef[reg]
}
