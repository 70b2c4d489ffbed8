package slicer

import (
	"testing"

	"jtcore/internal/ir"
	"jtcore/internal/tree"
)

func blankState(id int) *State {
	return &State{
		NodeID:  id,
		InstIdx: id,
		RegDef:  map[ir.RegisterID]tree.Tree{},
		MemDef:  map[tree.Tree]tree.Tree{},
		RegTree: map[ir.RegisterID]tree.Tree{},
		MemTree: map[tree.Tree]tree.Tree{},
		RegRef:  map[ir.RegisterID][]*State{},
		RegUse:  map[ir.RegisterID][]*State{},
		MemRef:  map[ir.RegisterID][]*State{},
	}
}

func TestSearchUpDefWalksPastNonMatchingDefs(t *testing.T) {
	a := tree.NewArena()
	const r ir.RegisterID = 1

	origin := blankState(0)
	origin.RegDef[r] = a.Constant(9)

	middle := blankState(1)
	middle.RegDef[r] = a.PhysicalRegister(2) // does not match the pattern below
	middle.RegRef[r] = []*State{origin}

	start := blankState(2)
	start.RegRef[r] = []*State{middle}

	var found *State
	var capturedConst int64 = -1
	ok := SearchUpDef(a, start, r, tree.ConstantIs(9), func(s *State, cap tree.TreeCapture) bool {
		found = s
		capturedConst = a.Value(s.RegDef[r])
		return true
	})
	if !ok {
		t.Fatalf("SearchUpDef did not find the matching definition two hops back")
	}
	if found != origin {
		t.Fatalf("SearchUpDef visited %v, want origin %v", found, origin)
	}
	if capturedConst != 9 {
		t.Fatalf("matched definition held %d, want 9", capturedConst)
	}
}

func TestSearchUpDefStopsAtFirstMatch(t *testing.T) {
	a := tree.NewArena()
	const r ir.RegisterID = 1

	far := blankState(0)
	far.RegDef[r] = a.Constant(9)

	near := blankState(1)
	near.RegDef[r] = a.Constant(9)
	near.RegRef[r] = []*State{far}

	start := blankState(2)
	start.RegRef[r] = []*State{near}

	visits := 0
	SearchUpDef(a, start, r, tree.ConstantIs(9), func(s *State, cap tree.TreeCapture) bool {
		visits++
		return true
	})
	if visits != 1 {
		t.Fatalf("SearchUpDef visited %d matches, want exactly 1 (it must stop at the first)", visits)
	}
}

func TestSearchUpDefContinuesPastRejectedMatch(t *testing.T) {
	a := tree.NewArena()
	const r ir.RegisterID = 1

	far := blankState(0)
	far.RegDef[r] = a.Constant(9)

	near := blankState(1)
	near.RegDef[r] = a.Constant(9) // matches pattern but visit rejects this one
	near.RegRef[r] = []*State{far}

	start := blankState(2)
	start.RegRef[r] = []*State{near}

	var found *State
	ok := SearchUpDef(a, start, r, tree.ConstantIs(9), func(s *State, cap tree.TreeCapture) bool {
		if s == near {
			return false
		}
		found = s
		return true
	})
	if !ok {
		t.Fatalf("SearchUpDef did not continue past the rejected match to the older definition")
	}
	if found != far {
		t.Fatalf("SearchUpDef reported %v, want the older definition %v", found, far)
	}
}

func TestSearchUpDefTerminatesOnCycle(t *testing.T) {
	a := tree.NewArena()
	const r ir.RegisterID = 1

	s0 := blankState(0)
	s1 := blankState(1)
	s0.RegDef[r] = a.PhysicalRegister(5)
	s1.RegDef[r] = a.PhysicalRegister(5)
	s0.RegRef[r] = []*State{s1}
	s1.RegRef[r] = []*State{s0} // cycle

	start := blankState(2)
	start.RegRef[r] = []*State{s0}

	ok := SearchUpDef(a, start, r, tree.ConstantIs(100), func(s *State, cap tree.TreeCapture) bool {
		return true
	})
	if ok {
		t.Fatalf("SearchUpDef matched a pattern that cannot match, want false")
	}
	// Reaching this line without hanging is the real assertion: a cyclic
	// RegRef graph must not loop forever.
}

func TestSearchDownDefWalksForwardThroughRegUse(t *testing.T) {
	a := tree.NewArena()
	const r ir.RegisterID = 1

	start := blankState(0)
	next := blankState(1)
	next.RegDef[r] = a.Constant(42)
	start.RegUse[r] = []*State{next}

	var found *State
	ok := SearchDownDef(a, start, r, tree.ConstantIs(42), func(s *State, cap tree.TreeCapture) bool {
		found = s
		return true
	})
	if !ok || found != next {
		t.Fatalf("SearchDownDef did not find the forward definition: ok=%v found=%v", ok, found)
	}
}

func TestSearchDownDefContinuesPastRejectedMatch(t *testing.T) {
	a := tree.NewArena()
	const r ir.RegisterID = 1

	start := blankState(0)
	near := blankState(1)
	far := blankState(2)

	near.RegDef[r] = a.Constant(42) // matches pattern but visit rejects this one
	far.RegDef[r] = a.Constant(42)

	start.RegUse[r] = []*State{near}
	near.RegUse[r] = []*State{far}

	var found *State
	ok := SearchDownDef(a, start, r, tree.ConstantIs(42), func(s *State, cap tree.TreeCapture) bool {
		if s == near {
			return false
		}
		found = s
		return true
	})
	if !ok {
		t.Fatalf("SearchDownDef did not continue past the rejected match to the downstream definition")
	}
	if found != far {
		t.Fatalf("SearchDownDef reported %v, want the downstream definition %v", found, far)
	}
}

func TestWalkUsesVisitsEveryReaderRegardlessOfRedefinition(t *testing.T) {
	const r ir.RegisterID = 1

	start := blankState(0)
	reader := blankState(1)   // reads r but does not redefine it
	redefiner := blankState(2) // reads r and also redefines it
	start.RegUse[r] = []*State{reader, redefiner}

	var seen []*State
	WalkUses(start, r, func(s *State) bool {
		seen = append(seen, s)
		return false
	})
	if len(seen) != 2 {
		t.Fatalf("WalkUses visited %d states, want 2 (both direct readers)", len(seen))
	}
}

func TestWalkUsesStopsWhenVisitReturnsTrue(t *testing.T) {
	const r ir.RegisterID = 1

	start := blankState(0)
	target := blankState(1)
	start.RegUse[r] = []*State{target}

	visits := 0
	found := WalkUses(start, r, func(s *State) bool {
		visits++
		return s == target
	})
	if !found {
		t.Fatalf("WalkUses did not report finding target")
	}
	if visits != 1 {
		t.Fatalf("WalkUses made %d visits before stopping, want 1", visits)
	}
}
