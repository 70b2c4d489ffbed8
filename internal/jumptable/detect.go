package jumptable

import (
	"jtcore/internal/cfg"
	"jtcore/internal/diag"
	"jtcore/internal/ir"
	"jtcore/internal/slicer"
	"jtcore/internal/tree"
)

var targetForm1Pattern = tree.Binary(tree.KindAddition,
	tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)),
	tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)))

var targetForm2Pattern = tree.Binary(tree.KindAddition,
	tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)),
	tree.Binary(tree.KindLogicalShiftLeft,
		tree.Capture(tree.TerminalOf(tree.KindPhysicalRegister)),
		tree.Capture(tree.TerminalOf(tree.KindConstant))))

// Detect walks every function in module, drives the slicer over each
// indirect jump, and returns every recovered descriptor.
func Detect(a *tree.Arena, module *ir.Module, opts Options) *Store {
	store := NewStore()
	for i := range module.Functions {
		detectFunction(a, &module.Functions[i], module.Arch, opts, store)
	}
	return store
}

func detectFunction(a *tree.Arena, fn *ir.Function, arch ir.Arch, opts Options, store *Store) {
	g := cfg.Build(fn)
	if len(g.Insts) == 0 {
		return
	}

	engineB := slicer.Analyze(a, arch, g)

	for idx, inst := range g.Insts {
		if inst.Semantic.Kind != ir.IndirectJump {
			continue
		}
		node, _, ok := g.NodeAt(inst.Address)
		if !ok {
			continue
		}
		d, ok := detectJump(a, fn, arch, g, node.ID, idx, engineB, inst, opts)
		if !ok {
			continue
		}
		store.Add(d)
	}
}

func detectJump(a *tree.Arena, fn *ir.Function, arch ir.Arch, g *cfg.Graph, nodeID, instIdx int, engineB *slicer.Function, inst ir.Instruction, opts Options) (Descriptor, bool) {
	jumpState := engineB.StateAt(instIdx)
	targetReg := inst.Semantic.TargetRegister
	targetTree, ok := jumpState.RegTree[targetReg]
	if !ok {
		return Descriptor{}, false
	}

	base := Descriptor{Function: fn, Address: inst.Address, Bound: UnknownBound}

	for _, form := range []tree.Pattern{targetForm1Pattern, targetForm2Pattern} {
		cap, ok := tree.Match(a, form, targetTree)
		if !ok {
			continue
		}
		// The jump itself reads targetReg directly, so
		// definingStates(jumpState, targetReg) reaches the instruction that
		// actually computed the target — the anchor resolveFromCapture
		// needs, since that instruction (not the jump) is the one that
		// reads both captured registers by name.
		for _, anchor := range definingStates(jumpState, targetReg) {
			if d, boundState, indexReg, ok := resolveFromCapture(a, anchor, cap, base); ok {
				return finishDescriptor(a, arch, g, nodeID, instIdx, engineB, boundState, d, indexReg, opts)
			}
		}
	}

	// Fallback: the table holds absolute addresses and the jump's own
	// target register is the loaded entry, with no separate
	// base-plus-index addition on top of the load. jumpState reads
	// targetReg directly, so it is a valid anchor here.
	if access, ok := ParseTableAccess(a, jumpState, targetReg); ok {
		d := base
		d.TableBase = access.TableBase
		d.Scale = access.Scale
		d.IndexExpr = a.PhysicalRegister(access.IndexReg)
		return finishDescriptor(a, arch, g, nodeID, instIdx, engineB, access.State, d, access.IndexReg, opts)
	}

	return Descriptor{}, false
}

// resolveFromCapture tries the two captured registers as (base, index) and
// then (index, base) — the swap-and-retry §4.4.2 requires when the first
// ordering's base resolution fails. anchor is the instruction that produced
// the addition being matched, so it reads both captured registers by name;
// ParseTableAccess's own returned state (the load that produced the index)
// is handed back as boundState, the correct anchor for bound recovery.
func resolveFromCapture(a *tree.Arena, anchor *slicer.State, cap tree.TreeCapture, base Descriptor) (Descriptor, *slicer.State, ir.RegisterID, bool) {
	regs := [2]ir.RegisterID{a.Register(cap.Get(0)), a.Register(cap.Get(1))}
	for i := 0; i < 2; i++ {
		baseReg := regs[i]
		indexReg := regs[1-i]
		candidates := ParseBaseAddressCandidates(a, anchor, baseReg)
		if len(candidates) == 0 {
			continue
		}
		addr := candidates[0]
		if len(candidates) > 1 {
			diag.Log(diag.LevelWarn, "multiple base address candidates, keeping the first",
				"chosen", addr, "discarded", candidates[1:])
		}
		access, ok := ParseTableAccess(a, anchor, indexReg)
		if !ok {
			continue
		}
		d := base
		d.TargetBaseAddress = addr
		d.HasTargetBase = true
		d.TableBase = access.TableBase
		d.Scale = access.Scale
		d.IndexExpr = a.PhysicalRegister(access.IndexReg)
		return d, access.State, access.IndexReg, true
	}
	return Descriptor{}, nil, ir.NoRegister, false
}

func finishDescriptor(a *tree.Arena, arch ir.Arch, g *cfg.Graph, nodeID, instIdx int, engineB *slicer.Function, boundState *slicer.State, d Descriptor, indexReg ir.RegisterID, opts Options) (Descriptor, bool) {
	boundFound := false

	if arch == ir.AMD64 {
		_, conditions := slicer.SliceAt(a, arch, g, nodeID, instIdx)
		if res, ok := ParseBoundAMD64(a, conditions, d.IndexExpr); ok {
			d.Bound, d.Entries, d.BoundMnemonic = res.Bound, res.Entries, res.Mnemonic
			boundFound = true
		}
	} else if indexReg != ir.NoRegister && boundState != nil {
		if res, ok := ParseBound(a, boundState, indexReg, engineB); ok {
			d.Bound, d.Entries, d.BoundMnemonic = res.Bound, res.Entries, res.Mnemonic
			boundFound = true
		}
	}

	if !boundFound {
		if !opts.SavePartialInfoTables {
			return Descriptor{}, false
		}
		d.Bound = UnknownBound
		d.Entries = 0
	}

	return d, true
}
