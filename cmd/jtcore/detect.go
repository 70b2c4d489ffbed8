package main

import (
	"flag"
	"fmt"

	"jtcore/internal/ir"
	"jtcore/internal/jumptable"
	"jtcore/internal/tree"
)

func cmdDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	ff := bindFuncFlags(fs)
	partial := fs.Bool("partial", false, "report jumps whose bound could not be recovered")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fn, err := loadFunction(ff)
	if err != nil {
		return err
	}

	module := &ir.Module{
		Name:      "cli",
		Arch:      fn.Arch,
		Functions: []ir.Function{*fn},
	}

	a := tree.NewArena()
	store := jumptable.Detect(a, module, jumptable.Options{SavePartialInfoTables: *partial})

	for _, d := range store.All() {
		if err := d.Validate(); err != nil {
			fmt.Printf("%#08x  invalid: %v\n", d.Address, err)
			continue
		}
		bound := "unknown"
		if d.Bound != jumptable.UnknownBound {
			bound = fmt.Sprintf("%d (%d entries, via %s)", d.Bound, d.Entries, d.BoundMnemonic)
		}
		target := ""
		if d.HasTargetBase {
			target = fmt.Sprintf(" target_base=%#x", d.TargetBaseAddress)
		}
		fmt.Printf("%#08x  table=%#x scale=%d bound=%s%s index=%s\n",
			d.Address, d.TableBase, d.Scale, bound, target, tree.String(a, d.IndexExpr))
	}
	return nil
}
