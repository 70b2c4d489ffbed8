package main

import (
	"flag"
	"fmt"
	"os"

	"jtcore/internal/cfg"
)

func cmdCFG(args []string) error {
	fs := flag.NewFlagSet("cfg", flag.ExitOnError)
	ff := bindFuncFlags(fs)
	out := fs.String("out", "", "write DOT here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fn, err := loadFunction(ff)
	if err != nil {
		return err
	}

	g := cfg.Build(fn)
	dot := cfg.DumpDOT(g)

	if *out == "" {
		fmt.Print(dot)
		return nil
	}
	return os.WriteFile(*out, []byte(dot), 0o644)
}
