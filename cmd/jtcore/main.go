package main

import (
	"fmt"
	"os"
)

func usage() {
	fmt.Fprintf(os.Stderr, `jtcore - jump-table discovery over disassembled functions

Usage:

  jtcore disasm -arch amd64|arm64 -in <raw.bin> [-addr 0x1000] [-name fn]
      Decode a flat file of raw instruction bytes and print one line per
      instruction: address, mnemonic, operands, semantic kind.

  jtcore cfg -arch amd64|arm64 -in <raw.bin> [-addr 0x1000] [-name fn] [-out graph.dot]
      Decode the same way, build the control-flow graph, and emit it as
      Graphviz DOT (to -out, or stdout if omitted).

  jtcore detect -arch amd64|arm64 -in <raw.bin> [-addr 0x1000] [-name fn] [-partial]
      Decode the function, run jump-table detection over it, and print one
      line per recovered descriptor. -partial also reports jumps whose
      bound could not be recovered.

  jtcore help
      Show this message.

`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "cfg":
		err = cmdCFG(os.Args[2:])
	case "detect":
		err = cmdDetect(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "jtcore: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
