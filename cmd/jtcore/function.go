package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"jtcore/internal/ir"
)

// funcFlags are the flags every subcommand shares: which ISA to decode,
// where the raw instruction bytes live, where the function starts, and
// what to call it in diagnostics.
type funcFlags struct {
	arch *string
	in   *string
	addr *string
	name *string
}

func bindFuncFlags(fs *flag.FlagSet) funcFlags {
	return funcFlags{
		arch: fs.String("arch", "arm64", "amd64 or arm64"),
		in:   fs.String("in", "", "path to a flat file of raw instruction bytes"),
		addr: fs.String("addr", "0x0", "address of the function's first instruction"),
		name: fs.String("name", "fn", "function name for diagnostics"),
	}
}

func parseHexU64(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

func parseArch(s string) (ir.Arch, error) {
	switch s {
	case "amd64":
		return ir.AMD64, nil
	case "arm64":
		return ir.ARM64, nil
	default:
		return 0, fmt.Errorf("unknown -arch %q, want amd64 or arm64", s)
	}
}

// loadFunction reads ff.in and decodes it linearly into one single-block
// ir.Function, the same shape cfg.Build expects: straight-line code with
// control flow recovered later from the decoded Semantic, not from any
// block structure the loader itself imposes.
func loadFunction(ff funcFlags) (*ir.Function, error) {
	if *ff.in == "" {
		return nil, fmt.Errorf("-in is required")
	}
	arch, err := parseArch(*ff.arch)
	if err != nil {
		return nil, err
	}
	addr, err := parseHexU64(*ff.addr)
	if err != nil {
		return nil, fmt.Errorf("-addr: %w", err)
	}
	raw, err := os.ReadFile(*ff.in)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", *ff.in, err)
	}

	insts, err := decodeLinear(arch, raw, addr)
	if err != nil {
		return nil, err
	}

	return &ir.Function{
		Name: *ff.name,
		Arch: arch,
		Blocks: []ir.Block{
			{Name: *ff.name, Instructions: insts},
		},
	}, nil
}

// decodeLinear decodes every instruction in raw back to back starting at
// addr, stopping at the first decode error rather than trying to resync.
func decodeLinear(arch ir.Arch, raw []byte, addr uint64) ([]ir.Instruction, error) {
	if arch == ir.AMD64 {
		return decodeLinearAMD64(raw, addr)
	}
	return decodeLinearARM64(raw, addr)
}

func decodeLinearAMD64(raw []byte, addr uint64) ([]ir.Instruction, error) {
	var insts []ir.Instruction
	for off := 0; off < len(raw); {
		inst, err := ir.DecodeAMD64(raw[off:], addr)
		if err != nil {
			return nil, fmt.Errorf("decode at 0x%x: %w", addr, err)
		}
		insts = append(insts, inst)
		off += len(inst.Raw)
		addr += uint64(len(inst.Raw))
	}
	return insts, nil
}

func decodeLinearARM64(raw []byte, addr uint64) ([]ir.Instruction, error) {
	var insts []ir.Instruction
	for off := 0; off < len(raw); off += 4 {
		if len(raw)-off < 4 {
			return nil, fmt.Errorf("decode at 0x%x: %d trailing bytes, want 4", addr, len(raw)-off)
		}
		word := binary.LittleEndian.Uint32(raw[off : off+4])
		insts = append(insts, ir.DecodeARM64(word, addr))
		addr += 4
	}
	return insts, nil
}
