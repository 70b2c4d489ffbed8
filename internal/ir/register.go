package ir

// Arch identifies one of the two supported instruction set architectures.
type Arch int

const (
	AMD64 Arch = iota
	ARM64
)

func (a Arch) String() string {
	if a == ARM64 {
		return "arm64"
	}
	return "amd64"
}

// RegisterID is a stable integer id for an architectural register. Values
// below the synthetic range are architecture-specific register numbers as
// produced by the reference decoders (golang.org/x/arch/x86/x86asm.Reg cast
// directly to RegisterID on AMD64, the 0-31 general-register number on
// ARM64); they are only meaningful together with the Arch of the owning
// Function.
type RegisterID int

// Synthetic registers. These occupy a range disjoint from any real
// architectural register number so they never collide with a decoder's
// own register numbering.
const (
	// NZCV is the persistent condition-flags register on the fixed-width
	// ISA, set by compare instructions.
	NZCV RegisterID = 1_000_000 + iota

	// ONETIMENZCV is the one-time flags slot used by compare-and-branch
	// instructions (cbz/cbnz) on the fixed-width ISA: it indicates "no
	// separate compare definition exists" rather than naming a durable
	// register.
	ONETIMENZCV

	// EFLAGS is the flags register on the variable-length ISA, set by
	// compare instructions.
	EFLAGS

	// PC names the program counter as an instruction operand (e.g. the
	// base register of a RIP-relative memory operand) before it has been
	// resolved into a RegisterRIP tree node.
	PC
)

// IsSynthetic reports whether r is one of the synthetic registers above
// rather than a real architectural register number.
func (r RegisterID) IsSynthetic() bool { return r >= NZCV }
