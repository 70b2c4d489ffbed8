package jumptable

import (
	"fmt"

	"jtcore/internal/ir"
	"jtcore/internal/tree"
)

// UnknownBound is the sentinel Bound value for a descriptor whose
// bound-recovery strategies all failed (its Entries is then 0).
const UnknownBound = -1

// Descriptor is everything recovered about one indirect jump computed by
// indexing a jump table.
type Descriptor struct {
	Function *ir.Function
	Address  uint64 // address of the jump instruction

	TableBase         uint64
	TargetBaseAddress uint64
	HasTargetBase     bool
	Scale             int
	Bound             int64 // UnknownBound if unrecovered
	Entries           int64 // Bound+1, or 0 if unrecovered
	IndexExpr         tree.Tree
	BoundMnemonic     string // bound-recovery source mnemonic, if any
}

// Validate checks the descriptor's internal invariants. It never mutates
// the descriptor.
func (d Descriptor) Validate() error {
	if d.Function == nil {
		return fmt.Errorf("jumptable: descriptor at %#x has no owning function", d.Address)
	}
	if d.Address == 0 {
		return fmt.Errorf("jumptable: descriptor has zero address")
	}
	if d.TableBase == 0 {
		return fmt.Errorf("jumptable: descriptor at %#x has zero table base", d.Address)
	}
	if d.Scale <= 0 {
		return fmt.Errorf("jumptable: descriptor at %#x has non-positive scale %d", d.Address, d.Scale)
	}
	if d.Bound != UnknownBound && d.Entries != d.Bound+1 {
		return fmt.Errorf("jumptable: descriptor at %#x has bound %d but entries %d", d.Address, d.Bound, d.Entries)
	}
	return nil
}

// Store is an append-only collection of recovered descriptors.
type Store struct {
	descriptors []Descriptor
}

// NewStore creates an empty Store.
func NewStore() *Store { return &Store{} }

// Add appends d to the store. It does not validate d; callers that care
// about the invariants call Validate themselves.
func (st *Store) Add(d Descriptor) { st.descriptors = append(st.descriptors, d) }

// All returns every descriptor added so far, in insertion order.
func (st *Store) All() []Descriptor { return st.descriptors }

// ForFunction returns the descriptors owned by fn.
func (st *Store) ForFunction(fn *ir.Function) []Descriptor {
	var out []Descriptor
	for _, d := range st.descriptors {
		if d.Function == fn {
			out = append(out, d)
		}
	}
	return out
}
