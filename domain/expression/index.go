package expression

import (
	"fmt"

	"gocombat/domain/core"
)

// Index maps opaque identifiers to dense 0-based positions. It is used only
// at the boundary; all computation works on positions.
type Index struct {
	ids []string
	pos map[string]int
}

// NewIndex builds an index over ids, rejecting duplicates and empty ids.
func NewIndex(ids []string) (*Index, error) {
	idx := &Index{
		ids: append([]string(nil), ids...),
		pos: make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%w: empty id at position %d", core.ErrUnknownID, i)
		}
		if prev, ok := idx.pos[id]; ok {
			return nil, fmt.Errorf("%w: %q at positions %d and %d", core.ErrDuplicateID, id, prev, i)
		}
		idx.pos[id] = i
	}
	return idx, nil
}

// Len returns the number of ids.
func (x *Index) Len() int { return len(x.ids) }

// Position returns the position of id.
func (x *Index) Position(id string) (int, bool) {
	p, ok := x.pos[id]
	return p, ok
}

// ID returns the id at position p.
func (x *Index) ID(p int) string { return x.ids[p] }

// IDs returns a copy of the ids in position order.
func (x *Index) IDs() []string { return append([]string(nil), x.ids...) }

// Permutation returns, for each id in order, its position in x. Both sets
// must contain exactly the same ids.
func (x *Index) Permutation(order []string) ([]int, error) {
	if len(order) != len(x.ids) {
		return nil, fmt.Errorf("expected %d ids, got %d", len(x.ids), len(order))
	}
	perm := make([]int, len(order))
	seen := make(map[int]bool, len(order))
	for i, id := range order {
		p, ok := x.pos[id]
		if !ok {
			return nil, core.NewUnknownIDError("sample", id)
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: %q", core.ErrDuplicateID, id)
		}
		seen[p] = true
		perm[i] = p
	}
	return perm, nil
}
