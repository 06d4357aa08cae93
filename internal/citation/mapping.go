package citation

// Mapping assigns display indices per pool. Kb and web numbering never interact.
type Mapping struct {
	display map[Pool]map[int]int
	// order lists original indices per pool in display order.
	order map[Pool][]int
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{
		display: map[Pool]map[int]int{
			PoolKB:  {},
			PoolWeb: {},
		},
		order: map[Pool][]int{},
	}
}

// ListingMapping seeds the kb namespace with a listing: the i-th item gets display index i+1.
func ListingMapping(listing []EvidenceItem) *Mapping {
	m := NewMapping()
	for _, it := range listing {
		m.Assign(PoolKB, it.OriginalIndex)
	}
	return m
}

// Assign returns the display index for (pool, original), allocating the next free one
// the first time the pair is seen.
func (m *Mapping) Assign(pool Pool, original int) int {
	byPool, ok := m.display[pool]
	if !ok {
		byPool = map[int]int{}
		m.display[pool] = byPool
	}
	if d, ok := byPool[original]; ok {
		return d
	}
	d := len(m.order[pool]) + 1
	byPool[original] = d
	m.order[pool] = append(m.order[pool], original)
	return d
}

// Lookup returns the display index already assigned to (pool, original).
func (m *Mapping) Lookup(pool Pool, original int) (int, bool) {
	d, ok := m.display[pool][original]
	return d, ok
}

// Originals returns the original indices of a pool in display order.
func (m *Mapping) Originals(pool Pool) []int {
	return append([]int(nil), m.order[pool]...)
}

// Len is the number of display indices assigned in a pool.
func (m *Mapping) Len(pool Pool) int {
	return len(m.order[pool])
}

func (m *Mapping) clone() *Mapping {
	c := NewMapping()
	for pool, originals := range m.order {
		for _, o := range originals {
			c.Assign(pool, o)
		}
	}
	return c
}

// BuildMapping walks validated markers in text order and numbers each valid reference
// on first appearance. A non-nil seed is copied, never modified.
func BuildMapping(markers []ValidatedMarker, seed *Mapping) *Mapping {
	m := NewMapping()
	if seed != nil {
		m = seed.clone()
	}
	for _, vm := range markers {
		for _, ref := range vm.Valid {
			m.Assign(ref.Pool, ref.Index)
		}
	}
	return m
}

// DisplayMapping maps each display index of already processed sources onto itself, so a
// processed text can go through the rewriter again without renumbering.
func DisplayMapping(kb, web []EvidenceItem) *Mapping {
	m := NewMapping()
	pin := func(pool Pool, items []EvidenceItem) {
		for _, it := range items {
			if _, ok := m.display[pool][it.DisplayIndex]; ok || it.DisplayIndex <= 0 {
				continue
			}
			m.display[pool][it.DisplayIndex] = it.DisplayIndex
			m.order[pool] = append(m.order[pool], it.DisplayIndex)
		}
	}
	pin(PoolKB, kb)
	pin(PoolWeb, web)
	return m
}

// DisplayPools turns processed sources back into pools keyed by display index.
func DisplayPools(kb, web []EvidenceItem) Pools {
	var p Pools
	for _, it := range kb {
		it.Pool = PoolKB
		it.OriginalIndex = it.DisplayIndex
		p.KB = append(p.KB, it)
	}
	for _, it := range web {
		it.OriginalIndex = it.DisplayIndex
		p.Web = append(p.Web, it)
	}
	return p
}

// compacted returns a mapping in which every pool of firstSeen holds only the listed
// display indices, renumbered 1..n in that order. Other pools are copied unchanged.
func (m *Mapping) compacted(firstSeen map[Pool][]int) *Mapping {
	c := NewMapping()
	for pool, originals := range m.order {
		if _, ok := firstSeen[pool]; ok {
			continue
		}
		byPool := make(map[int]int, len(m.display[pool]))
		for o, d := range m.display[pool] {
			byPool[o] = d
		}
		c.display[pool] = byPool
		c.order[pool] = append([]int(nil), originals...)
	}
	for pool, displays := range firstSeen {
		original := make(map[int]int, len(m.display[pool]))
		for o, d := range m.display[pool] {
			original[d] = o
		}
		for _, d := range displays {
			if o, ok := original[d]; ok {
				c.Assign(pool, o)
			}
		}
	}
	return c
}
