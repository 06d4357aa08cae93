package citation

import "sort"

// Merge projects the mapping onto the pools. Only display indices present in used are
// emitted, sorted by display index. In list mode the kb list is the whole meta listing in
// its original order, numbered 1..n, whether cited or not.
func Merge(m *Mapping, idx *PoolIndex, used Usage, listMode bool) (kb, web []EvidenceItem) {
	if listMode && idx.Listing() != nil {
		kb = make([]EvidenceItem, 0, len(idx.Listing()))
		for i, it := range idx.Listing() {
			it.DisplayIndex = i + 1
			kb = append(kb, it)
		}
	} else {
		kb = project(PoolKB, m, idx, used)
	}
	web = project(PoolWeb, m, idx, used)
	return kb, web
}

func project(pool Pool, m *Mapping, idx *PoolIndex, used Usage) []EvidenceItem {
	out := []EvidenceItem{}
	for _, original := range m.Originals(pool) {
		d, _ := m.Lookup(pool, original)
		if used != nil && !used.Has(pool, d) {
			continue
		}
		it, ok := idx.Item(Reference{Pool: pool, Index: original})
		if !ok {
			continue
		}
		it.DisplayIndex = d
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayIndex < out[j].DisplayIndex
	})
	return out
}
