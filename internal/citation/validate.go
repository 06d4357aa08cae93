package citation

// Action is what the rewriter must do with a validated marker.
type Action int

const (
	// ActionKeep rewrites the marker with all of its references.
	ActionKeep Action = iota
	// ActionPartial rewrites the marker with its valid subset only.
	ActionPartial
	// ActionRemove deletes the marker span entirely.
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionPartial:
		return "partial"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// PoolIndex resolves (pool, original index) pairs against the supplied pools.
// In list mode the kb namespace is backed by the meta listing.
type PoolIndex struct {
	kb  map[int]EvidenceItem
	web map[int]EvidenceItem
	// listing holds the meta items in original order when list mode is active.
	listing []EvidenceItem
}

// NewPoolIndex indexes pools by original index. The first item wins on duplicates.
func NewPoolIndex(p Pools, listMode bool) *PoolIndex {
	idx := &PoolIndex{
		kb:  make(map[int]EvidenceItem, len(p.KB)),
		web: make(map[int]EvidenceItem, len(p.Web)),
	}

	kbItems := p.KB
	if listMode && len(p.Meta) > 0 {
		kbItems = p.Meta
		idx.listing = dedupeByIndex(p.Meta)
	}
	for _, it := range kbItems {
		if _, dup := idx.kb[it.OriginalIndex]; !dup {
			idx.kb[it.OriginalIndex] = it
		}
	}
	for _, it := range p.Web {
		if _, dup := idx.web[it.OriginalIndex]; !dup {
			idx.web[it.OriginalIndex] = it
		}
	}
	return idx
}

// Item returns the evidence item for a reference.
func (x *PoolIndex) Item(ref Reference) (EvidenceItem, bool) {
	var it EvidenceItem
	var ok bool
	switch ref.Pool {
	case PoolKB:
		it, ok = x.kb[ref.Index]
	case PoolWeb:
		it, ok = x.web[ref.Index]
	}
	return it, ok
}

// Has reports whether the reference names an existing item.
func (x *PoolIndex) Has(ref Reference) bool {
	if ref.Index <= 0 {
		return false
	}
	_, ok := x.Item(ref)
	return ok
}

// Listing returns the meta items emitted by list mode, in original order.
func (x *PoolIndex) Listing() []EvidenceItem {
	return x.listing
}

func dedupeByIndex(items []EvidenceItem) []EvidenceItem {
	seen := make(map[int]bool, len(items))
	out := make([]EvidenceItem, 0, len(items))
	for _, it := range items {
		if seen[it.OriginalIndex] {
			continue
		}
		seen[it.OriginalIndex] = true
		out = append(out, it)
	}
	return out
}

// ValidatedMarker is a marker split into valid and invalid references.
type ValidatedMarker struct {
	Marker
	// Valid references in written order, each at most once.
	Valid []Reference
	// Invalid references absent from their pool.
	Invalid []Reference
}

// Action reports how the marker must be rewritten.
func (v ValidatedMarker) Action() Action {
	switch {
	case len(v.Valid) == 0:
		return ActionRemove
	case len(v.Invalid) > 0:
		return ActionPartial
	default:
		return ActionKeep
	}
}

// Validate checks every reference of m against idx.
func Validate(m Marker, idx *PoolIndex) ValidatedMarker {
	v := ValidatedMarker{Marker: m}
	seen := make(map[Reference]bool, len(m.References))
	for _, ref := range m.References {
		if !idx.Has(ref) {
			v.Invalid = append(v.Invalid, ref)
			continue
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		v.Valid = append(v.Valid, ref)
	}
	return v
}

// ValidateAll validates markers in order.
func ValidateAll(markers []Marker, idx *PoolIndex) []ValidatedMarker {
	out := make([]ValidatedMarker, 0, len(markers))
	for _, m := range markers {
		out = append(out, Validate(m, idx))
	}
	return out
}
