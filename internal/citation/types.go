package citation

import "slices"

// Pool names an evidence pool. Each pool has its own index space.
type Pool string

const (
	// PoolKB is the document knowledge base.
	PoolKB Pool = "kb"
	// PoolWeb is the live web search pool.
	PoolWeb Pool = "web"
	// PoolMeta is the database-metadata listing used by list mode.
	PoolMeta Pool = "meta"
)

// EvidenceItem is one retrievable unit of evidence.
type EvidenceItem struct {
	// Pool is the evidence pool this item belongs to.
	Pool Pool `json:"pool"`
	// OriginalIndex is the index assigned by the pool at retrieval time.
	OriginalIndex int `json:"original_index"`
	// DisplayIndex is the compact per-pool index shown to the user. Zero until assigned.
	DisplayIndex int `json:"display_index"`
	// Locator is the document id (kb, meta) or URL (web).
	Locator string `json:"locator"`
	// Title is the filename (kb, meta) or page title (web).
	Title string `json:"title"`
	// Excerpt is the cited content.
	Excerpt string `json:"excerpt,omitempty"`
	// Score is the optional similarity score.
	Score *float64 `json:"score,omitempty"`
	// ChunkIndex is the chunk position inside the document (kb only).
	ChunkIndex int `json:"chunk_index,omitempty"`
	// URL is the source URL (web only).
	URL string `json:"url,omitempty"`
}

// Pools holds the evidence pools available when the answer was produced.
type Pools struct {
	KB   []EvidenceItem `json:"kb,omitempty"`
	Web  []EvidenceItem `json:"web,omitempty"`
	Meta []EvidenceItem `json:"meta,omitempty"`
}

// KBInput is the knowledge-base item shape handed over by retrieval.
type KBInput struct {
	Index      int     `json:"index"`
	Filename   string  `json:"filename"`
	DocumentID string  `json:"documentId"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
	ChunkIndex int     `json:"chunkIndex"`
}

// WebInput is the web search item shape handed over by retrieval.
type WebInput struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// MetaInput is the document listing shape used in list mode.
type MetaInput struct {
	Index      int    `json:"index"`
	Filename   string `json:"filename"`
	DocumentID string `json:"documentId"`
}

// KBItem converts a knowledge-base input into an EvidenceItem.
func KBItem(in KBInput) EvidenceItem {
	score := in.Similarity
	return EvidenceItem{
		Pool:          PoolKB,
		OriginalIndex: in.Index,
		Locator:       in.DocumentID,
		Title:         in.Filename,
		Excerpt:       in.Content,
		Score:         &score,
		ChunkIndex:    in.ChunkIndex,
	}
}

// WebItem converts a web search input into an EvidenceItem.
func WebItem(in WebInput) EvidenceItem {
	return EvidenceItem{
		Pool:          PoolWeb,
		OriginalIndex: in.Index,
		Locator:       in.URL,
		Title:         in.Title,
		Excerpt:       in.Content,
		URL:           in.URL,
	}
}

// MetaItem converts a document listing entry into an EvidenceItem.
func MetaItem(in MetaInput) EvidenceItem {
	return EvidenceItem{
		Pool:          PoolMeta,
		OriginalIndex: in.Index,
		Locator:       in.DocumentID,
		Title:         in.Filename,
	}
}

// NewPools builds Pools from the raw retrieval shapes.
func NewPools(kb []KBInput, web []WebInput, meta []MetaInput) Pools {
	var p Pools
	for _, in := range kb {
		p.KB = append(p.KB, KBItem(in))
	}
	for _, in := range web {
		p.Web = append(p.Web, WebItem(in))
	}
	for _, in := range meta {
		p.Meta = append(p.Meta, MetaItem(in))
	}
	return p
}

// Kind classifies a marker by the pools it references.
type Kind string

const (
	KindKB     Kind = "kb"
	KindWeb    Kind = "web"
	KindHybrid Kind = "hybrid"
)

// Reference is one (pool, index) pair as written inside a marker.
type Reference struct {
	Pool  Pool `json:"pool"`
	Index int  `json:"index"`
}

// Span is a half-open byte range [Start, End) in a text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Marker is one bracketed citation occurrence in raw text.
type Marker struct {
	Span
	Kind Kind `json:"kind"`
	// References in the order written. Duplicates and out-of-range values are kept.
	References []Reference `json:"references"`
	// Bare is set for display-form markers written without any pool keyword, e.g. [2,1].
	// A bare marker that resolves to nothing is ordinary prose such as items[0].
	Bare bool `json:"bare,omitempty"`
}

// Input is everything the engine needs for one assistant turn.
type Input struct {
	Text  string `json:"text"`
	Pools Pools  `json:"pools"`
	// ListMode emits every meta item regardless of citation.
	ListMode bool `json:"list_mode,omitempty"`
	// DisplayForm also accepts already-rendered display markers such as [2,1].
	DisplayForm bool `json:"display_form,omitempty"`
	// Formatter is the external formatting step run between rewriter passes.
	Formatter Formatter `json:"-"`
	// Emit renders surviving citations in Pass B. Nil means DisplayText.
	Emit Emitter `json:"-"`
}

// Formatter transforms placeholder text, e.g. markdown to HTML.
type Formatter func(text string) (string, error)

// Result is the output of one processing run.
type Result struct {
	Text        string         `json:"text"`
	KBSources   []EvidenceItem `json:"kb_sources"`
	WebSources  []EvidenceItem `json:"web_sources"`
	Diagnostics Diagnostics    `json:"-"`
}

// Clone returns a copy of r that shares no slices or scores with it.
func (r Result) Clone() Result {
	r.KBSources = cloneItems(r.KBSources)
	r.WebSources = cloneItems(r.WebSources)
	r.Diagnostics.Malformed = slices.Clone(r.Diagnostics.Malformed)
	r.Diagnostics.Dropped = slices.Clone(r.Diagnostics.Dropped)
	return r
}

func cloneItems(items []EvidenceItem) []EvidenceItem {
	out := slices.Clone(items)
	for i := range out {
		if out[i].Score != nil {
			score := *out[i].Score
			out[i].Score = &score
		}
	}
	return out
}

// Diagnostics records the recoverable anomalies met while processing.
type Diagnostics struct {
	// Markers is the number of well-formed markers found in the raw text.
	Markers int `json:"markers"`
	// Malformed are bracket spans that looked like markers but did not parse.
	Malformed []Span `json:"malformed,omitempty"`
	// Dropped are references absent from their pool.
	Dropped []Reference `json:"dropped,omitempty"`
	// Removed counts markers deleted because every reference was invalid.
	Removed int `json:"removed"`
	// Partial counts markers reduced to their valid subset.
	Partial int `json:"partial"`
	// Rescued counts raw markers resolved by the defensive re-scan after formatting.
	Rescued int `json:"rescued"`
	// Lost counts placeholders that did not survive formatting.
	Lost int `json:"lost"`
	// FormatError is set when the formatter failed and unformatted text was used.
	FormatError string `json:"format_error,omitempty"`
}
