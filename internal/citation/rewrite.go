package citation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Citation is the display-numbered content of one surviving marker.
type Citation struct {
	KB  []int `json:"kb,omitempty"`
	Web []int `json:"web,omitempty"`
}

// Kind reports which pools the citation spans.
func (c Citation) Kind() Kind {
	switch {
	case len(c.KB) > 0 && len(c.Web) > 0:
		return KindHybrid
	case len(c.Web) > 0:
		return KindWeb
	default:
		return KindKB
	}
}

// Size is the number of display indices carried.
func (c Citation) Size() int {
	return len(c.KB) + len(c.Web)
}

// Empty reports whether nothing survived.
func (c Citation) Empty() bool {
	return c.Size() == 0
}

func (c *Citation) add(pool Pool, display int) {
	list := &c.KB
	if pool == PoolWeb {
		list = &c.Web
	}
	for _, d := range *list {
		if d == display {
			return
		}
	}
	*list = append(*list, display)
}

// Emitter renders a resolved citation into the final text.
type Emitter func(c Citation) string

// DisplayText is the default emitter: [2,1], [web:1,2], [1, web:1].
// The kb group always comes first so the output parses back in display form.
func DisplayText(c Citation) string {
	var b strings.Builder
	b.WriteByte('[')
	writeInts(&b, c.KB)
	if len(c.Web) > 0 {
		if len(c.KB) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("web:")
		writeInts(&b, c.Web)
	}
	b.WriteByte(']')
	return b.String()
}

func writeInts(b *strings.Builder, ns []int) {
	for i, n := range ns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(n))
	}
}

// Usage records which display indices reached the final text.
type Usage map[Pool]map[int]bool

func (u Usage) mark(c Citation) {
	for _, d := range c.KB {
		u.set(PoolKB, d)
	}
	for _, d := range c.Web {
		u.set(PoolWeb, d)
	}
}

func (u Usage) set(pool Pool, display int) {
	if u[pool] == nil {
		u[pool] = map[int]bool{}
	}
	u[pool][display] = true
}

// Has reports whether a display index of pool was emitted.
func (u Usage) Has(pool Pool, display int) bool {
	return u[pool][display]
}

// Rewriter replaces markers using a finished mapping.
type Rewriter struct {
	mapping *Mapping
	index   *PoolIndex
	opts    ExtractOptions
	compact map[Pool]bool
}

// NewRewriter creates a Rewriter. The same index and options are used by the re-scan.
func NewRewriter(mapping *Mapping, idx *PoolIndex, opts ExtractOptions) *Rewriter {
	return &Rewriter{mapping: mapping, index: idx, opts: opts}
}

// Compact makes Resolve renumber the given pools over the citations that reach the
// final text, so numbering stays gapless when formatting drops a placeholder.
func (r *Rewriter) Compact(pools ...Pool) *Rewriter {
	r.compact = make(map[Pool]bool, len(pools))
	for _, pool := range pools {
		r.compact[pool] = true
	}
	return r
}

// Prepared is the text after Pass A: every surviving marker is an opaque placeholder.
type Prepared struct {
	// Text is safe to hand to a formatter.
	Text string
	// Removed counts markers deleted outright.
	Removed int
	// Partial counts markers reduced to their valid subset.
	Partial int
	// Dropped lists invalid references seen in Pass A.
	Dropped []Reference

	rewriter *Rewriter
	prefix   string
	pattern  *regexp.Regexp
	table    []Citation
}

const placeholderBase = "zqcite"

// placeholderPrefix picks a prefix that does not occur in text.
func placeholderPrefix(text string) string {
	lower := strings.ToLower(text)
	prefix := placeholderBase
	for i := 0; strings.Contains(lower, prefix); i++ {
		prefix = placeholderBase + strconv.Itoa(i) + "x"
	}
	return prefix
}

// Prepare runs Pass A. Fully invalid markers are removed with their surrounding
// whitespace normalized; every other marker becomes a placeholder.
func (r *Rewriter) Prepare(text string, markers []ValidatedMarker) *Prepared {
	p := &Prepared{rewriter: r, prefix: placeholderPrefix(text)}
	p.pattern = regexp.MustCompile(regexp.QuoteMeta(p.prefix) + `(\d+)q`)

	out := make([]byte, 0, len(text))
	cursor := 0
	for _, vm := range markers {
		if vm.Start < cursor {
			continue
		}
		out = append(out, text[cursor:vm.Start]...)
		cursor = vm.End

		if vm.Bare && vm.Action() == ActionRemove {
			out = append(out, text[vm.Start:vm.End]...)
			continue
		}

		switch vm.Action() {
		case ActionRemove:
			p.Removed++
			p.Dropped = append(p.Dropped, vm.Invalid...)
			out, cursor = trimAround(out, text, cursor)
			continue
		case ActionPartial:
			p.Partial++
			p.Dropped = append(p.Dropped, vm.Invalid...)
		}

		var c Citation
		for _, ref := range vm.Valid {
			if d, ok := r.mapping.Lookup(ref.Pool, ref.Index); ok {
				c.add(ref.Pool, d)
			}
		}
		out = append(out, p.prefix...)
		out = strconv.AppendInt(out, int64(len(p.table)), 10)
		out = append(out, 'q')
		p.table = append(p.table, c)
	}
	out = append(out, text[cursor:]...)
	p.Text = string(out)
	return p
}

// Placeholders is the number of placeholders written in Pass A.
func (p *Prepared) Placeholders() int {
	return len(p.table)
}

// Resolution is the outcome of Pass B.
type Resolution struct {
	Text string
	// Used holds the display indices present in Text.
	Used Usage
	// Rescued counts raw markers found after formatting.
	Rescued int
	// Dropped lists references the re-scan could not resolve.
	Dropped []Reference
	// Lost counts placeholders that did not survive formatting.
	Lost int
	// Mapping is the numbering used in Text. Compacted pools hold only cited items.
	Mapping *Mapping
}

// renumberer assigns final display indices in order of first appearance in the output.
type renumberer struct {
	pools     map[Pool]bool
	next      map[Pool]map[int]int
	firstSeen map[Pool][]int
}

func newRenumberer(pools map[Pool]bool) *renumberer {
	r := &renumberer{pools: pools, next: map[Pool]map[int]int{}, firstSeen: map[Pool][]int{}}
	for pool := range pools {
		r.next[pool] = map[int]int{}
		r.firstSeen[pool] = []int{}
	}
	return r
}

func (r *renumberer) apply(c Citation) Citation {
	if len(r.pools) == 0 {
		return c
	}
	var out Citation
	for _, d := range c.KB {
		out.add(PoolKB, r.display(PoolKB, d))
	}
	for _, d := range c.Web {
		out.add(PoolWeb, r.display(PoolWeb, d))
	}
	return out
}

func (r *renumberer) display(pool Pool, d int) int {
	if !r.pools[pool] {
		return d
	}
	if n, ok := r.next[pool][d]; ok {
		return n
	}
	n := len(r.firstSeen[pool]) + 1
	r.next[pool][d] = n
	r.firstSeen[pool] = append(r.firstSeen[pool], d)
	return n
}

type segment struct {
	span     Span
	citation Citation
	remove   bool
}

// Resolve runs Pass B over the formatted text: placeholders become emitted citations and
// raw markers that escaped Pass A are resolved against the same mapping.
func (p *Prepared) Resolve(formatted string, emit Emitter) Resolution {
	if emit == nil {
		emit = DisplayText
	}
	res := Resolution{Used: Usage{}}

	var segs []segment
	found := make(map[int]bool, len(p.table))
	for _, loc := range p.pattern.FindAllStringSubmatchIndex(formatted, -1) {
		n, err := strconv.Atoi(formatted[loc[2]:loc[3]])
		if err != nil || n >= len(p.table) {
			continue
		}
		found[n] = true
		segs = append(segs, segment{span: Span{Start: loc[0], End: loc[1]}, citation: p.table[n]})
	}
	res.Lost = len(p.table) - len(found)

	placeholders := len(segs)
	markers, _ := Extract(formatted, p.rewriter.opts)
	for _, m := range markers {
		if overlaps(m.Span, segs[:placeholders]) {
			continue
		}
		vm := Validate(m, p.rewriter.index)
		var c Citation
		var unmapped []Reference
		for _, ref := range vm.Valid {
			d, ok := p.rewriter.mapping.Lookup(ref.Pool, ref.Index)
			if !ok {
				unmapped = append(unmapped, ref)
				continue
			}
			c.add(ref.Pool, d)
		}
		if m.Bare && c.Empty() {
			continue
		}
		res.Rescued++
		res.Dropped = append(res.Dropped, vm.Invalid...)
		res.Dropped = append(res.Dropped, unmapped...)
		segs = append(segs, segment{span: m.Span, citation: c, remove: c.Empty()})
	}

	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].span.Start < segs[j].span.Start
	})

	renum := newRenumberer(p.rewriter.compact)
	out := make([]byte, 0, len(formatted))
	cursor := 0
	for _, s := range segs {
		if s.span.Start < cursor {
			continue
		}
		out = append(out, formatted[cursor:s.span.Start]...)
		cursor = s.span.End
		if s.remove {
			out, cursor = trimAround(out, formatted, cursor)
			continue
		}
		c := renum.apply(s.citation)
		res.Used.mark(c)
		out = append(out, emit(c)...)
	}
	out = append(out, formatted[cursor:]...)
	res.Text = string(out)
	res.Mapping = p.rewriter.mapping
	if len(p.rewriter.compact) > 0 {
		res.Mapping = p.rewriter.mapping.compacted(renum.firstSeen)
	}
	return res
}

func overlaps(span Span, segs []segment) bool {
	for _, s := range segs {
		if span.Start < s.span.End && s.span.Start < span.End {
			return true
		}
	}
	return false
}

// trimAround normalizes whitespace where a marker was deleted. out ends right before the
// deleted span and next is the offset in text right after it. It returns the trimmed
// output and the offset to continue copying from.
func trimAround(out []byte, text string, next int) ([]byte, int) {
	lead := next
	for lead < len(text) && isBlank(text[lead]) {
		lead++
	}
	trail := len(out)
	for trail > 0 && isBlank(out[trail-1]) {
		trail--
	}

	if trail > 0 && lead < len(text) && closerOf(out[trail-1]) != 0 && closerOf(out[trail-1]) == text[lead] {
		// "([cit:9])" leaves nothing between the brackets
		return trimAround(out[:trail-1], text, lead+1)
	}

	lineStart := trail == 0 || out[trail-1] == '\n'
	atLineEnd := lead == len(text) || text[lead] == '\n' || text[lead] == '\r'
	switch {
	case lineStart && lead < len(text) && atLineEnd:
		// the marker was the whole line
		return out[:trail], skipLineEnd(text, lead)
	case atLineEnd || isClosing(text[lead]):
		// "Fonte [cit:9]." -> "Fonte."
		return out[:trail], lead
	case lineStart:
		// keep indentation, drop the gap the marker leaves at line start
		return out, lead
	case isOpening(out[trail-1]):
		return out[:trail], lead
	case trail < len(out) && lead > next:
		return out, lead
	default:
		return out, next
	}
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func isClosing(c byte) bool {
	return strings.IndexByte(".,;:!?)]}", c) >= 0
}

func isOpening(c byte) bool {
	return strings.IndexByte("([{", c) >= 0
}

func closerOf(c byte) byte {
	switch c {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	}
	return 0
}

func skipLineEnd(text string, i int) int {
	if text[i] == '\r' {
		i++
	}
	if i < len(text) && text[i] == '\n' {
		i++
	}
	return i
}
