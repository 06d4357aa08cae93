// Package render turns processed answers into interactive citation elements and HTML.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"groundchat/internal/citation"
)

// ElementKind is the visual shape of a citation element.
type ElementKind string

const (
	// KindSingle cites exactly one source.
	KindSingle ElementKind = "single"
	// KindMulti cites several sources of one pool.
	KindMulti ElementKind = "multi"
	// KindHybrid cites kb and web sources together.
	KindHybrid ElementKind = "hybrid"
)

// Element is one interactive citation found in display text.
type Element struct {
	Start    int               `json:"start"`
	End      int               `json:"end"`
	Kind     ElementKind       `json:"kind"`
	Citation citation.Citation `json:"citation"`
	// Sources in marker order, kb group first.
	Sources []citation.EvidenceItem `json:"sources"`
}

// Elements finds the display tokens of a processed text and binds each to its sources.
// Tokens whose indices have no matching source are skipped.
func Elements(text string, res citation.Result) []Element {
	markers, _ := citation.Extract(text, citation.ExtractOptions{DisplayForm: true})
	if len(markers) == 0 {
		return nil
	}
	lookup := newSourceLookup(res.KBSources, res.WebSources)

	elements := make([]Element, 0, len(markers))
	for _, m := range markers {
		el := Element{Start: m.Start, End: m.End}
		for _, ref := range m.References {
			it, ok := lookup.item(ref)
			if !ok || contains(el.Sources, it) {
				continue
			}
			el.Sources = append(el.Sources, it)
			if ref.Pool == citation.PoolWeb {
				el.Citation.Web = append(el.Citation.Web, ref.Index)
			} else {
				el.Citation.KB = append(el.Citation.KB, ref.Index)
			}
		}
		if len(el.Sources) == 0 {
			continue
		}
		el.Kind = kindOf(el.Citation)
		el.Sources = kbFirst(el.Sources)
		elements = append(elements, el)
	}
	return elements
}

func kindOf(c citation.Citation) ElementKind {
	switch {
	case c.Kind() == citation.KindHybrid:
		return KindHybrid
	case c.Size() > 1:
		return KindMulti
	default:
		return KindSingle
	}
}

func contains(items []citation.EvidenceItem, it citation.EvidenceItem) bool {
	for _, x := range items {
		if x.Pool == it.Pool && x.DisplayIndex == it.DisplayIndex {
			return true
		}
	}
	return false
}

func kbFirst(items []citation.EvidenceItem) []citation.EvidenceItem {
	out := make([]citation.EvidenceItem, 0, len(items))
	for _, it := range items {
		if it.Pool != citation.PoolWeb {
			out = append(out, it)
		}
	}
	for _, it := range items {
		if it.Pool == citation.PoolWeb {
			out = append(out, it)
		}
	}
	return out
}

type sourceLookup struct {
	kb  map[int]citation.EvidenceItem
	web map[int]citation.EvidenceItem
}

func newSourceLookup(kb, web []citation.EvidenceItem) sourceLookup {
	l := sourceLookup{
		kb:  make(map[int]citation.EvidenceItem, len(kb)),
		web: make(map[int]citation.EvidenceItem, len(web)),
	}
	for _, it := range kb {
		l.kb[it.DisplayIndex] = it
	}
	for _, it := range web {
		l.web[it.DisplayIndex] = it
	}
	return l
}

func (l sourceLookup) item(ref citation.Reference) (citation.EvidenceItem, bool) {
	var it citation.EvidenceItem
	var ok bool
	if ref.Pool == citation.PoolWeb {
		it, ok = l.web[ref.Index]
	} else {
		it, ok = l.kb[ref.Index]
	}
	return it, ok
}

// Rendered is an answer rendered to HTML together with its sources.
type Rendered struct {
	HTML        string                  `json:"html"`
	KBSources   []citation.EvidenceItem `json:"kb_sources"`
	WebSources  []citation.EvidenceItem `json:"web_sources"`
	Diagnostics citation.Diagnostics    `json:"diagnostics"`
}

// ErrFormat is returned when markdown conversion failed and the HTML holds escaped text.
var ErrFormat = errors.New("markdown formatting failed")

// Renderer converts answers to HTML with goldmark.
type Renderer struct {
	markdown goldmark.Markdown
	engine   *citation.Engine
}

// NewRenderer creates a Renderer. Raw HTML in answers is escaped.
func NewRenderer(engine *citation.Engine) *Renderer {
	if engine == nil {
		engine = citation.NewEngine()
	}
	return &Renderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
		engine: engine,
	}
}

// HTML processes a raw answer: Pass A, markdown, then Pass B with citation elements.
func (r *Renderer) HTML(ctx context.Context, in citation.Input) (Rendered, error) {
	if err := ctx.Err(); err != nil {
		return Rendered{}, err
	}
	in.Formatter = r.format
	in.Emit = EmitHTML
	res := r.engine.Process(ctx, in)

	out := Rendered{
		HTML:        res.Text,
		KBSources:   res.KBSources,
		WebSources:  res.WebSources,
		Diagnostics: res.Diagnostics,
	}
	if res.Diagnostics.FormatError != "" {
		out.HTML = "<p>" + escapeKeepingCitations(res.Text) + "</p>"
		return out, fmt.Errorf("%w: %s", ErrFormat, res.Diagnostics.FormatError)
	}
	return out, nil
}

// Persisted renders an answer that was already processed. Display tokens keep their
// numbers and are bound to the stored sources.
func (r *Renderer) Persisted(text string, res citation.Result) (string, error) {
	opts := citation.ExtractOptions{DisplayForm: true}
	idx := citation.NewPoolIndex(citation.DisplayPools(res.KBSources, res.WebSources), false)
	mapping := citation.DisplayMapping(res.KBSources, res.WebSources)

	markers, _ := citation.Extract(text, opts)
	prepared := citation.NewRewriter(mapping, idx, opts).Prepare(text, citation.ValidateAll(markers, idx))

	formatted, err := r.format(prepared.Text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return prepared.Resolve(formatted, EmitHTML).Text, nil
}

func (r *Renderer) format(text string) (string, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// EmitHTML renders a citation as a superscript element the tooltip layer can bind to.
func EmitHTML(c citation.Citation) string {
	var b strings.Builder
	b.WriteString(`<sup class="citation citation-`)
	b.WriteString(string(kindOf(c)))
	b.WriteByte('"')
	if len(c.KB) > 0 {
		b.WriteString(` data-kb="`)
		b.WriteString(joinInts(c.KB))
		b.WriteByte('"')
	}
	if len(c.Web) > 0 {
		b.WriteString(` data-web="`)
		b.WriteString(joinInts(c.Web))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	b.WriteString(citation.DisplayText(c))
	b.WriteString("</sup>")
	return b.String()
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// escapeKeepingCitations escapes text that already contains emitted citation elements.
func escapeKeepingCitations(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, `<sup class="citation`)
		if start < 0 {
			b.WriteString(html.EscapeString(text))
			return b.String()
		}
		end := strings.Index(text[start:], "</sup>")
		if end < 0 {
			b.WriteString(html.EscapeString(text))
			return b.String()
		}
		end += start + len("</sup>")
		b.WriteString(html.EscapeString(text[:start]))
		b.WriteString(text[start:end])
		text = text[end:]
	}
}

// ShowAllEvent is raised by the "show all sources" affordance of a visible tooltip.
type ShowAllEvent struct {
	Kind ElementKind             `json:"kind"`
	KB   []citation.EvidenceItem `json:"kb"`
	Web  []citation.EvidenceItem `json:"web"`
}

// ShowAllPayload builds the event body carrying every source of an element in order.
func ShowAllPayload(el Element) ShowAllEvent {
	ev := ShowAllEvent{
		Kind: el.Kind,
		KB:   []citation.EvidenceItem{},
		Web:  []citation.EvidenceItem{},
	}
	for _, it := range el.Sources {
		if it.Pool == citation.PoolWeb {
			ev.Web = append(ev.Web, it)
		} else {
			ev.KB = append(ev.KB, it)
		}
	}
	return ev
}
