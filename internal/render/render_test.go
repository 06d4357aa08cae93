package render

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundchat/internal/citation"
)

func init() {
	// Suppress log output during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testPools() citation.Pools {
	return citation.NewPools(
		[]citation.KBInput{
			{Index: 1, Filename: "Reg.pdf", DocumentID: "d1"},
			{Index: 2, Filename: "Guide.pdf", DocumentID: "d2"},
			{Index: 3, Filename: "FAQ.pdf", DocumentID: "d3"},
		},
		[]citation.WebInput{{Index: 1, Title: "Web", URL: "https://example.com"}},
		nil,
	)
}

func kbSource(display int, title string) citation.EvidenceItem {
	return citation.EvidenceItem{Pool: citation.PoolKB, OriginalIndex: display, DisplayIndex: display, Title: title}
}

func webSource(display int, title string) citation.EvidenceItem {
	return citation.EvidenceItem{Pool: citation.PoolWeb, OriginalIndex: display, DisplayIndex: display, Title: title}
}

func TestElements(t *testing.T) {
	res := citation.Result{
		KBSources:  []citation.EvidenceItem{kbSource(1, "FAQ.pdf"), kbSource(2, "Reg.pdf")},
		WebSources: []citation.EvidenceItem{webSource(1, "Web")},
	}
	text := "A [2,1] b [1, web:1] c [9] d [web:1]"

	got := Elements(text, res)
	require.Len(t, got, 3)

	assert.Equal(t, KindMulti, got[0].Kind)
	assert.Equal(t, []int{2, 1}, got[0].Citation.KB)
	assert.Equal(t, "Reg.pdf", got[0].Sources[0].Title)
	assert.Equal(t, "[2,1]", text[got[0].Start:got[0].End])

	assert.Equal(t, KindHybrid, got[1].Kind)
	assert.Equal(t, []string{"FAQ.pdf", "Web"}, []string{got[1].Sources[0].Title, got[1].Sources[1].Title})

	assert.Equal(t, KindSingle, got[2].Kind)
	assert.Equal(t, []int{1}, got[2].Citation.Web)
}

func TestElements_NoMarkers(t *testing.T) {
	assert.Nil(t, Elements("plain [link](x) text", citation.Result{}))
}

func TestEmitHTML(t *testing.T) {
	tests := []struct {
		name string
		in   citation.Citation
		want string
	}{
		{"single", citation.Citation{KB: []int{1}}, `<sup class="citation citation-single" data-kb="1">[1]</sup>`},
		{"multi", citation.Citation{KB: []int{2, 1}}, `<sup class="citation citation-multi" data-kb="2,1">[2,1]</sup>`},
		{"web", citation.Citation{Web: []int{3}}, `<sup class="citation citation-single" data-web="3">[web:3]</sup>`},
		{"hybrid", citation.Citation{KB: []int{1}, Web: []int{1}}, `<sup class="citation citation-hybrid" data-kb="1" data-web="1">[1, web:1]</sup>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EmitHTML(tt.in))
		})
	}
}

func TestRenderer_HTML(t *testing.T) {
	r := NewRenderer(nil)
	in := citation.Input{
		Text:  "**Per** l'art. 5 [cit:3].\n\nVedi [cit:1,3] e [web:1]. Falso [cit:8].",
		Pools: testPools(),
	}

	got, err := r.HTML(context.Background(), in)
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(got.HTML))
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Find("strong").Length())
	sups := doc.Find("sup.citation")
	require.Equal(t, 3, sups.Length())

	first := sups.Eq(0)
	assert.True(t, first.HasClass("citation-single"))
	kbAttr, _ := first.Attr("data-kb")
	assert.Equal(t, "1", kbAttr)

	second := sups.Eq(1)
	assert.True(t, second.HasClass("citation-multi"))
	kbAttr, _ = second.Attr("data-kb")
	assert.Equal(t, "2,1", kbAttr)
	assert.Equal(t, "[2,1]", second.Text())

	webAttr, ok := sups.Eq(2).Attr("data-web")
	assert.True(t, ok)
	assert.Equal(t, "1", webAttr)

	assert.NotContains(t, got.HTML, "zqcite")
	assert.NotContains(t, got.HTML, "[cit:")
	assert.Contains(t, doc.Find("p").Last().Text(), "Falso.")

	titles := []string{got.KBSources[0].Title, got.KBSources[1].Title}
	if diff := cmp.Diff([]string{"FAQ.pdf", "Reg.pdf"}, titles); diff != "" {
		t.Errorf("kb sources mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, got.WebSources, 1)
}

func TestRenderer_HTMLRenumbersAfterDroppedBlock(t *testing.T) {
	r := NewRenderer(nil)
	// goldmark omits the raw HTML block together with the first citation
	got, err := r.HTML(context.Background(), citation.Input{
		Text:  "<div>\nper [cit:1]\n</div>\n\nThen [cit:2].",
		Pools: testPools(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Diagnostics.Lost)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(got.HTML))
	require.NoError(t, err)
	sups := doc.Find("sup.citation")
	require.Equal(t, 1, sups.Length())
	kbAttr, _ := sups.Attr("data-kb")
	assert.Equal(t, "1", kbAttr)
	assert.Equal(t, "[1]", sups.Text())

	require.Len(t, got.KBSources, 1)
	assert.Equal(t, 1, got.KBSources[0].DisplayIndex)
	assert.Equal(t, 2, got.KBSources[0].OriginalIndex)
	assert.Equal(t, "Guide.pdf", got.KBSources[0].Title)
}

func TestRenderer_HTMLEscapesRawHTML(t *testing.T) {
	r := NewRenderer(nil)
	got, err := r.HTML(context.Background(), citation.Input{
		Text:  "<script>alert(1)</script> ok [cit:1]",
		Pools: testPools(),
	})
	require.NoError(t, err)
	assert.NotContains(t, got.HTML, "<script>")
	assert.Contains(t, got.HTML, `data-kb="1"`)
}

func TestRenderer_HTMLCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRenderer(nil).HTML(ctx, citation.Input{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderer_Persisted(t *testing.T) {
	res := citation.Result{
		KBSources:  []citation.EvidenceItem{kbSource(1, "FAQ.pdf"), kbSource(2, "Reg.pdf")},
		WebSources: []citation.EvidenceItem{webSource(1, "Web")},
	}
	got, err := NewRenderer(nil).Persisted("See [2,1] and [web:1]. Gone [web:4]. Code items[7].", res)
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(got))
	require.NoError(t, err)

	assert.Equal(t, "See [2,1] and [web:1]. Gone. Code items[7].", doc.Find("p").Text())
	sups := doc.Find("sup.citation")
	require.Equal(t, 2, sups.Length())
	kbAttr, _ := sups.Eq(0).Attr("data-kb")
	assert.Equal(t, "2,1", kbAttr)
}

func TestRenderer_PersistedKeepsListNumbering(t *testing.T) {
	res := citation.Result{
		KBSources: []citation.EvidenceItem{
			{Pool: citation.PoolMeta, OriginalIndex: 5, DisplayIndex: 1, Title: "a.pdf"},
			{Pool: citation.PoolMeta, OriginalIndex: 2, DisplayIndex: 2, Title: "b.pdf"},
			{Pool: citation.PoolMeta, OriginalIndex: 9, DisplayIndex: 3, Title: "c.pdf"},
		},
	}
	got, err := NewRenderer(nil).Persisted("Third is [3].", res)
	require.NoError(t, err)
	assert.Contains(t, got, `data-kb="3"`)
}

func TestShowAllPayload(t *testing.T) {
	el := Element{
		Kind: KindHybrid,
		Sources: []citation.EvidenceItem{
			kbSource(2, "Reg.pdf"),
			kbSource(1, "FAQ.pdf"),
			webSource(1, "Web"),
		},
	}
	ev := ShowAllPayload(el)
	assert.Equal(t, KindHybrid, ev.Kind)
	require.Len(t, ev.KB, 2)
	assert.Equal(t, "Reg.pdf", ev.KB[0].Title)
	require.Len(t, ev.Web, 1)

	single := ShowAllPayload(Element{Kind: KindSingle, Sources: []citation.EvidenceItem{kbSource(1, "x")}})
	assert.NotNil(t, single.Web)
	assert.Empty(t, single.Web)
}
