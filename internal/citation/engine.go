// Package citation resolves and renumbers pool-scoped citation markers in model answers.
//
// The pipeline is Extract -> Validate -> BuildMapping -> Rewriter (Pass A, optional
// formatter, Pass B) -> Merge. Pass B renumbers each pool over the citations that reached
// the output, so a formatter that drops a placeholder never leaves a gap. Every stage is a pure function of the answer text and
// the evidence pools, so identical inputs always produce identical results.
package citation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"groundchat/internal/contextutil"
)

// Engine runs the citation pipeline. It holds no state between calls.
type Engine struct{}

// NewEngine creates a new Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Process resolves the markers of in.Text against in.Pools. It never fails: malformed
// markers stay as prose, invalid references are dropped, and anomalies are reported
// in Result.Diagnostics.
func (e *Engine) Process(ctx context.Context, in Input) Result {
	logger := contextutil.LoggerFromContext(ctx)
	opts := ExtractOptions{DisplayForm: in.DisplayForm}

	markers, malformed := Extract(in.Text, opts)
	for _, span := range malformed {
		logger.DebugContext(ctx, "malformed citation marker left as text",
			"start", span.Start,
			"end", span.End,
			"marker", in.Text[span.Start:span.End],
		)
	}

	idx := NewPoolIndex(in.Pools, in.ListMode)
	validated := ValidateAll(markers, idx)

	// a meta listing fixes kb numbering to listing positions
	compact := []Pool{PoolKB, PoolWeb}
	var seed *Mapping
	if in.ListMode && idx.Listing() != nil {
		seed = ListingMapping(idx.Listing())
		compact = []Pool{PoolWeb}
	}
	mapping := BuildMapping(validated, seed)

	prepared := NewRewriter(mapping, idx, opts).Compact(compact...).Prepare(in.Text, validated)

	diag := Diagnostics{
		Markers:   len(markers),
		Malformed: malformed,
		Removed:   prepared.Removed,
		Partial:   prepared.Partial,
		Dropped:   prepared.Dropped,
	}

	formatted := prepared.Text
	if in.Formatter != nil {
		f, err := in.Formatter(prepared.Text)
		if err != nil {
			logger.WarnContext(ctx, "formatter failed, using unformatted text", "error", err)
			diag.FormatError = err.Error()
		} else {
			formatted = f
		}
	}

	resolution := prepared.Resolve(formatted, in.Emit)
	diag.Rescued = resolution.Rescued
	diag.Lost = resolution.Lost
	diag.Dropped = append(diag.Dropped, resolution.Dropped...)
	if resolution.Rescued > 0 {
		logger.WarnContext(ctx, "raw citation markers survived formatting", "count", resolution.Rescued)
	}
	if resolution.Lost > 0 {
		logger.WarnContext(ctx, "citation placeholders lost during formatting", "count", resolution.Lost)
	}

	kb, web := Merge(resolution.Mapping, idx, resolution.Used, in.ListMode)

	if len(diag.Dropped) > 0 {
		logger.DebugContext(ctx, "dropped unresolvable citation references", "references", diag.Dropped)
	}
	logger.DebugContext(ctx, "citations processed",
		"markers", len(markers),
		"removed", diag.Removed,
		"partial", diag.Partial,
		"kb_sources", len(kb),
		"web_sources", len(web),
		"list_mode", in.ListMode,
	)

	return Result{
		Text:        resolution.Text,
		KBSources:   kb,
		WebSources:  web,
		Diagnostics: diag,
	}
}

// Process runs a default Engine.
func Process(ctx context.Context, in Input) Result {
	return NewEngine().Process(ctx, in)
}

// CacheKey identifies the output of Process for in. Inputs with a Formatter or Emit
// hook are not covered by the key and must not be cached with it.
func CacheKey(in Input) string {
	payload, _ := json.Marshal(struct {
		Text        string `json:"text"`
		Pools       Pools  `json:"pools"`
		ListMode    bool   `json:"list_mode"`
		DisplayForm bool   `json:"display_form"`
	}{in.Text, in.Pools, in.ListMode, in.DisplayForm})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
