package handlers

import (
	"errors"
	"net/http"

	"groundchat/internal/citation"
	"groundchat/internal/contextutil"
	"groundchat/internal/render"
	"groundchat/internal/service"
)

// ProcessRequest is a raw answer with the pools it was generated from. Pool items use
// the shapes handed over by retrieval.
//
// swagger:model ProcessRequest
type ProcessRequest struct {
	Text        string               `json:"text"`
	KBPool      []citation.KBInput   `json:"kb_pool,omitempty"`
	WebPool     []citation.WebInput  `json:"web_pool,omitempty"`
	MetaPool    []citation.MetaInput `json:"meta_pool,omitempty"`
	ListMode    bool                 `json:"list_mode,omitempty"`
	DisplayForm bool                 `json:"display_form,omitempty"`
}

// Input converts the request into engine input.
func (r ProcessRequest) Input() citation.Input {
	return citation.Input{
		Text:        r.Text,
		Pools:       citation.NewPools(r.KBPool, r.WebPool, r.MetaPool),
		ListMode:    r.ListMode,
		DisplayForm: r.DisplayForm,
	}
}

// ProcessResponse is the processed answer.
//
// swagger:model ProcessResponse
type ProcessResponse struct {
	Text        string                  `json:"text"`
	KBSources   []citation.EvidenceItem `json:"kb_sources"`
	WebSources  []citation.EvidenceItem `json:"web_sources"`
	Diagnostics citation.Diagnostics    `json:"diagnostics"`
}

// NewProcessResponse wraps a Result, keeping source lists non-nil.
func NewProcessResponse(res citation.Result) ProcessResponse {
	return ProcessResponse{
		Text:        res.Text,
		KBSources:   nonNil(res.KBSources),
		WebSources:  nonNil(res.WebSources),
		Diagnostics: res.Diagnostics,
	}
}

// RenderResponse is a processed answer rendered to HTML with its interactive elements.
//
// swagger:model RenderResponse
type RenderResponse struct {
	HTML        string                  `json:"html"`
	Text        string                  `json:"text"`
	Elements    []render.Element        `json:"elements"`
	KBSources   []citation.EvidenceItem `json:"kb_sources"`
	WebSources  []citation.EvidenceItem `json:"web_sources"`
	Diagnostics citation.Diagnostics    `json:"diagnostics"`
}

// CitationsHandler handles HTTP requests that process or render raw answers.
type CitationsHandler struct {
	citations service.CitationService
	renderer  *render.Renderer
}

// NewCitationsHandler creates a new CitationsHandler.
func NewCitationsHandler(citations service.CitationService, renderer *render.Renderer) *CitationsHandler {
	return &CitationsHandler{
		citations: citations,
		renderer:  renderer,
	}
}

// Process resolves and renumbers the citations of a raw answer.
//
// swagger:route POST /api/v1/citations/process citations processCitations
//
// Returns the answer in display form with the cited sources of each pool.
func (h *CitationsHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.citations.Process(ctx, req.Input())
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process citations")
		return
	}

	writeJSON(ctx, w, http.StatusOK, NewProcessResponse(res))
}

// Render processes a raw answer and renders it to HTML.
//
// swagger:route POST /api/v1/citations/render citations renderCitations
//
// Markdown is formatted between the two rewriter passes so citation elements come out
// as <sup class="citation ..."> tags. The display-form text is returned alongside.
func (h *CitationsHandler) Render(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := req.Input()

	// the plain pass validates the pools and yields the display text for Elements
	res, err := h.citations.Process(ctx, in)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process citations")
		return
	}

	rendered, err := h.renderer.HTML(ctx, in)
	if err != nil && !errors.Is(err, render.ErrFormat) {
		handleServiceError(ctx, w, err, "Failed to render answer")
		return
	}
	if err != nil {
		logger.WarnContext(ctx, "markdown formatting failed, serving escaped text", "error", err)
	}

	writeJSON(ctx, w, http.StatusOK, RenderResponse{
		HTML:        rendered.HTML,
		Text:        res.Text,
		Elements:    nonNilElements(render.Elements(res.Text, res)),
		KBSources:   nonNil(rendered.KBSources),
		WebSources:  nonNil(rendered.WebSources),
		Diagnostics: rendered.Diagnostics,
	})
}

func nonNil(items []citation.EvidenceItem) []citation.EvidenceItem {
	if items == nil {
		return []citation.EvidenceItem{}
	}
	return items
}

func nonNilElements(els []render.Element) []render.Element {
	if els == nil {
		return []render.Element{}
	}
	return els
}
