package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"groundchat/internal/citation"
	"groundchat/internal/contextutil"
	"groundchat/internal/render"
	"groundchat/internal/service"
)

// AskRequest represents the HTTP request payload for a question.
//
// swagger:model AskRequest
type AskRequest struct {
	Question    string   `json:"question"`
	ListMode    bool     `json:"list_mode,omitempty"`
	K           int      `json:"k,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	Web         bool     `json:"web,omitempty"`
	// Format "html" adds the rendered answer to the response.
	Format string `json:"format,omitempty"`
}

// TurnResponse is a processed answer with its sources.
//
// swagger:model TurnResponse
type TurnResponse struct {
	ID          string                  `json:"id,omitempty"`
	Question    string                  `json:"question"`
	Answer      string                  `json:"answer"`
	HTML        string                  `json:"html,omitempty"`
	ListMode    bool                    `json:"list_mode"`
	KBSources   []citation.EvidenceItem `json:"kb_sources"`
	WebSources  []citation.EvidenceItem `json:"web_sources"`
	Diagnostics citation.Diagnostics    `json:"diagnostics"`
	CreatedAt   time.Time               `json:"created_at"`
}

// AskHandler handles HTTP requests for grounded questions and persisted turns.
type AskHandler struct {
	ask      service.AskService
	renderer *render.Renderer
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(ask service.AskService, renderer *render.Renderer) *AskHandler {
	return &AskHandler{
		ask:      ask,
		renderer: renderer,
	}
}

func (req AskRequest) toService() service.AskRequest {
	return service.AskRequest{
		Question:    req.Question,
		ListMode:    req.ListMode,
		K:           req.K,
		DocumentIDs: req.DocumentIDs,
		Web:         req.Web,
	}
}

// ServeHTTP answers one question.
//
// swagger:route POST /api/v1/ask ask askQuestion
//
// Gathers the kb (or meta) and web pools, asks the model and returns the answer with
// compact per-pool citation numbers and the sources they point to.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	turn, err := h.ask.Ask(ctx, req.toService())
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to answer question")
		return
	}

	resp, err := h.turnResponse(turn, req.Format == "html")
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to render answer")
		return
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Stream answers one question over Server-Sent Events. Raw model output is sent as
// "delta" events, then a single "done" event carries the processed turn.
//
// swagger:route POST /api/v1/ask/stream ask streamQuestion
func (h *AskHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.ErrorContext(ctx, "streaming not supported by response writer")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// Set up Server-Sent Events headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(event string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	turn, err := h.ask.StreamAsk(ctx, req.toService(), func(delta string) error {
		return send("delta", map[string]string{"delta": delta})
	})
	if err != nil {
		logger.ErrorContext(ctx, "error streaming answer", "error", err)
		_ = send("error", ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := h.turnResponse(turn, req.Format == "html")
	if err != nil {
		logger.ErrorContext(ctx, "failed to render streamed answer", "error", err)
	}
	if err := send("done", resp); err != nil {
		logger.WarnContext(ctx, "failed to send final event", "error", err)
		return
	}

	_, _ = fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// GetTurn returns a persisted turn.
//
// swagger:route GET /api/v1/turns/{id} ask getTurn
//
// Use ?format=html to render the stored answer with its citation elements.
func (h *AskHandler) GetTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	turn, err := h.ask.GetTurn(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load turn")
		return
	}

	resp, err := h.turnResponse(turn, r.URL.Query().Get("format") == "html")
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to render answer")
		return
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// turnResponse builds the response body. On a rendering error the body is still
// complete apart from HTML.
func (h *AskHandler) turnResponse(turn service.Turn, withHTML bool) (TurnResponse, error) {
	resp := TurnResponse{
		ID:          turn.ID,
		Question:    turn.Question,
		Answer:      turn.Answer,
		ListMode:    turn.ListMode,
		KBSources:   nonNil(turn.KBSources),
		WebSources:  nonNil(turn.WebSources),
		Diagnostics: turn.Diagnostics,
		CreatedAt:   turn.CreatedAt,
	}
	if !withHTML {
		return resp, nil
	}
	html, err := h.renderer.Persisted(turn.Answer, citation.Result{KBSources: turn.KBSources, WebSources: turn.WebSources})
	if err != nil {
		return resp, err
	}
	resp.HTML = html
	return resp, nil
}
