package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"groundchat/internal/contextutil"
	"groundchat/internal/service"
)

// UploadRequest is the JSON form of a document upload.
//
// swagger:model UploadRequest
type UploadRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// DocumentResponse is one knowledge-base document.
//
// swagger:model DocumentResponse
type DocumentResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Hash       string    `json:"hash"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
	// Index is the listing position used by list mode.
	Index int `json:"index,omitempty"`
}

// DocumentsHandler handles HTTP requests for knowledge-base documents.
type DocumentsHandler struct {
	documents service.DocumentService
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(documents service.DocumentService) *DocumentsHandler {
	return &DocumentsHandler{documents: documents}
}

func documentResponse(d service.Document) DocumentResponse {
	return DocumentResponse{
		ID:         d.ID,
		Filename:   d.Filename,
		Hash:       d.Hash,
		ChunkCount: d.ChunkCount,
		CreatedAt:  d.CreatedAt,
	}
}

// List returns every document numbered in listing order.
//
// swagger:route GET /api/v1/documents documents listDocuments
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.documents.List(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list documents")
		return
	}

	resp := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		resp[i] = documentResponse(d)
		resp[i].Index = i + 1
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Upload ingests a document sent as multipart form field "file" or as JSON.
// Responds 201 for a new document and 200 when identical content already exists.
//
// swagger:route POST /api/v1/documents documents uploadDocument
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxDocumentBytes+1<<20)

	var filename string
	var content []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			logger.WarnContext(ctx, "invalid multipart upload", "error", err)
			writeError(w, http.StatusBadRequest, "Missing file field")
			return
		}
		defer func() {
			_ = file.Close()
		}()
		content, err = io.ReadAll(file)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Document too large")
				return
			}
			writeError(w, http.StatusBadRequest, "Failed to read file")
			return
		}
		filename = header.Filename
	} else {
		var req UploadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		filename, content = req.Filename, []byte(req.Content)
	}

	doc, created, err := h.documents.Ingest(ctx, filename, content)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to ingest document")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(ctx, w, status, documentResponse(doc))
}

// Get returns one document.
//
// swagger:route GET /api/v1/documents/{id} documents getDocument
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	doc, err := h.documents.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to get document")
		return
	}
	writeJSON(ctx, w, http.StatusOK, documentResponse(doc))
}

// Delete removes a document.
//
// swagger:route DELETE /api/v1/documents/{id} documents deleteDocument
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.documents.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(ctx, w, err, "Failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
