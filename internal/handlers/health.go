package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"groundchat/internal/contextutil"
)

// CollectionChecker reports whether a vector collection exists.
type CollectionChecker interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
}

// Pinger checks a database connection.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports the state of the database and the vector store.
type HealthHandler struct {
	probes  []probe
	timeout time.Duration
}

// probe is one dependency check. A failing critical probe makes the service unhealthy,
// any other failure only degrades it.
type probe struct {
	name     string
	issue    string
	critical bool
	check    func(ctx context.Context) error
}

// NewHealthHandler creates a new HealthHandler. Nil dependencies are not checked.
func NewHealthHandler(vectorStore CollectionChecker, db Pinger, collectionName string) *HealthHandler {
	h := &HealthHandler{timeout: 5 * time.Second}
	if db != nil {
		h.probes = append(h.probes, probe{
			name:     "database",
			issue:    "database_unavailable",
			critical: true,
			check:    db.PingContext,
		})
	}
	if vectorStore != nil {
		h.probes = append(h.probes, probe{
			name:  "vector_store",
			issue: "vector_store_unavailable",
			check: func(ctx context.Context) error {
				exists, err := vectorStore.CollectionExists(ctx, collectionName)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("collection %q does not exist", collectionName)
				}
				return nil
			},
		})
	}
	return h
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// Check the health status of the system and its dependencies.
// Returns 200 OK if healthy or degraded, 503 Service Unavailable if the database is down.
//
// swagger:route GET /health healthCheck
//
// # Health check endpoint
//
// Returns the health status of the database and the vector store. The citation engine
// has no dependencies and is always available.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy or degraded
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: System is unhealthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	response := HealthResponse{
		Status: "healthy",
		Checks: make(map[string]string, len(h.probes)),
	}
	httpStatus := http.StatusOK
	for _, p := range h.probes {
		if err := p.check(checkCtx); err != nil {
			logger.WarnContext(ctx, "health check failed", "check", p.name, "error", err)
			response.Checks[p.name] = "error"
			response.Issues = append(response.Issues, p.issue)
			if p.critical {
				response.Status = "unhealthy"
				httpStatus = http.StatusServiceUnavailable
			} else if response.Status == "healthy" {
				response.Status = "degraded"
			}
			continue
		}
		response.Checks[p.name] = "ok"
	}
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}
