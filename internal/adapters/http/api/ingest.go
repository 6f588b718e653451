package api

import (
	"net/http"
)

// IngestHandler triggers ingestion runs.
type IngestHandler struct {
	deps Dependencies
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps Dependencies) *IngestHandler {
	return &IngestHandler{deps: deps}
}

// HandleIngest handles POST /api/ingest requests.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	ref, err := h.deps.Ingest(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}
