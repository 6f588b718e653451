package api

import (
	"net/http"

	"github.com/okian/modelscout/internal/domain/catalog"
)

// ModelsHandler exposes the latest catalog.
type ModelsHandler struct {
	deps Dependencies
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(deps Dependencies) *ModelsHandler {
	return &ModelsHandler{deps: deps}
}

// HandleLatest handles GET /api/models/latest requests.
func (h *ModelsHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	const op = "api.models_latest"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rows, err := h.deps.Latest(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog.NewFrame(rows))
}
