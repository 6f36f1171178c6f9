package api

import (
	"net/http"

	"github.com/dispatchworks/taskhub/backend/internal/rules"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RulesConfigHandler serves static rule-builder metadata and a dry-run
// routing tester
type RulesConfigHandler struct {
	router *rules.Router
	logger zerolog.Logger
}

// NewRulesConfigHandler creates a new RulesConfigHandler
func NewRulesConfigHandler(router *rules.Router, logger zerolog.Logger) *RulesConfigHandler {
	return &RulesConfigHandler{
		router: router,
		logger: logger.With().Str("component", "rules_config").Logger(),
	}
}

// GetOperators handles GET /api/rules/config/operators
func (h *RulesConfigHandler) GetOperators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rules.Operators())
}

// GetFields handles GET /api/rules/config/fields
func (h *RulesConfigHandler) GetFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rules.Fields())
}

// GetActions handles GET /api/rules/config/actions
func (h *RulesConfigHandler) GetActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rules.Actions())
}

// TestRoute handles POST /api/rules/pipelines/{pipelineId}/test. Routes a
// sample field map through the pipeline without creating a work item.
func (h *RulesConfigHandler) TestRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields map[string]string `json:"fields"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, types.NewValidation("fields are required"))
		return
	}

	result := h.router.Preview(chi.URLParam(r, "pipelineId"), req.Fields)
	writeJSON(w, http.StatusOK, result)
}
