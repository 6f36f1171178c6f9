package api

import (
	"net/http"

	"github.com/dispatchworks/taskhub/backend/internal/storage"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RecordsHandler serves persisted work-item records and state events
// from the durable store
type RecordsHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewRecordsHandler creates a new RecordsHandler
func NewRecordsHandler(store storage.Store, logger zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{
		store:  store,
		logger: logger.With().Str("component", "records_handler").Logger(),
	}
}

// GetWorkItems returns completed work item records for a date
// GET /api/records/items?date=YYYY-MM-DD
func (h *RecordsHandler) GetWorkItems(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, types.NewValidation("date query parameter is required (YYYY-MM-DD)"))
		return
	}

	records, err := h.store.GetWorkItemRecords(date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to get work item records")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to retrieve records"})
		return
	}

	if records == nil {
		records = []types.WorkItemRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetAgentEvents returns persisted state events for an agent on a date
// GET /api/records/agents/{agentId}/events?date=YYYY-MM-DD
func (h *RecordsHandler) GetAgentEvents(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, types.NewValidation("date query parameter is required (YYYY-MM-DD)"))
		return
	}

	events, err := h.store.GetAgentStateEvents(agentID, date)
	if err != nil {
		h.logger.Error().Err(err).
			Str("agent_id", agentID).
			Str("date", date).
			Msg("failed to get agent state events")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to retrieve events"})
		return
	}

	if events == nil {
		events = []types.StateEventRecord{}
	}
	writeJSON(w, http.StatusOK, events)
}
