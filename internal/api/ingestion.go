package api

import (
	"net/http"

	"github.com/dispatchworks/taskhub/backend/internal/ingestion"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// IngestionHandler provides REST endpoints for uploads and loader runs
type IngestionHandler struct {
	service *ingestion.Service
	loaders *ingestion.LoaderStore
	staging *ingestion.StagingStore
	logger  zerolog.Logger
}

// NewIngestionHandler creates a new IngestionHandler
func NewIngestionHandler(service *ingestion.Service, loaders *ingestion.LoaderStore, staging *ingestion.StagingStore, logger zerolog.Logger) *IngestionHandler {
	return &IngestionHandler{
		service: service,
		loaders: loaders,
		staging: staging,
		logger:  logger.With().Str("component", "ingestion_handler").Logger(),
	}
}

// Upload handles POST /api/ingestion/upload. The file content travels as
// text in the JSON body; upload parses, maps and stages but never routes.
func (h *IngestionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoaderID string `json:"loaderId"`
		FileName string `json:"fileName"`
		CSVText  string `json:"csvText"`
		Content  string `json:"content"`
		DryRun   bool   `json:"dryRun"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.LoaderID == "" {
		writeError(w, types.NewValidation("loaderId is required"))
		return
	}
	// csvText is the canonical field; content is accepted as an alias for
	// JSON payloads.
	content := req.CSVText
	if content == "" {
		content = req.Content
	}
	if content == "" {
		writeError(w, types.NewValidation("csvText is required"))
		return
	}

	result, err := h.service.Upload(req.LoaderID, req.FileName, []byte(content), req.DryRun)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().
		Str("loader_id", req.LoaderID).
		Str("file", req.FileName).
		Int("staged", result.RecordsStaged).
		Bool("dry_run", req.DryRun).
		Msg("file uploaded")

	writeJSON(w, http.StatusOK, result)
}

// Execute handles POST /api/ingestion/execute and /execute/{id}. The id
// names either a pending upload or a loader; with no id the most recent
// staged batch runs. Running consumes the staged batch plus connector
// files and routes the records into queues.
func (h *IngestionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var loaderID string
	if id == "" {
		batch, ok := h.staging.Latest()
		if !ok {
			writeError(w, types.NewNotFound("no staged batch to execute"))
			return
		}
		loaderID = batch.LoaderID
	} else if batch, ok := h.staging.FindByUpload(id); ok {
		loaderID = batch.LoaderID
	} else {
		loaderID = id
	}

	run, err := h.service.Run(loaderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/ingestion/loaders/{loaderId}/runs
func (h *IngestionHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	loaderID := chi.URLParam(r, "loaderId")
	if _, ok := h.loaders.Get(loaderID); !ok {
		writeError(w, types.NewNotFound("loader not found"))
		return
	}

	runs := h.loaders.Runs(loaderID)
	if runs == nil {
		runs = []*types.VolumeLoaderRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /api/ingestion/loaders/{loaderId}/runs/{runId}
func (h *IngestionHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loaders.GetRun(chi.URLParam(r, "loaderId"), chi.URLParam(r, "runId"))
	if !ok {
		writeError(w, types.NewNotFound("run not found"))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetStaging handles GET /api/ingestion/loaders/{loaderId}/staging
func (h *IngestionHandler) GetStaging(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.staging.Peek(chi.URLParam(r, "loaderId"))
	if !ok {
		writeError(w, types.NewNotFound("no staged batch for loader"))
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// DiscardStaging handles DELETE /api/ingestion/loaders/{loaderId}/staging
func (h *IngestionHandler) DiscardStaging(w http.ResponseWriter, r *http.Request) {
	loaderID := chi.URLParam(r, "loaderId")
	if !h.staging.Discard(loaderID) {
		writeError(w, types.NewNotFound("no staged batch for loader"))
		return
	}

	h.logger.Info().Str("loader_id", loaderID).Msg("staged batch discarded")
	writeJSON(w, http.StatusOK, map[string]string{"message": "staged batch discarded"})
}

// ResolveHeld handles POST /api/ingestion/held/resolve. Forces a resolve
// pass over parked records ahead of the scheduler.
func (h *IngestionHandler) ResolveHeld(w http.ResponseWriter, r *http.Request) {
	routed, dropped := h.service.ResolveHeld()
	writeJSON(w, http.StatusOK, map[string]int{
		"routed":  routed,
		"dropped": dropped,
		"held":    h.service.HeldCount(),
	})
}
