package api

import (
	"net/http"

	"github.com/dispatchworks/taskhub/backend/internal/auth"
	"github.com/dispatchworks/taskhub/backend/internal/dispatch"
	"github.com/dispatchworks/taskhub/backend/internal/ingestion"
	"github.com/dispatchworks/taskhub/backend/internal/queue"
	"github.com/dispatchworks/taskhub/backend/internal/rules"
	"github.com/dispatchworks/taskhub/backend/internal/session"
	"github.com/dispatchworks/taskhub/backend/internal/storage"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AdminHandler provides CRUD endpoints for pipelines, rules, queues,
// loaders and work states, plus operational actions
type AdminHandler struct {
	pipelines  *rules.PipelineStore
	queues     *queue.Manager
	loaders    *ingestion.LoaderStore
	registry   *session.Registry
	dispatcher *dispatch.Dispatcher
	store      storage.Store
	logger     zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(pipelines *rules.PipelineStore, queues *queue.Manager, loaders *ingestion.LoaderStore, registry *session.Registry, dispatcher *dispatch.Dispatcher, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		pipelines:  pipelines,
		queues:     queues,
		loaders:    loaders,
		registry:   registry,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger.With().Str("component", "admin_handler").Logger(),
	}
}

// RequireAdmin middleware — only admin role allowed
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireManagerOrAdmin middleware — manager or admin role allowed
func RequireManagerOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || (claims.Role != "admin" && claims.Role != "manager") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"manager or admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Pipelines ---

// ListPipelines handles GET /api/admin/pipelines
func (h *AdminHandler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipelines.List())
}

// GetPipeline handles GET /api/admin/pipelines/{pipelineId}
func (h *AdminHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pipelines.Get(chi.URLParam(r, "pipelineId"))
	if !ok {
		writeError(w, types.NewNotFound("pipeline not found"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePipeline handles POST /api/admin/pipelines
func (h *AdminHandler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var p types.Pipeline
	if !decodeBody(w, r, &p) {
		return
	}

	created, err := h.pipelines.Create(&p)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().Str("pipeline_id", created.ID).Str("name", created.Name).Msg("pipeline created")
	writeJSON(w, http.StatusCreated, created)
}

// UpdatePipeline handles PUT /api/admin/pipelines/{pipelineId}
func (h *AdminHandler) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	var p types.Pipeline
	if !decodeBody(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "pipelineId")

	if err := h.pipelines.Update(&p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

// DeletePipeline handles DELETE /api/admin/pipelines/{pipelineId}. A
// pipeline still referenced by queues or loaders cannot be deleted.
func (h *AdminHandler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "pipelineId")

	for _, snap := range h.queues.ListQueues() {
		if snap.Queue.PipelineID == pipelineID {
			writeError(w, types.NewInUse("pipeline has queues"))
			return
		}
	}
	for _, loader := range h.loaders.List() {
		if loader.PipelineID == pipelineID {
			writeError(w, types.NewInUse("pipeline has volume loaders"))
			return
		}
	}

	if err := h.pipelines.Delete(pipelineID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().Str("pipeline_id", pipelineID).Msg("pipeline deleted")
	writeJSON(w, http.StatusOK, map[string]string{"message": "pipeline deleted"})
}

// --- Routing rules ---

// CreateRule handles POST /api/admin/pipelines/{pipelineId}/rules
func (h *AdminHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule types.RoutingRule
	if !decodeBody(w, r, &rule) {
		return
	}

	created, err := h.pipelines.AddRule(chi.URLParam(r, "pipelineId"), &rule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateRule handles PUT /api/admin/pipelines/{pipelineId}/rules/{ruleId}
func (h *AdminHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var rule types.RoutingRule
	if !decodeBody(w, r, &rule) {
		return
	}
	rule.ID = chi.URLParam(r, "ruleId")

	if err := h.pipelines.UpdateRule(chi.URLParam(r, "pipelineId"), &rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &rule)
}

// DeleteRule handles DELETE /api/admin/pipelines/{pipelineId}/rules/{ruleId}
func (h *AdminHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.pipelines.DeleteRule(chi.URLParam(r, "pipelineId"), chi.URLParam(r, "ruleId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "rule deleted"})
}

// --- Queues ---

// ListQueues handles GET /api/admin/queues
func (h *AdminHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queues.ListQueues())
}

// GetQueue handles GET /api/admin/queues/{queueId}
func (h *AdminHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.queues.GetQueue(chi.URLParam(r, "queueId"))
	if !ok {
		writeError(w, types.NewNotFound("queue not found"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// CreateQueue handles POST /api/admin/queues
func (h *AdminHandler) CreateQueue(w http.ResponseWriter, r *http.Request) {
	var cfg types.Queue
	if !decodeBody(w, r, &cfg) {
		return
	}
	if _, ok := h.pipelines.Get(cfg.PipelineID); !ok {
		writeError(w, types.NewValidation("queue pipeline does not exist"))
		return
	}

	created, err := h.queues.CreateQueue(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeleteQueue handles DELETE /api/admin/queues/{queueId}
func (h *AdminHandler) DeleteQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.queues.DeleteQueue(chi.URLParam(r, "queueId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "queue deleted"})
}

// CancelItem handles DELETE /api/admin/items/{itemId}
func (h *AdminHandler) CancelItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	if err := h.queues.CancelItem(itemID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().Str("item_id", itemID).Msg("work item cancelled via admin")
	writeJSON(w, http.StatusOK, map[string]string{"message": "item cancelled"})
}

// ForcePush handles POST /api/admin/items/{itemId}/push. Delivers a
// queued item to a specific agent, auto-accepted.
func (h *AdminHandler) ForcePush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agentId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AgentID == "" {
		writeError(w, types.NewValidation("agentId is required"))
		return
	}

	itemID := chi.URLParam(r, "itemId")
	if err := h.dispatcher.ForcePush(itemID, req.AgentID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().
		Str("item_id", itemID).
		Str("agent_id", req.AgentID).
		Msg("work item force-pushed")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "item pushed",
		"itemId":  itemID,
		"agentId": req.AgentID,
	})
}

// --- Volume loaders ---

// ListLoaders handles GET /api/admin/loaders
func (h *AdminHandler) ListLoaders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loaders.List())
}

// GetLoader handles GET /api/admin/loaders/{loaderId}
func (h *AdminHandler) GetLoader(w http.ResponseWriter, r *http.Request) {
	loader, ok := h.loaders.Get(chi.URLParam(r, "loaderId"))
	if !ok {
		writeError(w, types.NewNotFound("loader not found"))
		return
	}
	writeJSON(w, http.StatusOK, loader)
}

// CreateLoader handles POST /api/admin/loaders
func (h *AdminHandler) CreateLoader(w http.ResponseWriter, r *http.Request) {
	var cfg types.VolumeLoader
	if !decodeBody(w, r, &cfg) {
		return
	}
	if _, ok := h.pipelines.Get(cfg.PipelineID); !ok {
		writeError(w, types.NewValidation("loader pipeline does not exist"))
		return
	}

	created, err := h.loaders.Create(&cfg)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().Str("loader_id", created.ID).Str("name", created.Name).Msg("loader created")
	writeJSON(w, http.StatusCreated, created)
}

// UpdateLoader handles PUT /api/admin/loaders/{loaderId}
func (h *AdminHandler) UpdateLoader(w http.ResponseWriter, r *http.Request) {
	var cfg types.VolumeLoader
	if !decodeBody(w, r, &cfg) {
		return
	}
	cfg.ID = chi.URLParam(r, "loaderId")

	if err := h.loaders.Update(&cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &cfg)
}

// DeleteLoader handles DELETE /api/admin/loaders/{loaderId}
func (h *AdminHandler) DeleteLoader(w http.ResponseWriter, r *http.Request) {
	if err := h.loaders.Delete(chi.URLParam(r, "loaderId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "loader deleted"})
}

// SetLoaderEnabled handles POST /api/admin/loaders/{loaderId}/enabled
func (h *AdminHandler) SetLoaderEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.loaders.SetEnabled(chi.URLParam(r, "loaderId"), req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// --- Work states ---

// ListStates handles GET /api/admin/states
func (h *AdminHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

// CreateState handles POST /api/admin/states
func (h *AdminHandler) CreateState(w http.ResponseWriter, r *http.Request) {
	var cfg types.WorkStateConfig
	if !decodeBody(w, r, &cfg) {
		return
	}

	created, err := h.registry.Create(&cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateState handles PUT /api/admin/states/{stateId}
func (h *AdminHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	var cfg types.WorkStateConfig
	if !decodeBody(w, r, &cfg) {
		return
	}
	cfg.ID = chi.URLParam(r, "stateId")

	if err := h.registry.Update(&cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &cfg)
}

// SetStateEnabled handles POST /api/admin/states/{stateId}/enabled
func (h *AdminHandler) SetStateEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.registry.SetEnabled(chi.URLParam(r, "stateId"), req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// DeleteState handles DELETE /api/admin/states/{stateId}
func (h *AdminHandler) DeleteState(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(chi.URLParam(r, "stateId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "state deleted"})
}

// --- Operational ---

// WipeStore handles POST /api/admin/store/wipe. Truncates the durable
// tables; in-memory state is untouched.
func (h *AdminHandler) WipeStore(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate store tables")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to truncate store"})
		return
	}

	h.logger.Info().Msg("store tables truncated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "store tables truncated"})
}
