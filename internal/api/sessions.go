package api

import (
	"net/http"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/auth"
	"github.com/dispatchworks/taskhub/backend/internal/history"
	"github.com/dispatchworks/taskhub/backend/internal/session"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SessionsHandler provides REST endpoints for agent sessions and the
// work-state machine
type SessionsHandler struct {
	machine  *session.Machine
	sessions *session.Store
	registry *session.Registry
	log      *history.Log
	logger   zerolog.Logger
}

// NewSessionsHandler creates a new SessionsHandler
func NewSessionsHandler(machine *session.Machine, sessions *session.Store, registry *session.Registry, log *history.Log, logger zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		machine:  machine,
		sessions: sessions,
		registry: registry,
		log:      log,
		logger:   logger.With().Str("component", "sessions_handler").Logger(),
	}
}

// GetSession handles GET /api/sessions/agent/{agentId}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	sess, ok := h.sessions.Get(agentID)
	if !ok || !sess.Active {
		writeError(w, types.NewNotFound("agent has no active session"))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Login handles POST /api/sessions/agent/{agentId}/login. Name and team
// come from the token claims when present, falling back to the body.
func (h *SessionsHandler) Login(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	var req struct {
		AgentName string `json:"agentName"`
		TeamID    string `json:"teamId"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	if claims, ok := auth.GetUserFromContext(r.Context()); ok {
		if claims.Name != "" {
			req.AgentName = claims.Name
		}
		if claims.TeamID != "" {
			req.TeamID = claims.TeamID
		}
	}

	sess, err := h.machine.Login(agentID, req.AgentName, req.TeamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Logout handles POST /api/sessions/agent/{agentId}/logout
func (h *SessionsHandler) Logout(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	sess, err := h.machine.Logout(agentID, types.TriggerLogout)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ChangeState handles POST /api/sessions/agent/{agentId}/state. A forced
// change requires manager or admin role and uses the MANAGER_FORCED
// trigger, which bypasses approval checks.
func (h *SessionsHandler) ChangeState(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	var req struct {
		State      string `json:"state"`
		Reason     string `json:"reason"`
		ApprovedBy string `json:"approvedBy"`
		Forced     bool   `json:"forced"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.State == "" {
		writeError(w, types.NewValidation("state is required"))
		return
	}

	trigger := types.TriggerAgentRequest
	if req.Forced {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || (claims.Role != "admin" && claims.Role != "manager") {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forced state changes require manager role"})
			return
		}
		trigger = types.TriggerManagerForced
	}

	sess, err := h.machine.ChangeState(agentID, req.State, trigger, session.Options{
		Reason:     req.Reason,
		ApprovedBy: req.ApprovedBy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// AcceptTask handles POST /api/sessions/agent/{agentId}/task/accept
func (h *SessionsHandler) AcceptTask(w http.ResponseWriter, r *http.Request) {
	sess, err := h.machine.AcceptTask(chi.URLParam(r, "agentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// RejectTask handles POST /api/sessions/agent/{agentId}/task/reject
func (h *SessionsHandler) RejectTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	sess, err := h.machine.RejectTask(chi.URLParam(r, "agentId"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// CompleteTask handles POST /api/sessions/agent/{agentId}/task/complete
func (h *SessionsHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	sess, err := h.machine.CompleteTask(chi.URLParam(r, "agentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Disposition handles POST /api/sessions/agent/{agentId}/task/disposition
func (h *SessionsHandler) Disposition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.machine.Disposition(chi.URLParam(r, "agentId"), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Summary handles GET /api/sessions/agent/{agentId}/summary
func (h *SessionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	sess, ok := h.sessions.Get(agentID)
	if !ok || !sess.Active {
		writeError(w, types.NewNotFound("agent has no active session"))
		return
	}

	summary := history.SessionSummary(sess, h.log, h.registry.Resolver(), time.Now())
	writeJSON(w, http.StatusOK, summary)
}

// TeamSummary handles GET /api/sessions/team/{teamId}/summary
func (h *SessionsHandler) TeamSummary(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamId")
	sessions := h.sessions.ActiveByTeam(teamID)
	summary := history.TeamSummary(teamID, sessions, h.registry.Resolver())
	writeJSON(w, http.StatusOK, summary)
}

// History handles GET /api/sessions/agent/{agentId}/history. Returns
// today's in-memory state events for the agent.
func (h *SessionsHandler) History(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	now := time.Now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	events := h.log.ForAgent(agentID, since)
	if events == nil {
		events = []types.StateChangeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
