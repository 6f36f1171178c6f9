package api

import (
	"net/http"

	"github.com/dispatchworks/taskhub/backend/internal/dispatch"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SkillsHandler manages the roster skill data the dispatcher filters on
type SkillsHandler struct {
	roster *dispatch.Roster
	logger zerolog.Logger
}

// NewSkillsHandler creates a new SkillsHandler
func NewSkillsHandler(roster *dispatch.Roster, logger zerolog.Logger) *SkillsHandler {
	return &SkillsHandler{
		roster: roster,
		logger: logger.With().Str("component", "skills_handler").Logger(),
	}
}

// GetSkills handles GET /api/admin/agents/{agentId}/skills
func (h *SkillsHandler) GetSkills(w http.ResponseWriter, r *http.Request) {
	skills := h.roster.Skills(chi.URLParam(r, "agentId"))
	if skills == nil {
		skills = []types.AgentSkill{}
	}
	writeJSON(w, http.StatusOK, skills)
}

// SetSkills handles PUT /api/admin/agents/{agentId}/skills. Replaces the
// agent's skill set wholesale.
func (h *SkillsHandler) SetSkills(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	var skills []types.AgentSkill
	if !decodeBody(w, r, &skills) {
		return
	}
	for _, s := range skills {
		if s.Skill == "" {
			writeError(w, types.NewValidation("skill name is required"))
			return
		}
		if s.Proficiency < 1 || s.Proficiency > 10 {
			writeError(w, types.NewValidation("proficiency must be between 1 and 10"))
			return
		}
	}

	h.roster.SetSkills(agentID, skills)

	h.logger.Info().Str("agent_id", agentID).Int("skills", len(skills)).Msg("agent skills updated")
	writeJSON(w, http.StatusOK, map[string]int{"skills": len(skills)})
}

// RemoveSkills handles DELETE /api/admin/agents/{agentId}/skills
func (h *SkillsHandler) RemoveSkills(w http.ResponseWriter, r *http.Request) {
	h.roster.Remove(chi.URLParam(r, "agentId"))
	writeJSON(w, http.StatusOK, map[string]string{"message": "skills removed"})
}
