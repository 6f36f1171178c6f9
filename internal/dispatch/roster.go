package dispatch

import (
	"sort"
	"sync"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// Roster tracks the skill profile of each agent. Skills are set by admins
// and consulted by the dispatcher when matching items to ready agents.
type Roster struct {
	skills map[string][]types.AgentSkill // agentID -> skills
	mu     sync.RWMutex
}

// NewRoster creates an empty roster
func NewRoster() *Roster {
	return &Roster{
		skills: make(map[string][]types.AgentSkill),
	}
}

// SetSkills replaces an agent's skill profile
func (r *Roster) SetSkills(agentID string, skills []types.AgentSkill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := make([]types.AgentSkill, len(skills))
	copy(sorted, skills)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Skill < sorted[j].Skill })
	r.skills[agentID] = sorted
}

// Skills returns an agent's skill profile
func (r *Roster) Skills(agentID string) []types.AgentSkill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skills[agentID]
}

// Remove drops an agent from the roster
func (r *Roster) Remove(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.skills, agentID)
}

// HasSkills reports whether an agent covers every required skill
func (r *Roster) HasSkills(agentID string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	have := make(map[string]bool, len(r.skills[agentID]))
	for _, skill := range r.skills[agentID] {
		have[skill.Skill] = true
	}
	for _, want := range required {
		if !have[want] {
			return false
		}
	}
	return true
}
