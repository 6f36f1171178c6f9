package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dispatchworks/taskhub/backend/internal/history"
	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// Registry holds all work-state configs. System states are immutable;
// custom states can be created, updated, disabled, and deleted, but never
// while a session occupies them.
type Registry struct {
	states    map[string]*types.WorkStateConfig
	occupancy func(stateID string) int
	mu        sync.RWMutex
}

// NewRegistry creates a registry seeded with the system states and the
// standard custom unavailable states
func NewRegistry() *Registry {
	r := &Registry{
		states: make(map[string]*types.WorkStateConfig),
	}
	for _, cfg := range defaultStates() {
		r.states[cfg.ID] = cfg
	}
	return r
}

// SetOccupancy wires the function reporting how many active sessions
// currently occupy a state
func (r *Registry) SetOccupancy(fn func(stateID string) int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.occupancy = fn
}

func defaultStates() []*types.WorkStateConfig {
	return []*types.WorkStateConfig{
		{ID: types.StateLoggedOut, Name: "Logged Out", Category: types.CategoryOffline, System: true, Enabled: true},
		{ID: types.StateLoggedIn, Name: "Logged In", Category: types.CategoryAvailable, System: true, Enabled: true},
		{ID: types.StateReady, Name: "Ready", Category: types.CategoryAvailable, AgentSelectable: true, System: true, Enabled: true},
		{ID: types.StateReserved, Name: "Reserved", Category: types.CategoryProductive, Productive: true, System: true, Enabled: true},
		{ID: types.StateActive, Name: "Active", Category: types.CategoryProductive, Productive: true, System: true, Enabled: true},
		{ID: types.StateWrapUp, Name: "Wrap Up", Category: types.CategoryProductive, Productive: true, MaxDurationMinutes: 5, WarnBeforeMinutes: 1, System: true, Enabled: true},

		{ID: "break", Name: "Break", Category: types.CategoryUnavailable, AgentSelectable: true, MaxDurationMinutes: 15, WarnBeforeMinutes: 2, Enabled: true},
		{ID: "lunch", Name: "Lunch", Category: types.CategoryUnavailable, AgentSelectable: true, MaxDurationMinutes: 60, WarnBeforeMinutes: 5, Enabled: true},
		{ID: "meeting", Name: "Meeting", Category: types.CategoryUnavailable, AgentSelectable: true, Enabled: true},
		{ID: "training", Name: "Training", Category: types.CategoryUnavailable, AgentSelectable: true, RequiresApproval: true, Enabled: true},
	}
}

// Get returns a state config by id
func (r *Registry) Get(id string) (*types.WorkStateConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.states[id]
	return cfg, ok
}

// List returns all state configs
func (r *Registry) List() []*types.WorkStateConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.WorkStateConfig, 0, len(r.states))
	for _, cfg := range r.states {
		out = append(out, cfg)
	}
	return out
}

// Resolver adapts the registry for summary derivation
func (r *Registry) Resolver() history.StateResolver {
	return func(stateID string) *types.WorkStateConfig {
		cfg, ok := r.Get(stateID)
		if !ok {
			return nil
		}
		return cfg
	}
}

// Create adds a custom work state. Custom states are always in the
// unavailable category; ids and names must be unique.
func (r *Registry) Create(cfg *types.WorkStateConfig) (*types.WorkStateConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(cfg.ID) == "" || strings.TrimSpace(cfg.Name) == "" {
		return nil, types.NewValidation("state id and name are required")
	}
	if _, exists := r.states[cfg.ID]; exists {
		return nil, types.NewConflict(fmt.Sprintf("state %q already exists", cfg.ID))
	}
	for _, existing := range r.states {
		if strings.EqualFold(existing.Name, cfg.Name) {
			return nil, types.NewConflict(fmt.Sprintf("state named %q already exists", cfg.Name))
		}
	}
	cfg.System = false
	cfg.Category = types.CategoryUnavailable
	cfg.Productive = false
	cfg.Enabled = true
	r.states[cfg.ID] = cfg
	return cfg, nil
}

// Update replaces a custom state's configuration
func (r *Registry) Update(cfg *types.WorkStateConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.states[cfg.ID]
	if !ok {
		return types.NewNotFound("state not found")
	}
	if existing.System {
		return types.NewValidation("system states cannot be modified")
	}
	cfg.System = false
	cfg.Category = types.CategoryUnavailable
	cfg.Enabled = existing.Enabled
	r.states[cfg.ID] = cfg
	return nil
}

// SetEnabled toggles a custom state. Disabling fails while any active
// session occupies the state; system states can never be toggled.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.states[id]
	if !ok {
		return types.NewNotFound("state not found")
	}
	if cfg.System {
		return types.NewValidation("system states cannot be toggled")
	}
	if !enabled {
		if err := r.checkUnoccupiedLocked(id); err != nil {
			return err
		}
	}
	cfg.Enabled = enabled
	return nil
}

// Delete removes a custom state. Fails while any active session occupies
// it; system states can never be deleted.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.states[id]
	if !ok {
		return types.NewNotFound("state not found")
	}
	if cfg.System {
		return types.NewValidation("system states cannot be deleted")
	}
	if err := r.checkUnoccupiedLocked(id); err != nil {
		return err
	}
	delete(r.states, id)
	return nil
}

func (r *Registry) checkUnoccupiedLocked(id string) error {
	if r.occupancy == nil {
		return nil
	}
	if n := r.occupancy(id); n > 0 {
		return types.NewInUse(fmt.Sprintf("state %q is occupied by %d active session(s)", id, n))
	}
	return nil
}
