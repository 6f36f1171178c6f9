package session

import (
	"sync"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// Store maintains the single active session per agent
type Store struct {
	sessions map[string]*types.AgentSession // agentID -> session
	mu       sync.RWMutex
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*types.AgentSession),
	}
}

// Get returns a copy of the agent's session, active or not. Copies are
// returned so readers never see a transition's field writes mid-flight.
func (s *Store) Get(agentID string) (*types.AgentSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[agentID]
	if !ok {
		return nil, false
	}
	copied := *session
	return &copied, true
}

// live returns the mutable session for in-package use. Callers must hold
// the machine mutex while reading or writing through it.
func (s *Store) live(agentID string) (*types.AgentSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[agentID]
	return session, ok
}

// Put stores a session, replacing any prior one for the agent
func (s *Store) Put(session *types.AgentSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.AgentID] = session
}

// End marks the agent's session inactive
func (s *Store) End(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[agentID]; ok {
		session.Active = false
	}
}

// Active returns copies of all currently active sessions
func (s *Store) Active() []*types.AgentSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.AgentSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.Active {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out
}

// ActiveByTeam returns copies of the active sessions of one team
func (s *Store) ActiveByTeam(teamID string) []*types.AgentSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.AgentSession, 0)
	for _, session := range s.sessions {
		if session.Active && session.TeamID == teamID {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out
}

// CountInState returns how many active sessions occupy a work state
func (s *Store) CountInState(stateID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, session := range s.sessions {
		if session.Active && session.CurrentState == stateID {
			count++
		}
	}
	return count
}
