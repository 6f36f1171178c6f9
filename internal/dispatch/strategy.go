package dispatch

import (
	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// Strategy selects the best agent for a work item from the ready pool
type Strategy interface {
	SelectAgent(item *types.WorkItem, ready []*types.AgentSession) *types.AgentSession
}

// LongestIdleFirst picks the ready agent who has waited longest since
// their last state change
type LongestIdleFirst struct{}

// SelectAgent picks the ready session with the oldest LastStateChangeAt
func (l *LongestIdleFirst) SelectAgent(item *types.WorkItem, ready []*types.AgentSession) *types.AgentSession {
	if len(ready) == 0 {
		return nil
	}

	oldest := ready[0]
	for _, session := range ready[1:] {
		if session.LastStateChangeAt.Before(oldest.LastStateChangeAt) {
			oldest = session
		}
	}
	return oldest
}
