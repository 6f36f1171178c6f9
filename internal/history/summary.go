package history

import (
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// StateResolver maps a work-state id to its config. Unknown states resolve
// to nil and count as unavailable time.
type StateResolver func(stateID string) *types.WorkStateConfig

// SessionSummary derives today's productivity totals for one session from
// the history log plus the time elapsed in the current state. Nothing here
// is stored; it is recomputed per request.
func SessionSummary(session *types.AgentSession, log *Log, resolve StateResolver, now time.Time) types.SessionSummary {
	summary := types.SessionSummary{
		AgentID:      session.AgentID,
		SessionID:    session.SessionID,
		CurrentState: session.CurrentState,
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, event := range log.ForAgent(session.AgentID, dayStart) {
		if event.SessionID != session.SessionID {
			continue
		}
		addDuration(&summary, resolve(event.FromState), event.FromState, event.DurationInPrevious)
	}

	// Time in the current state has no event yet.
	if session.Active {
		elapsed := now.Sub(session.LastStateChangeAt).Seconds()
		if elapsed > 0 {
			addDuration(&summary, resolve(session.CurrentState), session.CurrentState, elapsed)
		}
	}

	if summary.LoggedInSecs > 0 {
		summary.Utilization = summary.ProductiveSecs / summary.LoggedInSecs * 100
	}
	return summary
}

func addDuration(summary *types.SessionSummary, cfg *types.WorkStateConfig, stateID string, secs float64) {
	if stateID == types.StateLoggedOut || stateID == "" {
		return
	}
	summary.LoggedInSecs += secs

	switch {
	case cfg != nil && cfg.Productive:
		summary.ProductiveSecs += secs
	case cfg != nil && cfg.Category == types.CategoryAvailable:
		summary.AvailableSecs += secs
	case stateID == types.StateReady:
		summary.AvailableSecs += secs
	default:
		summary.UnavailableSecs += secs
	}
}

// TeamSummary aggregates the active sessions of one team by state and
// category. Team utilization is (ready+active)/total active sessions.
func TeamSummary(teamID string, sessions []*types.AgentSession, resolve StateResolver) types.TeamSummary {
	summary := types.TeamSummary{
		TeamID:     teamID,
		ByState:    make(map[string]int),
		ByCategory: make(map[types.StateCategory]int),
	}

	working := 0
	for _, session := range sessions {
		if !session.Active {
			continue
		}
		summary.ActiveSessions++
		summary.ByState[session.CurrentState]++

		category := types.CategoryUnavailable
		if cfg := resolve(session.CurrentState); cfg != nil {
			category = cfg.Category
		}
		summary.ByCategory[category]++

		if session.CurrentState == types.StateReady || session.CurrentState == types.StateActive {
			working++
		}
	}

	if summary.ActiveSessions > 0 {
		summary.TeamUtilization = float64(working) / float64(summary.ActiveSessions) * 100
	}
	return summary
}
