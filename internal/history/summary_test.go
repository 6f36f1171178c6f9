package history

import (
	"math"
	"testing"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

func testResolver() StateResolver {
	states := map[string]*types.WorkStateConfig{
		types.StateReady:  {ID: types.StateReady, Category: types.CategoryAvailable},
		types.StateActive: {ID: types.StateActive, Category: types.CategoryProductive, Productive: true},
		types.StateWrapUp: {ID: types.StateWrapUp, Category: types.CategoryProductive, Productive: true},
		"break":           {ID: "break", Category: types.CategoryUnavailable},
	}
	return func(stateID string) *types.WorkStateConfig {
		return states[stateID]
	}
}

func eventAt(sessionID string, from, to string, duration float64, at time.Time) types.StateChangeEvent {
	return types.StateChangeEvent{
		SessionID:          sessionID,
		AgentID:            "agent-1",
		FromState:          from,
		ToState:            to,
		Trigger:            types.TriggerAgentRequest,
		Timestamp:          at,
		DurationInPrevious: duration,
	}
}

func TestSessionSummaryUtilization(t *testing.T) {
	log := NewLog(50)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	base := now.Add(-time.Hour)

	// 600s active, 300s ready, 100s break; currently in ready for 0s.
	log.Append(eventAt("s-1", types.StateActive, types.StateWrapUp, 600, base))
	log.Append(eventAt("s-1", types.StateReady, types.StateActive, 300, base.Add(time.Second)))
	log.Append(eventAt("s-1", "break", types.StateReady, 100, base.Add(2*time.Second)))

	session := &types.AgentSession{
		AgentID:           "agent-1",
		SessionID:         "s-1",
		Active:            true,
		CurrentState:      types.StateReady,
		LastStateChangeAt: now,
	}

	summary := SessionSummary(session, log, testResolver(), now)
	if summary.LoggedInSecs != 1000 {
		t.Errorf("expected 1000s logged in, got %v", summary.LoggedInSecs)
	}
	if summary.ProductiveSecs != 600 {
		t.Errorf("expected 600s productive, got %v", summary.ProductiveSecs)
	}
	if summary.AvailableSecs != 300 {
		t.Errorf("expected 300s available, got %v", summary.AvailableSecs)
	}
	if summary.UnavailableSecs != 100 {
		t.Errorf("expected 100s unavailable, got %v", summary.UnavailableSecs)
	}
	if math.Abs(summary.Utilization-60) > 0.001 {
		t.Errorf("expected 60%% utilization, got %v", summary.Utilization)
	}
}

func TestSessionSummaryCountsCurrentState(t *testing.T) {
	log := NewLog(50)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	session := &types.AgentSession{
		AgentID:           "agent-1",
		SessionID:         "s-1",
		Active:            true,
		CurrentState:      types.StateActive,
		LastStateChangeAt: now.Add(-120 * time.Second),
	}

	summary := SessionSummary(session, log, testResolver(), now)
	if summary.ProductiveSecs != 120 {
		t.Errorf("expected 120s from current state, got %v", summary.ProductiveSecs)
	}
}

func TestSessionSummaryIgnoresOtherSessions(t *testing.T) {
	log := NewLog(50)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	log.Append(eventAt("s-old", types.StateActive, types.StateWrapUp, 600, now.Add(-30*time.Minute)))

	session := &types.AgentSession{
		AgentID:           "agent-1",
		SessionID:         "s-new",
		Active:            true,
		CurrentState:      types.StateReady,
		LastStateChangeAt: now,
	}

	summary := SessionSummary(session, log, testResolver(), now)
	if summary.LoggedInSecs != 0 {
		t.Errorf("expected prior session excluded, got %v", summary.LoggedInSecs)
	}
}

func TestSessionSummaryExcludesYesterday(t *testing.T) {
	log := NewLog(50)
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)

	log.Append(eventAt("s-1", types.StateActive, types.StateWrapUp, 600, now.Add(-2*time.Hour)))
	log.Append(eventAt("s-1", types.StateReady, types.StateActive, 300, now.Add(-30*time.Minute)))

	session := &types.AgentSession{
		AgentID:           "agent-1",
		SessionID:         "s-1",
		Active:            true,
		CurrentState:      types.StateReady,
		LastStateChangeAt: now,
	}

	summary := SessionSummary(session, log, testResolver(), now)
	if summary.LoggedInSecs != 300 {
		t.Errorf("expected only today's 300s, got %v", summary.LoggedInSecs)
	}
}

func TestTeamSummary(t *testing.T) {
	sessions := []*types.AgentSession{
		{AgentID: "a-1", TeamID: "t-1", Active: true, CurrentState: types.StateReady},
		{AgentID: "a-2", TeamID: "t-1", Active: true, CurrentState: types.StateActive},
		{AgentID: "a-3", TeamID: "t-1", Active: true, CurrentState: "break"},
		{AgentID: "a-4", TeamID: "t-1", Active: true, CurrentState: types.StateWrapUp},
		{AgentID: "a-5", TeamID: "t-1", Active: false, CurrentState: types.StateLoggedOut},
	}

	summary := TeamSummary("t-1", sessions, testResolver())
	if summary.ActiveSessions != 4 {
		t.Errorf("expected 4 active sessions, got %d", summary.ActiveSessions)
	}
	if summary.ByState[types.StateReady] != 1 || summary.ByState["break"] != 1 {
		t.Errorf("unexpected by-state counts: %v", summary.ByState)
	}
	if summary.ByCategory[types.CategoryProductive] != 2 {
		t.Errorf("expected 2 productive, got %v", summary.ByCategory)
	}
	// ready + active = 2 of 4.
	if math.Abs(summary.TeamUtilization-50) > 0.001 {
		t.Errorf("expected 50%% team utilization, got %v", summary.TeamUtilization)
	}
}

func TestTeamSummaryEmpty(t *testing.T) {
	summary := TeamSummary("t-9", nil, testResolver())
	if summary.ActiveSessions != 0 || summary.TeamUtilization != 0 {
		t.Errorf("expected zeroed summary, got %+v", summary)
	}
}
