package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

func makeEvent(agentID, sessionID string, at time.Time) types.StateChangeEvent {
	return types.StateChangeEvent{
		ID:        fmt.Sprintf("e-%s-%d", agentID, at.UnixNano()),
		SessionID: sessionID,
		AgentID:   agentID,
		FromState: types.StateLoggedIn,
		ToState:   types.StateReady,
		Trigger:   types.TriggerAgentRequest,
		Timestamp: at,
	}
}

func TestAppendAndAll(t *testing.T) {
	log := NewLog(10)
	base := time.Now()

	for i := 0; i < 3; i++ {
		log.Append(makeEvent("agent-1", "s-1", base.Add(time.Duration(i)*time.Second)))
	}

	all := log.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if !all[0].Timestamp.Before(all[2].Timestamp) {
		t.Error("expected chronological order")
	}
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	log := NewLog(3)
	base := time.Now()

	for i := 0; i < 5; i++ {
		log.Append(makeEvent("agent-1", "s-1", base.Add(time.Duration(i)*time.Second)))
	}

	all := log.All()
	if len(all) != 3 {
		t.Fatalf("expected capacity-bound 3 events, got %d", len(all))
	}
	// The two oldest events fell off.
	if !all[0].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Errorf("expected oldest surviving event at +2s, got %v", all[0].Timestamp)
	}
	if log.Size() != 3 {
		t.Errorf("expected size 3, got %d", log.Size())
	}
}

func TestForAgentSince(t *testing.T) {
	log := NewLog(10)
	base := time.Now()

	log.Append(makeEvent("agent-1", "s-1", base))
	log.Append(makeEvent("agent-2", "s-2", base.Add(time.Second)))
	log.Append(makeEvent("agent-1", "s-1", base.Add(2*time.Second)))

	events := log.ForAgent("agent-1", time.Time{})
	if len(events) != 2 {
		t.Errorf("expected 2 events for agent-1, got %d", len(events))
	}

	events = log.ForAgent("agent-1", base.Add(time.Second))
	if len(events) != 1 {
		t.Errorf("expected 1 event since cutoff, got %d", len(events))
	}
}

func TestForSession(t *testing.T) {
	log := NewLog(10)
	base := time.Now()

	log.Append(makeEvent("agent-1", "s-1", base))
	log.Append(makeEvent("agent-1", "s-2", base.Add(time.Second)))

	events := log.ForSession("s-2")
	if len(events) != 1 || events[0].SessionID != "s-2" {
		t.Errorf("unexpected session events: %v", events)
	}
}
