package dispatch

import (
	"testing"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/history"
	"github.com/dispatchworks/taskhub/backend/internal/queue"
	"github.com/dispatchworks/taskhub/backend/internal/session"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/rs/zerolog"
)

type testEnv struct {
	dispatcher *Dispatcher
	queues     *queue.Manager
	machine    *session.Machine
	roster     *Roster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	queues := queue.NewManager(zerolog.Nop())
	machine := session.NewMachine(session.NewRegistry(), session.NewStore(), history.NewLog(100), 30*time.Second, zerolog.Nop())
	machine.SetTaskBackend(queues)
	roster := NewRoster()
	dispatcher := NewDispatcher(queues, machine, roster, nil, time.Second, zerolog.Nop())

	if _, err := queues.CreateQueue(types.Queue{ID: "q-1", Name: "Main", PipelineID: "p-1", Priority: 1}); err != nil {
		t.Fatalf("queue setup failed: %v", err)
	}
	return &testEnv{dispatcher: dispatcher, queues: queues, machine: machine, roster: roster}
}

func (e *testEnv) readyAgent(t *testing.T, agentID string) {
	t.Helper()
	if _, err := e.machine.Login(agentID, "Agent "+agentID, "team-1"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := e.machine.ChangeState(agentID, types.StateReady, types.TriggerAgentRequest, session.Options{}); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
}

func (e *testEnv) enqueue(t *testing.T, item *types.WorkItem) *types.WorkItem {
	t.Helper()
	item.QueueID = "q-1"
	if err := e.queues.Enqueue(item); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	return item
}

func TestTickOffersHeadItem(t *testing.T) {
	e := newTestEnv(t)
	e.readyAgent(t, "agent-1")
	item := e.enqueue(t, &types.WorkItem{Title: "Order 1"})

	e.dispatcher.Tick()

	got, _ := e.queues.GetItem(item.ID)
	if got.Status != types.WorkItemOffered {
		t.Errorf("expected item offered, got %s", got.Status)
	}
	if got.AgentID != "agent-1" {
		t.Errorf("expected offer to agent-1, got %q", got.AgentID)
	}
	ready := e.machine.ReadySessions()
	if len(ready) != 0 {
		t.Errorf("expected agent reserved, still ready: %d", len(ready))
	}
}

func TestTickPrefersLongestIdleAgent(t *testing.T) {
	e := newTestEnv(t)
	e.readyAgent(t, "agent-1")
	time.Sleep(10 * time.Millisecond)
	e.readyAgent(t, "agent-2") // became ready later
	item := e.enqueue(t, &types.WorkItem{Title: "Order 1"})

	e.dispatcher.Tick()

	got, _ := e.queues.GetItem(item.ID)
	if got.AgentID != "agent-1" {
		t.Errorf("expected longest-idle agent-1, got %q", got.AgentID)
	}
}

func TestTickSkillFiltering(t *testing.T) {
	e := newTestEnv(t)
	e.readyAgent(t, "agent-1")
	time.Sleep(10 * time.Millisecond)
	e.readyAgent(t, "agent-2")
	e.roster.SetSkills("agent-2", []types.AgentSkill{{Skill: "billing", Proficiency: 3}})

	item := e.enqueue(t, &types.WorkItem{Title: "Invoice", RequiredSkills: []string{"billing"}})

	e.dispatcher.Tick()

	got, _ := e.queues.GetItem(item.ID)
	// agent-1 is idle longer but lacks the skill.
	if got.AgentID != "agent-2" {
		t.Errorf("expected skilled agent-2, got %q", got.AgentID)
	}
}

func TestTickNeverDoubleBooks(t *testing.T) {
	e := newTestEnv(t)
	e.readyAgent(t, "agent-1")
	first := e.enqueue(t, &types.WorkItem{Title: "Order 1"})
	second := e.enqueue(t, &types.WorkItem{Title: "Order 2"})

	e.dispatcher.Tick()

	got1, _ := e.queues.GetItem(first.ID)
	got2, _ := e.queues.GetItem(second.ID)
	if got1.Status != types.WorkItemOffered {
		t.Errorf("expected first item offered, got %s", got1.Status)
	}
	if got2.Status != types.WorkItemQueued {
		t.Errorf("expected second item still queued, got %s", got2.Status)
	}
}

func TestTickNoAgentsLeavesQueueUntouched(t *testing.T) {
	e := newTestEnv(t)
	item := e.enqueue(t, &types.WorkItem{Title: "Order 1"})

	e.dispatcher.Tick()

	got, _ := e.queues.GetItem(item.ID)
	if got.Status != types.WorkItemQueued {
		t.Errorf("expected item untouched, got %s", got.Status)
	}
}

func TestForcePushAutoAccepts(t *testing.T) {
	e := newTestEnv(t)
	e.readyAgent(t, "agent-1")
	item := e.enqueue(t, &types.WorkItem{Title: "Escalation"})

	if err := e.dispatcher.ForcePush(item.ID, "agent-1"); err != nil {
		t.Fatalf("force push failed: %v", err)
	}

	got, _ := e.queues.GetItem(item.ID)
	if got.Status != types.WorkItemActive {
		t.Errorf("expected active after force push, got %s", got.Status)
	}
	sessions := e.machine.ReadySessions()
	if len(sessions) != 0 {
		t.Error("expected agent working after force push")
	}
}

func TestForcePushRequiresQueuedItem(t *testing.T) {
	e := newTestEnv(t)
	e.readyAgent(t, "agent-1")
	e.readyAgent(t, "agent-2")
	item := e.enqueue(t, &types.WorkItem{Title: "Escalation"})

	if err := e.dispatcher.ForcePush(item.ID, "agent-1"); err != nil {
		t.Fatalf("force push failed: %v", err)
	}
	err := e.dispatcher.ForcePush(item.ID, "agent-2")
	failure, ok := types.AsFailure(err)
	if !ok || failure.Kind != types.FailConflict {
		t.Errorf("expected conflict for already-assigned item, got %v", err)
	}
}

func TestRejectedItemOfferedAgain(t *testing.T) {
	e := newTestEnv(t)
	e.readyAgent(t, "agent-1")
	item := e.enqueue(t, &types.WorkItem{Title: "Order 1"})

	e.dispatcher.Tick()
	if _, err := e.machine.RejectTask("agent-1", "busy"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	got, _ := e.queues.GetItem(item.ID)
	if got.Status != types.WorkItemQueued {
		t.Fatalf("expected requeue after rejection, got %s", got.Status)
	}

	// The agent is ready again, so the next pass re-offers the same item.
	e.dispatcher.Tick()
	got, _ = e.queues.GetItem(item.ID)
	if got.Status != types.WorkItemOffered {
		t.Errorf("expected re-offer, got %s", got.Status)
	}
}
