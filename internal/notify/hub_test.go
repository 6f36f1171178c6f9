package notify

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/rs/zerolog"
)

func newConnectedClient(hub *Hub, agentID string) *Client {
	return &Client{
		agentID: agentID,
		hub:     hub,
		send:    make(chan []byte, 8),
		done:    make(chan struct{}),
	}
}

func TestNewHub(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	if hub == nil {
		t.Fatal("expected hub to be created")
	}
	if hub.agents == nil {
		t.Error("expected agents map to be initialized")
	}
	if hub.register == nil {
		t.Error("expected register channel to be initialized")
	}
	if hub.unregister == nil {
		t.Error("expected unregister channel to be initialized")
	}
}

func TestHubRegisterReplacesExisting(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)
	go hub.Run()

	first := newConnectedClient(hub, "agent-1")
	second := newConnectedClient(hub, "agent-1")

	hub.register <- first
	hub.register <- second

	// Wait for the hub loop to process both registrations.
	deadline := time.Now().Add(500 * time.Millisecond)
	for hub.AgentCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.AgentCount() != 1 {
		t.Fatalf("expected 1 connection, got %d", hub.AgentCount())
	}

	hub.mu.RLock()
	current := hub.agents["agent-1"]
	hub.mu.RUnlock()
	if current != second {
		t.Error("expected the newer connection to win")
	}
}

func TestSendToAgent(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	client := newConnectedClient(hub, "agent-1")
	hub.mu.Lock()
	hub.agents["agent-1"] = client
	hub.mu.Unlock()

	if !hub.SendToAgent("agent-1", []byte("hello")) {
		t.Error("expected delivery to connected agent")
	}
	if hub.SendToAgent("agent-9", []byte("hello")) {
		t.Error("expected miss for unknown agent")
	}

	select {
	case msg := <-client.send:
		if string(msg) != "hello" {
			t.Errorf("unexpected message %q", msg)
		}
	default:
		t.Error("message not queued on client")
	}
}

func TestOfferTaskMarshalsType(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	client := newConnectedClient(hub, "agent-1")
	hub.mu.Lock()
	hub.agents["agent-1"] = client
	hub.mu.Unlock()

	ok := hub.OfferTask(types.TaskOffer{
		AgentID: "agent-1",
		TaskID:  "item-1",
		QueueID: "q-1",
		Title:   "Order 42",
	})
	if !ok {
		t.Fatal("expected offer delivered")
	}

	var decoded types.TaskOffer
	if err := json.Unmarshal(<-client.send, &decoded); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if decoded.Type != "task_offer" || decoded.TaskID != "item-1" {
		t.Errorf("unexpected offer payload: %+v", decoded)
	}
}

func TestPushToOfflineAgentReportsMiss(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	if hub.OfferTask(types.TaskOffer{AgentID: "agent-1", TaskID: "item-1"}) {
		t.Error("expected miss for offline agent")
	}
	if hub.WarnState(types.StateWarning{AgentID: "agent-1", State: "break"}) {
		t.Error("expected miss for offline agent")
	}
}

func TestForceLogoutDisconnects(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	client := newConnectedClient(hub, "agent-1")
	hub.mu.Lock()
	hub.agents["agent-1"] = client
	hub.mu.Unlock()

	if !hub.ForceLogout(types.ForceLogout{AgentID: "agent-1", Reason: "shift over"}) {
		t.Fatal("expected force logout of connected agent")
	}
	if hub.AgentCount() != 0 {
		t.Errorf("expected agent removed, count %d", hub.AgentCount())
	}
}

func TestClientSafeSendFullBuffer(t *testing.T) {
	hub := NewHub(zerolog.New(&bytes.Buffer{}))
	client := &Client{
		agentID: "agent-1",
		hub:     hub,
		send:    make(chan []byte, 1),
		done:    make(chan struct{}),
	}

	if !client.safeSend([]byte("one")) {
		t.Error("first send should fit")
	}
	if client.safeSend([]byte("two")) {
		t.Error("second send should be dropped, buffer is full")
	}
}

func TestClientSafeSendAfterClose(t *testing.T) {
	hub := NewHub(zerolog.New(&bytes.Buffer{}))
	client := newConnectedClient(hub, "agent-1")

	client.Close()
	if client.safeSend([]byte("late")) {
		t.Error("send after close should report failure")
	}
}
