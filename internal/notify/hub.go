package notify

import (
	"encoding/json"
	"sync"

	"github.com/dispatchworks/taskhub/backend/internal/metrics"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/rs/zerolog"
)

// Hub maintains the set of connected agent clients, keyed by agent id.
// Delivery is best-effort: every push reports whether the agent was
// reachable, and callers treat an offline agent as a delivery miss, never
// as a state error.
type Hub struct {
	// Registered agent clients
	agents map[string]*Client // agentID -> client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex to protect agents map
	mu sync.RWMutex

	// Logger
	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		agents:     make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With().Str("component", "notify").Logger(),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	m := metrics.Get()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// Remove existing client with same agentID if any
			if existing, ok := h.agents[client.agentID]; ok {
				existing.Close()
				delete(h.agents, client.agentID)
			}
			h.agents[client.agentID] = client
			h.mu.Unlock()

			m.RecordWebSocketConnect()
			h.logger.Debug().
				Str("agent_id", client.agentID).
				Int("total_agents", len(h.agents)).
				Msg("agent connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.agents[client.agentID]; ok && existing == client {
				delete(h.agents, client.agentID)
				client.Close()
				m.RecordWebSocketDisconnect()

				h.logger.Debug().
					Str("agent_id", client.agentID).
					Int("total_agents", len(h.agents)).
					Msg("agent disconnected")
			}
			h.mu.Unlock()
		}
	}
}

// AgentCount returns the number of connected agents
func (h *Hub) AgentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}

// SendToAgent sends a message to a specific agent
func (h *Hub) SendToAgent(agentID string, message []byte) bool {
	h.mu.RLock()
	client, ok := h.agents[agentID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	if client.safeSend(message) {
		metrics.Get().RecordWebSocketMessage()
		return true
	}
	return false
}

// OfferTask pushes a task offer to the agent
func (h *Hub) OfferTask(offer types.TaskOffer) bool {
	offer.Type = "task_offer"
	return h.push(offer.AgentID, offer)
}

// RevokeTask withdraws a previously pushed offer
func (h *Hub) RevokeTask(revoke types.TaskRevoke) bool {
	revoke.Type = "task_revoke"
	return h.push(revoke.AgentID, revoke)
}

// ForceLogout tells the agent client its session was ended, then closes
// the connection
func (h *Hub) ForceLogout(msg types.ForceLogout) bool {
	msg.Type = "force_logout"
	h.push(msg.AgentID, msg)

	h.mu.Lock()
	client, ok := h.agents[msg.AgentID]
	if ok {
		delete(h.agents, msg.AgentID)
		client.Close()
		metrics.Get().RecordWebSocketDisconnect()
		h.logger.Info().Str("agent_id", msg.AgentID).Msg("agent force-disconnected")
	}
	h.mu.Unlock()
	return ok
}

// WarnState warns the agent it is approaching a state's max duration
func (h *Hub) WarnState(warning types.StateWarning) bool {
	warning.Type = "state_warning"
	return h.push(warning.AgentID, warning)
}

func (h *Hub) push(agentID string, message any) bool {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to marshal push message")
		metrics.Get().RecordWebSocketError()
		return false
	}
	if !h.SendToAgent(agentID, data) {
		h.logger.Debug().Str("agent_id", agentID).Msg("push to offline agent dropped")
		return false
	}
	return true
}
