package notify

import (
	"net/http"

	"github.com/dispatchworks/taskhub/backend/internal/auth"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// upgrader is the WebSocket upgrader for agent connections
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement happens at the CORS layer
		return true
	},
}

// Handler upgrades agent connections and registers them with the hub
type Handler struct {
	hub    *Hub
	logger zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests from agents. The agent id
// comes from the authenticated claims, falling back to the agent_id query
// parameter for tokenless development setups.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if claims, ok := auth.GetUserFromContext(r.Context()); ok && claims.AgentID != "" {
		agentID = claims.AgentID
	}
	if agentID == "" {
		http.Error(w, "agent id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade agent connection")
		return
	}

	client := NewClient(h.hub, conn, agentID, h.logger)

	// Register client with hub
	h.hub.register <- client

	// Start client pumps
	client.Start()
}
