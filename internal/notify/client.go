package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the agent
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the agent
	pongWait = 30 * time.Second

	// Send pings to agent with this period (must be less than pongWait)
	pingPeriod = 20 * time.Second

	// Maximum message size allowed from agent
	maxMessageSize = 4096
)

// ackMessage confirms a connection to the agent client
type ackMessage struct {
	Type    string `json:"type"` // "ack"
	AgentID string `json:"agentId"`
}

// Client represents one agent's WebSocket connection
type Client struct {
	// Agent ID, fixed at upgrade time
	agentID string

	// The hub this client belongs to
	hub *Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Logger
	logger zerolog.Logger

	// done channel to signal client shutdown
	done chan struct{}

	// closeOnce ensures send channel is closed only once
	closeOnce sync.Once
}

// NewClient creates a new Client bound to an agent id
func NewClient(hub *Hub, conn *websocket.Conn, agentID string, logger zerolog.Logger) *Client {
	return &Client{
		agentID: agentID,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 64),
		logger:  logger.With().Str("agent_id", agentID).Logger(),
		done:    make(chan struct{}),
	}
}

// readPump drains the connection until it drops. Agent actions arrive over
// the HTTP API, so inbound traffic is only pings and client-side pongs.
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("agent websocket read error")
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start starts the client's read and write pumps and sends the ack
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()

	if data, err := json.Marshal(ackMessage{Type: "ack", AgentID: c.agentID}); err == nil {
		c.safeSend(data)
	}
}

// Close safely closes the client's send channel (idempotent)
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		defer func() {
			recover() // absorb panic if channel was already closed
		}()
		close(c.send)
	})
}

// safeSend attempts to send a message, recovering from panic if channel is closed
func (c *Client) safeSend(data []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}
