package types

import "time"

// StateCategory buckets work states for productivity accounting
type StateCategory string

const (
	CategoryOffline     StateCategory = "offline"
	CategoryAvailable   StateCategory = "available"
	CategoryProductive  StateCategory = "productive"
	CategoryUnavailable StateCategory = "unavailable"
)

// System work-state ids. These exist in every deployment and cannot be
// deleted or disabled.
const (
	StateLoggedOut = "logged_out"
	StateLoggedIn  = "logged_in"
	StateReady     = "ready"
	StateReserved  = "reserved"
	StateActive    = "active"
	StateWrapUp    = "wrap_up"
)

// WorkStateConfig describes one work state an agent can occupy
type WorkStateConfig struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Category           StateCategory `json:"category"`
	Productive         bool          `json:"productive"` // counts toward billable/productive time
	AgentSelectable    bool          `json:"agentSelectable"`
	MaxDurationMinutes int           `json:"maxDurationMinutes"` // 0 = unlimited
	WarnBeforeMinutes  int           `json:"warnBeforeMinutes,omitempty"`
	RequiresApproval   bool          `json:"requiresApproval"`
	System             bool          `json:"isSystemState"`
	Enabled            bool          `json:"enabled"`
}

// AgentSession is the single active session of one agent
type AgentSession struct {
	SessionID         string    `json:"sessionId"`
	AgentID           string    `json:"agentId"`
	AgentName         string    `json:"agentName,omitempty"`
	TeamID            string    `json:"teamId,omitempty"`
	Active            bool      `json:"isActive"`
	CurrentState      string    `json:"currentState"`
	CurrentTaskID     string    `json:"currentTaskId,omitempty"`
	LoginAt           time.Time `json:"loginAt"`
	LastStateChangeAt time.Time `json:"lastStateChangeAt"`
}

// SessionSummary is derived from today's state history, never stored
type SessionSummary struct {
	AgentID         string  `json:"agentId"`
	SessionID       string  `json:"sessionId"`
	CurrentState    string  `json:"currentState"`
	LoggedInSecs    float64 `json:"loggedInSecs"`
	ProductiveSecs  float64 `json:"productiveSecs"`
	AvailableSecs   float64 `json:"availableSecs"`
	UnavailableSecs float64 `json:"unavailableSecs"`
	Utilization     float64 `json:"utilization"` // productive / logged-in, 0-100
}

// TeamSummary aggregates the active sessions of one team
type TeamSummary struct {
	TeamID          string                `json:"teamId"`
	ActiveSessions  int                   `json:"activeSessions"`
	ByState         map[string]int        `json:"byState"`
	ByCategory      map[StateCategory]int `json:"byCategory"`
	TeamUtilization float64               `json:"teamUtilization"` // (ready+active)/total, 0-100
}
