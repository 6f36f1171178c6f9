package types

import "time"

// TransitionTrigger records what caused a state change
type TransitionTrigger string

const (
	TriggerLogin              TransitionTrigger = "LOGIN"
	TriggerTaskAssigned       TransitionTrigger = "TASK_ASSIGNED"
	TriggerTaskAccepted       TransitionTrigger = "TASK_ACCEPTED"
	TriggerTaskRejected       TransitionTrigger = "TASK_REJECTED"
	TriggerTaskCompleted      TransitionTrigger = "TASK_COMPLETED"
	TriggerDispositionDone    TransitionTrigger = "DISPOSITION_DONE"
	TriggerAgentRequest       TransitionTrigger = "AGENT_REQUEST"
	TriggerManagerForced      TransitionTrigger = "MANAGER_FORCED"
	TriggerSystemAuto         TransitionTrigger = "SYSTEM_AUTO"
	TriggerReservationTimeout TransitionTrigger = "RESERVATION_TIMEOUT"
	TriggerLogout             TransitionTrigger = "LOGOUT"
)

// StateChangeEvent is one immutable entry of the state history log
type StateChangeEvent struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"sessionId"`
	AgentID    string            `json:"agentId"`
	TeamID     string            `json:"teamId,omitempty"`
	FromState  string            `json:"fromState"`
	ToState    string            `json:"toState"`
	Trigger    TransitionTrigger `json:"trigger"`
	Timestamp  time.Time         `json:"timestamp"`
	// Seconds the agent spent in FromState, 0 when this is the first event.
	DurationInPrevious float64 `json:"durationInPreviousState"`
	TaskID             string  `json:"taskId,omitempty"`
	Reason             string  `json:"reason,omitempty"`
	ApprovedBy         string  `json:"approvedBy,omitempty"`
}

// TaskOffer is pushed to an agent when a work item is reserved for them
type TaskOffer struct {
	Type        string    `json:"type"` // "task_offer"
	AgentID     string    `json:"agentId"`
	TaskID      string    `json:"taskId"`
	QueueID     string    `json:"queueId"`
	Title       string    `json:"title"`
	PayloadURL  string    `json:"payloadUrl,omitempty"`
	TimeoutSecs int       `json:"timeoutSecs"`
	AutoAccept  bool      `json:"autoAccept"`
	Timestamp   time.Time `json:"timestamp"`
}

// TaskRevoke is pushed when a reservation expires or is withdrawn
type TaskRevoke struct {
	Type    string `json:"type"` // "task_revoke"
	AgentID string `json:"agentId"`
	TaskID  string `json:"taskId"`
	Reason  string `json:"reason,omitempty"`
}

// ForceLogout is pushed when a manager or the system ends a session
type ForceLogout struct {
	Type    string `json:"type"` // "force_logout"
	AgentID string `json:"agentId"`
	Reason  string `json:"reason,omitempty"`
}

// StateWarning is pushed when an agent approaches a state's max duration
type StateWarning struct {
	Type           string `json:"type"` // "state_warning"
	AgentID        string `json:"agentId"`
	State          string `json:"state"`
	MinutesInState int    `json:"minutesInState"`
	MaxMinutes     int    `json:"maxMinutes"`
}
