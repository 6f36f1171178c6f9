package types

// WorkItemRecord is the flattened form of a completed work item for persistence
type WorkItemRecord struct {
	DateKey      string  `dynamodbav:"DateKey" json:"dateKey"` // YYYY-MM-DD of enqueue
	ItemID       string  `dynamodbav:"ItemID" json:"itemId"`
	ExternalID   string  `dynamodbav:"ExternalID" json:"externalId"`
	PipelineID   string  `dynamodbav:"PipelineID" json:"pipelineId"`
	QueueID      string  `dynamodbav:"QueueID" json:"queueId"`
	WorkType     string  `dynamodbav:"WorkType" json:"workType"`
	AgentID      string  `dynamodbav:"AgentID" json:"agentId,omitempty"`
	Disposition  string  `dynamodbav:"Disposition" json:"disposition,omitempty"`
	WaitTime     float64 `dynamodbav:"WaitTime" json:"waitTime"`
	HandleTime   float64 `dynamodbav:"HandleTime" json:"handleTime"`
	EnqueueTime  string  `dynamodbav:"EnqueueTime" json:"enqueueTime"`
	CompleteTime string  `dynamodbav:"CompleteTime" json:"completeTime,omitempty"`
	Rejected     bool    `dynamodbav:"Rejected" json:"rejected"`
}

// StateEventRecord is the flattened form of a state-change event for persistence
type StateEventRecord struct {
	AgentID            string  `dynamodbav:"AgentID" json:"agentId"`
	Timestamp          string  `dynamodbav:"Timestamp" json:"timestamp"` // RFC3339, range key
	EventID            string  `dynamodbav:"EventID" json:"eventId"`
	SessionID          string  `dynamodbav:"SessionID" json:"sessionId"`
	TeamID             string  `dynamodbav:"TeamID" json:"teamId,omitempty"`
	FromState          string  `dynamodbav:"FromState" json:"fromState"`
	ToState            string  `dynamodbav:"ToState" json:"toState"`
	Trigger            string  `dynamodbav:"Trigger" json:"trigger"`
	DurationInPrevious float64 `dynamodbav:"DurationInPrevious" json:"durationInPreviousState"`
	TaskID             string  `dynamodbav:"TaskID" json:"taskId,omitempty"`
}
