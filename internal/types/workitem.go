package types

import "time"

// WorkItemStatus represents the lifecycle state of a work item
type WorkItemStatus string

const (
	WorkItemQueued    WorkItemStatus = "queued"    // In queue, not yet offered
	WorkItemOffered   WorkItemStatus = "offered"   // Reserved by an agent, awaiting accept
	WorkItemActive    WorkItemStatus = "active"    // Currently being worked
	WorkItemWrapUp    WorkItemStatus = "wrap_up"   // Work done, disposition pending
	WorkItemCompleted WorkItemStatus = "completed" // Closed with a disposition
	WorkItemRejected  WorkItemStatus = "rejected"  // Offer declined or timed out, back in queue
	WorkItemCancelled WorkItemStatus = "cancelled" // Removed without being worked
)

// WorkItem is a unit of work created after successful routing
type WorkItem struct {
	ID             string            `json:"id"`
	ExternalID     string            `json:"externalId"`
	PipelineID     string            `json:"pipelineId"`
	QueueID        string            `json:"queueId"`
	WorkType       string            `json:"workType"`
	Title          string            `json:"title"`
	Priority       int               `json:"priority"`
	PayloadURL     string            `json:"payloadUrl,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RequiredSkills []string          `json:"requiredSkills,omitempty"`
	Status         WorkItemStatus    `json:"status"`
	AutoAccept     bool              `json:"autoAccept"`
	TimeoutSecs    int               `json:"timeoutSecs"` // reservation window, 0 = pipeline default

	AgentID      string     `json:"agentId,omitempty"`
	Disposition  string     `json:"disposition,omitempty"`
	EnqueueTime  time.Time  `json:"enqueueTime"`
	OfferTime    *time.Time `json:"offerTime,omitempty"`
	AcceptTime   *time.Time `json:"acceptTime,omitempty"`
	CompleteTime *time.Time `json:"completeTime,omitempty"`
	WaitTime     float64    `json:"waitTime,omitempty"`   // seconds queued before offer
	HandleTime   float64    `json:"handleTime,omitempty"` // seconds from accept to completion
}

// Queue holds routed work items for one pipeline
type Queue struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	PipelineID      string   `json:"pipelineId"`
	Priority        int      `json:"priority"`
	RequiredSkills  []string `json:"requiredSkills,omitempty"`
	PreferredSkills []string `json:"preferredSkills,omitempty"`
	Capacity        int      `json:"capacity"` // waiting cap, 0 = unlimited
}

// QueueStats are the live counters of a queue
type QueueStats struct {
	Waiting         int     `json:"waiting"`
	Active          int     `json:"active"`
	Completed       int     `json:"completed"`
	LongestWaitSecs float64 `json:"longestWaitSecs"`
	AvgWaitSecs     float64 `json:"avgWaitSecs"`
	AvgHandleSecs   float64 `json:"avgHandleSecs"`
}

// QueueSnapshot is the externally visible state of one queue
type QueueSnapshot struct {
	Queue Queue      `json:"queue"`
	Stats QueueStats `json:"stats"`
}

// AgentSkill is one entry of the roster data consumed at assignment time
type AgentSkill struct {
	Skill       string `json:"skill"`
	Proficiency int    `json:"proficiency"` // 1-10
}
