package queue

import (
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// WorkQueue is the in-memory state of one queue: a FIFO of waiting items
// plus the items currently offered or being worked.
type WorkQueue struct {
	Config  types.Queue
	Waiting []*types.WorkItem          // FIFO
	Active  map[string]*types.WorkItem // itemID -> offered or in-progress item

	Completed   int
	totalWait   float64
	totalHandle float64
}

// NewWorkQueue creates an empty queue for the given config
func NewWorkQueue(cfg types.Queue) *WorkQueue {
	return &WorkQueue{
		Config:  cfg,
		Waiting: make([]*types.WorkItem, 0),
		Active:  make(map[string]*types.WorkItem),
	}
}

// Enqueue appends an item to the waiting list
func (q *WorkQueue) Enqueue(item *types.WorkItem) {
	item.Status = types.WorkItemQueued
	q.Waiting = append(q.Waiting, item)
}

// Requeue puts a rejected item back at the head of the waiting list so it
// is offered again before newer work.
func (q *WorkQueue) Requeue(item *types.WorkItem) {
	item.Status = types.WorkItemQueued
	item.AgentID = ""
	item.OfferTime = nil
	q.Waiting = append([]*types.WorkItem{item}, q.Waiting...)
}

// PeekNext returns the next waiting item without removing it
func (q *WorkQueue) PeekNext() *types.WorkItem {
	if len(q.Waiting) == 0 {
		return nil
	}
	return q.Waiting[0]
}

// Offer moves the head waiting item to the active set, reserved for agentID
func (q *WorkQueue) Offer(item *types.WorkItem, agentID string) {
	for i, waiting := range q.Waiting {
		if waiting.ID == item.ID {
			q.Waiting = append(q.Waiting[:i], q.Waiting[i+1:]...)
			break
		}
	}
	now := time.Now()
	item.Status = types.WorkItemOffered
	item.AgentID = agentID
	item.OfferTime = &now
	item.WaitTime = now.Sub(item.EnqueueTime).Seconds()
	q.Active[item.ID] = item
}

// Close marks an active item completed with its disposition and removes it
func (q *WorkQueue) Close(itemID, disposition string) *types.WorkItem {
	item, ok := q.Active[itemID]
	if !ok {
		return nil
	}
	now := time.Now()
	item.Status = types.WorkItemCompleted
	item.Disposition = disposition
	item.CompleteTime = &now
	if item.AcceptTime != nil {
		item.HandleTime = now.Sub(*item.AcceptTime).Seconds()
	}
	delete(q.Active, itemID)

	q.Completed++
	q.totalWait += item.WaitTime
	q.totalHandle += item.HandleTime
	return item
}

// LongestWaitSecs returns the wait time of the oldest waiting item
func (q *WorkQueue) LongestWaitSecs() float64 {
	if len(q.Waiting) == 0 {
		return 0
	}
	return time.Since(q.Waiting[0].EnqueueTime).Seconds()
}

// AtCapacity reports whether the waiting list is full (0 = unlimited)
func (q *WorkQueue) AtCapacity() bool {
	return q.Config.Capacity > 0 && len(q.Waiting) >= q.Config.Capacity
}

// Snapshot returns the queue's externally visible state
func (q *WorkQueue) Snapshot() types.QueueSnapshot {
	stats := types.QueueStats{
		Waiting:         len(q.Waiting),
		Active:          len(q.Active),
		Completed:       q.Completed,
		LongestWaitSecs: q.LongestWaitSecs(),
	}
	if q.Completed > 0 {
		stats.AvgWaitSecs = q.totalWait / float64(q.Completed)
		stats.AvgHandleSecs = q.totalHandle / float64(q.Completed)
	}
	return types.QueueSnapshot{Queue: q.Config, Stats: stats}
}
