package queue

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ItemStore is the subset of storage.Store the manager persists through
type ItemStore interface {
	SaveWorkItemRecord(record types.WorkItemRecord) error
}

// Manager owns all queues and their work items. One mutex serializes all
// mutations, matching the one-mutation-at-a-time model of the stores.
type Manager struct {
	queues map[string]*WorkQueue
	items  map[string]*types.WorkItem // itemID -> item, across all queues
	store  ItemStore
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewManager creates an empty queue manager
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		queues: make(map[string]*WorkQueue),
		items:  make(map[string]*types.WorkItem),
		logger: logger.With().Str("component", "queues").Logger(),
	}
}

// SetStore sets the persistence store for completed work items
func (m *Manager) SetStore(store ItemStore) {
	m.store = store
}

// CreateQueue registers a new queue. Names are unique per pipeline.
func (m *Manager) CreateQueue(cfg types.Queue) (*types.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(cfg.Name) == "" {
		return nil, types.NewValidation("queue name is required")
	}
	if cfg.PipelineID == "" {
		return nil, types.NewValidation("queue must belong to a pipeline")
	}
	for _, q := range m.queues {
		if q.Config.PipelineID == cfg.PipelineID && strings.EqualFold(q.Config.Name, cfg.Name) {
			return nil, types.NewConflict(fmt.Sprintf("queue %q already exists in pipeline", cfg.Name))
		}
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	m.queues[cfg.ID] = NewWorkQueue(cfg)
	return &cfg, nil
}

// DeleteQueue removes a queue. Fails while items are waiting or active.
func (m *Manager) DeleteQueue(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[id]
	if !ok {
		return types.NewNotFound("queue not found")
	}
	if len(q.Waiting) > 0 || len(q.Active) > 0 {
		return types.NewInUse(fmt.Sprintf("queue has %d waiting and %d active items", len(q.Waiting), len(q.Active)))
	}
	delete(m.queues, id)
	return nil
}

// GetQueue returns a queue snapshot by id
func (m *Manager) GetQueue(id string) (types.QueueSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[id]
	if !ok {
		return types.QueueSnapshot{}, false
	}
	return q.Snapshot(), true
}

// ListQueues returns snapshots of all queues sorted by queue priority
func (m *Manager) ListQueues() []types.QueueSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.QueueSnapshot, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, q.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Queue.Priority != out[j].Queue.Priority {
			return out[i].Queue.Priority < out[j].Queue.Priority
		}
		return out[i].Queue.Name < out[j].Queue.Name
	})
	return out
}

// Enqueue places a routed work item into its queue
func (m *Manager) Enqueue(item *types.WorkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[item.QueueID]
	if !ok {
		return types.NewNotFound(fmt.Sprintf("queue %q not found", item.QueueID))
	}
	if q.AtCapacity() {
		return types.NewValidation(fmt.Sprintf("queue %q is at capacity (%d)", q.Config.Name, q.Config.Capacity))
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.EnqueueTime.IsZero() {
		item.EnqueueTime = time.Now()
	}
	q.Enqueue(item)
	m.items[item.ID] = item

	m.logger.Debug().
		Str("item_id", item.ID).
		Str("queue_id", item.QueueID).
		Int("queue_depth", len(q.Waiting)).
		Msg("work item enqueued")
	return nil
}

// GetItem returns a work item by id
func (m *Manager) GetItem(id string) (*types.WorkItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item, ok
}

// NextAssignable returns the head waiting item of each queue, ordered by
// queue priority. The dispatcher walks this list each tick.
func (m *Manager) NextAssignable() []*types.WorkItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ordered := make([]*WorkQueue, 0, len(m.queues))
	for _, q := range m.queues {
		ordered = append(ordered, q)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Config.Priority < ordered[j].Config.Priority
	})

	items := make([]*types.WorkItem, 0, len(ordered))
	for _, q := range ordered {
		if item := q.PeekNext(); item != nil {
			items = append(items, item)
		}
	}
	return items
}

// MarkOffered reserves a waiting item for an agent
func (m *Manager) MarkOffered(itemID, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, q, err := m.findActiveOrWaiting(itemID)
	if err != nil {
		return err
	}
	if item.Status != types.WorkItemQueued {
		return types.NewConflict(fmt.Sprintf("item %q is %s, not queued", itemID, item.Status))
	}
	q.Offer(item, agentID)
	return nil
}

// OnTaskAccepted moves an offered item to active work
func (m *Manager) OnTaskAccepted(itemID, agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		m.logger.Warn().Str("item_id", itemID).Msg("accepted item not found")
		return
	}
	now := time.Now()
	item.Status = types.WorkItemActive
	item.AgentID = agentID
	item.AcceptTime = &now
}

// OnTaskRejected puts an offered item back at the head of its queue
func (m *Manager) OnTaskRejected(itemID, agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		m.logger.Warn().Str("item_id", itemID).Msg("rejected item not found")
		return
	}
	q, ok := m.queues[item.QueueID]
	if !ok {
		return
	}
	delete(q.Active, itemID)
	item.Status = types.WorkItemRejected
	q.Requeue(item)

	m.logger.Debug().
		Str("item_id", itemID).
		Str("agent_id", agentID).
		Msg("work item rejected, requeued")
}

// OnTaskCompleted marks an active item as awaiting disposition
func (m *Manager) OnTaskCompleted(itemID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		m.logger.Warn().Str("item_id", itemID).Msg("completed item not found")
		return
	}
	item.Status = types.WorkItemWrapUp
}

// OnTaskDisposed closes an item with its disposition code and persists it
func (m *Manager) OnTaskDisposed(itemID, disposition string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		m.logger.Warn().Str("item_id", itemID).Msg("disposed item not found")
		return
	}
	q, ok := m.queues[item.QueueID]
	if !ok {
		return
	}
	closed := q.Close(itemID, disposition)
	if closed == nil {
		return
	}
	delete(m.items, itemID)

	m.logger.Debug().
		Str("item_id", itemID).
		Str("disposition", disposition).
		Float64("handle_time", closed.HandleTime).
		Msg("work item closed")

	if m.store != nil {
		record := itemToRecord(closed)
		go func() {
			if err := m.store.SaveWorkItemRecord(record); err != nil {
				m.logger.Error().Err(err).Str("item_id", itemID).Msg("failed to save work item record")
			}
		}()
	}
}

// CancelItem removes a waiting item without working it
func (m *Manager) CancelItem(itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return types.NewNotFound("work item not found")
	}
	if item.Status != types.WorkItemQueued {
		return types.NewInUse(fmt.Sprintf("item is %s, only queued items can be cancelled", item.Status))
	}
	q := m.queues[item.QueueID]
	for i, waiting := range q.Waiting {
		if waiting.ID == itemID {
			q.Waiting = append(q.Waiting[:i], q.Waiting[i+1:]...)
			break
		}
	}
	item.Status = types.WorkItemCancelled
	delete(m.items, itemID)
	return nil
}

func (m *Manager) findActiveOrWaiting(itemID string) (*types.WorkItem, *WorkQueue, error) {
	item, ok := m.items[itemID]
	if !ok {
		return nil, nil, types.NewNotFound("work item not found")
	}
	q, ok := m.queues[item.QueueID]
	if !ok {
		return nil, nil, types.NewNotFound("queue not found for item")
	}
	return item, q, nil
}

// itemToRecord flattens a closed work item for persistence
func itemToRecord(item *types.WorkItem) types.WorkItemRecord {
	record := types.WorkItemRecord{
		DateKey:     item.EnqueueTime.Format("2006-01-02"),
		ItemID:      item.ID,
		ExternalID:  item.ExternalID,
		PipelineID:  item.PipelineID,
		QueueID:     item.QueueID,
		WorkType:    item.WorkType,
		AgentID:     item.AgentID,
		Disposition: item.Disposition,
		WaitTime:    item.WaitTime,
		HandleTime:  item.HandleTime,
		EnqueueTime: item.EnqueueTime.Format(time.RFC3339),
		Rejected:    item.Status == types.WorkItemRejected,
	}
	if item.CompleteTime != nil {
		record.CompleteTime = item.CompleteTime.Format(time.RFC3339)
	}
	return record
}
