package dispatch

import (
	"context"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/metrics"
	"github.com/dispatchworks/taskhub/backend/internal/queue"
	"github.com/dispatchworks/taskhub/backend/internal/session"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/rs/zerolog"
)

// Dispatcher periodically matches queued work items to ready agents.
// Queues are drained in priority order; within a pass every offered agent
// leaves the ready pool, so one tick never double-books anyone.
type Dispatcher struct {
	queues   *queue.Manager
	machine  *session.Machine
	roster   *Roster
	strategy Strategy
	interval time.Duration
	logger   zerolog.Logger
}

// NewDispatcher creates the work dispatcher
func NewDispatcher(queues *queue.Manager, machine *session.Machine, roster *Roster, strategy Strategy, interval time.Duration, logger zerolog.Logger) *Dispatcher {
	if strategy == nil {
		strategy = &LongestIdleFirst{}
	}
	return &Dispatcher{
		queues:   queues,
		machine:  machine,
		roster:   roster,
		strategy: strategy,
		interval: interval,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Start runs dispatch passes until the context is cancelled
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.interval).Msg("dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatcher stopped")
			return
		case <-ticker.C:
			d.Tick()
			d.machine.CheckDurations()
		}
	}
}

// Tick performs a single dispatch pass
func (d *Dispatcher) Tick() {
	items := d.queues.NextAssignable()
	if len(items) == 0 {
		return
	}
	ready := d.machine.ReadySessions()
	if len(ready) == 0 {
		return
	}

	for _, item := range items {
		candidates := d.qualified(item, ready)
		agent := d.strategy.SelectAgent(item, candidates)
		if agent == nil {
			continue
		}
		if err := d.offer(item, agent.AgentID); err != nil {
			d.logger.Warn().Err(err).
				Str("item_id", item.ID).
				Str("agent_id", agent.AgentID).
				Msg("offer failed")
			continue
		}
		ready = without(ready, agent.AgentID)
		if len(ready) == 0 {
			return
		}
	}
}

// ForcePush assigns a specific item to a specific agent, bypassing the
// reservation window. Manager-initiated; the agent's client is expected to
// open the task immediately.
func (d *Dispatcher) ForcePush(itemID, agentID string) error {
	item, ok := d.queues.GetItem(itemID)
	if !ok {
		return types.NewNotFound("work item not found")
	}
	if item.Status != types.WorkItemQueued {
		return types.NewConflict("work item is no longer queued")
	}

	item.AutoAccept = true
	return d.offer(item, agentID)
}

// offer claims the item on its queue, then walks the agent through the
// state machine. A failed state transition releases the claim.
func (d *Dispatcher) offer(item *types.WorkItem, agentID string) error {
	if err := d.queues.MarkOffered(item.ID, agentID); err != nil {
		return err
	}
	if err := d.machine.AssignTask(agentID, item); err != nil {
		d.queues.OnTaskRejected(item.ID, agentID)
		return err
	}
	metrics.Get().RecordItemAssigned()

	d.logger.Info().
		Str("item_id", item.ID).
		Str("agent_id", agentID).
		Str("queue_id", item.QueueID).
		Bool("auto_accept", item.AutoAccept).
		Msg("work item offered")
	return nil
}

// qualified filters the ready pool down to skill-covered agents
func (d *Dispatcher) qualified(item *types.WorkItem, ready []*types.AgentSession) []*types.AgentSession {
	if len(item.RequiredSkills) == 0 {
		return ready
	}
	out := make([]*types.AgentSession, 0, len(ready))
	for _, session := range ready {
		if d.roster.HasSkills(session.AgentID, item.RequiredSkills) {
			out = append(out, session)
		}
	}
	return out
}

func without(sessions []*types.AgentSession, agentID string) []*types.AgentSession {
	out := sessions[:0]
	for _, s := range sessions {
		if s.AgentID != agentID {
			out = append(out, s)
		}
	}
	return out
}
