package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/history"
	"github.com/dispatchworks/taskhub/backend/internal/metrics"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TaskBackend receives the task-side effects of session transitions.
// It is an optional collaborator; when it is not wired, task effects are
// skipped and logged loudly.
type TaskBackend interface {
	OnTaskAccepted(itemID, agentID string)
	OnTaskRejected(itemID, agentID string)
	OnTaskCompleted(itemID string)
	OnTaskDisposed(itemID, disposition string)
}

// Notifier pushes task and session messages to connected agents. Optional;
// a missing notifier only affects delivery, never state.
type Notifier interface {
	OfferTask(offer types.TaskOffer) bool
	RevokeTask(revoke types.TaskRevoke) bool
	ForceLogout(msg types.ForceLogout) bool
	WarnState(warning types.StateWarning) bool
}

// EventStore is the subset of storage.Store the machine persists through
type EventStore interface {
	SaveStateEvent(event types.StateEventRecord) error
}

// Options carry the optional inputs of a state change
type Options struct {
	TaskID      string
	Reason      string
	ApprovedBy  string
	Disposition string
}

// Machine validates and applies agent work-state transitions. All
// transitions for all agents run under one mutex, so a reservation timer
// can never interleave with a competing transition for the same agent: the
// timer is stopped under the lock before any new action's effects apply.
type Machine struct {
	states   *Registry
	sessions *Store
	log      *history.Log
	tasks    TaskBackend
	notifier Notifier
	store    EventStore

	timers         map[string]*timerHandle // agentID -> pending reservation timer
	defaultTimeout time.Duration
	mu             sync.Mutex
	logger         zerolog.Logger
	now            func() time.Time
}

// timerHandle tracks one reservation countdown
type timerHandle struct {
	taskID string
	timer  *time.Timer
}

// NewMachine creates the work-state machine
func NewMachine(states *Registry, sessions *Store, log *history.Log, defaultTimeout time.Duration, logger zerolog.Logger) *Machine {
	m := &Machine{
		states:         states,
		sessions:       sessions,
		log:            log,
		timers:         make(map[string]*timerHandle),
		defaultTimeout: defaultTimeout,
		logger:         logger.With().Str("component", "statemachine").Logger(),
		now:            time.Now,
	}
	states.SetOccupancy(sessions.CountInState)
	return m
}

// SetTaskBackend wires the task-side collaborator (avoids circular init)
func (m *Machine) SetTaskBackend(tasks TaskBackend) { m.tasks = tasks }

// SetNotifier wires the agent notification collaborator
func (m *Machine) SetNotifier(n Notifier) { m.notifier = n }

// SetStore sets the persistence store for state-change events
func (m *Machine) SetStore(store EventStore) { m.store = store }

// Login creates the agent's session, ending any prior active session
// first. The new session starts in LOGGED_IN.
func (m *Machine) Login(agentID, agentName, teamID string) (*types.AgentSession, error) {
	if agentID == "" {
		return nil, types.NewValidation("agent id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.sessions.live(agentID); ok && prior.Active {
		m.endSessionLocked(prior, types.TriggerSystemAuto, "superseded by new login")
	}

	now := m.now()
	session := &types.AgentSession{
		SessionID:         uuid.New().String(),
		AgentID:           agentID,
		AgentName:         agentName,
		TeamID:            teamID,
		Active:            true,
		CurrentState:      types.StateLoggedIn,
		LoginAt:           now,
		LastStateChangeAt: now,
	}
	m.sessions.Put(session)
	m.appendEvent(session, types.StateLoggedOut, types.StateLoggedIn, types.TriggerLogin, 0, Options{})

	m.logger.Info().
		Str("agent_id", agentID).
		Str("session_id", session.SessionID).
		Msg("agent logged in")
	copied := *session
	return &copied, nil
}

// ChangeState validates and applies one transition for an agent. On
// success the session's state and timestamps are updated and a history
// event is appended whose duration is the time spent in the previous
// state. The returned session is a copy taken under the lock.
func (m *Machine) ChangeState(agentID, target string, trigger types.TransitionTrigger, opts Options) (*types.AgentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, err := m.changeStateLocked(agentID, target, trigger, opts)
	if err != nil {
		return nil, err
	}
	copied := *session
	return &copied, nil
}

func (m *Machine) changeStateLocked(agentID, target string, trigger types.TransitionTrigger, opts Options) (*types.AgentSession, error) {
	session, ok := m.sessions.live(agentID)
	if !ok || !session.Active {
		return nil, types.NewNotFound(fmt.Sprintf("agent %q has no active session", agentID))
	}

	cfg, ok := m.states.Get(target)
	if !ok {
		return nil, types.NewValidation(fmt.Sprintf("unknown work state %q", target))
	}
	if !cfg.Enabled {
		return nil, types.NewValidation(fmt.Sprintf("work state %q is disabled", target))
	}

	if err := m.validateTransition(session, target, trigger); err != nil {
		return nil, err
	}

	if cfg.RequiresApproval && opts.ApprovedBy == "" && trigger != types.TriggerManagerForced {
		return nil, types.NewApprovalRequired(fmt.Sprintf("state %q requires manager approval", target))
	}

	// Any pending reservation timer is stopped before the new state's
	// effects are applied, so a stale expiry can never fire afterwards.
	if session.CurrentState == types.StateReserved {
		m.cancelTimerLocked(agentID)
	}

	from := session.CurrentState
	now := m.now()
	duration := now.Sub(session.LastStateChangeAt).Seconds()
	if opts.TaskID == "" {
		opts.TaskID = session.CurrentTaskID
	}

	session.CurrentState = target
	session.LastStateChangeAt = now
	m.applyTaskEffects(session, trigger, opts)
	m.appendEvent(session, from, target, trigger, duration, opts)
	metrics.Get().RecordStateTransition()

	if target == types.StateLoggedOut {
		m.sessions.End(agentID)
	}

	m.logger.Debug().
		Str("agent_id", agentID).
		Str("from", from).
		Str("to", target).
		Str("trigger", string(trigger)).
		Float64("duration", duration).
		Msg("state transition applied")

	return session, nil
}

// validateTransition enforces the reference transition rules
func (m *Machine) validateTransition(session *types.AgentSession, target string, trigger types.TransitionTrigger) error {
	current := session.CurrentState

	invalid := func() error {
		return types.NewInvalidTransition(fmt.Sprintf("cannot move from %q to %q", current, target))
	}

	// Logout is reachable from every active state.
	if target == types.StateLoggedOut {
		return nil
	}
	if current == target {
		return types.NewInvalidTransition(fmt.Sprintf("already in state %q", current))
	}

	switch current {
	case types.StateLoggedIn:
		if target == types.StateReady {
			return nil
		}
		return invalid()

	case types.StateReady:
		switch target {
		case types.StateReserved:
			if trigger == types.TriggerTaskAssigned {
				return nil
			}
			return types.NewInvalidTransition("reserved is only reachable via task assignment")
		case types.StateActive:
			if trigger == types.TriggerTaskAssigned {
				// Auto-accept delivery skips the reservation window.
				return nil
			}
			return invalid()
		default:
			if m.isUnavailable(target) {
				return nil
			}
			return invalid()
		}

	case types.StateReserved:
		switch {
		case target == types.StateActive && trigger == types.TriggerTaskAccepted:
			return nil
		case target == types.StateReady &&
			(trigger == types.TriggerTaskRejected || trigger == types.TriggerReservationTimeout):
			return nil
		}
		return invalid()

	case types.StateActive:
		if target == types.StateWrapUp && trigger == types.TriggerTaskCompleted {
			return nil
		}
		return invalid()

	case types.StateWrapUp:
		if target == types.StateReady && trigger == types.TriggerDispositionDone {
			return nil
		}
		return invalid()

	default:
		// Unavailable states return to READY only.
		if m.isUnavailable(current) && target == types.StateReady {
			return nil
		}
		return invalid()
	}
}

func (m *Machine) isUnavailable(stateID string) bool {
	cfg, ok := m.states.Get(stateID)
	return ok && cfg.Category == types.CategoryUnavailable
}

// applyTaskEffects forwards task-side consequences to the task backend
func (m *Machine) applyTaskEffects(session *types.AgentSession, trigger types.TransitionTrigger, opts Options) {
	taskID := session.CurrentTaskID
	if taskID == "" {
		return
	}

	switch trigger {
	case types.TriggerTaskAccepted:
		m.withTasks(func(t TaskBackend) { t.OnTaskAccepted(taskID, session.AgentID) })

	case types.TriggerTaskRejected, types.TriggerReservationTimeout:
		m.withTasks(func(t TaskBackend) { t.OnTaskRejected(taskID, session.AgentID) })
		if trigger == types.TriggerReservationTimeout {
			metrics.Get().RecordReservationTimeout()
		}
		if m.notifier != nil {
			m.notifier.RevokeTask(types.TaskRevoke{
				Type: "task_revoke", AgentID: session.AgentID, TaskID: taskID, Reason: string(trigger),
			})
		}
		session.CurrentTaskID = ""

	case types.TriggerTaskCompleted:
		m.withTasks(func(t TaskBackend) { t.OnTaskCompleted(taskID) })

	case types.TriggerDispositionDone:
		m.withTasks(func(t TaskBackend) { t.OnTaskDisposed(taskID, opts.Disposition) })
		session.CurrentTaskID = ""

	case types.TriggerLogout, types.TriggerManagerForced, types.TriggerSystemAuto:
		if session.CurrentState == types.StateLoggedOut {
			// Logging out with a task in flight releases it back to its queue.
			m.withTasks(func(t TaskBackend) { t.OnTaskRejected(taskID, session.AgentID) })
			session.CurrentTaskID = ""
		}
	}
}

// withTasks runs fn against the task backend, logging loudly when the
// collaborator is not wired. The "not wired" branch is a real code path.
func (m *Machine) withTasks(fn func(TaskBackend)) {
	if m.tasks == nil {
		m.logger.Error().Msg("task backend not wired, task effect skipped")
		return
	}
	fn(m.tasks)
}

// AssignTask reserves a work item for a READY agent and starts the
// reservation countdown. Items flagged auto-accept (force-push delivery)
// skip RESERVED and go straight to ACTIVE.
func (m *Machine) AssignTask(agentID string, item *types.WorkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions.live(agentID)
	if !ok || !session.Active {
		return types.NewNotFound(fmt.Sprintf("agent %q has no active session", agentID))
	}
	if session.CurrentState != types.StateReady {
		return types.NewInvalidTransition(fmt.Sprintf("agent %q is %s, not ready", agentID, session.CurrentState))
	}

	session.CurrentTaskID = item.ID
	opts := Options{TaskID: item.ID}

	if item.AutoAccept {
		opts.Reason = "auto-accepted"
		if _, err := m.changeStateLocked(agentID, types.StateActive, types.TriggerTaskAssigned, opts); err != nil {
			session.CurrentTaskID = ""
			return err
		}
		m.withTasks(func(t TaskBackend) { t.OnTaskAccepted(item.ID, agentID) })
	} else {
		if _, err := m.changeStateLocked(agentID, types.StateReserved, types.TriggerTaskAssigned, opts); err != nil {
			session.CurrentTaskID = ""
			return err
		}
		m.startTimerLocked(agentID, item)
	}

	if m.notifier != nil {
		m.notifier.OfferTask(types.TaskOffer{
			Type:        "task_offer",
			AgentID:     agentID,
			TaskID:      item.ID,
			QueueID:     item.QueueID,
			Title:       item.Title,
			PayloadURL:  item.PayloadURL,
			TimeoutSecs: m.timeoutSecs(item),
			AutoAccept:  item.AutoAccept,
			Timestamp:   m.now(),
		})
	}
	return nil
}

// AcceptTask moves a reserved task to active work
func (m *Machine) AcceptTask(agentID string) (*types.AgentSession, error) {
	return m.ChangeState(agentID, types.StateActive, types.TriggerTaskAccepted, Options{})
}

// RejectTask declines a reserved task, releasing it back to its queue
func (m *Machine) RejectTask(agentID, reason string) (*types.AgentSession, error) {
	return m.ChangeState(agentID, types.StateReady, types.TriggerTaskRejected, Options{Reason: reason})
}

// CompleteTask finishes active work and enters wrap-up
func (m *Machine) CompleteTask(agentID string) (*types.AgentSession, error) {
	return m.ChangeState(agentID, types.StateWrapUp, types.TriggerTaskCompleted, Options{})
}

// Disposition closes out the wrap-up with an outcome code
func (m *Machine) Disposition(agentID, code string) (*types.AgentSession, error) {
	if code == "" {
		return nil, types.NewValidation("disposition code is required")
	}
	return m.ChangeState(agentID, types.StateReady, types.TriggerDispositionDone, Options{Disposition: code})
}

// Logout ends the agent's session
func (m *Machine) Logout(agentID string, trigger types.TransitionTrigger) (*types.AgentSession, error) {
	if trigger == "" {
		trigger = types.TriggerLogout
	}
	return m.ChangeState(agentID, types.StateLoggedOut, trigger, Options{})
}

// ReadySessions returns the active sessions currently in READY, for the
// dispatcher
func (m *Machine) ReadySessions() []*types.AgentSession {
	ready := make([]*types.AgentSession, 0)
	for _, session := range m.sessions.Active() {
		if session.CurrentState == types.StateReady {
			ready = append(ready, session)
		}
	}
	return ready
}

// CheckDurations pushes warnings for agents approaching a state's max
// duration. Called periodically; warn-only, agents are never force-moved.
func (m *Machine) CheckDurations() {
	if m.notifier == nil {
		return
	}
	now := m.now()
	for _, session := range m.sessions.Active() {
		cfg, ok := m.states.Get(session.CurrentState)
		if !ok || cfg.MaxDurationMinutes == 0 {
			continue
		}
		elapsed := int(now.Sub(session.LastStateChangeAt).Minutes())
		if elapsed >= cfg.MaxDurationMinutes-cfg.WarnBeforeMinutes {
			m.notifier.WarnState(types.StateWarning{
				Type:           "state_warning",
				AgentID:        session.AgentID,
				State:          session.CurrentState,
				MinutesInState: elapsed,
				MaxMinutes:     cfg.MaxDurationMinutes,
			})
		}
	}
}

// startTimerLocked starts the reservation countdown for an assignment
func (m *Machine) startTimerLocked(agentID string, item *types.WorkItem) {
	timeout := time.Duration(m.timeoutSecs(item)) * time.Second
	handle := &timerHandle{taskID: item.ID}
	handle.timer = time.AfterFunc(timeout, func() {
		m.reservationExpired(agentID, item.ID)
	})
	m.timers[agentID] = handle
}

func (m *Machine) timeoutSecs(item *types.WorkItem) int {
	if item.TimeoutSecs > 0 {
		return item.TimeoutSecs
	}
	return int(m.defaultTimeout.Seconds())
}

// cancelTimerLocked stops and forgets the agent's reservation timer
func (m *Machine) cancelTimerLocked(agentID string) {
	if handle, ok := m.timers[agentID]; ok {
		handle.timer.Stop()
		delete(m.timers, agentID)
	}
}

// reservationExpired fires when an agent neither accepted nor rejected in
// time. It is recorded identically to an explicit rejection, distinguished
// only by trigger.
func (m *Machine) reservationExpired(agentID, taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle, ok := m.timers[agentID]
	if !ok || handle.taskID != taskID {
		// The agent acted before expiry; this timer is stale.
		return
	}
	delete(m.timers, agentID)

	session, ok := m.sessions.live(agentID)
	if !ok || !session.Active || session.CurrentState != types.StateReserved || session.CurrentTaskID != taskID {
		return
	}

	m.logger.Info().
		Str("agent_id", agentID).
		Str("task_id", taskID).
		Msg("reservation expired, releasing task")

	if _, err := m.changeStateLocked(agentID, types.StateReady, types.TriggerReservationTimeout, Options{
		TaskID: taskID, Reason: "reservation window elapsed",
	}); err != nil {
		m.logger.Error().Err(err).Str("agent_id", agentID).Msg("timeout transition failed")
	}
}

// endSessionLocked force-ends a session outside the normal logout flow
func (m *Machine) endSessionLocked(session *types.AgentSession, trigger types.TransitionTrigger, reason string) {
	m.cancelTimerLocked(session.AgentID)

	if session.CurrentTaskID != "" {
		m.withTasks(func(t TaskBackend) { t.OnTaskRejected(session.CurrentTaskID, session.AgentID) })
		session.CurrentTaskID = ""
	}

	from := session.CurrentState
	now := m.now()
	duration := now.Sub(session.LastStateChangeAt).Seconds()
	session.CurrentState = types.StateLoggedOut
	session.LastStateChangeAt = now
	m.appendEvent(session, from, types.StateLoggedOut, trigger, duration, Options{Reason: reason})
	m.sessions.End(session.AgentID)

	if m.notifier != nil {
		m.notifier.ForceLogout(types.ForceLogout{Type: "force_logout", AgentID: session.AgentID, Reason: reason})
	}
}

func (m *Machine) appendEvent(session *types.AgentSession, from, to string, trigger types.TransitionTrigger, duration float64, opts Options) {
	event := types.StateChangeEvent{
		ID:                 uuid.New().String(),
		SessionID:          session.SessionID,
		AgentID:            session.AgentID,
		TeamID:             session.TeamID,
		FromState:          from,
		ToState:            to,
		Trigger:            trigger,
		Timestamp:          m.now(),
		DurationInPrevious: duration,
		TaskID:             opts.TaskID,
		Reason:             opts.Reason,
		ApprovedBy:         opts.ApprovedBy,
	}
	m.log.Append(event)

	if m.store != nil {
		record := types.StateEventRecord{
			AgentID:            event.AgentID,
			Timestamp:          event.Timestamp.Format(time.RFC3339Nano),
			EventID:            event.ID,
			SessionID:          event.SessionID,
			TeamID:             event.TeamID,
			FromState:          event.FromState,
			ToState:            event.ToState,
			Trigger:            string(event.Trigger),
			DurationInPrevious: event.DurationInPrevious,
			TaskID:             event.TaskID,
		}
		go func() {
			if err := m.store.SaveStateEvent(record); err != nil {
				m.logger.Error().Err(err).Str("agent_id", record.AgentID).Msg("failed to save state event")
			}
		}()
	}
}
