package escalation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qaorchestrator/core/pkg/eventbus"
	"github.com/qaorchestrator/core/pkg/log"
	"github.com/qaorchestrator/core/pkg/qatypes"
)

// Event topics published on every transition (spec.md §4.6).
const (
	TopicOpened   = "qa.escalation.opened"
	TopicAssigned = "qa.escalation.assigned"
	TopicResolved = "qa.escalation.resolved"
)

// transitionEvent is the payload published alongside every topic.
type transitionEvent struct {
	CaseID   string                  `json:"case_id"`
	BatchRef string                  `json:"batch_ref"`
	From     qatypes.EscalationState `json:"from"`
	To       qatypes.EscalationState `json:"to"`
	Note     string                  `json:"note,omitempty"`
}

// EventCorrelationID implements eventbus's correlated interface: an
// escalation case's correlation id is the batch it was raised against, so
// its open/assign/resolve events all tie back to the batch's own lifecycle
// events.
func (e transitionEvent) EventCorrelationID() string {
	return e.BatchRef
}

// ErrTerminal is returned when a transition is attempted on a case already
// in an absorbing state.
var ErrTerminal = fmt.Errorf("escalation: case is in a terminal state")

// ErrInvalidTransition is returned when a transition does not match the
// state machine (e.g. resolving a PENDING case directly to RESOLVED).
var ErrInvalidTransition = fmt.Errorf("escalation: invalid state transition")

// Manager is the EscalationManager: it owns the case state machine, backed
// by a Store, publishing transitions on an EventBus and, optionally,
// notifying a human channel via a Notifier.
type Manager struct {
	mu       sync.Mutex
	store    Store
	bus      eventbus.EventBus
	notifier Notifier
}

// NewManager wires store/bus/notifier into a Manager. notifier may be nil,
// in which case NoopNotifier is used.
func NewManager(store Store, bus eventbus.EventBus, notifier Notifier) *Manager {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Manager{store: store, bus: bus, notifier: notifier}
}

// Open creates a new PENDING EscalationCase for batchRef, raised by
// workerID (empty if raised before dispatch, e.g. a HUMAN-channel routing
// decision) for reason.
func (m *Manager) Open(batchRef, workerID, reason string) (*qatypes.EscalationCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &qatypes.EscalationCase{
		CaseID:   uuid.NewString(),
		BatchRef: batchRef,
		WorkerID: workerID,
		Reason:   reason,
		State:    qatypes.EscalationPending,
		OpenedAt: time.Now(),
	}

	if err := m.store.Create(c); err != nil {
		return nil, fmt.Errorf("escalation: create case: %w", err)
	}

	m.publish(TopicOpened, transitionEvent{CaseID: c.CaseID, BatchRef: c.BatchRef, To: c.State})
	if err := m.notifier.NotifyOpened(c); err != nil {
		log.WithComponent("escalation").Warn().Err(err).Str("case_id", c.CaseID).Msg("open notification failed")
	}

	cp := *c
	return &cp, nil
}

// Assign transitions a PENDING case to IN_REVIEW under reviewer.
func (m *Manager) Assign(caseID, reviewer string) (*qatypes.EscalationCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.Get(caseID)
	if err != nil {
		return nil, err
	}
	if c.State.IsTerminal() {
		return nil, ErrTerminal
	}
	if c.State != qatypes.EscalationPending {
		return nil, fmt.Errorf("%w: assign requires PENDING, got %s", ErrInvalidTransition, c.State)
	}

	from := c.State
	c.State = qatypes.EscalationInReview
	c.AssignedReviewer = reviewer

	if err := m.store.Update(c); err != nil {
		return nil, fmt.Errorf("escalation: update case: %w", err)
	}

	m.publish(TopicAssigned, transitionEvent{CaseID: c.CaseID, BatchRef: c.BatchRef, From: from, To: c.State})
	if err := m.notifier.NotifyAssigned(c); err != nil {
		log.WithComponent("escalation").Warn().Err(err).Str("case_id", c.CaseID).Msg("assign notification failed")
	}

	cp := *c
	return &cp, nil
}

// Resolve transitions a case to a terminal state. From PENDING only
// CANCELLED is reachable directly; from IN_REVIEW any of RESOLVED,
// CANNOT_FIX, WONT_FIX, or CANCELLED is reachable.
func (m *Manager) Resolve(caseID string, terminal qatypes.EscalationState, note string) (*qatypes.EscalationCase, error) {
	if !terminal.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is not a terminal state", ErrInvalidTransition, terminal)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.Get(caseID)
	if err != nil {
		return nil, err
	}
	if c.State.IsTerminal() {
		return nil, ErrTerminal
	}
	if c.State == qatypes.EscalationPending && terminal != qatypes.EscalationCancelled {
		return nil, fmt.Errorf("%w: PENDING may only resolve directly to CANCELLED", ErrInvalidTransition)
	}

	from := c.State
	c.State = terminal
	c.ResolvedAt = time.Now()
	c.ResolutionNote = note

	if err := m.store.Update(c); err != nil {
		return nil, fmt.Errorf("escalation: update case: %w", err)
	}

	m.publish(TopicResolved, transitionEvent{CaseID: c.CaseID, BatchRef: c.BatchRef, From: from, To: c.State, Note: note})
	if err := m.notifier.NotifyResolved(c); err != nil {
		log.WithComponent("escalation").Warn().Err(err).Str("case_id", c.CaseID).Msg("resolve notification failed")
	}

	cp := *c
	return &cp, nil
}

// Get returns a single case by id.
func (m *Manager) Get(caseID string) (*qatypes.EscalationCase, error) {
	return m.store.Get(caseID)
}

// List returns cases matching filter.
func (m *Manager) List(filter Filter) ([]*qatypes.EscalationCase, error) {
	return m.store.List(filter)
}

// Stats returns the count of cases per state, for the daemon's snapshot
// endpoint.
func (m *Manager) Stats() (map[qatypes.EscalationState]int, error) {
	cases, err := m.store.List(Filter{})
	if err != nil {
		return nil, err
	}

	out := make(map[qatypes.EscalationState]int)
	for _, c := range cases {
		out[c.State]++
	}
	return out, nil
}

func (m *Manager) publish(topic string, payload transitionEvent) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(topic, payload)
}
