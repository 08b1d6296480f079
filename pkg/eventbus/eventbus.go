package eventbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventBus is the narrow external-interface contract from spec.md §6.
type EventBus interface {
	Publish(topic string, payload any)
}

// Event is the envelope every subscriber receives, matching spec.md §6's
// required event_id/ts/topic/correlation_id fields plus the topic-specific
// body.
type Event struct {
	EventID       string          `json:"event_id"`
	Topic         string          `json:"topic"`
	Timestamp     time.Time       `json:"ts"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

// correlated is implemented by payloads that carry their own correlation id
// (worker.LifecycleEvent, escalation's transitionEvent), letting Publish lift
// it onto the envelope without those packages importing eventbus.
type correlated interface {
	EventCorrelationID() string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// subscriberBuffer bounds per-subscriber backlog; a slow subscriber drops
// events rather than blocking publishers.
const subscriberBuffer = 50

// publishBuffer bounds the broker's internal fan-out queue.
const publishBuffer = 200

// InMemoryBroker is the default EventBus: an in-process broadcast broker.
type InMemoryBroker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewInMemoryBroker creates a broker; call Start to begin distribution.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, publishBuffer),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *InMemoryBroker) Start() {
	go b.run()
}

// Stop halts distribution. It is not idempotent: a second call panics on
// the already-closed stop channel.
func (b *InMemoryBroker) Stop() {
	close(b.stopCh)
}

// Subscribe returns a new subscription channel.
func (b *InMemoryBroker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, subscriberBuffer)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *InMemoryBroker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish JSON-encodes payload and enqueues it for broadcast. A marshal
// failure is swallowed: event-bus delivery is best-effort observability,
// never a correctness dependency (spec.md §7).
func (b *InMemoryBroker) Publish(topic string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage(`{}`)
	}

	correlationID := ""
	if c, ok := payload.(correlated); ok {
		correlationID = c.EventCorrelationID()
	}
	if correlationID == "" {
		// No domain correlation id on this payload (e.g. an
		// invariant-violation monitor event): self-correlate rather than
		// leave the required field empty.
		correlationID = uuid.NewString()
	}

	event := &Event{
		EventID:       uuid.NewString(),
		Topic:         topic,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
		Payload:       raw,
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *InMemoryBroker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *InMemoryBroker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount reports the current subscriber count.
func (b *InMemoryBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
