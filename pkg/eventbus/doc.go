// Package eventbus is the publish side of the orchestrator's event-bus
// contract (spec.md §6): publish(topic, payload), fire-and-forget,
// best-effort delivery: a subscriber whose buffer is full misses the event.
// InMemoryBroker is a direct
// generalization of a topic/payload broadcast broker: the same
// subscribe/publish/broadcast shape, reworked to take a (topic string,
// payload any) pair and JSON-encode the payload.
package eventbus
