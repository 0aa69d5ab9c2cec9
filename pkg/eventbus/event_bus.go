// Package eventbus carries workflow lifecycle notifications. Two buses live
// here: Hooks, the synchronous in-process bus whose subscribers can veto and
// mutate operations before they commit, and the watermill-backed EventBus,
// which fans committed events out to other processes.
package eventbus

import (
	"context"

	"github.com/venturehq/venture/pkg/events"
)

// Event is anything carrying a lifecycle event type. All payloads in
// pkg/events satisfy it.
type Event interface {
	GetType() events.EventType
}

// EventHandler receives a decoded event. Returning an error nacks the
// message on the broker-backed bus.
type EventHandler func(ctx context.Context, event interface{}) error

// EventPublisher is the side the scheduler depends on; it only emits.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber registers handlers per event type and then starts the
// consume loop. Handle must be called before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
