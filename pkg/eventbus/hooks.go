package eventbus

import (
	"context"

	"github.com/venturehq/venture/pkg/events"
)

// HookHandler receives lifecycle events synchronously. Handlers for *-ing
// events may mutate the payload; returning an error aborts the operation
// that fired the hook.
type HookHandler func(ctx context.Context, event Event) error

// Hooks is the synchronous in-process bus the engine fires lifecycle events
// on. It is owned by the engine instance that created it, never shared
// process-wide. Handlers run in registration order on the caller's
// goroutine; the first error short-circuits the remaining handlers and is
// returned to the caller.
type Hooks struct {
	handlers map[events.EventType][]HookHandler
}

func NewHooks() *Hooks {
	return &Hooks{
		handlers: make(map[events.EventType][]HookHandler),
	}
}

// On registers a handler for the given event type. Registration is expected
// to happen before the engine starts firing events; Hooks does no locking.
func (h *Hooks) On(eventType events.EventType, handler HookHandler) {
	h.handlers[eventType] = append(h.handlers[eventType], handler)
}

// Emit invokes every handler registered for the event's type, in
// registration order. Handler errors propagate; they are never swallowed.
func (h *Hooks) Emit(ctx context.Context, event Event) error {
	for _, handler := range h.handlers[event.GetType()] {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}

	return nil
}
