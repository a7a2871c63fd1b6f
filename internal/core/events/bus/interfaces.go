package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Notes:
// - Handlers subscribe by Event.Type(); Wildcard receives every event.
// - Delivery is synchronous in the publisher's goroutine and follows
//   subscription order, so two handlers always see events in the same order.
// - Filters given at Subscribe are evaluated per event before the handler.
// - Errors from several handlers are joined. A panicking handler is
//   reported as ErrHandlerPanic and does not stop the others.
type EventBus interface {
	Publish(event Event) error
	Subscribe(eventType string, handler EventHandler, filters ...EventFilter) (Subscription, error)
	// Unsubscribe cancels sub. A nil sub is ignored.
	Unsubscribe(sub Subscription) error

	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	Metrics() Metrics
}

// Wildcard subscribes to every event type.
const Wildcard = "*"

// Event is an immutable message carried by the bus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type (
	EventHandler func(event Event) error
	// EventFilter reports whether an event should reach the handler.
	EventFilter func(event Event) bool
)

// Subscription is a handler registration. Cancel is idempotent.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Cancel() error
}

// Observer is told about every publish once delivery has finished.
type Observer interface {
	OnDelivered(event Event, handlers int, err error, took time.Duration)
}

type Metrics struct {
	Published   uint64
	Delivered   uint64
	Filtered    uint64
	Failed      uint64
	Panics      uint64
	Subscribers int
}
