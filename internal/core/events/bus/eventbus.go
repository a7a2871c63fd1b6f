package bus

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
)

type basicEvent struct {
	typ  string
	src  string
	ts   time.Time
	data any
}

func (e basicEvent) Type() string         { return e.typ }
func (e basicEvent) Source() string       { return e.src }
func (e basicEvent) Timestamp() time.Time { return e.ts }
func (e basicEvent) Data() any            { return e.data }

// NewEvent creates an Event stamped with ts.
func NewEvent(typ, src string, data any, ts time.Time) Event {
	return basicEvent{typ: typ, src: src, ts: ts, data: data}
}

type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	filters   []EventFilter
	active    atomic.Bool
	bus       *memoryBus
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active.Load() }

func (s *subscription) Cancel() error {
	if s.active.CompareAndSwap(true, false) {
		s.bus.remove(s)
	}
	return nil
}

func (s *subscription) matches(event Event) bool {
	return s.eventType == Wildcard || s.eventType == event.Type()
}

func (s *subscription) passes(event Event) bool {
	for _, f := range s.filters {
		if !f(event) {
			return false
		}
	}
	return true
}

type memoryBus struct {
	mu sync.RWMutex
	// replaced on every change, so publishers can range over a snapshot
	subs      []*subscription
	observers []Observer

	published atomic.Uint64
	delivered atomic.Uint64
	filtered  atomic.Uint64
	failed    atomic.Uint64
	panics    atomic.Uint64
}

// New creates an empty bus.
func New() EventBus {
	return &memoryBus{}
}

func (b *memoryBus) Subscribe(eventType string, handler EventHandler, filters ...EventFilter) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if eventType == "" {
		return nil, ErrEmptyEventType
	}

	s := &subscription{
		id:        uuid.NewString(),
		eventType: eventType,
		handler:   handler,
		filters:   slices.Clone(filters),
		bus:       b,
	}
	s.active.Store(true)

	b.mu.Lock()
	b.subs = append(slices.Clip(b.subs), s)
	b.mu.Unlock()
	return s, nil
}

func (b *memoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *memoryBus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(slices.Clone(b.subs), func(x *subscription) bool { return x == s })
}

func (b *memoryBus) AddObserver(obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(b.observers, obs) {
		b.observers = append(slices.Clip(b.observers), obs)
	}
}

func (b *memoryBus) RemoveObserver(obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = slices.DeleteFunc(slices.Clone(b.observers), func(x Observer) bool { return x == obs })
}

func (b *memoryBus) Metrics() Metrics {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Metrics{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Filtered:    b.filtered.Load(),
		Failed:      b.failed.Load(),
		Panics:      b.panics.Load(),
		Subscribers: n,
	}
}

func (b *memoryBus) Publish(event Event) error {
	start := time.Now()

	b.mu.RLock()
	subs, observers := b.subs, b.observers
	b.mu.RUnlock()

	b.published.Add(1)
	var errs []error
	handlers := 0
	for _, s := range subs {
		// IsActive catches a cancel by an earlier handler of this publish
		if !s.matches(event) || !s.IsActive() {
			continue
		}
		if !s.passes(event) {
			b.filtered.Add(1)
			continue
		}
		handlers++
		if err := b.call(s, event); err != nil {
			errs = append(errs, err)
		}
	}
	b.delivered.Add(uint64(handlers))

	err := errors.Join(errs...)
	if err != nil {
		b.failed.Add(1)
	}
	if len(observers) > 0 {
		took := time.Since(start)
		for _, obs := range observers {
			obs.OnDelivered(event, handlers, err, took)
		}
	}
	return err
}

func (b *memoryBus) call(s *subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, event.Type(), r)
		}
	}()
	return s.handler(event)
}

// LogObserver traces every publish at debug level and reports handler
// failures at warn.
type LogObserver struct {
	logger log.Log
}

func NewLogObserver(logger log.Log) *LogObserver {
	return &LogObserver{logger: logger.Named("bus")}
}

func (o *LogObserver) OnDelivered(event Event, handlers int, err error, took time.Duration) {
	if err != nil {
		o.logger.Warn("Event handler failed",
			log.String("type", event.Type()),
			log.String("source", event.Source()),
			log.Int("handlers", handlers),
			log.Error(err))
		return
	}
	if o.logger.Enabled(log.LevelDebug) {
		o.logger.Debug("Event published",
			log.String("type", event.Type()),
			log.Int("handlers", handlers),
			log.Duration("took", took))
	}
}
