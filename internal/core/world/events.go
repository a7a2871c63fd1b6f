package world

import (
	"sync"

	"github.com/extensivelabs/agentecs-viz/internal/core/events/bus"
	"github.com/extensivelabs/agentecs-viz/internal/core/models"
	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
	"github.com/extensivelabs/agentecs-viz/internal/core/protocol"
)

// Event types published on the bus. Payloads are listed next to each type.
const (
	EventSnapshot       = "world.snapshot"    // SnapshotInstalled
	EventMetadata       = "world.metadata"    // protocol.Metadata
	EventTick           = "world.tick"        // TickAdvanced
	EventError          = "world.error"       // string
	EventErrorEvent     = "world.error_event" // protocol.ErrorEvent
	EventSpanEvent      = "world.span_event"  // protocol.SpanEvent
	EventPlayback       = "world.playback"    // PlaybackMode
	EventPinned         = "world.pinned"      // PinChanged
	EventSelection      = "world.selection"   // *models.EntityID
	EventReset          = "world.reset"       // nil
	EventTransportState = "transport.state"   // transport.ConnectionState
)

// SnapshotInstalled describes a snapshot right after it replaced the
// previous one.
type SnapshotInstalled struct {
	Tick        int64
	EntityCount int
	New         []models.EntityID
	Changed     []models.EntityID
	Removed     []models.EntityID
	Digest      uint64
}

type TickAdvanced struct {
	Tick        int64
	EntityCount int
	TickRange   *protocol.TickRange
}

type PinChanged struct {
	Pinned bool
	Tick   int64
}

// pending collects events while the store lock is held.
type pending []bus.Event

func (p *pending) add(s *Store, typ string, data any) {
	*p = append(*p, bus.NewEvent(typ, s.opts.Source, data, s.clock.Now()))
}

// outbox hands events to the bus in the order the store produced them.
// Events are queued under the store lock and delivered after it is released
// by whichever goroutine finds the outbox idle. A subscriber that calls back
// into the store only queues, and its events follow the current batch.
type outbox struct {
	mu       sync.Mutex
	queue    []bus.Event
	draining bool
}

func (s *Store) queueLocked(events pending) {
	if s.bus == nil || len(events) == 0 {
		return
	}
	s.outbox.mu.Lock()
	s.outbox.queue = append(s.outbox.queue, events...)
	s.outbox.mu.Unlock()
}

func (s *Store) flush() {
	o := &s.outbox
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return
	}
	o.draining = true
	for len(o.queue) > 0 {
		batch := o.queue
		o.queue = nil
		o.mu.Unlock()
		for _, ev := range batch {
			if err := s.bus.Publish(ev); err != nil {
				s.logger.Warn("Event handler failed", log.String("type", ev.Type()), log.Error(err))
			}
		}
		o.mu.Lock()
	}
	o.draining = false
	o.mu.Unlock()
}
