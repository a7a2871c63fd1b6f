// Package world holds the client's view of the remote simulation: the
// current and previous snapshots, tick range, playback mode, pinned state
// and the bounded error and span logs.
package world

import (
	"cmp"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/extensivelabs/agentecs-viz/internal/core/clock"
	"github.com/extensivelabs/agentecs-viz/internal/core/diff"
	"github.com/extensivelabs/agentecs-viz/internal/core/events/bus"
	"github.com/extensivelabs/agentecs-viz/internal/core/models"
	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
	"github.com/extensivelabs/agentecs-viz/internal/core/protocol"
	"github.com/extensivelabs/agentecs-viz/internal/core/transport"
	"github.com/extensivelabs/agentecs-viz/pkg/sequence"
)

// Transport is the connection the store drives. *transport.Transport
// implements it.
type Transport interface {
	Connect(ctx context.Context)
	Disconnect()
	Send(cmd protocol.Command) bool
	IsCurrent(gen uint64) bool
	State() transport.ConnectionState
	OnMessage(handler transport.MessageHandler)
	OnStateChange(handler transport.StateChangeHandler)
}

type Options struct {
	ErrorBufferSize int
	SpanBufferSize  int
	// DefaultSpeed is the replay rate in ticks per second before SetSpeed.
	DefaultSpeed float64
	// ReplayFallbackInterval is used when the speed is not positive.
	ReplayFallbackInterval time.Duration
	// Source tags published events.
	Source string
}

func DefaultOptions() Options {
	return Options{
		ErrorBufferSize:        1000,
		SpanBufferSize:         2000,
		DefaultSpeed:           1,
		ReplayFallbackInterval: time.Second,
		Source:                 "world",
	}
}

// Baseline selects what an entity diff compares the current snapshot to.
type Baseline int

const (
	BaselinePrevious Baseline = iota
	BaselinePinned
)

// Store is the single owner of world state for one connection. All state
// changes happen under one lock; bus events go out after it is released.
type Store struct {
	transport Transport
	bus       bus.EventBus
	clock     clock.Clock
	logger    log.Log
	opts      Options

	mu        sync.Mutex
	connState transport.ConnectionState

	// server reported
	config          map[string]any
	tickRange       *protocol.TickRange
	supportsHistory bool
	paused          bool
	tick            int64
	entityCount     int

	snapshot   *models.WorldSnapshot
	previous   *models.WorldSnapshot
	hashes     map[models.EntityID]string
	newIDs     map[models.EntityID]struct{}
	changedIDs map[models.EntityID]struct{}
	removedIDs []models.EntityID

	pinned     map[models.EntityID]models.Entity
	pinnedTick int64

	selected       *models.EntityID
	errorPanelOpen bool
	lastError      string
	errorEvents    *sequence.Ring[protocol.ErrorEvent]
	spanEvents     *sequence.Ring[protocol.SpanEvent]

	speed       float64
	replaying   bool
	replayGen   uint64
	replayTimer clock.Timer

	lastMode PlaybackMode

	outbox outbox
}

// NewStore builds a store and registers it as the transport's consumer.
// bus may be nil.
func NewStore(t Transport, eventBus bus.EventBus, clk clock.Clock, logger log.Log, opts Options) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = log.Nop()
	}
	if opts.ErrorBufferSize <= 0 {
		opts.ErrorBufferSize = DefaultOptions().ErrorBufferSize
	}
	if opts.SpanBufferSize <= 0 {
		opts.SpanBufferSize = DefaultOptions().SpanBufferSize
	}
	if opts.ReplayFallbackInterval <= 0 {
		opts.ReplayFallbackInterval = DefaultOptions().ReplayFallbackInterval
	}

	s := &Store{
		transport:   t,
		bus:         eventBus,
		clock:       clk,
		logger:      logger.Named("world"),
		opts:        opts,
		connState:   t.State(),
		errorEvents: sequence.NewRing[protocol.ErrorEvent](opts.ErrorBufferSize),
		spanEvents:  sequence.NewRing[protocol.SpanEvent](opts.SpanBufferSize),
	}
	s.resetLocked()
	s.lastMode = s.playbackModeLocked()

	t.OnMessage(s.handleEnvelope)
	t.OnStateChange(s.handleStateChange)
	return s
}

// Connect drops any current connection, resets all world state and opens a
// fresh connection. The old connection goes first so none of its frames can
// land in the reset state.
func (s *Store) Connect(ctx context.Context) {
	s.transport.Disconnect()

	var out pending
	s.mu.Lock()
	s.resetLocked()
	out.add(s, EventReset, nil)
	out = s.modeChangedLocked(out)
	s.queueLocked(out)
	s.mu.Unlock()
	s.flush()

	s.transport.Connect(ctx)
}

// Disconnect closes the connection and drops all world state.
func (s *Store) Disconnect() {
	s.transport.Disconnect()

	var out pending
	s.mu.Lock()
	s.resetLocked()
	out.add(s, EventReset, nil)
	out = s.modeChangedLocked(out)
	s.queueLocked(out)
	s.mu.Unlock()
	s.flush()
}

// Reset drops all world state without touching the connection.
func (s *Store) Reset() {
	var out pending
	s.mu.Lock()
	s.resetLocked()
	out.add(s, EventReset, nil)
	out = s.modeChangedLocked(out)
	s.queueLocked(out)
	s.mu.Unlock()
	s.flush()
}

func (s *Store) resetLocked() {
	s.stopReplayLocked()
	s.config = nil
	s.tickRange = nil
	s.supportsHistory = false
	s.paused = false
	s.tick = 0
	s.entityCount = 0
	s.snapshot = nil
	s.previous = nil
	s.hashes = map[models.EntityID]string{}
	s.newIDs = map[models.EntityID]struct{}{}
	s.changedIDs = map[models.EntityID]struct{}{}
	s.removedIDs = nil
	s.pinned = nil
	s.pinnedTick = 0
	s.selected = nil
	s.errorPanelOpen = false
	s.lastError = ""
	s.errorEvents.Reset()
	s.spanEvents.Reset()
	s.speed = s.opts.DefaultSpeed
}

// modeChangedLocked queues a playback event when the derived mode moved.
func (s *Store) modeChangedLocked(out pending) pending {
	mode := s.playbackModeLocked()
	if mode != s.lastMode {
		s.lastMode = mode
		out.add(s, EventPlayback, mode)
	}
	return out
}

func (s *Store) playbackModeLocked() PlaybackMode {
	return DerivePlaybackMode(PlaybackInputs{
		Replaying: s.replaying,
		Paused:    s.paused,
		Tick:      s.tick,
		TickRange: s.tickRange,
	})
}

func (s *Store) canScrubLocked() bool {
	return s.supportsHistory && s.tickRange != nil
}

func (s *Store) PlaybackMode() PlaybackMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playbackModeLocked()
}

// CanScrub reports whether the server can serve past ticks.
func (s *Store) CanScrub() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canScrubLocked()
}

// IsAtLiveEdge reports whether the view is at the newest known tick.
func (s *Store) IsAtLiveEdge() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atLiveEdge(s.tick, s.tickRange)
}

func (s *Store) ConnectionState() transport.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connState
}

// Tick is the tick currently being viewed.
func (s *Store) Tick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// TickRange returns the known history bounds; ok is false when the server
// has not reported any.
func (s *Store) TickRange() (r protocol.TickRange, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickRange == nil {
		return protocol.TickRange{}, false
	}
	return *s.tickRange, true
}

func (s *Store) SupportsHistory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supportsHistory
}

func (s *Store) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Store) IsReplaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaying
}

func (s *Store) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Config is the server's simulation config from the last metadata message.
func (s *Store) Config() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// EntityCount is the latest count reported by a snapshot or tick update.
func (s *Store) EntityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entityCount
}

// Snapshot returns the installed snapshot. Callers must not modify it.
func (s *Store) Snapshot() *models.WorldSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Store) PreviousSnapshot() *models.WorldSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previous
}

// SnapshotDigest fingerprints the installed snapshot, zero when there is none.
func (s *Store) SnapshotDigest() uint64 {
	return models.SnapshotDigest(s.Snapshot())
}

func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// ErrorEvents returns buffered error events, oldest first.
func (s *Store) ErrorEvents() []protocol.ErrorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorEvents.Items()
}

// SpanEvents returns buffered span events, oldest first.
func (s *Store) SpanEvents() []protocol.SpanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spanEvents.Items()
}

func (s *Store) ErrorPanelOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorPanelOpen
}

// IsNew reports whether id first appeared in the latest snapshot.
func (s *Store) IsNew(id models.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.newIDs[id]
	return ok
}

// IsChanged reports whether id's components differ from the previous snapshot.
func (s *Store) IsChanged(id models.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.changedIDs[id]
	return ok
}

// NewEntities returns ids first seen in the latest snapshot, ascending.
func (s *Store) NewEntities() []models.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.newIDs)
}

func (s *Store) ChangedEntities() []models.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.changedIDs)
}

// RemovedEntities returns ids present in the previous snapshot but not in the
// latest one.
func (s *Store) RemovedEntities() []models.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EntityID(nil), s.removedIDs...)
}

// Entity looks id up in the installed snapshot.
func (s *Store) Entity(id models.EntityID) (models.Entity, bool) {
	return s.Snapshot().Entity(id)
}

func (s *Store) SelectedEntityID() (models.EntityID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return 0, false
	}
	return *s.selected, true
}

// SelectedEntity resolves the selection against the installed snapshot. It
// reports false when nothing is selected or the entity is gone.
func (s *Store) SelectedEntity() (models.Entity, bool) {
	s.mu.Lock()
	selected, snap := s.selected, s.snapshot
	s.mu.Unlock()
	if selected == nil {
		return models.Entity{}, false
	}
	return snap.Entity(*selected)
}

// EntitiesWithComponent lists entities carrying typeShort, ordered by id.
func (s *Store) EntitiesWithComponent(typeShort string) []models.Entity {
	snap := s.Snapshot()
	if snap == nil {
		return nil
	}
	return sequence.From(snap.Entities).
		Filter(func(e models.Entity) bool { return e.HasComponent(typeShort) }).
		SortBy(func(a, b models.Entity) int { return cmp.Compare(a.ID, b.ID) }).
		Collect()
}

// ArchetypeCounts counts entities per archetype. Keys join the archetype's
// type names with ",".
func (s *Store) ArchetypeCounts() map[string]int {
	snap := s.Snapshot()
	counts := make(map[string]int)
	if snap == nil {
		return counts
	}
	for _, e := range snap.Entities {
		counts[strings.Join(e.Archetype, ",")]++
	}
	return counts
}

// ErrorsForEntity returns buffered error events for id, oldest first.
func (s *Store) ErrorsForEntity(id models.EntityID) []protocol.ErrorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorEvents.Iter().
		Filter(func(ev protocol.ErrorEvent) bool { return ev.EntityID == id }).
		Collect()
}

// EntitiesWithErrors lists the distinct entity ids in the error buffer,
// ordered by id.
func (s *Store) EntitiesWithErrors() []models.EntityID {
	s.mu.Lock()
	ids := sequence.Map(s.errorEvents.Iter(), func(ev protocol.ErrorEvent) models.EntityID {
		return ev.EntityID
	})
	out := sequence.Distinct(ids).SortBy(cmp.Compare[models.EntityID]).Collect()
	s.mu.Unlock()
	if out == nil {
		out = []models.EntityID{}
	}
	return out
}

// PinnedTick returns the tick of the pinned state, if any.
func (s *Store) PinnedTick() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pinned == nil {
		return 0, false
	}
	return s.pinnedTick, true
}

// EntityDiff compares entity id in the installed snapshot against baseline.
// ok is false when the baseline does not exist.
func (s *Store) EntityDiff(id models.EntityID, baseline Baseline) (d diff.EntityDiff, ok bool) {
	s.mu.Lock()
	snap := s.snapshot
	var (
		old   models.Entity
		found bool
	)
	switch baseline {
	case BaselinePinned:
		if s.pinned == nil {
			s.mu.Unlock()
			return diff.EntityDiff{}, false
		}
		old, found = s.pinned[id]
	default:
		if s.previous == nil {
			s.mu.Unlock()
			return diff.EntityDiff{}, false
		}
		old, found = s.previous.Entity(id)
	}
	s.mu.Unlock()

	cur, inCurrent := snap.Entity(id)
	var oldPtr, curPtr *models.Entity
	if found {
		oldPtr = &old
	}
	if inCurrent {
		curPtr = &cur
	}
	return diff.Entities(oldPtr, curPtr), true
}

func sortedIDs(set map[models.EntityID]struct{}) []models.EntityID {
	return sequence.SortedKeys(set)
}
