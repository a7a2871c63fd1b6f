package world

import (
	"github.com/extensivelabs/agentecs-viz/internal/core/models"
	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
	"github.com/extensivelabs/agentecs-viz/internal/core/protocol"
	"github.com/extensivelabs/agentecs-viz/internal/core/transport"
)

func (s *Store) handleEnvelope(env transport.Envelope) {
	var out pending

	s.mu.Lock()
	// A message from a connection that has since been replaced must not
	// touch state built for the new one.
	if !s.transport.IsCurrent(env.Generation) {
		s.mu.Unlock()
		s.logger.Debug("Ignoring message from stale connection",
			log.String("type", env.Message.Type().String()),
			log.Uint64("generation", env.Generation))
		return
	}

	switch msg := env.Message.(type) {
	case protocol.Metadata:
		out = s.applyMetadataLocked(msg, out)
	case protocol.Snapshot:
		out = s.applySnapshotLocked(msg, out)
	case protocol.TickUpdate:
		out = s.applyTickUpdateLocked(msg, out)
	case protocol.ServerError:
		s.lastError = msg.Message
		s.logger.Warn("Server reported error", log.String("message", msg.Message))
		out.add(s, EventError, msg.Message)
	case protocol.ErrorEvent:
		if s.errorEvents.Push(msg) {
			s.logger.Debug("Error buffer full, dropped oldest event")
		}
		out.add(s, EventErrorEvent, msg)
	case protocol.SpanEvent:
		s.spanEvents.Push(msg)
		out.add(s, EventSpanEvent, msg)
	default:
		s.logger.Debug("Ignoring unhandled message", log.String("type", msg.Type().String()))
	}

	out = s.modeChangedLocked(out)
	s.queueLocked(out)
	s.mu.Unlock()
	s.flush()
}

func (s *Store) applyMetadataLocked(msg protocol.Metadata, out pending) pending {
	s.config = msg.Config
	s.supportsHistory = msg.SupportsHistory
	s.paused = msg.IsPaused
	if msg.TickRange != nil {
		r := *msg.TickRange
		s.tickRange = &r
	} else {
		s.tickRange = nil
	}
	if s.snapshot == nil {
		s.tick = msg.Tick
	}

	s.logger.Debug("Metadata received",
		log.Int64("tick", msg.Tick),
		log.Bool("supports_history", msg.SupportsHistory),
		log.Bool("paused", msg.IsPaused))
	out.add(s, EventMetadata, msg)
	return out
}

// applySnapshotLocked detects changes against the prior hashes, shifts the
// installed snapshot to previous and installs the new one, in that order.
func (s *Store) applySnapshotLocked(msg protocol.Snapshot, out pending) pending {
	snap := msg.Snapshot

	hashes := make(map[models.EntityID]string, len(snap.Entities))
	newIDs := make(map[models.EntityID]struct{})
	changedIDs := make(map[models.EntityID]struct{})
	for _, e := range snap.Entities {
		h := models.Hash(e)
		hashes[e.ID] = h
		prev, seen := s.hashes[e.ID]
		switch {
		case !seen:
			newIDs[e.ID] = struct{}{}
		case prev != h:
			changedIDs[e.ID] = struct{}{}
		}
	}
	removed := make(map[models.EntityID]struct{})
	for id := range s.hashes {
		if _, ok := hashes[id]; !ok {
			removed[id] = struct{}{}
		}
	}

	s.previous = s.snapshot
	s.snapshot = snap
	s.hashes = hashes
	s.newIDs = newIDs
	s.changedIDs = changedIDs
	s.removedIDs = sortedIDs(removed)
	s.tick = msg.Tick
	s.entityCount = snap.EntityCount

	switch {
	case s.tickRange == nil:
		s.tickRange = &protocol.TickRange{Min: msg.Tick, Max: msg.Tick}
	case msg.Tick > s.tickRange.Max:
		s.tickRange = &protocol.TickRange{Min: s.tickRange.Min, Max: msg.Tick}
	}

	s.logger.Debug("Snapshot installed",
		log.Int64("tick", msg.Tick),
		log.Int("entities", len(snap.Entities)),
		log.Int("new", len(newIDs)),
		log.Int("changed", len(changedIDs)),
		log.Int("removed", len(removed)))

	out.add(s, EventSnapshot, SnapshotInstalled{
		Tick:        msg.Tick,
		EntityCount: snap.EntityCount,
		New:         sortedIDs(newIDs),
		Changed:     sortedIDs(changedIDs),
		Removed:     s.removedIDs,
		Digest:      models.SnapshotDigest(snap),
	})
	return out
}

// applyTickUpdateLocked only moves forward and only once a snapshot exists.
func (s *Store) applyTickUpdateLocked(msg protocol.TickUpdate, out pending) pending {
	if s.snapshot == nil {
		s.logger.Debug("Ignoring tick update before first snapshot", log.Int64("tick", msg.Tick))
		return out
	}

	s.tick = msg.Tick
	s.entityCount = msg.EntityCount
	s.paused = msg.IsPaused
	if s.tickRange != nil && msg.Tick > s.tickRange.Max {
		s.tickRange = &protocol.TickRange{Min: s.tickRange.Min, Max: msg.Tick}
	}

	var r *protocol.TickRange
	if s.tickRange != nil {
		copied := *s.tickRange
		r = &copied
	}
	out.add(s, EventTick, TickAdvanced{Tick: msg.Tick, EntityCount: msg.EntityCount, TickRange: r})
	return out
}

func (s *Store) handleStateChange(state transport.ConnectionState) {
	var out pending

	s.mu.Lock()
	s.connState = state
	if state != transport.StateConnected && s.replaying {
		s.logger.Info("Stopping replay, connection is not live", log.String("state", state.String()))
		s.stopReplayLocked()
	}
	out.add(s, EventTransportState, state)
	out = s.modeChangedLocked(out)
	s.queueLocked(out)
	s.mu.Unlock()
	s.flush()
}
