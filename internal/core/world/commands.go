package world

import (
	"math"

	"github.com/extensivelabs/agentecs-viz/internal/core/models"
	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
	"github.com/extensivelabs/agentecs-viz/internal/core/protocol"
)

// Commands never fail. A command issued while offline is dropped by the
// transport and leaves local state untouched.

// Pause stops any local replay and asks the server to pause.
func (s *Store) Pause() {
	s.command(func(out pending) pending {
		s.stopReplayLocked()
		s.pauseLocked()
		return out
	})
}

// Resume stops any local replay and asks the server to run live.
func (s *Store) Resume() {
	s.command(func(out pending) pending {
		s.stopReplayLocked()
		s.resumeLocked()
		return out
	})
}

// Step moves one tick forward. While viewing history it seeks locally, never
// past the newest tick. Otherwise the server simulates one step.
func (s *Store) Step() {
	s.command(func(out pending) pending {
		if s.canScrubLocked() && s.tick < s.tickRange.Max {
			s.seekLocked(s.tick + 1)
			return out
		}
		s.sendLocked(protocol.Step())
		return out
	})
}

// StepBack moves one tick back. It does nothing unless history is available
// and the view is past the oldest tick.
func (s *Store) StepBack() {
	s.command(func(out pending) pending {
		if !s.canScrubLocked() || s.tick <= s.tickRange.Min {
			return out
		}
		s.stopReplayLocked()
		if !s.paused {
			s.pauseLocked()
		}
		s.seekLocked(s.tick - 1)
		return out
	})
}

// Seek asks the server for tick. The tick is sent as given; callers clamp it
// to TickRange if they need to.
func (s *Store) Seek(tick int64) {
	s.command(func(out pending) pending {
		s.seekLocked(tick)
		return out
	})
}

// GoToLive stops replay, seeks to the newest tick and resumes.
func (s *Store) GoToLive() {
	s.command(func(out pending) pending {
		s.stopReplayLocked()
		if s.tickRange != nil {
			s.seekLocked(s.tickRange.Max)
		}
		s.resumeLocked()
		return out
	})
}

// SetSpeed stores and forwards the rate. A running replay picks it up
// immediately.
func (s *Store) SetSpeed(ticksPerSecond float64) {
	if math.IsNaN(ticksPerSecond) || math.IsInf(ticksPerSecond, 0) {
		s.logger.Warn("Ignoring non-finite replay speed", log.Float64("speed", ticksPerSecond))
		return
	}
	s.command(func(out pending) pending {
		s.speed = ticksPerSecond
		s.sendLocked(protocol.SetSpeed(ticksPerSecond))
		if s.replaying {
			s.startReplayLocked()
		}
		return out
	})
}

// Play replays history locally when behind the live edge and resumes the
// server otherwise.
func (s *Store) Play() {
	s.command(func(out pending) pending {
		if atLiveEdge(s.tick, s.tickRange) {
			s.stopReplayLocked()
			s.resumeLocked()
			return out
		}
		s.startReplayLocked()
		return out
	})
}

// TogglePause flips between running and stopped. Behind the live edge
// running means a local replay.
func (s *Store) TogglePause() {
	s.command(func(out pending) pending {
		switch mode := s.playbackModeLocked(); {
		case mode == ModeReplaying:
			s.stopReplayLocked()
		case mode == ModeHistory || mode == ModePaused:
			if atLiveEdge(s.tick, s.tickRange) {
				s.resumeLocked()
			} else {
				s.startReplayLocked()
			}
		default:
			s.pauseLocked()
		}
		return out
	})
}

// StopReplay cancels a local replay and leaves the view paused where it is.
func (s *Store) StopReplay() {
	s.command(func(out pending) pending {
		s.stopReplayLocked()
		return out
	})
}

// PinCurrentState freezes the installed snapshot's entities as a diff
// baseline. It is kept until cleared or disconnected.
func (s *Store) PinCurrentState() {
	s.command(func(out pending) pending {
		if s.snapshot == nil {
			return out
		}
		pinned := make(map[models.EntityID]models.Entity, len(s.snapshot.Entities))
		for _, e := range s.snapshot.Entities {
			pinned[e.ID] = e
		}
		s.pinned = pinned
		s.pinnedTick = s.snapshot.Tick
		s.logger.Info("Pinned world state", log.Int64("tick", s.pinnedTick), log.Int("entities", len(pinned)))
		out.add(s, EventPinned, PinChanged{Pinned: true, Tick: s.pinnedTick})
		return out
	})
}

func (s *Store) ClearPinnedState() {
	s.command(func(out pending) pending {
		if s.pinned == nil {
			return out
		}
		s.pinned = nil
		s.pinnedTick = 0
		out.add(s, EventPinned, PinChanged{})
		return out
	})
}

// SelectEntity sets the selection; nil clears it.
func (s *Store) SelectEntity(id *models.EntityID) {
	s.command(func(out pending) pending {
		return s.selectLocked(id, out)
	})
}

func (s *Store) ToggleErrorPanel() {
	s.mu.Lock()
	s.errorPanelOpen = !s.errorPanelOpen
	s.mu.Unlock()
}

// JumpToError seeks to the event's tick and selects its entity.
func (s *Store) JumpToError(ev protocol.ErrorEvent) {
	s.command(func(out pending) pending {
		s.seekLocked(ev.Tick)
		id := ev.EntityID
		return s.selectLocked(&id, out)
	})
}

// command runs fn under the lock and publishes what it queued, followed by a
// playback event if the mode moved.
func (s *Store) command(fn func(out pending) pending) {
	s.mu.Lock()
	out := fn(nil)
	out = s.modeChangedLocked(out)
	s.queueLocked(out)
	s.mu.Unlock()
	s.flush()
}

func (s *Store) selectLocked(id *models.EntityID, out pending) pending {
	if id == nil {
		s.selected = nil
	} else {
		v := *id
		s.selected = &v
	}
	var payload *models.EntityID
	if s.selected != nil {
		v := *s.selected
		payload = &v
	}
	out.add(s, EventSelection, payload)
	return out
}

// seekLocked pauses first unless already paused or replaying.
func (s *Store) seekLocked(tick int64) {
	if !s.paused && !s.replaying {
		s.pauseLocked()
	}
	s.sendLocked(protocol.Seek(tick))
}

// pauseLocked sets the paused flag once the command went out. The server's
// next metadata or tick update is authoritative either way.
func (s *Store) pauseLocked() {
	if s.sendLocked(protocol.Pause()) {
		s.paused = true
	}
}

func (s *Store) resumeLocked() {
	if s.sendLocked(protocol.Resume()) {
		s.paused = false
	}
}

func (s *Store) sendLocked(cmd protocol.Command) bool {
	return s.transport.Send(cmd)
}
