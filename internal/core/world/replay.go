package world

import (
	"math"
	"time"

	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
)

// The replay driver steps through history by seeking one tick per interval.
// At most one replay timer exists; every start bumps replayGen so a callback
// from a cancelled timer finds a stale generation and returns.

func (s *Store) startReplayLocked() {
	s.stopReplayLocked()
	if !s.paused {
		s.pauseLocked()
	}
	s.replaying = true
	s.scheduleReplayLocked()

	s.logger.Info("Replay started",
		log.Int64("tick", s.tick),
		log.Float64("speed", s.speed),
		log.Duration("interval", s.replayInterval()))
}

func (s *Store) stopReplayLocked() {
	s.replayGen++
	if s.replayTimer != nil {
		s.replayTimer.Stop()
		s.replayTimer = nil
	}
	if s.replaying {
		s.replaying = false
		s.logger.Info("Replay stopped", log.Int64("tick", s.tick))
	}
}

func (s *Store) scheduleReplayLocked() {
	gen := s.replayGen
	s.replayTimer = s.clock.AfterFunc(s.replayInterval(), func() { s.replayTick(gen) })
}

// replayInterval is one tick at the current speed. Speeds that give no
// usable interval fall back to the configured one.
func (s *Store) replayInterval() time.Duration {
	if !usableSpeed(s.speed) {
		return s.opts.ReplayFallbackInterval
	}
	d := time.Duration(float64(time.Second) / s.speed)
	if d <= 0 {
		return s.opts.ReplayFallbackInterval
	}
	return d
}

func usableSpeed(rate float64) bool {
	return rate > 0 && !math.IsNaN(rate) && !math.IsInf(rate, 0)
}

func (s *Store) replayTick(gen uint64) {
	var out pending

	s.mu.Lock()
	if gen != s.replayGen || !s.replaying {
		s.mu.Unlock()
		return
	}
	s.replayTimer = nil

	if s.snapshot == nil || s.tickRange == nil || s.tick+1 > s.tickRange.Max {
		s.stopReplayLocked()
		s.paused = true
	} else {
		s.seekLocked(s.tick + 1)
		s.scheduleReplayLocked()
	}

	out = s.modeChangedLocked(out)
	s.queueLocked(out)
	s.mu.Unlock()
	s.flush()
}
