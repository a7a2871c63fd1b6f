package world

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extensivelabs/agentecs-viz/internal/core/protocol"
	"github.com/extensivelabs/agentecs-viz/internal/core/transport"
)

func TestReplayRunsToMaxAndStops(t *testing.T) {
	f := newFixture(t)
	f.historyAt(0, 10, 8)

	f.store.Play()
	require.True(t, f.store.IsReplaying())
	assert.Equal(t, ModeReplaying, f.store.PlaybackMode())
	assert.Equal(t, []time.Duration{time.Second}, f.clock.Pending())
	assert.Empty(t, f.transport.takeSent(), "already paused")

	f.clock.Advance(time.Second)
	assert.Equal(t, []protocol.Command{protocol.Seek(9)}, f.transport.takeSent())
	f.transport.deliver(snapshotMsg(9))

	f.clock.Advance(time.Second)
	assert.Equal(t, []protocol.Command{protocol.Seek(10)}, f.transport.takeSent())
	f.transport.deliver(snapshotMsg(10))

	f.clock.Advance(time.Second)
	assert.Empty(t, f.transport.takeSent())
	assert.False(t, f.store.IsReplaying())
	assert.True(t, f.store.IsPaused())
	assert.Empty(t, f.clock.Pending())
	assert.Equal(t, ModePaused, f.store.PlaybackMode())
}

func TestReplayPausesServerFirst(t *testing.T) {
	f := newFixture(t)
	f.transport.deliver(metadataMsg(10, tickRange(0, 10), true, false))
	f.transport.deliver(snapshotMsg(5))

	f.store.Play()

	assert.Equal(t, []protocol.Command{protocol.Pause()}, f.transport.takeSent())
	f.clock.Advance(time.Second)
	assert.Equal(t, []protocol.Command{protocol.Seek(6)}, f.transport.takeSent())
}

func TestPlayAtLiveEdgeResumes(t *testing.T) {
	f := newFixture(t)
	f.historyAt(0, 10, 10)

	f.store.Play()

	assert.False(t, f.store.IsReplaying())
	assert.Empty(t, f.clock.Pending())
	assert.Equal(t, []protocol.Command{protocol.Resume()}, f.transport.takeSent())
}

func TestSetSpeedRestartsReplay(t *testing.T) {
	f := newFixture(t)
	f.historyAt(0, 10, 2)
	f.store.Play()

	f.store.SetSpeed(4)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, f.clock.Pending())

	f.store.SetSpeed(0)
	assert.Equal(t, []time.Duration{time.Second}, f.clock.Pending(), "fallback interval")

	f.transport.takeSent()
	f.clock.Advance(250 * time.Millisecond)
	assert.Empty(t, f.transport.takeSent(), "old timer was cancelled")
	f.clock.Advance(750 * time.Millisecond)
	assert.Equal(t, []protocol.Command{protocol.Seek(3)}, f.transport.takeSent())
}

func TestSetSpeedIgnoresNonFiniteRates(t *testing.T) {
	f := newFixture(t)
	f.historyAt(0, 100, 10)
	f.store.Play()
	f.store.SetSpeed(2)
	f.transport.takeSent()

	for _, rate := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		f.store.SetSpeed(rate)
		assert.Equal(t, 2.0, f.store.Speed())
		assert.Equal(t, []time.Duration{500 * time.Millisecond}, f.clock.Pending())
	}
	assert.Empty(t, f.transport.takeSent(), "no set_speed for a rejected rate")
	assert.True(t, f.store.IsReplaying())
}

func TestReplayIntervalFallsBackForUnusableSpeed(t *testing.T) {
	s := &Store{opts: Options{ReplayFallbackInterval: 700 * time.Millisecond}}
	for _, rate := range []float64{0, -3, math.NaN(), math.Inf(1), 1e300} {
		s.speed = rate
		assert.Equal(t, 700*time.Millisecond, s.replayInterval(), "speed %v", rate)
	}
	s.speed = 8
	assert.Equal(t, 125*time.Millisecond, s.replayInterval())
}

func TestStartingReplayCancelsPrevious(t *testing.T) {
	f := newFixture(t)
	f.historyAt(0, 10, 2)

	f.store.Play()
	f.store.Play()
	assert.Len(t, f.clock.Pending(), 1)

	f.clock.Advance(time.Second)
	assert.Equal(t, []protocol.Command{protocol.Seek(3)}, f.transport.takeSent())
}

func TestResumeStopsReplay(t *testing.T) {
	f := newFixture(t)
	f.historyAt(0, 10, 2)
	f.store.Play()

	f.store.Resume()

	assert.False(t, f.store.IsReplaying())
	assert.Empty(t, f.clock.Pending())
	assert.Equal(t, []protocol.Command{protocol.Resume()}, f.transport.takeSent())
}

func TestConnectionLossStopsReplay(t *testing.T) {
	f := newFixture(t)
	f.historyAt(0, 10, 2)
	f.store.Play()

	f.transport.setState(transport.StateError)

	assert.False(t, f.store.IsReplaying())
	assert.Empty(t, f.clock.Pending())
	f.clock.Advance(5 * time.Second)
	assert.Empty(t, f.transport.takeSent())
}

func TestStaleReplayCallbackIgnored(t *testing.T) {
	f := newFixture(t)
	f.historyAt(0, 10, 2)
	f.store.Play()

	f.store.mu.Lock()
	gen := f.store.replayGen
	f.store.mu.Unlock()
	f.store.StopReplay()

	f.store.replayTick(gen)

	assert.Empty(t, f.transport.takeSent())
	assert.False(t, f.store.IsReplaying())
}
