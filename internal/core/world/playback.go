package world

import "github.com/extensivelabs/agentecs-viz/internal/core/protocol"

// PlaybackMode is derived on every read and never stored.
type PlaybackMode string

const (
	ModeLive      PlaybackMode = "live"
	ModePaused    PlaybackMode = "paused"
	ModeHistory   PlaybackMode = "history"
	ModeReplaying PlaybackMode = "replaying"
)

// PlaybackInputs are the only values playback mode depends on.
type PlaybackInputs struct {
	Replaying bool
	Paused    bool
	Tick      int64
	TickRange *protocol.TickRange
}

// DerivePlaybackMode maps inputs to a mode. The first matching rule wins:
// an active replay, then a tick behind the known upper bound, then the paused
// flag, otherwise live.
func DerivePlaybackMode(in PlaybackInputs) PlaybackMode {
	switch {
	case in.Replaying:
		return ModeReplaying
	case in.TickRange != nil && in.Tick < in.TickRange.Max:
		return ModeHistory
	case in.Paused:
		return ModePaused
	default:
		return ModeLive
	}
}

// atLiveEdge is true when there is nothing newer to move to.
func atLiveEdge(tick int64, r *protocol.TickRange) bool {
	return r == nil || tick >= r.Max
}
