package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType is the discriminator carried in the "type" field of every
// inbound frame.
type MessageType string

const (
	TypeMetadata   MessageType = "metadata"
	TypeSnapshot   MessageType = "snapshot"
	TypeTickUpdate MessageType = "tick_update"
	TypeError      MessageType = "error"
	TypeErrorEvent MessageType = "error_event"
	TypeSpanEvent  MessageType = "span_event"
)

func (mt MessageType) String() string {
	return string(mt)
}

// Known reports whether mt is part of the closed inbound set.
func (mt MessageType) Known() bool {
	switch mt {
	case TypeMetadata, TypeSnapshot, TypeTickUpdate, TypeError, TypeErrorEvent, TypeSpanEvent:
		return true
	default:
		return false
	}
}

// TickRange is the inclusive range of ticks the server can serve. On the wire
// it is a two element array [min, max].
type TickRange struct {
	Min int64
	Max int64
}

func (r TickRange) Contains(tick int64) bool {
	return tick >= r.Min && tick <= r.Max
}

func (r TickRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{r.Min, r.Max})
}

func (r *TickRange) UnmarshalJSON(data []byte) error {
	var bounds []int64
	if err := json.Unmarshal(data, &bounds); err != nil {
		return fmt.Errorf("tick_range: %w", err)
	}
	if len(bounds) != 2 {
		return fmt.Errorf("tick_range: want 2 bounds, got %d", len(bounds))
	}
	if bounds[0] > bounds[1] {
		return fmt.Errorf("tick_range: min %d above max %d", bounds[0], bounds[1])
	}
	r.Min, r.Max = bounds[0], bounds[1]
	return nil
}
