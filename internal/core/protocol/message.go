package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/extensivelabs/agentecs-viz/internal/core/models"
)

// Message is one validated inbound frame. The concrete type is selected by
// the frame's "type" tag.
type Message interface {
	Type() MessageType
}

type Metadata struct {
	Tick            int64          `json:"tick"`
	Config          map[string]any `json:"config"`
	TickRange       *TickRange     `json:"tick_range"`
	SupportsHistory bool           `json:"supports_history"`
	IsPaused        bool           `json:"is_paused"`
}

type Snapshot struct {
	Tick     int64                 `json:"tick"`
	Snapshot *models.WorldSnapshot `json:"snapshot"`
}

// TickUpdate is the lightweight progress frame sent between full snapshots.
type TickUpdate struct {
	Tick        int64 `json:"tick"`
	EntityCount int   `json:"entity_count"`
	IsPaused    bool  `json:"is_paused"`
}

// ServerError carries a server-side failure message. It never closes the
// connection.
type ServerError struct {
	Message string `json:"message"`
}

type ErrorEvent struct {
	Tick     int64           `json:"tick"`
	EntityID models.EntityID `json:"entity_id"`
	Message  string          `json:"message"`
	Severity string          `json:"severity"`
}

type SpanEvent struct {
	SpanID       string         `json:"span_id"`
	TraceID      string         `json:"trace_id"`
	ParentSpanID *string        `json:"parent_span_id"`
	Name         string         `json:"name"`
	StartTime    float64        `json:"start_time"`
	EndTime      float64        `json:"end_time"`
	Status       string         `json:"status"`
	Attributes   map[string]any `json:"attributes"`
}

func (Metadata) Type() MessageType    { return TypeMetadata }
func (Snapshot) Type() MessageType    { return TypeSnapshot }
func (TickUpdate) Type() MessageType  { return TypeTickUpdate }
func (ServerError) Type() MessageType { return TypeError }
func (ErrorEvent) Type() MessageType  { return TypeErrorEvent }
func (SpanEvent) Type() MessageType   { return TypeSpanEvent }

type fieldRule struct {
	name     string
	nullable bool
}

func required(names ...string) []fieldRule {
	rules := make([]fieldRule, len(names))
	for i, n := range names {
		rules[i] = fieldRule{name: n}
	}
	return rules
}

func nullable(name string) fieldRule {
	return fieldRule{name: name, nullable: true}
}

var shapes = map[MessageType][]fieldRule{
	TypeMetadata:   append(required("tick", "supports_history", "is_paused"), nullable("config"), nullable("tick_range")),
	TypeSnapshot:   required("tick", "snapshot"),
	TypeTickUpdate: required("tick", "entity_count", "is_paused"),
	TypeError:      required("message"),
	TypeErrorEvent: required("tick", "entity_id", "message", "severity"),
	TypeSpanEvent:  append(required("span_id", "trace_id", "name", "start_time", "end_time", "status", "attributes"), nullable("parent_span_id")),
}

// Decode parses and validates one inbound frame. Unknown types, missing or
// mistyped fields and broken JSON all fail; nothing is partially applied.
func Decode(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	rawType, ok := fields["type"]
	if !ok {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidShape)
	}
	var msgType MessageType
	if err := json.Unmarshal(rawType, &msgType); err != nil {
		return nil, fmt.Errorf("%w: type is not a string", ErrInvalidShape)
	}

	rules, ok := shapes[msgType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msgType)
	}
	for _, rule := range rules {
		raw, present := fields[rule.name]
		if !present {
			return nil, fmt.Errorf("%w: %s missing %s", ErrInvalidShape, msgType, rule.name)
		}
		if !rule.nullable && isNull(raw) {
			return nil, fmt.Errorf("%w: %s.%s is null", ErrInvalidShape, msgType, rule.name)
		}
	}

	var (
		msg Message
		err error
	)
	switch msgType {
	case TypeMetadata:
		msg, err = decodeAs[Metadata](data)
	case TypeSnapshot:
		msg, err = decodeSnapshot(data)
	case TypeTickUpdate:
		msg, err = decodeAs[TickUpdate](data)
	case TypeError:
		msg, err = decodeAs[ServerError](data)
	case TypeErrorEvent:
		msg, err = decodeAs[ErrorEvent](data)
	case TypeSpanEvent:
		msg, err = decodeSpan(data, fields["attributes"])
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msgType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidShape, msgType, err)
	}
	return msg, nil
}

func decodeAs[T Message](data []byte) (Message, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeSpan(data []byte, attributes json.RawMessage) (Message, error) {
	attributes = bytes.TrimSpace(attributes)
	if len(attributes) == 0 || attributes[0] != '{' {
		return nil, fmt.Errorf("attributes must be an object")
	}
	return decodeAs[SpanEvent](data)
}

func decodeSnapshot(data []byte) (Message, error) {
	var wire struct {
		Tick     int64           `json:"tick"`
		Snapshot json.RawMessage `json:"snapshot"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(wire.Snapshot, &body); err != nil {
		return nil, fmt.Errorf("snapshot must be an object: %v", err)
	}
	if raw, ok := body["entities"]; !ok || isNull(raw) {
		return nil, fmt.Errorf("snapshot missing entities")
	}

	var snapshot models.WorldSnapshot
	if err := json.Unmarshal(wire.Snapshot, &snapshot); err != nil {
		return nil, err
	}
	if err := validateSnapshot(&snapshot); err != nil {
		return nil, err
	}

	// The envelope tick is authoritative; the snapshot is not shared yet so
	// normalising it here keeps it immutable afterwards.
	snapshot.Tick = wire.Tick
	if _, ok := body["entity_count"]; !ok {
		snapshot.EntityCount = len(snapshot.Entities)
	}
	return Snapshot{Tick: wire.Tick, Snapshot: &snapshot}, nil
}

func validateSnapshot(s *models.WorldSnapshot) error {
	seen := make(map[models.EntityID]struct{}, len(s.Entities))
	for i, e := range s.Entities {
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("entity %d: duplicate id", e.ID)
		}
		seen[e.ID] = struct{}{}
		for j, c := range e.Components {
			if c.TypeShort == "" {
				return fmt.Errorf("entities[%d].components[%d]: missing type_short", i, j)
			}
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// Encode renders a message with its type tag. Servers and test fixtures use it;
// the client only ever decodes.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(msg.Type())
	fields["type"] = tag
	return json.Marshal(fields)
}
