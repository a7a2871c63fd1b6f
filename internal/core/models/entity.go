package models

// EntityID identifies an entity within a single snapshot.
type EntityID int64

// Component is one typed bag of data attached to an entity. TypeShort is the
// identity key used for per-type lookups; TypeFull is informational.
type Component struct {
	TypeFull  string         `json:"type_full"`
	TypeShort string         `json:"type_short"`
	Data      map[string]any `json:"data"`
}

// Entity as reported by the server. Archetype is whatever the server sent and
// is not guaranteed to match the component list.
type Entity struct {
	ID         EntityID    `json:"id"`
	Archetype  []string    `json:"archetype"`
	Components []Component `json:"components"`
}

// Component returns the first component with the given short type name.
func (e Entity) Component(typeShort string) (Component, bool) {
	for _, c := range e.Components {
		if c.TypeShort == typeShort {
			return c, true
		}
	}
	return Component{}, false
}

func (e Entity) HasComponent(typeShort string) bool {
	_, ok := e.Component(typeShort)
	return ok
}

// ComponentTypes lists the short type names actually present, in order.
func (e Entity) ComponentTypes() []string {
	out := make([]string, len(e.Components))
	for i, c := range e.Components {
		out[i] = c.TypeShort
	}
	return out
}

// WorldSnapshot is a full description of the world at one tick. Snapshots are
// never mutated after decoding; consumers replace references instead.
type WorldSnapshot struct {
	Tick        int64          `json:"tick"`
	Timestamp   float64        `json:"timestamp"`
	EntityCount int            `json:"entity_count"`
	Entities    []Entity       `json:"entities"`
	Archetypes  [][]string     `json:"archetypes"`
	Metadata    map[string]any `json:"metadata"`
}

// Entity looks an entity up by id with a linear scan.
func (s *WorldSnapshot) Entity(id EntityID) (Entity, bool) {
	if s == nil {
		return Entity{}, false
	}
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Index builds an id -> entity map. Later duplicates win.
func (s *WorldSnapshot) Index() map[EntityID]Entity {
	if s == nil {
		return map[EntityID]Entity{}
	}
	out := make(map[EntityID]Entity, len(s.Entities))
	for _, e := range s.Entities {
		out[e.ID] = e
	}
	return out
}
