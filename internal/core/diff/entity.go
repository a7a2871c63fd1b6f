package diff

import (
	"sort"

	"github.com/extensivelabs/agentecs-viz/internal/core/models"
)

// ComponentDiff groups the field changes of one component. Kind is added or
// removed when the whole component appeared or disappeared, changed otherwise.
type ComponentDiff struct {
	TypeShort string        `json:"type_short"`
	Kind      Kind          `json:"kind"`
	Changes   []FieldChange `json:"changes"`
}

type EntityDiff struct {
	EntityID     models.EntityID `json:"entity_id"`
	Components   []ComponentDiff `json:"components"`
	TotalChanges int             `json:"total_changes"`
}

// Empty reports whether the two entity states were structurally identical.
func (d EntityDiff) Empty() bool {
	return d.TotalChanges == 0 && len(d.Components) == 0
}

// Entities diffs two states of the same entity. Components are matched by
// TypeShort; a nil side means the entity did not exist there, so every
// component on the other side counts as added or removed.
func Entities(oldEntity, newEntity *models.Entity) EntityDiff {
	var d EntityDiff
	switch {
	case newEntity != nil:
		d.EntityID = newEntity.ID
	case oldEntity != nil:
		d.EntityID = oldEntity.ID
	default:
		return d
	}

	oldComps := componentsByType(oldEntity)
	newComps := componentsByType(newEntity)

	types := make([]string, 0, len(oldComps)+len(newComps))
	for t := range oldComps {
		types = append(types, t)
	}
	for t := range newComps {
		if _, ok := oldComps[t]; !ok {
			types = append(types, t)
		}
	}
	sort.Strings(types)

	for _, t := range types {
		oldC, inOld := oldComps[t]
		newC, inNew := newComps[t]

		var cd ComponentDiff
		switch {
		case !inOld:
			cd = ComponentDiff{TypeShort: t, Kind: KindAdded, Changes: flatten(newC.Data, t, KindAdded)}
		case !inNew:
			cd = ComponentDiff{TypeShort: t, Kind: KindRemoved, Changes: flatten(oldC.Data, t, KindRemoved)}
		default:
			changes := Diff(asTree(oldC.Data), asTree(newC.Data), []string{t})
			if len(changes) == 0 {
				continue
			}
			cd = ComponentDiff{TypeShort: t, Kind: KindChanged, Changes: changes}
		}
		d.Components = append(d.Components, cd)
		d.TotalChanges += len(cd.Changes)
	}
	return d
}

// flatten turns a whole component into one synthetic entry per top-level field.
func flatten(data map[string]any, typeShort string, kind Kind) []FieldChange {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]FieldChange, 0, len(keys))
	for _, k := range keys {
		fc := FieldChange{Path: []string{typeShort, k}, Kind: kind}
		if kind == KindAdded {
			fc.NewValue = data[k]
		} else {
			fc.OldValue = data[k]
		}
		out = append(out, fc)
	}
	return out
}

func componentsByType(e *models.Entity) map[string]models.Component {
	out := make(map[string]models.Component)
	if e == nil {
		return out
	}
	for _, c := range e.Components {
		if _, dup := out[c.TypeShort]; !dup {
			out[c.TypeShort] = c
		}
	}
	return out
}

// asTree keeps a nil data map comparable as an empty object.
func asTree(data map[string]any) any {
	if data == nil {
		return map[string]any{}
	}
	return data
}
