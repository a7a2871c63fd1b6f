package diff

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

var kindMarks = map[Kind]string{
	KindAdded:   "+",
	KindRemoved: "-",
	KindChanged: "~",
}

// Write renders an entity diff as indented text, one line per field change.
func Write(w io.Writer, d EntityDiff) error {
	if d.Empty() {
		_, err := fmt.Fprintf(w, "entity %d: no changes\n", d.EntityID)
		return err
	}

	noun := "changes"
	if d.TotalChanges == 1 {
		noun = "change"
	}
	if _, err := fmt.Fprintf(w, "entity %d: %d %s\n", d.EntityID, d.TotalChanges, noun); err != nil {
		return err
	}

	for _, c := range d.Components {
		if _, err := fmt.Fprintf(w, "  %s (%s)\n", c.TypeShort, c.Kind); err != nil {
			return err
		}
		for _, fc := range c.Changes {
			if _, err := fmt.Fprintf(w, "    %s %s\n", kindMarks[fc.Kind], describe(fc)); err != nil {
				return err
			}
		}
	}
	return nil
}

func describe(fc FieldChange) string {
	field := strings.Join(fc.Path[min(1, len(fc.Path)):], ".")
	switch fc.Kind {
	case KindAdded:
		return field + ": " + render(fc.NewValue)
	case KindRemoved:
		return field + ": " + render(fc.OldValue)
	default:
		return field + ": " + render(fc.OldValue) + " -> " + render(fc.NewValue)
	}
}

func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
