package models

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type hashedComponent struct {
	typeShort string
	data      string
}

// Hash returns a deterministic fingerprint of an entity's components.
// Components are ordered by type then by canonical data, and data maps are
// stringified with sorted keys, so the result does not depend on component
// order or key order. Type names are quoted and data is a complete JSON
// value, so the separators cannot be forged and any difference in type or
// data yields a different string.
func Hash(e Entity) string {
	parts := make([]hashedComponent, len(e.Components))
	for i, c := range e.Components {
		parts[i] = hashedComponent{typeShort: c.TypeShort, data: canonical(c.Data)}
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].typeShort != parts[j].typeShort {
			return parts[i].typeShort < parts[j].typeShort
		}
		return parts[i].data < parts[j].data
	})

	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Quote(p.typeShort))
		b.WriteByte('=')
		b.WriteString(p.data)
	}
	return b.String()
}

// Digest is a compact xxhash of Hash, for cache keys and logging. Unlike Hash
// it may collide.
func Digest(e Entity) uint64 {
	return xxhash.Sum64String(Hash(e))
}

// SnapshotDigest fingerprints a whole snapshot from its entity hashes,
// independent of entity order. Two snapshots with the same digest render
// identically.
func SnapshotDigest(s *WorldSnapshot) uint64 {
	if s == nil {
		return 0
	}
	entities := make([]Entity, len(s.Entities))
	copy(entities, s.Entities)
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	d := xxhash.New()
	var id [8]byte
	for _, e := range entities {
		binary.BigEndian.PutUint64(id[:], uint64(e.ID))
		_, _ = d.Write(id[:])
		_, _ = d.WriteString(Hash(e))
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// canonical stringifies a JSON tree. encoding/json sorts map keys at every
// depth, which is what makes the output order independent.
func canonical(v any) string {
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return strconv.Quote(fmt.Sprintf("%#v", v))
	}
	return string(data)
}
