// Package diff computes sparse structural differences between JSON-like
// attribute trees and between entities.
package diff

import (
	"reflect"
	"sort"
	"strconv"
)

type Kind string

const (
	KindAdded   Kind = "added"
	KindRemoved Kind = "removed"
	KindChanged Kind = "changed"
)

// FieldChange is one leaf-level difference. Path holds map keys and, for
// lists, decimal indexes.
type FieldChange struct {
	Path     []string `json:"path"`
	OldValue any      `json:"old_value,omitempty"`
	NewValue any      `json:"new_value,omitempty"`
	Kind     Kind     `json:"kind"`
}

// Diff compares two trees and returns only the differences. Maps recurse by
// key in sorted order, lists recurse by index, and everything else is compared
// as a scalar. A map on one side and a list or scalar on the other is a single
// changed entry.
func Diff(oldTree, newTree any, prefix []string) []FieldChange {
	var out []FieldChange
	walk(oldTree, newTree, clonePath(prefix), &out)
	return out
}

func walk(oldV, newV any, path []string, out *[]FieldChange) {
	oldMap, oldIsMap := oldV.(map[string]any)
	newMap, newIsMap := newV.(map[string]any)
	if oldIsMap && newIsMap {
		walkMap(oldMap, newMap, path, out)
		return
	}

	oldList, oldIsList := oldV.([]any)
	newList, newIsList := newV.([]any)
	if oldIsList && newIsList {
		walkList(oldList, newList, path, out)
		return
	}

	if !equal(oldV, newV) {
		*out = append(*out, FieldChange{Path: clonePath(path), OldValue: oldV, NewValue: newV, Kind: KindChanged})
	}
}

func walkMap(oldMap, newMap map[string]any, path []string, out *[]FieldChange) {
	for _, key := range unionKeys(oldMap, newMap) {
		oldV, inOld := oldMap[key]
		newV, inNew := newMap[key]
		child := append(path, key)
		switch {
		case !inOld:
			*out = append(*out, FieldChange{Path: clonePath(child), NewValue: newV, Kind: KindAdded})
		case !inNew:
			*out = append(*out, FieldChange{Path: clonePath(child), OldValue: oldV, Kind: KindRemoved})
		default:
			walk(oldV, newV, child, out)
		}
	}
}

func walkList(oldList, newList []any, path []string, out *[]FieldChange) {
	n := max(len(oldList), len(newList))
	for i := 0; i < n; i++ {
		child := append(path, strconv.Itoa(i))
		switch {
		case i >= len(oldList):
			*out = append(*out, FieldChange{Path: clonePath(child), NewValue: newList[i], Kind: KindAdded})
		case i >= len(newList):
			*out = append(*out, FieldChange{Path: clonePath(child), OldValue: oldList[i], Kind: KindRemoved})
		default:
			walk(oldList[i], newList[i], child, out)
		}
	}
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// equal compares leaves. Decoded JSON scalars are comparable with ==; the
// reflect fallback covers typed values handed in by callers.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func clonePath(path []string) []string {
	out := make([]string, len(path))
	copy(out, path)
	return out
}
