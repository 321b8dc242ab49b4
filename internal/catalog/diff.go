package catalog

import (
	"reflect"
	"sort"
)

// Diff returns the ids added, removed or changed between prev and next, sorted.
// A nil prev treats every id in next as added.
func Diff(prev, next *Catalog) []string {
	changed := make(map[string]bool)
	if prev != nil {
		for id, d := range prev.defs {
			nd, ok := next.defs[id]
			if !ok || !reflect.DeepEqual(d, nd) {
				changed[id] = true
			}
		}
	}
	for id := range next.defs {
		if prev == nil {
			changed[id] = true
			continue
		}
		if _, ok := prev.defs[id]; !ok {
			changed[id] = true
		}
	}

	out := make([]string, 0, len(changed))
	for id := range changed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
