package scene

import (
	"fmt"
	"sort"
)

// Change is one parameter difference between two snapshots. Old is nil for
// a path that only exists in the new snapshot.
type Change struct {
	Path ParameterPath
	Old  *Value
	New  Value
}

func (c Change) String() string {
	if c.Old == nil {
		return fmt.Sprintf("%s: (none) -> %s", c.Path, c.New)
	}
	return fmt.Sprintf("%s: %s -> %s", c.Path, c.Old, c.New)
}

// DiffResult is the outcome of comparing two snapshots. Removed lists paths
// present only in the old snapshot; the protocol has no delete operation,
// so removals are reported, never applied.
type DiffResult struct {
	Changes []Change
	Removed []ParameterPath
}

// Diff compares two snapshots and returns the ordered change list: channel
// changes first, then bus, main, fx, ascending by index, with the field
// name as a final tie-break. The order is independent of map iteration.
func Diff(old, new *Snapshot) DiffResult {
	var res DiffResult

	for path, newVal := range new.values {
		oldVal, ok := old.values[path]
		if !ok {
			res.Changes = append(res.Changes, Change{Path: path, New: newVal})
			continue
		}
		if !oldVal.Equal(newVal) {
			o := oldVal
			res.Changes = append(res.Changes, Change{Path: path, Old: &o, New: newVal})
		}
	}

	for path := range old.values {
		if _, ok := new.values[path]; !ok {
			res.Removed = append(res.Removed, path)
		}
	}

	sort.Slice(res.Changes, func(i, j int) bool {
		return res.Changes[i].Path.less(res.Changes[j].Path)
	})
	sort.Slice(res.Removed, func(i, j int) bool {
		return res.Removed[i].less(res.Removed[j])
	})
	return res
}
