package scene

import "sort"

// ParseWarning records a recognized but unparseable scene line. The
// snapshot is still produced; warnings are reporting-only.
type ParseWarning struct {
	Line   int
	Text   string
	Reason string
}

// Snapshot is the parameter state parsed from one scene file. It is
// immutable once built; each parse produces a fresh Snapshot.
type Snapshot struct {
	values   map[ParameterPath]Value
	warnings []ParseWarning
}

// NewSnapshot returns an empty snapshot. Exposed for tests; production
// snapshots come from Parse.
func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[ParameterPath]Value)}
}

// Set records a parameter value. Used by the parser and by tests building
// fixtures.
func (s *Snapshot) Set(p ParameterPath, v Value) {
	s.values[p] = v
}

// Get returns the value for a path and whether it is present.
func (s *Snapshot) Get(p ParameterPath) (Value, bool) {
	v, ok := s.values[p]
	return v, ok
}

// Len returns the number of parameters in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.values)
}

// Paths returns every parameter path in deterministic order.
func (s *Snapshot) Paths() []ParameterPath {
	paths := make([]ParameterPath, 0, len(s.values))
	for p := range s.values {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].less(paths[j]) })
	return paths
}

// Warnings returns the parse warnings collected while building the
// snapshot.
func (s *Snapshot) Warnings() []ParseWarning {
	return s.warnings
}
