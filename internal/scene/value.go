// Package scene models X32 scene (.scn) files: the parameter snapshot
// parsed from one file, the tagged values the console's textual encoding
// produces, and the differ that turns two snapshots into an ordered change
// list.
package scene

import (
	"fmt"
	"math"
)

// Epsilon is the float comparison tolerance. Scene files round-trip levels
// through one-decimal text, so exact float comparison would produce
// spurious diffs.
const Epsilon = 1e-4

// ValueKind discriminates the Value union.
type ValueKind int

const (
	KindFloat ValueKind = iota
	KindBool
	KindString
	KindMinusInf
)

// Value is one parameter value: a float, a flag, a string, or the console's
// "-oo" minus-infinity level sentinel (fully attenuated).
type Value struct {
	Kind  ValueKind
	Float float64
	Bool  bool
	Str   string
}

// Float64 returns a float Value.
func Float64(f float64) Value {
	return Value{Kind: KindFloat, Float: f}
}

// Flag returns a boolean Value.
func Flag(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// Text returns a string Value.
func Text(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// MinusInfinity returns the "-oo" sentinel Value.
func MinusInfinity() Value {
	return Value{Kind: KindMinusInf}
}

// Equal compares two values. Floats compare within Epsilon; MinusInfinity
// equals only MinusInfinity.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindFloat:
		return math.Abs(v.Float-o.Float) < Epsilon
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	case KindMinusInf:
		return true
	}
	return false
}

// String renders the value in the scene file's own conventions.
func (v Value) String() string {
	switch v.Kind {
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		if v.Bool {
			return "ON"
		}
		return "OFF"
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	case KindMinusInf:
		return "-oo"
	}
	return "?"
}
