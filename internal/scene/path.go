package scene

import "fmt"

// EntityClass identifies which part of the console a parameter belongs to.
// The declaration order is the differ's output order.
type EntityClass int

const (
	Channel EntityClass = iota
	Bus
	Main
	FX
)

func (c EntityClass) String() string {
	switch c {
	case Channel:
		return "ch"
	case Bus:
		return "bus"
	case Main:
		return "main"
	case FX:
		return "fx"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// ParameterPath addresses one console parameter: an entity class, a 1-based
// index within the class, and a field name. The main stereo strip uses
// index 1.
type ParameterPath struct {
	Class EntityClass
	Index int
	Field string
}

func (p ParameterPath) String() string {
	return fmt.Sprintf("%s%02d.%s", p.Class, p.Index, p.Field)
}

// less orders paths by class, then index, then field name. The field
// tie-break keeps the order total so diff output never depends on map
// iteration.
func (p ParameterPath) less(o ParameterPath) bool {
	if p.Class != o.Class {
		return p.Class < o.Class
	}
	if p.Index != o.Index {
		return p.Index < o.Index
	}
	return p.Field < o.Field
}
