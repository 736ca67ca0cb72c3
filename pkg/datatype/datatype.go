// Package datatype describes the shape of the values held by a column.
//
// A Type is one of a closed set of variants: Number, Text, Boolean, Temporal,
// Tagged, Record and Array. Types are immutable once constructed. Consumers
// never inspect the variant directly; they implement Visitor and call Apply,
// which keeps every consumer total over the variant set: adding a variant adds
// a Visitor method and breaks every implementation until it is handled.
package datatype

import (
	"cmp"
	"slices"

	"github.com/ajitpratap0/tablecore/pkg/errors"
)

// Type is an immutable description of a value's shape.
type Type interface {
	// String returns a human readable description of the type.
	String() string

	sealed()
}

// Visitor receives exactly one call from Apply, for the active variant.
type Visitor[R any] interface {
	Number(t Number) (R, error)
	Text(t Text) (R, error)
	Boolean(t Boolean) (R, error)
	Temporal(t Temporal) (R, error)
	Tagged(t Tagged) (R, error)
	Record(t Record) (R, error)
	Array(t Array) (R, error)
}

// Apply dispatches t to the visitor method matching its variant.
func Apply[R any](t Type, v Visitor[R]) (R, error) {
	switch tt := t.(type) {
	case Number:
		return v.Number(tt)
	case Text:
		return v.Text(tt)
	case Boolean:
		return v.Boolean(tt)
	case Temporal:
		return v.Temporal(tt)
	case Tagged:
		return v.Tagged(tt)
	case Record:
		return v.Record(tt)
	case Array:
		return v.Array(tt)
	}
	var zero R
	return zero, errors.Internal("datatype: unknown type variant %T", t)
}

// Number is an exact number, optionally with a unit of measure.
type Number struct {
	Unit             string
	MinDecimalPlaces int
}

// Text is a sequence of characters.
type Text struct{}

// Boolean is true or false.
type Boolean struct{}

// Temporal is a date, a time or a combination, at a fixed granularity.
type Temporal struct {
	Granularity Granularity
}

// Tag is one alternative of a Tagged type. Inner is nil when the tag carries
// no value.
type Tag struct {
	Name  string
	Inner Type
}

// Tagged is a closed sum type: every value selects exactly one of Tags.
type Tagged struct {
	Name string
	Args []Type
	Tags []Tag
}

// Field is a named member of a Record.
type Field struct {
	Name string
	Type Type
}

// Record is a set of uniquely named fields. Fields keep their declaration
// order, which is the order used by storage and printing. Two records with
// the same fields in a different order are Equal.
type Record struct {
	Fields []Field
}

// Array is a variable length sequence of values of Elem. A nil Elem means the
// element type is unknown; only the empty array has such a type.
type Array struct {
	Elem Type
}

func (Number) sealed()   {}
func (Text) sealed()     {}
func (Boolean) sealed()  {}
func (Temporal) sealed() {}
func (Tagged) sealed()   {}
func (Record) sealed()   {}
func (Array) sealed()    {}

// NewNumber returns a Number type.
func NewNumber(unit string, minDecimalPlaces int) (Number, error) {
	if minDecimalPlaces < 0 {
		return Number{}, errors.Newf(errors.ErrorTypeValidation, "negative decimal places %d", minDecimalPlaces)
	}
	return Number{Unit: unit, MinDecimalPlaces: minDecimalPlaces}, nil
}

// NewTemporal returns a Temporal type of the given granularity.
func NewTemporal(g Granularity) (Temporal, error) {
	if !g.valid() {
		return Temporal{}, errors.Newf(errors.ErrorTypeValidation, "unknown granularity %d", int(g))
	}
	return Temporal{Granularity: g}, nil
}

// NewTagged validates and returns a Tagged type. Tag names must be non-empty
// and unique; the order of tags is significant.
func NewTagged(name string, args []Type, tags ...Tag) (Tagged, error) {
	if len(tags) == 0 {
		return Tagged{}, errors.Newf(errors.ErrorTypeValidation, "tagged type %q has no tags", name)
	}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag.Name == "" {
			return Tagged{}, errors.Newf(errors.ErrorTypeValidation, "tagged type %q has an unnamed tag", name)
		}
		if _, dup := seen[tag.Name]; dup {
			return Tagged{}, errors.Newf(errors.ErrorTypeValidation, "tagged type %q repeats tag %q", name, tag.Name)
		}
		seen[tag.Name] = struct{}{}
	}
	return Tagged{Name: name, Args: slices.Clone(args), Tags: slices.Clone(tags)}, nil
}

// NewRecord validates field names and returns a Record with fields in the
// given order.
func NewRecord(fields ...Field) (Record, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return Record{}, errors.New(errors.ErrorTypeValidation, "record field has no name")
		}
		if f.Type == nil {
			return Record{}, errors.Newf(errors.ErrorTypeValidation, "record field %q has no type", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return Record{}, errors.Newf(errors.ErrorTypeValidation, "record repeats field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return Record{Fields: slices.Clone(fields)}, nil
}

// NewArray returns an Array of elem; elem may be nil for an unknown element type.
func NewArray(elem Type) Array {
	return Array{Elem: elem}
}

// TagIndex returns the index of the tag called name, or -1.
func (t Tagged) TagIndex(name string) int {
	return slices.IndexFunc(t.Tags, func(tag Tag) bool { return tag.Name == name })
}

// TagsLongestFirst returns tag indexes ordered by descending name length.
// Ties keep declaration order.
func (t Tagged) TagsLongestFirst() []int {
	order := make([]int, len(t.Tags))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(len(t.Tags[b].Name), len(t.Tags[a].Name))
	})
	return order
}

// Field returns the field called name.
func (r Record) Field(name string) (Field, bool) {
	i := slices.IndexFunc(r.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return r.Fields[i], true
}

// Equal reports whether a and b describe the same shape.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch at := a.(type) {
	case Number:
		bt, ok := b.(Number)
		return ok && at == bt
	case Text:
		_, ok := b.(Text)
		return ok
	case Boolean:
		_, ok := b.(Boolean)
		return ok
	case Temporal:
		bt, ok := b.(Temporal)
		return ok && at == bt
	case Tagged:
		bt, ok := b.(Tagged)
		if !ok || at.Name != bt.Name || len(at.Args) != len(bt.Args) || len(at.Tags) != len(bt.Tags) {
			return false
		}
		for i := range at.Args {
			if !Equal(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		for i := range at.Tags {
			if at.Tags[i].Name != bt.Tags[i].Name || !Equal(at.Tags[i].Inner, bt.Tags[i].Inner) {
				return false
			}
		}
		return true
	case Record:
		bt, ok := b.(Record)
		if !ok || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for _, f := range at.Fields {
			other, found := bt.Field(f.Name)
			if !found || !Equal(f.Type, other.Type) {
				return false
			}
		}
		return true
	case Array:
		bt, ok := b.(Array)
		return ok && Equal(at.Elem, bt.Elem)
	}
	return false
}
