// Package value defines the logical values held in columns and exchanged with
// the text codec.
//
// Each type shape maps to one Go representation:
//
//	Number    value.Number
//	Text      string
//	Boolean   bool
//	Temporal  time.Time
//	Tagged    value.Tagged
//	Record    value.Record
//	Array     value.List (value.Slice, or a read-only view of a column)
package value

import (
	"time"
)

// Tagged is a value of a sum type: the selected tag and, if that tag declares
// an inner type, its inner value.
type Tagged struct {
	Index int
	Inner any
}

// Record maps field names to field values.
type Record map[string]any

// List is a read-only indexed sequence of values.
type List interface {
	Len() int
	Get(i int) (any, error)
}

// Slice is a List backed by a Go slice.
type Slice []any

// Len implements List.
func (s Slice) Len() int { return len(s) }

// Get implements List.
func (s Slice) Get(i int) (any, error) { return s[i], nil }

// Materialize copies any List into a Slice.
func Materialize(l List) (Slice, error) {
	if s, ok := l.(Slice); ok {
		return s, nil
	}
	out := make(Slice, l.Len())
	for i := range out {
		v, err := l.Get(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Equal reports deep logical equality. Numbers compare numerically, times
// compare as instants with the same offset, lists compare element-wise
// regardless of their backing.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Number:
		bv, ok := b.(Number)
		return ok && av.Equal(bv)
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok || !av.Equal(bv) {
			return false
		}
		_, ao := av.Zone()
		_, bo := bv.Zone()
		return ao == bo
	case Tagged:
		bv, ok := b.(Tagged)
		return ok && av.Index == bv.Index && Equal(av.Inner, bv.Inner)
	case Record:
		bv, ok := b.(Record)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, found := bv[k]
			if !found || !Equal(x, y) {
				return false
			}
		}
		return true
	case List:
		bv, ok := b.(List)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			x, errA := av.Get(i)
			y, errB := bv.Get(i)
			if errA != nil || errB != nil || !Equal(x, y) {
				return false
			}
		}
		return true
	}
	return false
}
