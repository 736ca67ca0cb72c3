package columnar

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ajitpratap0/tablecore/pkg/codec"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

// TaggedColumn stores values of a sum type. Each row has a tag, kept in a
// tag-reserving NumberColumn, and, for tags with an inner type, the position
// of its inner value in that tag's own sub-column.
type TaggedColumn struct {
	typ        datatype.Tagged
	tags       *NumberColumn
	innerIndex *NumberColumn // -1 for tags without an inner value
	inner      []Column      // per tag; nil for tags without an inner type
	appended   prometheus.Counter
	views      viewCache
}

func newTaggedColumn(t datatype.Tagged, o options) (*TaggedColumn, error) {
	tags, err := newNumberColumn(t, len(t.Tags), noNumericTag, o, nil)
	if err != nil {
		return nil, err
	}
	innerIndex, err := newNumberColumn(datatype.Number{}, 0, noNumericTag, o, nil)
	if err != nil {
		return nil, err
	}
	c := &TaggedColumn{
		typ:        t,
		tags:       tags,
		innerIndex: innerIndex,
		inner:      make([]Column, len(t.Tags)),
		appended:   appendCounter(t),
	}
	for i, tag := range t.Tags {
		if tag.Inner == nil {
			continue
		}
		if c.inner[i], err = newColumn(tag.Inner, o); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *TaggedColumn) Type() datatype.Type { return c.typ }
func (c *TaggedColumn) Len() int            { return c.tags.Len() }
func (c *TaggedColumn) View() *View         { return c.views.get(c) }

func (c *TaggedColumn) Append(v any) error {
	tv, ok := v.(value.Tagged)
	if !ok {
		return mismatch(c.typ, v)
	}
	if tv.Index < 0 || tv.Index >= len(c.typ.Tags) {
		return errors.Internal("columnar: tag index %d out of range for %s", tv.Index, c.typ)
	}

	sub := c.inner[tv.Index]
	pos := int64(-1)
	switch {
	case sub == nil && tv.Inner != nil:
		return errors.Internal("columnar: tag %s of %s carries no value, got %T",
			c.typ.Tags[tv.Index].Name, c.typ, tv.Inner)
	case sub != nil && tv.Inner == nil:
		return errors.Internal("columnar: tag %s of %s is missing its value",
			c.typ.Tags[tv.Index].Name, c.typ)
	case sub != nil:
		if err := sub.Append(tv.Inner); err != nil {
			return err
		}
		pos = int64(sub.Len() - 1)
	}

	if err := c.tags.AddTag(tv.Index); err != nil {
		return err
	}
	c.innerIndex.addInt64(pos)
	c.appended.Inc()
	return nil
}

func (c *TaggedColumn) AppendText(raw string) error {
	v, err := codec.Parse(raw, c.typ)
	if err != nil {
		return err
	}
	return c.Append(v)
}

func (c *TaggedColumn) Get(i int) (any, error) {
	tag, err := c.tags.GetTag(i)
	if err != nil {
		return nil, err
	}
	if tag < 0 || tag >= len(c.inner) {
		return nil, errors.Internal("columnar: row %d has tag %d, %s declares %d", i, tag, c.typ, len(c.inner))
	}
	sub := c.inner[tag]
	if sub == nil {
		return value.Tagged{Index: tag}, nil
	}
	n, err := c.innerIndex.GetNumber(i)
	if err != nil {
		return nil, err
	}
	pos, ok := n.Int64()
	if !ok || pos < 0 || pos >= int64(sub.Len()) {
		return nil, errors.Internal("columnar: row %d points at inner value %s of tag %s, which holds %d",
			i, n, c.typ.Tags[tag].Name, sub.Len())
	}
	inner, err := sub.Get(int(pos))
	if err != nil {
		return nil, err
	}
	return value.Tagged{Index: tag, Inner: inner}, nil
}

func (c *TaggedColumn) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	// Inner values are appended in row order, so the first dropped row of
	// each tag marks where its sub-column ends.
	for i := n; i < c.Len(); i++ {
		tag, err := c.tags.GetTag(i)
		if err != nil || c.inner[tag] == nil {
			continue
		}
		if pos, err := c.innerIndex.GetNumber(i); err == nil {
			if p, ok := pos.Int64(); ok && int(p) < c.inner[tag].Len() {
				c.inner[tag].Truncate(int(p))
			}
		}
	}
	c.tags.Truncate(n)
	c.innerIndex.Truncate(n)
}

func (c *TaggedColumn) MemoryUsage() int64 {
	total := c.tags.MemoryUsage() + c.innerIndex.MemoryUsage()
	for _, sub := range c.inner {
		if sub != nil {
			total += sub.MemoryUsage()
		}
	}
	return total
}

// numericTagOf returns the tag of t that carries a Number when every other
// tag carries nothing, as in {Missing, NA, Number(n)}.
func numericTagOf(t datatype.Tagged) (int, bool) {
	found := noNumericTag
	for i, tag := range t.Tags {
		if tag.Inner == nil {
			continue
		}
		if found != noNumericTag || datatype.Kind(tag.Inner) != "number" {
			return noNumericTag, false
		}
		found = i
	}
	return found, found != noNumericTag
}

// NumericTaggedColumn stores a sum type whose only valued tag is a Number in
// a single NumberColumn: valueless tags take reserved codes and numbers are
// stored unboxed.
type NumericTaggedColumn struct {
	typ      datatype.Tagged
	numbers  *NumberColumn
	appended prometheus.Counter
	views    viewCache
}

func newNumericTaggedColumn(t datatype.Tagged, numericTag int, o options) (*NumericTaggedColumn, error) {
	numbers, err := newNumberColumn(t, len(t.Tags), numericTag, o, nil)
	if err != nil {
		return nil, err
	}
	return &NumericTaggedColumn{typ: t, numbers: numbers, appended: appendCounter(t)}, nil
}

func (c *NumericTaggedColumn) Type() datatype.Type { return c.typ }
func (c *NumericTaggedColumn) Len() int            { return c.numbers.Len() }
func (c *NumericTaggedColumn) View() *View         { return c.views.get(c) }

// Numbers exposes the underlying storage.
func (c *NumericTaggedColumn) Numbers() *NumberColumn { return c.numbers }

func (c *NumericTaggedColumn) Append(v any) error {
	tv, ok := v.(value.Tagged)
	if !ok {
		return mismatch(c.typ, v)
	}
	if tv.Index < 0 || tv.Index >= len(c.typ.Tags) {
		return errors.Internal("columnar: tag index %d out of range for %s", tv.Index, c.typ)
	}
	if tv.Index == c.numbers.numericTag {
		n, ok := tv.Inner.(value.Number)
		if !ok {
			return errors.Internal("columnar: tag %s of %s needs a number, got %T",
				c.typ.Tags[tv.Index].Name, c.typ, tv.Inner)
		}
		c.numbers.Add(n)
	} else {
		if tv.Inner != nil {
			return errors.Internal("columnar: tag %s of %s carries no value, got %T",
				c.typ.Tags[tv.Index].Name, c.typ, tv.Inner)
		}
		if err := c.numbers.AddTag(tv.Index); err != nil {
			return err
		}
	}
	c.appended.Inc()
	return nil
}

func (c *NumericTaggedColumn) AppendText(raw string) error {
	v, err := codec.Parse(raw, c.typ)
	if err != nil {
		return err
	}
	return c.Append(v)
}

func (c *NumericTaggedColumn) Get(i int) (any, error) {
	tag, err := c.numbers.GetTag(i)
	if err != nil {
		return nil, err
	}
	if tag != c.numbers.numericTag {
		return value.Tagged{Index: tag}, nil
	}
	n, err := c.numbers.GetNumber(i)
	if err != nil {
		return nil, err
	}
	return value.Tagged{Index: tag, Inner: n}, nil
}

func (c *NumericTaggedColumn) Truncate(n int)     { c.numbers.Truncate(n) }
func (c *NumericTaggedColumn) MemoryUsage() int64 { return c.numbers.MemoryUsage() }
