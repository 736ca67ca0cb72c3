package columnar

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ajitpratap0/tablecore/pkg/codec"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/pool"
	"github.com/ajitpratap0/tablecore/pkg/temporal"
)

// TextColumn stores strings. Equal strings share memory through a bounded
// interning pool.
type TextColumn struct {
	typ      datatype.Text
	values   []string
	interner *pool.Interner[string]
	appended prometheus.Counter
	views    viewCache
}

func newTextColumn(t datatype.Text, o options) *TextColumn {
	return &TextColumn{
		typ:      t,
		interner: o.interner,
		appended: appendCounter(t),
	}
}

func (c *TextColumn) Type() datatype.Type { return c.typ }
func (c *TextColumn) Len() int            { return len(c.values) }
func (c *TextColumn) View() *View         { return c.views.get(c) }

func (c *TextColumn) Get(i int) (any, error) {
	if i < 0 || i >= len(c.values) {
		return nil, outOfRange(i, len(c.values))
	}
	return c.values[i], nil
}

func (c *TextColumn) Append(v any) error {
	s, ok := v.(string)
	if !ok {
		return mismatch(c.typ, v)
	}
	c.values = append(c.values, c.interner.Intern(s))
	c.appended.Inc()
	return nil
}

// AppendText stores the raw cell as is; text cells are not quoted.
func (c *TextColumn) AppendText(raw string) error {
	return c.Append(raw)
}

func (c *TextColumn) Truncate(n int) {
	if n >= 0 && n < len(c.values) {
		clear(c.values[n:])
		c.values = c.values[:n]
	}
}

// MemoryUsage counts each distinct string's bytes once.
func (c *TextColumn) MemoryUsage() int64 {
	total := int64(cap(c.values)) * 16 // string headers
	seen := make(map[string]struct{})
	for _, v := range c.values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		total += int64(len(v))
	}
	return total
}

// BoolColumn stores boolean values efficiently
type BoolColumn struct {
	typ      datatype.Boolean
	values   []uint64 // Bit-packed storage: 64 bools per uint64
	count    int
	appended prometheus.Counter
	views    viewCache
}

func newBoolColumn(t datatype.Boolean) *BoolColumn {
	return &BoolColumn{
		typ:      t,
		values:   make([]uint64, 0, 16),
		appended: appendCounter(t),
	}
}

func (c *BoolColumn) Type() datatype.Type { return c.typ }
func (c *BoolColumn) Len() int            { return c.count }
func (c *BoolColumn) View() *View         { return c.views.get(c) }

func (c *BoolColumn) Get(i int) (any, error) {
	if i < 0 || i >= c.count {
		return nil, outOfRange(i, c.count)
	}
	wordIndex := i / 64
	bitIndex := i % 64
	return (c.values[wordIndex] & (1 << bitIndex)) != 0, nil
}

func (c *BoolColumn) Append(v any) error {
	boolVal, ok := v.(bool)
	if !ok {
		return mismatch(c.typ, v)
	}

	wordIndex := c.count / 64
	bitIndex := c.count % 64

	// Grow if needed
	if wordIndex >= len(c.values) {
		c.values = append(c.values, 0)
	}

	// Bits past a truncation point may still be set.
	if boolVal {
		c.values[wordIndex] |= 1 << bitIndex
	} else {
		c.values[wordIndex] &^= 1 << bitIndex
	}

	c.count++
	c.appended.Inc()
	return nil
}

func (c *BoolColumn) AppendText(raw string) error {
	v, err := codec.Parse(raw, c.typ)
	if err != nil {
		return err
	}
	return c.Append(v)
}

func (c *BoolColumn) Truncate(n int) {
	if n >= 0 && n < c.count {
		c.count = n
		c.values = c.values[:(n+63)/64]
	}
}

func (c *BoolColumn) MemoryUsage() int64 {
	return int64(cap(c.values) * 8) // 8 bytes per uint64
}

// TemporalColumn stores dates and times normalized to the column granularity.
type TemporalColumn struct {
	typ      datatype.Temporal
	values   []time.Time
	appended prometheus.Counter
	views    viewCache
}

func newTemporalColumn(t datatype.Temporal) *TemporalColumn {
	return &TemporalColumn{typ: t, appended: appendCounter(t)}
}

func (c *TemporalColumn) Type() datatype.Type { return c.typ }
func (c *TemporalColumn) Len() int            { return len(c.values) }
func (c *TemporalColumn) View() *View         { return c.views.get(c) }

func (c *TemporalColumn) Get(i int) (any, error) {
	if i < 0 || i >= len(c.values) {
		return nil, outOfRange(i, len(c.values))
	}
	return c.values[i], nil
}

func (c *TemporalColumn) Append(v any) error {
	t, ok := v.(time.Time)
	if !ok {
		return mismatch(c.typ, v)
	}
	c.values = append(c.values, temporal.Normalize(t, c.typ.Granularity))
	c.appended.Inc()
	return nil
}

func (c *TemporalColumn) AppendText(raw string) error {
	t, err := temporal.Parse(raw, c.typ.Granularity)
	if err != nil {
		return err
	}
	return c.Append(t)
}

func (c *TemporalColumn) Truncate(n int) {
	if n >= 0 && n < len(c.values) {
		c.values = c.values[:n]
	}
}

func (c *TemporalColumn) MemoryUsage() int64 {
	return int64(cap(c.values)) * 24 // time.Time is three words
}
