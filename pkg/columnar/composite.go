package columnar

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ajitpratap0/tablecore/pkg/codec"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

// ArrayColumn stores one nested column per row. Rows of an array whose
// element type is unknown are always empty and have no nested column.
type ArrayColumn struct {
	typ      datatype.Array
	rows     []Column
	opts     options
	appended prometheus.Counter
	views    viewCache
}

func newArrayColumn(t datatype.Array, o options) *ArrayColumn {
	return &ArrayColumn{typ: t, opts: o, appended: appendCounter(t)}
}

func (c *ArrayColumn) Type() datatype.Type { return c.typ }
func (c *ArrayColumn) Len() int            { return len(c.rows) }
func (c *ArrayColumn) View() *View         { return c.views.get(c) }

func (c *ArrayColumn) Append(v any) error {
	list, ok := v.(value.List)
	if !ok {
		return mismatch(c.typ, v)
	}
	if c.typ.Elem == nil {
		if list.Len() > 0 {
			return errors.Internal("columnar: %d elements for an array of unknown element type", list.Len())
		}
		c.rows = append(c.rows, nil)
		c.appended.Inc()
		return nil
	}

	row, err := newColumn(c.typ.Elem, c.opts)
	if err != nil {
		return err
	}
	for i := 0; i < list.Len(); i++ {
		elem, err := list.Get(i)
		if err != nil {
			return err
		}
		if err := row.Append(elem); err != nil {
			return err
		}
	}
	c.rows = append(c.rows, row)
	c.appended.Inc()
	return nil
}

func (c *ArrayColumn) AppendText(raw string) error {
	v, err := codec.Parse(raw, c.typ)
	if err != nil {
		return err
	}
	return c.Append(v)
}

// Get returns a read-only value.List over the row.
func (c *ArrayColumn) Get(i int) (any, error) {
	if i < 0 || i >= len(c.rows) {
		return nil, outOfRange(i, len(c.rows))
	}
	if c.rows[i] == nil {
		return value.Slice{}, nil
	}
	return c.rows[i].View(), nil
}

func (c *ArrayColumn) Truncate(n int) {
	if n >= 0 && n < len(c.rows) {
		clear(c.rows[n:])
		c.rows = c.rows[:n]
	}
}

func (c *ArrayColumn) MemoryUsage() int64 {
	total := int64(cap(c.rows)) * 16
	for _, row := range c.rows {
		if row != nil {
			total += row.MemoryUsage()
		}
	}
	return total
}

// RecordColumn stores each field of a record type in its own column. All
// field columns have the same length.
type RecordColumn struct {
	typ      datatype.Record
	fields   []Column // in t.Fields order
	filled   int
	appended prometheus.Counter
	views    viewCache
}

func newRecordColumn(t datatype.Record, o options) (*RecordColumn, error) {
	c := &RecordColumn{
		typ:      t,
		fields:   make([]Column, len(t.Fields)),
		appended: appendCounter(t),
	}
	for i, f := range t.Fields {
		col, err := newColumn(f.Type, o)
		if err != nil {
			return nil, err
		}
		c.fields[i] = col
	}
	return c, nil
}

func (c *RecordColumn) Type() datatype.Type { return c.typ }
func (c *RecordColumn) Len() int            { return c.filled }
func (c *RecordColumn) View() *View         { return c.views.get(c) }

// Field returns the column of the named field.
func (c *RecordColumn) Field(name string) (Column, bool) {
	for i, f := range c.typ.Fields {
		if f.Name == name {
			return c.fields[i], true
		}
	}
	return nil, false
}

func (c *RecordColumn) Append(v any) error {
	rec, ok := v.(value.Record)
	if !ok {
		return mismatch(c.typ, v)
	}
	if len(rec) != len(c.typ.Fields) {
		return errors.Internal("columnar: record with %d fields for %s", len(rec), c.typ)
	}
	for i, f := range c.typ.Fields {
		fv, ok := rec[f.Name]
		if !ok {
			c.rollback(i)
			return errors.Internal("columnar: record value lacks field %q of %s", f.Name, c.typ)
		}
		if err := c.fields[i].Append(fv); err != nil {
			c.rollback(i)
			return err
		}
	}
	c.filled++
	c.appended.Inc()
	return nil
}

// rollback drops the current row from the first n field columns.
func (c *RecordColumn) rollback(n int) {
	for _, col := range c.fields[:n] {
		col.Truncate(c.filled)
	}
}

func (c *RecordColumn) AppendText(raw string) error {
	v, err := codec.Parse(raw, c.typ)
	if err != nil {
		return err
	}
	return c.Append(v)
}

func (c *RecordColumn) Get(i int) (any, error) {
	if i < 0 || i >= c.filled {
		return nil, outOfRange(i, c.filled)
	}
	rec := make(value.Record, len(c.fields))
	for j, f := range c.typ.Fields {
		if c.fields[j].Len() <= i {
			return nil, errors.Internal("columnar: field %q holds %d rows, record column %d", f.Name, c.fields[j].Len(), c.filled)
		}
		fv, err := c.fields[j].Get(i)
		if err != nil {
			return nil, err
		}
		rec[f.Name] = fv
	}
	return rec, nil
}

func (c *RecordColumn) Truncate(n int) {
	if n < 0 || n >= c.filled {
		return
	}
	for _, col := range c.fields {
		col.Truncate(n)
	}
	c.filled = n
}

func (c *RecordColumn) MemoryUsage() int64 {
	var total int64
	for _, col := range c.fields {
		total += col.MemoryUsage()
	}
	return total
}
