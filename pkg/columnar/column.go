package columnar

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tablecore/pkg/codec"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/logger"
	"github.com/ajitpratap0/tablecore/pkg/metrics"
	"github.com/ajitpratap0/tablecore/pkg/pool"
)

// Column is the base interface for all column types.
//
// A column has a single writer. Len only grows, except through Truncate.
// Get is defined for 0 <= i < Len().
type Column interface {
	// Type returns the type of every value in the column.
	Type() datatype.Type
	Len() int
	Get(i int) (any, error)
	// Append adds a value already in its Go representation (see package value).
	Append(v any) error
	// AppendText adds a raw cell read from an external source.
	AppendText(raw string) error
	// Truncate drops every row at index n and above.
	Truncate(n int)
	MemoryUsage() int64
	// View returns the column's shared read-only view.
	View() *View
}

// View is a read-only handle on a column. The view of a column is created
// once and may be shared between goroutines once appends have finished.
type View struct {
	col Column
}

// Type returns the column type.
func (v *View) Type() datatype.Type { return v.col.Type() }

// Len returns the number of rows.
func (v *View) Len() int { return v.col.Len() }

// Get returns the value of row i.
func (v *View) Get(i int) (any, error) { return v.col.Get(i) }

// Text returns row i as a literal.
func (v *View) Text(i int) (string, error) {
	val, err := v.col.Get(i)
	if err != nil {
		return "", err
	}
	return codec.Print(val, v.col.Type())
}

// viewCache builds a column's view on first use.
type viewCache struct {
	once sync.Once
	view *View
}

func (c *viewCache) get(col Column) *View {
	c.once.Do(func() { c.view = &View{col: col} })
	return c.view
}

// Option configures columns built by NewColumn.
type Option func(*options)

type options struct {
	interner *pool.Interner[string]
	logger   *zap.Logger
}

// WithInterner shares p between the text columns being built.
func WithInterner(p *pool.Interner[string]) Option {
	return func(o *options) { o.interner = p }
}

// WithLogger sets the logger used for column events such as width promotions.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	if o.interner == nil {
		o.interner = pool.NewInterner[string]("text", pool.DefaultInternSize)
	}
	return o
}

// NewColumn returns an empty column able to store values of type t.
func NewColumn(t datatype.Type, opts ...Option) (Column, error) {
	return newColumn(t, buildOptions(opts))
}

func newColumn(t datatype.Type, o options) (Column, error) {
	if t == nil {
		return nil, errors.Internal("columnar: column of nil type")
	}
	return datatype.Apply[Column](t, factory{opts: o})
}

// factory picks the storage for each type shape.
type factory struct {
	opts options
}

func (f factory) Number(t datatype.Number) (Column, error) {
	return newNumberColumn(t, 0, noNumericTag, f.opts, appendCounter(t))
}

func (f factory) Text(t datatype.Text) (Column, error) {
	return newTextColumn(t, f.opts), nil
}

func (f factory) Boolean(t datatype.Boolean) (Column, error) {
	return newBoolColumn(t), nil
}

func (f factory) Temporal(t datatype.Temporal) (Column, error) {
	return newTemporalColumn(t), nil
}

func (f factory) Tagged(t datatype.Tagged) (Column, error) {
	if k, ok := numericTagOf(t); ok {
		return newNumericTaggedColumn(t, k, f.opts)
	}
	return newTaggedColumn(t, f.opts)
}

func (f factory) Record(t datatype.Record) (Column, error) {
	return newRecordColumn(t, f.opts)
}

func (f factory) Array(t datatype.Array) (Column, error) {
	return newArrayColumn(t, f.opts), nil
}

func appendCounter(t datatype.Type) prometheus.Counter {
	return metrics.ValuesAppended.WithLabelValues(datatype.Kind(t))
}

// mismatch reports a typed value of the wrong Go type for a column.
func mismatch(t datatype.Type, v any) error {
	return errors.Internal("columnar: cannot append %T to a %s column", v, t)
}

func outOfRange(i, n int) error {
	return errors.Internal("columnar: row %d out of range [0, %d)", i, n)
}
