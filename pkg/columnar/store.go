package columnar

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tablecore/pkg/codec"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/logger"
	"github.com/ajitpratap0/tablecore/pkg/metrics"
	"github.com/ajitpratap0/tablecore/pkg/observability"
	"github.com/ajitpratap0/tablecore/pkg/pool"
)

// Schema defines the structure of a table
type Schema struct {
	Fields []FieldSchema
}

// FieldSchema defines a single column in the schema
type FieldSchema struct {
	Name string
	Type datatype.Type
}

// Validate checks that column names are present and unique and that every
// column has a type.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return errors.New(errors.ErrorTypeValidation, "schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.New(errors.ErrorTypeValidation, "schema has an unnamed column")
		}
		if f.Type == nil {
			return errors.Newf(errors.ErrorTypeValidation, "column %q has no type", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return errors.Newf(errors.ErrorTypeValidation, "column %q declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Table stores rows of typed values column by column.
//
// A table has a single writer at a time; readers may run concurrently with
// each other.
type Table struct {
	mu       sync.RWMutex
	name     string
	schema   Schema
	columns  []Column
	index    map[string]int
	rowCount int
	interner *pool.Interner[string]
	logger   *zap.Logger
}

// NewTable creates an empty table with one column per schema field. Text
// columns of the table share one interning pool.
func NewTable(name string, schema Schema, opts ...Option) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	t := &Table{
		name:     name,
		schema:   schema,
		columns:  make([]Column, len(schema.Fields)),
		index:    make(map[string]int, len(schema.Fields)),
		interner: o.interner,
		logger:   o.logger.With(zap.String("table", name)),
	}
	for i, f := range schema.Fields {
		col, err := newColumn(f.Type, o)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot create column "+f.Name)
		}
		t.columns[i] = col
		t.index[f.Name] = i
	}
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Schema returns the table schema.
func (t *Table) Schema() Schema { return t.schema }

// AppendRow adds a row of typed values keyed by column name. Every column
// must be present.
func (t *Table) AppendRow(row map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(row) != len(t.columns) {
		return errors.Newf(errors.ErrorTypeValidation, "row has %d values, table %s has %d columns", len(row), t.name, len(t.columns))
	}
	for i, f := range t.schema.Fields {
		v, ok := row[f.Name]
		if !ok {
			t.rollback(i)
			return errors.Newf(errors.ErrorTypeValidation, "row lacks column %q", f.Name)
		}
		if err := t.columns[i].Append(v); err != nil {
			t.rollback(i)
			return t.cellError(err, f.Name)
		}
	}
	t.rowCount++
	return nil
}

// AppendTextRow adds a row of raw cells in schema order.
func (t *Table) AppendTextRow(cells []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendTextRow(cells)
}

func (t *Table) appendTextRow(cells []string) error {
	if len(cells) != len(t.columns) {
		return errors.Newf(errors.ErrorTypeData, "row has %d cells, table %s has %d columns", len(cells), t.name, len(t.columns)).
			WithDetail(errors.DetailRow, t.rowCount)
	}
	for i, cell := range cells {
		if err := t.columns[i].AppendText(cell); err != nil {
			t.rollback(i)
			return t.cellError(err, t.schema.Fields[i].Name)
		}
	}
	t.rowCount++
	return nil
}

// rollback drops the partially appended row from the first n columns.
func (t *Table) rollback(n int) {
	for _, col := range t.columns[:n] {
		col.Truncate(t.rowCount)
	}
}

// cellError attaches the row and column of a failed append. The error kind
// of err is kept.
func (t *Table) cellError(err error, column string) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.WithDetail(errors.DetailRow, t.rowCount).WithDetail(errors.DetailColumn, column)
	}
	return errors.Wrap(err, errors.ErrorTypeInternal, "append to column "+column).
		WithDetail(errors.DetailRow, t.rowCount).
		WithDetail(errors.DetailColumn, column)
}

// Row retrieves a row by index
func (t *Table) Row(index int) (map[string]any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.row(index, make(map[string]any, len(t.columns)))
}

func (t *Table) row(index int, into map[string]any) (map[string]any, error) {
	if index < 0 || index >= t.rowCount {
		return nil, errors.Newf(errors.ErrorTypeValidation, "index %d out of range [0, %d)", index, t.rowCount)
	}
	for i, f := range t.schema.Fields {
		v, err := t.columns[i].Get(index)
		if err != nil {
			return nil, err
		}
		into[f.Name] = v
	}
	return into, nil
}

// Column retrieves a column by name
func (t *Table) Column(name string) (Column, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i, exists := t.index[name]
	if !exists {
		return nil, false
	}
	return t.columns[i], true
}

// RowCount returns the number of rows
func (t *Table) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rowCount
}

// ColumnNames returns the column names in schema order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.schema.Fields))
	for i, f := range t.schema.Fields {
		names[i] = f.Name
	}
	return names
}

// MemoryUsage returns total memory usage in bytes
func (t *Table) MemoryUsage() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total int64

	// Overhead for the table itself
	total += 64
	total += int64(len(t.columns) * 32)

	for i, col := range t.columns {
		total += int64(len(t.schema.Fields[i].Name))
		total += col.MemoryUsage()
	}

	return total
}

// MemoryPerRecord returns average memory usage per row
func (t *Table) MemoryPerRecord() float64 {
	rows := t.RowCount()
	if rows == 0 {
		return 0
	}
	return float64(t.MemoryUsage()) / float64(rows)
}

// Clear removes all rows from the table
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, col := range t.columns {
		col.Truncate(0)
	}
	t.rowCount = 0
}

// InternStats returns the statistics of the table's text interning pool.
func (t *Table) InternStats() (size, hits, misses, evictions int64) {
	return t.interner.Stats()
}

// LoadOptions controls LoadCSV.
type LoadOptions struct {
	// SkipInvalid drops rows with malformed cells instead of failing.
	SkipInvalid bool
	// MaxErrors bounds the number of cell errors kept in the report.
	MaxErrors int
}

// CellError describes a cell that could not be read.
type CellError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
	Snippet string `json:"snippet,omitempty"`
}

// LoadReport summarizes a LoadCSV call.
type LoadReport struct {
	Rows     int           `json:"rows"`
	Skipped  int           `json:"skipped"`
	Errors   []CellError   `json:"errors,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

const defaultMaxErrors = 100

// LoadCSV appends the rows of a CSV stream. The first record is a header
// naming the columns; it must name every schema column and may order them
// freely. Unknown header columns are ignored.
//
// A malformed cell fails the load with a data error, or, with SkipInvalid,
// drops its row and is listed in the report. Internal errors always fail.
func (t *Table) LoadCSV(ctx context.Context, r io.Reader, opts LoadOptions) (report LoadReport, err error) {
	ctx, span := observability.StartSpan(ctx, "load_csv")
	span.SetAttribute("table", t.name)
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		span.SetAttribute("rows", report.Rows)
		span.SetAttribute("skipped", report.Skipped)
		span.Finish(err)
		metrics.RowsLoaded.WithLabelValues("loaded").Add(float64(report.Rows))
		metrics.RowsLoaded.WithLabelValues("skipped").Add(float64(report.Skipped))
	}()
	log := t.logger.With(logger.Fields(ctx)...)

	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaultMaxErrors
	}

	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return report, errors.New(errors.ErrorTypeData, "csv input has no header row")
	}
	if err != nil {
		return report, errors.Wrap(err, errors.ErrorTypeData, "cannot read csv header")
	}
	positions, err := t.headerPositions(header)
	if err != nil {
		return report, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cells := make([]string, len(t.columns))
	for line := 2; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, errors.Wrap(err, errors.ErrorTypeData, "malformed csv").
				WithDetail(errors.DetailRow, line)
		}
		for i, pos := range positions {
			if pos < len(record) {
				cells[i] = record[pos]
			} else {
				cells[i] = ""
			}
		}

		err = t.appendTextRow(cells)
		switch {
		case err == nil:
			report.Rows++
		case errors.IsUserData(err) && opts.SkipInvalid:
			report.Skipped++
			if len(report.Errors) < opts.MaxErrors {
				report.Errors = append(report.Errors, describeCellError(err, line))
			}
		default:
			log.Warn("csv load stopped", zap.Int("line", line), zap.Error(err))
			return report, err
		}
	}

	log.Info("csv loaded",
		zap.Int("rows", report.Rows),
		zap.Int("skipped", report.Skipped),
		zap.Int("total_rows", t.rowCount),
		zap.Duration("duration", time.Since(start)))
	return report, nil
}

// headerPositions maps each schema column to its index in header.
func (t *Table) headerPositions(header []string) ([]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[h] = i
	}
	positions := make([]int, len(t.schema.Fields))
	for i, f := range t.schema.Fields {
		pos, ok := byName[f.Name]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "csv header lacks column %q", f.Name).
				WithDetail(errors.DetailColumn, f.Name)
		}
		positions[i] = pos
	}
	if extra := len(header) - len(positions); extra > 0 {
		t.logger.Debug("ignoring csv columns outside the schema", zap.Int("count", extra))
	}
	return positions, nil
}

func describeCellError(err error, line int) CellError {
	ce := CellError{Row: line, Message: err.Error()}
	var e *errors.Error
	if stderrors.As(err, &e) {
		ce.Message = e.Message
		if col, ok := e.Detail(errors.DetailColumn); ok {
			ce.Column, _ = col.(string)
		}
		if snippet, ok := e.Detail(errors.DetailSnippet); ok {
			ce.Snippet, _ = snippet.(string)
		}
	}
	return ce
}

// WriteCSV writes a header row and then every row. Text cells are written
// raw; every other cell is written as its literal.
func (t *Table) WriteCSV(ctx context.Context, w io.Writer) (err error) {
	_, span := observability.StartSpan(ctx, "write_csv")
	span.SetAttribute("table", t.name)
	defer func() { span.Finish(err) }()

	t.mu.RLock()
	defer t.mu.RUnlock()

	writer := csv.NewWriter(w)
	if err := writer.Write(t.ColumnNames()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "cannot write csv header")
	}
	cells := make([]string, len(t.columns))
	for row := 0; row < t.rowCount; row++ {
		for i, col := range t.columns {
			cell, err := cellText(col, row)
			if err != nil {
				return err
			}
			cells[i] = cell
		}
		if err := writer.Write(cells); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "cannot write csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "cannot flush csv")
	}
	span.SetAttribute("rows", t.rowCount)
	return nil
}

// cellText renders a cell the way AppendText reads it back.
func cellText(col Column, row int) (string, error) {
	v, err := col.Get(row)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok && datatype.Kind(col.Type()) == "text" {
		return s, nil
	}
	return codec.Print(v, col.Type())
}

// Iterator provides sequential access to rows
type Iterator struct {
	table  *Table
	index  int
	buffer map[string]any
	err    error
}

// NewIterator creates a new iterator over the table
func (t *Table) NewIterator() *Iterator {
	return &Iterator{
		table:  t,
		index:  -1,
		buffer: make(map[string]any, len(t.columns)),
	}
}

// Next advances to the next row
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.index++
	return it.index < it.table.RowCount()
}

// Row returns the current row. The map is reused by the next call.
func (it *Iterator) Row() map[string]any {
	clear(it.buffer)

	it.table.mu.RLock()
	defer it.table.mu.RUnlock()
	if _, err := it.table.row(it.index, it.buffer); err != nil {
		it.err = err
		return nil
	}
	return it.buffer
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}
