package arrowipc

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/tablecore/pkg/codec"
	"github.com/ajitpratap0/tablecore/pkg/columnar"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/metrics"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

// Encoder turns the rows of a table into Arrow record batches. Other
// columnar formats built on Arrow share it with Write.
type Encoder struct {
	table  *columnar.Table
	cols   []exportColumn
	schema *arrow.Schema
}

// NewEncoder plans the Arrow encoding of every column of table.
func NewEncoder(table *columnar.Table) (*Encoder, error) {
	cols, err := planColumns(table)
	if err != nil {
		return nil, err
	}
	sc, err := arrowSchema(table.Name(), cols)
	if err != nil {
		return nil, err
	}
	return &Encoder{table: table, cols: cols, schema: sc}, nil
}

// Schema returns the Arrow schema of the encoded batches.
func (e *Encoder) Schema() *arrow.Schema {
	return e.schema
}

// Encode builds batches of up to batchSize rows and hands each to emit. The
// record is released after emit returns; emit must retain it to keep it.
// Empty batches are never emitted.
func (e *Encoder) Encode(ctx context.Context, mem memory.Allocator, batchSize int, emit func(arrow.Record) error) (Stats, error) {
	var stats Stats
	if batchSize <= 0 {
		batchSize = DefaultWriterConfig().BatchSize
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	rb := array.NewRecordBuilder(mem, e.schema)
	defer rb.Release()

	flush := func() error {
		rec := rb.NewRecord()
		defer rec.Release()
		if rec.NumRows() == 0 {
			return nil
		}
		if err := emit(rec); err != nil {
			return err
		}
		stats.Batches++
		metrics.ExportBatches.Inc()
		return nil
	}

	rows := e.table.RowCount()
	for row := 0; row < rows; row++ {
		for i, c := range e.cols {
			if err := appendCell(rb.Field(i), c, row); err != nil {
				return stats, errors.Wrap(err, errors.ErrorTypeInternal, "cannot export cell").
					WithDetail(errors.DetailRow, row).
					WithDetail(errors.DetailColumn, c.name)
			}
		}
		stats.Rows++
		if stats.Rows%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	return stats, flush()
}

func appendCell(b array.Builder, c exportColumn, row int) error {
	v, err := c.col.Get(row)
	if err != nil {
		return err
	}
	switch c.encoding {
	case encodeInt64:
		n, _ := v.(value.Number).Int64()
		b.(*array.Int64Builder).Append(n)
	case encodeBool:
		b.(*array.BooleanBuilder).Append(v.(bool))
	case encodeDate32:
		b.(*array.Date32Builder).Append(arrow.Date32FromTime(v.(time.Time)))
	case encodeTimestamp:
		b.(*array.TimestampBuilder).Append(arrow.Timestamp(v.(time.Time).UnixNano()))
	case encodeRawText:
		b.(*array.StringBuilder).Append(v.(string))
	default:
		text, err := codec.Print(v, c.col.Type())
		if err != nil {
			return err
		}
		b.(*array.StringBuilder).Append(text)
	}
	return nil
}

// Decoder rebuilds a table from Arrow record batches whose schema carries
// tablecore type metadata.
type Decoder struct {
	table *columnar.Table
	row   map[string]any
}

// NewDecoder creates the table described by sc. The table is named after
// the schema metadata, or name when the schema has none.
func NewDecoder(sc *arrow.Schema, name string, opts ...columnar.Option) (*Decoder, error) {
	if n, ok := sc.Metadata().GetValue(MetadataTable); ok && n != "" {
		name = n
	}
	tableSchema, err := schemaFromArrow(sc)
	if err != nil {
		return nil, err
	}
	table, err := columnar.NewTable(name, tableSchema, opts...)
	if err != nil {
		return nil, err
	}
	return &Decoder{table: table, row: make(map[string]any, len(tableSchema.Fields))}, nil
}

// Table returns the table being filled.
func (d *Decoder) Table() *columnar.Table {
	return d.table
}

// Append appends every row of rec. Columns are matched by position.
func (d *Decoder) Append(rec arrow.Record) error {
	fields := d.table.Schema().Fields
	if int(rec.NumCols()) != len(fields) {
		return errors.Newf(errors.ErrorTypeData, "record batch has %d columns, table %s has %d",
			rec.NumCols(), d.table.Name(), len(fields))
	}
	for i := 0; i < int(rec.NumRows()); i++ {
		for c, f := range fields {
			v, err := readCell(rec.Column(c), i, f.Type)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "invalid arrow cell").
					WithDetail(errors.DetailRow, d.table.RowCount()).
					WithDetail(errors.DetailColumn, f.Name)
			}
			d.row[f.Name] = v
		}
		if err := d.table.AppendRow(d.row); err != nil {
			return err
		}
	}
	return nil
}
