// Package arrowipc exports tables to the Arrow IPC file format and reads
// them back.
//
// Columns map to Arrow types as follows:
//
//	number             int64 when every value is a plain integer that fits, else utf8 literals
//	text               utf8
//	boolean            bool
//	temporal Date      date32
//	temporal DateTime  timestamp[ns] when every value fits, else utf8 literals
//	anything else      utf8 literals
//
// Every field carries its column type as JSON under the MetadataType key, so
// ReadTable can rebuild the original schema.
package arrowipc

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tablecore/pkg/codec"
	"github.com/ajitpratap0/tablecore/pkg/columnar"
	"github.com/ajitpratap0/tablecore/pkg/compression"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/logger"
	"github.com/ajitpratap0/tablecore/pkg/observability"
	"github.com/ajitpratap0/tablecore/pkg/schema"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

const (
	// MetadataType is the field metadata key holding the column type spec.
	MetadataType = "tablecore.type"
	// MetadataTable is the schema metadata key holding the table name.
	MetadataTable = "tablecore.table"
	// MetadataColumns is the schema metadata key holding every column type
	// spec as a JSON list, for formats that drop field metadata.
	MetadataColumns = "tablecore.columns"
)

// WriterConfig configures Write.
type WriterConfig struct {
	// BatchSize is the number of rows per record batch
	BatchSize int
	Allocator memory.Allocator
	// Compression compresses record batch bodies. Arrow supports only
	// compression.LZ4 and compression.Zstd.
	Compression compression.Algorithm
}

// DefaultWriterConfig returns the default writer configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:   10000,
		Allocator:   memory.NewGoAllocator(),
		Compression: compression.None,
	}
}

// Stats describes a finished export.
type Stats struct {
	Rows    int `json:"rows"`
	Batches int `json:"batches"`
}

// Nanosecond timestamps cover roughly 1677-09-21 to 2262-04-11; date32 days
// cover about 5.8 million years either side of 1970.
var (
	minTimestamp = time.Unix(0, -1<<63).UTC()
	maxTimestamp = time.Unix(0, 1<<63-1).UTC()
	minDate32    = time.Unix(-1<<31*86400, 0).UTC()
	maxDate32    = time.Unix((1<<31-1)*86400, 0).UTC()
)

type encoding int

const (
	encodeLiteral encoding = iota
	encodeRawText
	encodeInt64
	encodeBool
	encodeDate32
	encodeTimestamp
)

type exportColumn struct {
	name     string
	col      columnar.Column
	encoding encoding
}

// ArrowSchema returns the Arrow schema Write would produce for table.
func ArrowSchema(table *columnar.Table) (*arrow.Schema, error) {
	enc, err := NewEncoder(table)
	if err != nil {
		return nil, err
	}
	return enc.Schema(), nil
}

func planColumns(table *columnar.Table) ([]exportColumn, error) {
	fields := table.Schema().Fields
	cols := make([]exportColumn, len(fields))
	for i, f := range fields {
		col, ok := table.Column(f.Name)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeInternal, "table %s lost column %q", table.Name(), f.Name)
		}
		enc, err := chooseEncoding(col)
		if err != nil {
			return nil, err
		}
		cols[i] = exportColumn{name: f.Name, col: col, encoding: enc}
	}
	return cols, nil
}

func chooseEncoding(col columnar.Column) (encoding, error) {
	return datatype.Apply[encoding](col.Type(), encodingChooser{col})
}

// encodingChooser picks the Arrow encoding of a column, scanning its values
// where the native Arrow type cannot hold every value.
type encodingChooser struct {
	col columnar.Column
}

func (c encodingChooser) Number(datatype.Number) (encoding, error) {
	for i := 0; i < c.col.Len(); i++ {
		v, err := c.col.Get(i)
		if err != nil {
			return 0, err
		}
		n, ok := v.(value.Number)
		if !ok || n.IsDecimal() {
			return encodeLiteral, nil
		}
		if _, fits := n.Int64(); !fits {
			return encodeLiteral, nil
		}
	}
	return encodeInt64, nil
}

func (encodingChooser) Text(datatype.Text) (encoding, error)       { return encodeRawText, nil }
func (encodingChooser) Boolean(datatype.Boolean) (encoding, error) { return encodeBool, nil }

func (c encodingChooser) Temporal(t datatype.Temporal) (encoding, error) {
	switch t.Granularity {
	case datatype.Date:
		return c.within(minDate32, maxDate32, encodeDate32)
	case datatype.DateTime:
		return c.within(minTimestamp, maxTimestamp, encodeTimestamp)
	}
	return encodeLiteral, nil
}

// within returns native when every stored time lies in [lo, hi], and the
// literal encoding otherwise.
func (c encodingChooser) within(lo, hi time.Time, native encoding) (encoding, error) {
	for i := 0; i < c.col.Len(); i++ {
		v, err := c.col.Get(i)
		if err != nil {
			return 0, err
		}
		ts, ok := v.(time.Time)
		if !ok || ts.Before(lo) || ts.After(hi) {
			return encodeLiteral, nil
		}
	}
	return native, nil
}

func (encodingChooser) Tagged(datatype.Tagged) (encoding, error) { return encodeLiteral, nil }
func (encodingChooser) Record(datatype.Record) (encoding, error) { return encodeLiteral, nil }
func (encodingChooser) Array(datatype.Array) (encoding, error)   { return encodeLiteral, nil }

func arrowSchema(name string, cols []exportColumn) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(cols))
	specs := make([]schema.TypeSpec, len(cols))
	for i, c := range cols {
		spec, err := schema.SpecOf(c.col.Type())
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(spec)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot encode column type")
		}
		specs[i] = spec
		md := arrow.NewMetadata([]string{MetadataType}, []string{string(data)})
		fields[i] = arrow.Field{Name: c.name, Type: arrowType(c.encoding), Metadata: md}
	}
	all, err := json.Marshal(specs)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot encode column types")
	}
	md := arrow.NewMetadata([]string{MetadataTable, MetadataColumns}, []string{name, string(all)})
	return arrow.NewSchema(fields, &md), nil
}

func arrowType(enc encoding) arrow.DataType {
	switch enc {
	case encodeInt64:
		return arrow.PrimitiveTypes.Int64
	case encodeBool:
		return arrow.FixedWidthTypes.Boolean
	case encodeDate32:
		return arrow.FixedWidthTypes.Date32
	case encodeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Nanosecond}
	default:
		return arrow.BinaryTypes.String
	}
}

// Write writes every row of table to w as an Arrow IPC file.
func Write(ctx context.Context, w io.Writer, table *columnar.Table, cfg WriterConfig) (stats Stats, err error) {
	ctx, span := observability.StartSpan(ctx, "export_arrow")
	span.SetAttribute("table", table.Name())
	defer func() {
		span.SetAttribute("rows", stats.Rows)
		span.SetAttribute("batches", stats.Batches)
		span.Finish(err)
	}()

	if cfg.Allocator == nil {
		cfg.Allocator = memory.NewGoAllocator()
	}
	enc, err := NewEncoder(table)
	if err != nil {
		return stats, err
	}

	opts := []ipc.Option{ipc.WithSchema(enc.Schema()), ipc.WithAllocator(cfg.Allocator)}
	switch cfg.Compression {
	case compression.None, "":
	case compression.LZ4:
		opts = append(opts, ipc.WithLZ4())
	case compression.Zstd:
		opts = append(opts, ipc.WithZstd())
	default:
		return stats, errors.Newf(errors.ErrorTypeConfig, "arrow files cannot use %s compression", cfg.Compression)
	}
	span.SetAttribute("compression", string(cfg.Compression))

	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow writer")
	}

	stats, err = enc.Encode(ctx, cfg.Allocator, cfg.BatchSize, func(rec arrow.Record) error {
		if err := fw.Write(rec); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	if err := fw.Close(); err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeFile, "failed to close arrow writer")
	}

	logger.Get().Debug("arrow export finished",
		zap.String("table", table.Name()),
		zap.Int("rows", stats.Rows),
		zap.Int("batches", stats.Batches))
	return stats, nil
}

// ReadTable reads an Arrow IPC file written by Write into a new table. The
// table name is taken from the file unless the file has none, in which case
// name is used.
func ReadTable(ctx context.Context, r io.Reader, name string, opts ...columnar.Option) (table *columnar.Table, err error) {
	ctx, span := observability.StartSpan(ctx, "import_arrow")
	defer func() { span.Finish(err) }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read arrow data")
	}
	fr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open arrow file")
	}
	defer fr.Close()

	dec, err := NewDecoder(fr.Schema(), name, opts...)
	if err != nil {
		return nil, err
	}
	span.SetAttribute("table", dec.Table().Name())

	for b := 0; b < fr.NumRecords(); b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := fr.Record(b)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read record batch")
		}
		if err := dec.Append(rec); err != nil {
			return nil, err
		}
	}
	span.SetAttribute("rows", dec.Table().RowCount())
	return dec.Table(), nil
}

func schemaFromArrow(sc *arrow.Schema) (columnar.Schema, error) {
	var listed []schema.TypeSpec
	if raw, ok := sc.Metadata().GetValue(MetadataColumns); ok {
		if err := json.Unmarshal([]byte(raw), &listed); err != nil {
			return columnar.Schema{}, errors.Wrap(err, errors.ErrorTypeData, "invalid column types metadata")
		}
	}

	fields := make([]columnar.FieldSchema, sc.NumFields())
	for i, f := range sc.Fields() {
		var spec schema.TypeSpec
		if raw, ok := f.Metadata.GetValue(MetadataType); ok {
			if err := json.Unmarshal([]byte(raw), &spec); err != nil {
				return columnar.Schema{}, errors.Wrap(err, errors.ErrorTypeData, "invalid column type metadata").
					WithDetail(errors.DetailColumn, f.Name)
			}
		} else if i < len(listed) {
			spec = listed[i]
		} else {
			return columnar.Schema{}, errors.Newf(errors.ErrorTypeData, "arrow field %q has no %s metadata", f.Name, MetadataType)
		}
		t, err := spec.Build(nil)
		if err != nil {
			return columnar.Schema{}, err
		}
		fields[i] = columnar.FieldSchema{Name: f.Name, Type: t}
	}
	return columnar.Schema{Fields: fields}, nil
}

func readCell(arr arrow.Array, i int, t datatype.Type) (any, error) {
	if arr.IsNull(i) {
		return nil, errors.New(errors.ErrorTypeData, "null cell")
	}
	switch a := arr.(type) {
	case *array.Int64:
		return value.Int(a.Value(i)), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Date32:
		return a.Value(i).ToTime(), nil
	case *array.Timestamp:
		return a.Value(i).ToTime(arrow.Nanosecond), nil
	case *array.String:
		if datatype.Kind(t) == "text" {
			return a.Value(i), nil
		}
		return codec.Parse(a.Value(i), t)
	default:
		return nil, errors.Newf(errors.ErrorTypeData, "unsupported arrow type %s", arr.DataType())
	}
}
