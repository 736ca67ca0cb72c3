// Package avro exports tables to Avro object container files and reads them
// back.
//
// Columns map to Avro types as follows:
//
//	number    long when every value of a column is a plain integer that fits, else string literals
//	text      string
//	boolean   boolean
//	temporal  string literals
//	tagged    union of records, one per tag, with a "value" field when the tag carries one
//	record    record
//	array     array
//
// Avro names are restricted to [A-Za-z_][A-Za-z0-9_]*, so column and field
// names are rewritten where needed. The table spec, with the original names
// and column types, is stored as YAML in the file metadata under
// MetadataSchema, and ReadTable rebuilds the table from it.
package avro

import (
	"context"
	"io"
	"slices"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tablecore/pkg/codec"
	"github.com/ajitpratap0/tablecore/pkg/columnar"
	"github.com/ajitpratap0/tablecore/pkg/compression"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/logger"
	"github.com/ajitpratap0/tablecore/pkg/metrics"
	"github.com/ajitpratap0/tablecore/pkg/observability"
	"github.com/ajitpratap0/tablecore/pkg/schema"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

// MetadataSchema is the file metadata key holding the table spec.
const MetadataSchema = "tablecore.schema"

// WriterConfig configures Write.
type WriterConfig struct {
	// BatchSize is the number of rows per container block
	BatchSize int
	// Compression is the block codec: none, snappy, or gzip, which selects
	// Avro's deflate codec
	Compression compression.Algorithm
}

// DefaultWriterConfig returns the default writer configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:   10000,
		Compression: compression.Snappy,
	}
}

// Stats describes a finished export.
type Stats struct {
	Rows   int `json:"rows"`
	Blocks int `json:"blocks"`
}

func codecName(alg compression.Algorithm) (string, error) {
	switch alg {
	case compression.None, "":
		return goavro.CompressionNullLabel, nil
	case compression.Snappy:
		return goavro.CompressionSnappyLabel, nil
	case compression.Gzip:
		return goavro.CompressionDeflateLabel, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "avro files cannot use %s compression", alg)
	}
}

type exportColumn struct {
	name  string
	col   columnar.Column
	shape *shape
}

// rowShape plans the Avro record holding one row of a table with the given
// schema. Calling it twice on equal schemas gives identical names.
func rowShape(tableName string, sc columnar.Schema) (*shape, error) {
	names := make([]string, len(sc.Fields))
	for i, f := range sc.Fields {
		names[i] = f.Name
	}
	s := &shaper{}
	row := &shape{names: uniqueNames(names), children: make([]*shape, len(sc.Fields))}
	fields := make([]any, len(sc.Fields))
	for i, f := range sc.Fields {
		child, err := s.build(f.Type)
		if err != nil {
			return nil, err
		}
		row.children[i] = child
		fields[i] = map[string]any{"name": row.names[i], "type": child.schema}
	}
	if tableName == "" {
		tableName = "row"
	}
	row.schema = map[string]any{"type": "record", "name": sanitize(tableName), "fields": fields}
	return row, nil
}

func planColumns(table *columnar.Table) ([]exportColumn, *shape, error) {
	row, err := rowShape(table.Name(), table.Schema())
	if err != nil {
		return nil, nil, err
	}
	fields := table.Schema().Fields
	cols := make([]exportColumn, len(fields))
	for i, f := range fields {
		col, ok := table.Column(f.Name)
		if !ok {
			return nil, nil, errors.Newf(errors.ErrorTypeInternal, "table %s lost column %q", table.Name(), f.Name)
		}
		if _, isNumber := f.Type.(datatype.Number); isNumber {
			fits, err := allLong(col)
			if err != nil {
				return nil, nil, err
			}
			if fits {
				row.children[i] = &shape{t: f.Type, long: true, schema: "long"}
				row.schema.(map[string]any)["fields"].([]any)[i] = map[string]any{"name": row.names[i], "type": "long"}
			}
		}
		cols[i] = exportColumn{name: row.names[i], col: col, shape: row.children[i]}
	}
	return cols, row, nil
}

func allLong(col columnar.Column) (bool, error) {
	for i := 0; i < col.Len(); i++ {
		v, err := col.Get(i)
		if err != nil {
			return false, err
		}
		n, ok := v.(value.Number)
		if !ok || n.IsDecimal() {
			return false, nil
		}
		if _, fits := n.Int64(); !fits {
			return false, nil
		}
	}
	return true, nil
}

// Write writes every row of table to w as an Avro object container file.
func Write(ctx context.Context, w io.Writer, table *columnar.Table, cfg WriterConfig) (stats Stats, err error) {
	ctx, span := observability.StartSpan(ctx, "export_avro")
	span.SetAttribute("table", table.Name())
	defer func() {
		span.SetAttribute("rows", stats.Rows)
		span.SetAttribute("blocks", stats.Blocks)
		span.Finish(err)
	}()

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	compressionName, err := codecName(cfg.Compression)
	if err != nil {
		return stats, err
	}
	span.SetAttribute("compression", compressionName)

	cols, row, err := planColumns(table)
	if err != nil {
		return stats, err
	}
	schemaJSON, err := json.Marshal(row.schema)
	if err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeInternal, "cannot encode avro schema")
	}
	avroCodec, err := goavro.NewCodec(string(schemaJSON))
	if err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeInternal, "cannot build avro codec")
	}
	spec, err := schema.SpecOfSchema(table.Name(), table.Schema())
	if err != nil {
		return stats, err
	}
	specYAML, err := spec.Marshal()
	if err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeInternal, "cannot encode table spec")
	}

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           avroCodec,
		CompressionName: compressionName,
		MetaData:        map[string][]byte{MetadataSchema: specYAML},
	})
	if err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeFile, "failed to create avro writer")
	}

	batch := make([]any, 0, cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ocf.Append(batch); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write avro block")
		}
		stats.Blocks++
		metrics.ExportBatches.Inc()
		batch = batch[:0]
		return nil
	}

	rows := table.RowCount()
	for r := 0; r < rows; r++ {
		datum := make(map[string]any, len(cols))
		for _, c := range cols {
			v, err := c.col.Get(r)
			if err == nil {
				datum[c.name], err = c.shape.native(v)
			}
			if err != nil {
				return stats, errors.Wrap(err, errors.ErrorTypeInternal, "cannot export cell").
					WithDetail(errors.DetailRow, r).
					WithDetail(errors.DetailColumn, c.name)
			}
		}
		batch = append(batch, datum)
		stats.Rows++
		if len(batch) == cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	logger.Get().Debug("avro export finished",
		zap.String("table", table.Name()),
		zap.Int("rows", stats.Rows),
		zap.Int("blocks", stats.Blocks))
	return stats, nil
}

// ReadTable reads an Avro file written by Write into a new table. The table
// name is taken from the stored spec unless it has none, in which case name
// is used.
func ReadTable(ctx context.Context, r io.Reader, name string, opts ...columnar.Option) (table *columnar.Table, err error) {
	ctx, span := observability.StartSpan(ctx, "import_avro")
	defer func() { span.Finish(err) }()

	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open avro file")
	}
	raw, ok := ocf.MetaData()[MetadataSchema]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "avro file has no %s metadata", MetadataSchema)
	}
	spec, err := schema.ParseTableSpec(raw)
	if err != nil {
		return nil, err
	}
	if spec.Name != "" {
		name = spec.Name
	}
	sc, err := spec.Schema(nil)
	if err != nil {
		return nil, err
	}
	row, err := rowShape(name, sc)
	if err != nil {
		return nil, err
	}
	table, err = columnar.NewTable(name, sc, opts...)
	if err != nil {
		return nil, err
	}
	span.SetAttribute("table", name)

	cells := make(map[string]any, len(sc.Fields))
	for ocf.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		datum, err := ocf.Read()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read avro row").
				WithDetail(errors.DetailRow, table.RowCount())
		}
		rec, ok := datum.(map[string]any)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "avro row is %T, not a record", datum)
		}
		for i, f := range sc.Fields {
			v, err := row.children[i].value(rec[row.names[i]])
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid avro cell").
					WithDetail(errors.DetailRow, table.RowCount()).
					WithDetail(errors.DetailColumn, f.Name)
			}
			cells[f.Name] = v
		}
		if err := table.AppendRow(cells); err != nil {
			return nil, err
		}
	}
	if err := ocf.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read avro file")
	}
	span.SetAttribute("rows", table.RowCount())
	return table, nil
}

// shape is the Avro form of a column type together with the names needed
// to move values between it and goavro's native representation.
type shape struct {
	t datatype.Type
	// literal numbers and temporals travel as their text literal
	literal bool
	long    bool
	// names are record field names, or union branch names of a tagged type
	names []string
	// children are field shapes, tag value shapes (nil for tags without a
	// value), or the single element shape of an array
	children []*shape
	schema   any
}

// shaper builds shapes, numbering named types so they are unique in one
// schema.
type shaper struct {
	n int
}

func (s *shaper) build(t datatype.Type) (*shape, error) {
	return datatype.Apply[*shape](t, s)
}

func (s *shaper) name(base string) string {
	s.n++
	return sanitize(base) + "_" + strconv.Itoa(s.n)
}

func (s *shaper) Number(t datatype.Number) (*shape, error) {
	return &shape{t: t, literal: true, schema: "string"}, nil
}

func (s *shaper) Text(t datatype.Text) (*shape, error) {
	return &shape{t: t, schema: "string"}, nil
}

func (s *shaper) Boolean(t datatype.Boolean) (*shape, error) {
	return &shape{t: t, schema: "boolean"}, nil
}

func (s *shaper) Temporal(t datatype.Temporal) (*shape, error) {
	return &shape{t: t, literal: true, schema: "string"}, nil
}

func (s *shaper) Tagged(t datatype.Tagged) (*shape, error) {
	sh := &shape{t: t, names: make([]string, len(t.Tags)), children: make([]*shape, len(t.Tags))}
	branches := make([]any, len(t.Tags))
	for i, tag := range t.Tags {
		fields := []any{}
		if tag.Inner != nil {
			inner, err := s.build(tag.Inner)
			if err != nil {
				return nil, err
			}
			sh.children[i] = inner
			fields = append(fields, map[string]any{"name": "value", "type": inner.schema})
		}
		sh.names[i] = s.name(t.Name + "_" + tag.Name)
		branches[i] = map[string]any{"type": "record", "name": sh.names[i], "fields": fields}
	}
	sh.schema = branches
	return sh, nil
}

func (s *shaper) Record(t datatype.Record) (*shape, error) {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	sh := &shape{t: t, names: uniqueNames(names), children: make([]*shape, len(t.Fields))}
	fields := make([]any, len(t.Fields))
	for i, f := range t.Fields {
		child, err := s.build(f.Type)
		if err != nil {
			return nil, err
		}
		sh.children[i] = child
		fields[i] = map[string]any{"name": sh.names[i], "type": child.schema}
	}
	sh.schema = map[string]any{"type": "record", "name": s.name("record"), "fields": fields}
	return sh, nil
}

func (s *shaper) Array(t datatype.Array) (*shape, error) {
	if t.Elem == nil {
		// Only the empty array has an unknown element type.
		return &shape{t: t, children: []*shape{nil}, schema: map[string]any{"type": "array", "items": "null"}}, nil
	}
	elem, err := s.build(t.Elem)
	if err != nil {
		return nil, err
	}
	return &shape{t: t, children: []*shape{elem}, schema: map[string]any{"type": "array", "items": elem.schema}}, nil
}

// native converts v to the value goavro encodes for sh. A Go value that
// does not match the type is an internal error.
func (sh *shape) native(v any) (any, error) {
	mismatch := func() error { return errors.Internal("avro: cannot export %T as %s", v, sh.t) }
	if sh.long {
		n, ok := v.(value.Number)
		if !ok {
			return nil, mismatch()
		}
		i, fits := n.Int64()
		if !fits {
			return nil, errors.Internal("avro: %s does not fit a long", n)
		}
		return i, nil
	}
	if sh.literal {
		return codec.Print(v, sh.t)
	}

	switch t := sh.t.(type) {
	case datatype.Text:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch()
		}
		return s, nil
	case datatype.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch()
		}
		return b, nil
	case datatype.Tagged:
		tv, ok := v.(value.Tagged)
		if !ok {
			return nil, mismatch()
		}
		if tv.Index < 0 || tv.Index >= len(t.Tags) {
			return nil, errors.Internal("avro: tag index %d out of range for %s", tv.Index, t)
		}
		rec := map[string]any{}
		child := sh.children[tv.Index]
		switch {
		case child == nil && tv.Inner != nil:
			return nil, errors.Internal("avro: tag %s of %s carries no value, got %T", t.Tags[tv.Index].Name, t, tv.Inner)
		case child != nil:
			inner, err := child.native(tv.Inner)
			if err != nil {
				return nil, err
			}
			rec["value"] = inner
		}
		return goavro.Union(sh.names[tv.Index], rec), nil
	case datatype.Record:
		rv, ok := v.(value.Record)
		if !ok {
			return nil, mismatch()
		}
		if len(rv) != len(t.Fields) {
			return nil, errors.Internal("avro: record with %d fields for %s", len(rv), t)
		}
		out := make(map[string]any, len(t.Fields))
		for i, f := range t.Fields {
			x, found := rv[f.Name]
			if !found {
				return nil, errors.Internal("avro: record is missing field %q of %s", f.Name, t)
			}
			n, err := sh.children[i].native(x)
			if err != nil {
				return nil, err
			}
			out[sh.names[i]] = n
		}
		return out, nil
	case datatype.Array:
		l, ok := v.(value.List)
		if !ok {
			return nil, mismatch()
		}
		out := make([]any, l.Len())
		if len(out) > 0 && sh.children[0] == nil {
			return nil, errors.Internal("avro: elements in an array of unknown element type")
		}
		for i := range out {
			x, err := l.Get(i)
			if err != nil {
				return nil, err
			}
			if out[i], err = sh.children[0].native(x); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return nil, mismatch()
}

// value converts a goavro native value back to a value of sh's type.
// Anything the schema could not have produced is a data error.
func (sh *shape) value(n any) (any, error) {
	unexpected := func() error {
		return errors.Newf(errors.ErrorTypeData, "unexpected avro value %T for %s", n, sh.t)
	}
	if sh.literal || sh.long {
		switch x := n.(type) {
		case int64:
			if _, isNumber := sh.t.(datatype.Number); isNumber {
				return value.Int(x), nil
			}
		case string:
			return codec.Parse(x, sh.t)
		}
		return nil, unexpected()
	}

	switch t := sh.t.(type) {
	case datatype.Text:
		if s, ok := n.(string); ok {
			return s, nil
		}
	case datatype.Boolean:
		if b, ok := n.(bool); ok {
			return b, nil
		}
	case datatype.Tagged:
		m, ok := n.(map[string]any)
		if !ok || len(m) != 1 {
			return nil, unexpected()
		}
		for branch, datum := range m {
			idx := slices.Index(sh.names, branch)
			if idx < 0 {
				return nil, errors.Newf(errors.ErrorTypeData, "unknown avro union branch %q for %s", branch, t)
			}
			tv := value.Tagged{Index: idx}
			if child := sh.children[idx]; child != nil {
				rec, ok := datum.(map[string]any)
				if !ok {
					return nil, unexpected()
				}
				inner, err := child.value(rec["value"])
				if err != nil {
					return nil, err
				}
				tv.Inner = inner
			}
			return tv, nil
		}
	case datatype.Record:
		m, ok := n.(map[string]any)
		if !ok {
			return nil, unexpected()
		}
		rec := make(value.Record, len(t.Fields))
		for i, f := range t.Fields {
			v, err := sh.children[i].value(m[sh.names[i]])
			if err != nil {
				return nil, err
			}
			rec[f.Name] = v
		}
		return rec, nil
	case datatype.Array:
		items, ok := n.([]any)
		if !ok {
			return nil, unexpected()
		}
		if len(items) > 0 && sh.children[0] == nil {
			return nil, unexpected()
		}
		out := make(value.Slice, len(items))
		for i, x := range items {
			v, err := sh.children[0].value(x)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, unexpected()
}

// sanitize rewrites s into a valid Avro name.
func sanitize(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			b[i] = '_'
		}
	}
	if len(b) == 0 || (b[0] >= '0' && b[0] <= '9') {
		b = append([]byte{'_'}, b...)
	}
	return string(b)
}

// uniqueNames sanitizes names, suffixing any that would repeat an earlier one.
func uniqueNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]struct{}, len(names))
	for i, n := range names {
		name := sanitize(n)
		for {
			if _, taken := used[name]; !taken {
				break
			}
			name += "_" + strconv.Itoa(i)
		}
		used[name] = struct{}{}
		out[i] = name
	}
	return out
}
