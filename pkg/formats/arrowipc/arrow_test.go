package arrowipc

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tablecore/pkg/columnar"
	"github.com/ajitpratap0/tablecore/pkg/compression"
	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/testutil"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

func shipmentTable(t *testing.T) *columnar.Table {
	t.Helper()
	shape, err := datatype.NewTagged("Shape", nil,
		datatype.Tag{Name: "Point"},
		datatype.Tag{Name: "Circle", Inner: datatype.Number{}})
	require.NoError(t, err)

	sc := columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "name", Type: datatype.Text{}},
		{Name: "qty", Type: datatype.Number{}},
		{Name: "day", Type: datatype.Temporal{Granularity: datatype.Date}},
		{Name: "at", Type: datatype.Temporal{Granularity: datatype.DateTime}},
		{Name: "zoned", Type: datatype.Temporal{Granularity: datatype.DateTimeZoned}},
		{Name: "shape", Type: shape},
		{Name: "sizes", Type: datatype.NewArray(datatype.Number{})},
		{Name: "ok", Type: datatype.Boolean{}},
	}}
	table, err := columnar.NewTable("shipments", sc, columnar.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)

	rows := [][]string{
		{"apple", "3", "2024-01-02", "2024-01-02 10:00:00", "2024-01-02 10:00:00 +01:00", "Circle(2)", "[1, 2]", "true"},
		{"pear, ripe", "12", "2023-12-31", "1999-12-31 23:59:59", "2001-02-03 04:05:06 Z", "Point", "[]", "false"},
		{`"quoted"`, "-7", "1970-01-01", "1970-01-01 00:00:00", "2020-06-30 12:00:00 -05:00", "Circle(0.5)", "[100000000000000000000]", "true"},
	}
	for _, r := range rows {
		require.NoError(t, table.AppendTextRow(r))
	}
	return table
}

func assertSameRows(t *testing.T, want, got *columnar.Table) {
	t.Helper()
	require.Equal(t, want.RowCount(), got.RowCount())
	for i := 0; i < want.RowCount(); i++ {
		w, err := want.Row(i)
		require.NoError(t, err)
		g, err := got.Row(i)
		require.NoError(t, err)
		for name, v := range w {
			assert.True(t, value.Equal(v, g[name]), "row %d column %s: %v != %v", i, name, v, g[name])
		}
	}
}

func TestArrowSchemaTypes(t *testing.T) {
	sc, err := ArrowSchema(shipmentTable(t))
	require.NoError(t, err)

	want := map[string]arrow.Type{
		"name":  arrow.STRING,
		"qty":   arrow.INT64,
		"day":   arrow.DATE32,
		"at":    arrow.TIMESTAMP,
		"zoned": arrow.STRING,
		"shape": arrow.STRING,
		"sizes": arrow.STRING,
		"ok":    arrow.BOOL,
	}
	require.Equal(t, len(want), sc.NumFields())
	for _, f := range sc.Fields() {
		assert.Equal(t, want[f.Name], f.Type.ID(), f.Name)
		_, ok := f.Metadata.GetValue(MetadataType)
		assert.True(t, ok, f.Name)
	}
	name, ok := sc.Metadata().GetValue(MetadataTable)
	require.True(t, ok)
	assert.Equal(t, "shipments", name)
}

func TestWriteReadRoundTrip(t *testing.T) {
	src := shipmentTable(t)
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())

	var buf bytes.Buffer
	stats, err := Write(context.Background(), &buf, src, WriterConfig{BatchSize: 2, Allocator: mem})
	require.NoError(t, err)
	mem.AssertSize(t, 0)
	assert.Equal(t, Stats{Rows: 3, Batches: 2}, stats)

	dst, err := ReadTable(context.Background(), &buf, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "shipments", dst.Name())
	for i, f := range src.Schema().Fields {
		assert.True(t, datatype.Equal(f.Type, dst.Schema().Fields[i].Type), f.Name)
	}
	assertSameRows(t, src, dst)
}

func TestDecimalNumbersExportAsLiterals(t *testing.T) {
	table, err := columnar.NewTable("prices", columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "price", Type: datatype.Number{MinDecimalPlaces: 2}},
	}})
	require.NoError(t, err)
	for _, cell := range []string{"1", "2.5", "1,000.125"} {
		require.NoError(t, table.AppendTextRow([]string{cell}))
	}

	sc, err := ArrowSchema(table)
	require.NoError(t, err)
	assert.Equal(t, arrow.STRING, sc.Field(0).Type.ID())

	var buf bytes.Buffer
	_, err = Write(context.Background(), &buf, table, DefaultWriterConfig())
	require.NoError(t, err)
	back, err := ReadTable(context.Background(), &buf, "")
	require.NoError(t, err)
	assertSameRows(t, table, back)
}

func TestOutOfRangeTimesExportAsLiterals(t *testing.T) {
	table, err := columnar.NewTable("epochs", columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "day", Type: datatype.Temporal{Granularity: datatype.Date}},
		{Name: "at", Type: datatype.Temporal{Granularity: datatype.DateTime}},
	}})
	require.NoError(t, err)
	require.NoError(t, table.AppendTextRow([]string{"2024-01-02", "1600-01-01 00:00:00"}))
	require.NoError(t, table.AppendTextRow([]string{"-9000000-01-01", "12345-06-07 08:09:10"}))

	sc, err := ArrowSchema(table)
	require.NoError(t, err)
	assert.Equal(t, arrow.STRING, sc.Field(0).Type.ID())
	assert.Equal(t, arrow.STRING, sc.Field(1).Type.ID())

	var buf bytes.Buffer
	_, err = Write(context.Background(), &buf, table, DefaultWriterConfig())
	require.NoError(t, err)
	back, err := ReadTable(context.Background(), &buf, "")
	require.NoError(t, err)
	assertSameRows(t, table, back)
}

func TestWriteEmptyTable(t *testing.T) {
	table, err := columnar.NewTable("empty", columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "a", Type: datatype.Text{}},
	}})
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := Write(context.Background(), &buf, table, WriterConfig{})
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	back, err := ReadTable(context.Background(), &buf, "")
	require.NoError(t, err)
	assert.Equal(t, 0, back.RowCount())
	assert.Equal(t, []string{"a"}, back.ColumnNames())
}

func TestReadTableRejectsGarbage(t *testing.T) {
	_, err := ReadTable(context.Background(), strings.NewReader("not an arrow file"), "x")
	require.Error(t, err)
	assert.True(t, errors.IsUserData(err))
}

func TestCompressedBodies(t *testing.T) {
	src := shipmentTable(t)
	for _, alg := range []compression.Algorithm{compression.LZ4, compression.Zstd} {
		t.Run(string(alg), func(t *testing.T) {
			cfg := DefaultWriterConfig()
			cfg.Compression = alg

			var buf bytes.Buffer
			_, err := Write(context.Background(), &buf, src, cfg)
			require.NoError(t, err)

			dst, err := ReadTable(context.Background(), &buf, "")
			require.NoError(t, err)
			assertSameRows(t, src, dst)
		})
	}

	cfg := DefaultWriterConfig()
	cfg.Compression = compression.Gzip
	_, err := Write(context.Background(), &bytes.Buffer{}, src, cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDecoderFallsBackToSchemaColumns(t *testing.T) {
	table := shipmentTable(t)
	enc, err := NewEncoder(table)
	require.NoError(t, err)

	// Strip field metadata the way some formats do.
	fields := enc.Schema().Fields()
	for i := range fields {
		fields[i].Metadata = arrow.Metadata{}
	}
	md := enc.Schema().Metadata()
	bare := arrow.NewSchema(fields, &md)

	dec, err := NewDecoder(bare, "")
	require.NoError(t, err)
	assert.Equal(t, "shipments", dec.Table().Name())

	_, err = enc.Encode(context.Background(), memory.NewGoAllocator(), 2, func(rec arrow.Record) error {
		return dec.Append(rec)
	})
	require.NoError(t, err)
	assertSameRows(t, table, dec.Table())
}

func TestDecoderRejectsColumnCountMismatch(t *testing.T) {
	enc, err := NewEncoder(shipmentTable(t))
	require.NoError(t, err)

	other, err := columnar.NewTable("short", columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "ok", Type: datatype.Boolean{}},
	}})
	require.NoError(t, err)
	otherEnc, err := NewEncoder(other)
	require.NoError(t, err)

	dec, err := NewDecoder(otherEnc.Schema(), "")
	require.NoError(t, err)
	_, err = enc.Encode(context.Background(), nil, 10, dec.Append)
	require.Error(t, err)
	assert.True(t, errors.IsUserData(err))
}
