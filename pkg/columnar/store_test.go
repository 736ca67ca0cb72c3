package columnar

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/testutil"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

func salesSchema() Schema {
	return Schema{Fields: []FieldSchema{
		{Name: "name", Type: datatype.Text{}},
		{Name: "qty", Type: datatype.Number{}},
		{Name: "when", Type: datatype.Temporal{Granularity: datatype.Date}},
		{Name: "ok", Type: datatype.Boolean{}},
	}}
}

func newSalesTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable("sales", salesSchema(), WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	return table
}

const salesCSV = `qty,name,extra,when,ok
3,apple,x,2024-01-02,true
abc,pear,x,2024-01-03,false
1000,"plum, red",x,2024-01-04,false
`

func TestNewTableValidatesSchema(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
	}{
		{"empty", Schema{}},
		{"unnamed", Schema{Fields: []FieldSchema{{Type: datatype.Text{}}}}},
		{"untyped", Schema{Fields: []FieldSchema{{Name: "a"}}}},
		{"duplicate", Schema{Fields: []FieldSchema{
			{Name: "a", Type: datatype.Text{}},
			{Name: "a", Type: datatype.Number{}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable("t", tt.schema)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestTableAppendRow(t *testing.T) {
	table := newSalesTable(t)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, table.AppendRow(map[string]any{
		"name": "apple", "qty": num("3"), "when": day, "ok": true,
	}))

	err := table.AppendRow(map[string]any{"name": "pear", "qty": num("1")})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	// name and qty are appended before when fails.
	err = table.AppendRow(map[string]any{
		"name": "pear", "qty": num("1"), "when": "yesterday", "ok": false,
	})
	require.Error(t, err)
	assert.True(t, errors.IsInternal(err))

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	col, _ := e.Detail(errors.DetailColumn)
	assert.Equal(t, "when", col)

	assert.Equal(t, 1, table.RowCount())
	for _, name := range table.ColumnNames() {
		c, ok := table.Column(name)
		require.True(t, ok)
		assert.Equal(t, 1, c.Len(), name)
	}

	row, err := table.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "apple", row["name"])
	assert.True(t, value.Equal(day, row["when"]))

	_, err = table.Row(1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestTableAppendTextRow(t *testing.T) {
	table := newSalesTable(t)

	require.NoError(t, table.AppendTextRow([]string{"apple", "1,200", "2024/01/02", "TRUE"}))
	err := table.AppendTextRow([]string{"pear", "12", "never", "true"})
	assert.True(t, errors.IsUserData(err))
	err = table.AppendTextRow([]string{"pear"})
	assert.True(t, errors.IsUserData(err))

	assert.Equal(t, 1, table.RowCount())
	row, err := table.Row(0)
	require.NoError(t, err)
	assert.True(t, value.Equal(num("1200"), row["qty"]))
	assert.Equal(t, true, row["ok"])
}

func TestLoadCSVSkipsInvalidRows(t *testing.T) {
	table := newSalesTable(t)

	report, err := table.LoadCSV(context.Background(), strings.NewReader(salesCSV), LoadOptions{SkipInvalid: true})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 3, report.Errors[0].Row)
	assert.Equal(t, "qty", report.Errors[0].Column)
	assert.Equal(t, "abc", report.Errors[0].Snippet)

	assert.Equal(t, 2, table.RowCount())
	row, err := table.Row(1)
	require.NoError(t, err)
	assert.Equal(t, "plum, red", row["name"])
	assert.True(t, value.Equal(num("1000"), row["qty"]))
}

func TestLoadCSVFailsOnInvalidRow(t *testing.T) {
	table := newSalesTable(t)

	report, err := table.LoadCSV(context.Background(), strings.NewReader(salesCSV), LoadOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsUserData(err))
	assert.Equal(t, 1, report.Rows)
	assert.Equal(t, 1, table.RowCount())
}

func TestLoadCSVCapsReportedErrors(t *testing.T) {
	table := newSalesTable(t)
	var b strings.Builder
	b.WriteString("name,qty,when,ok\n")
	for i := 0; i < 5; i++ {
		b.WriteString("a,bad,2024-01-01,true\n")
	}

	report, err := table.LoadCSV(context.Background(), strings.NewReader(b.String()), LoadOptions{SkipInvalid: true, MaxErrors: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Skipped)
	assert.Len(t, report.Errors, 2)
}

func TestLoadCSVHeaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"missing column", "name,qty,when\napple,1,2024-01-01\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := newSalesTable(t)
			_, err := table.LoadCSV(context.Background(), strings.NewReader(tt.input), LoadOptions{})
			require.Error(t, err)
			assert.True(t, errors.IsUserData(err))
			assert.Equal(t, 0, table.RowCount())
		})
	}
}

func TestLoadCSVHonorsCancellation(t *testing.T) {
	table := newSalesTable(t)
	var b strings.Builder
	b.WriteString("name,qty,when,ok\n")
	for i := 0; i < 2048; i++ {
		b.WriteString("a,1,2024-01-01,true\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := table.LoadCSV(ctx, strings.NewReader(b.String()), LoadOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	src := newSalesTable(t)
	_, err := src.LoadCSV(context.Background(), strings.NewReader(salesCSV), LoadOptions{SkipInvalid: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.WriteCSV(context.Background(), &buf))
	assert.Equal(t, "name,qty,when,ok\napple,3,2024-01-02,true\n\"plum, red\",1000,2024-01-04,false\n", buf.String())

	dst := newSalesTable(t)
	report, err := dst.LoadCSV(context.Background(), &buf, LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, src.RowCount(), report.Rows)

	for i := 0; i < src.RowCount(); i++ {
		want, err := src.Row(i)
		require.NoError(t, err)
		got, err := dst.Row(i)
		require.NoError(t, err)
		for name, v := range want {
			assert.True(t, value.Equal(v, got[name]), "row %d column %s", i, name)
		}
	}
}

func TestIterator(t *testing.T) {
	table := newSalesTable(t)
	_, err := table.LoadCSV(context.Background(), strings.NewReader(salesCSV), LoadOptions{SkipInvalid: true})
	require.NoError(t, err)

	var names []string
	it := table.NewIterator()
	for it.Next() {
		row := it.Row()
		require.NotNil(t, row)
		names = append(names, row["name"].(string))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"apple", "plum, red"}, names)
}

func TestTableMemoryAndClear(t *testing.T) {
	table := newSalesTable(t)
	assert.Zero(t, table.MemoryPerRecord())

	for i := 0; i < 10; i++ {
		require.NoError(t, table.AppendTextRow([]string{"same", "1", "2024-01-01", "false"}))
	}
	assert.Positive(t, table.MemoryUsage())
	assert.Positive(t, table.MemoryPerRecord())

	size, hits, misses, _ := table.InternStats()
	assert.Equal(t, int64(1), size)
	assert.Equal(t, int64(9), hits)
	assert.Equal(t, int64(1), misses)

	table.Clear()
	assert.Equal(t, 0, table.RowCount())
	require.NoError(t, table.AppendTextRow([]string{"b", "2", "2024-01-02", "true"}))
	assert.Equal(t, 1, table.RowCount())
}
