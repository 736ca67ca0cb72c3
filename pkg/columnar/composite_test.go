package columnar

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/pool"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

func pointType(t *testing.T) datatype.Record {
	t.Helper()
	typ, err := datatype.NewRecord(
		datatype.Field{Name: "x", Type: datatype.Number{}},
		datatype.Field{Name: "y", Type: datatype.Text{}})
	require.NoError(t, err)
	return typ
}

func TestRecordColumn(t *testing.T) {
	col := newTestColumn(t, pointType(t))

	require.NoError(t, col.AppendText(`(x: 1, y: "hi")`))
	require.NoError(t, col.Append(value.Record{"x": num("2"), "y": "there"}))

	assert.True(t, value.Equal(value.Record{"x": num("1"), "y": "hi"}, mustGet(t, col, 0)))
	text, err := col.View().Text(1)
	require.NoError(t, err)
	assert.Equal(t, `(x: 2, y: "there")`, text)

	x, ok := col.(*RecordColumn).Field("x")
	require.True(t, ok)
	assert.Equal(t, 2, x.Len())
}

func TestRecordColumnFailedAppendKeepsFieldsAligned(t *testing.T) {
	col := newTestColumn(t, pointType(t)).(*RecordColumn)
	require.NoError(t, col.AppendText(`(x: 1, y: "a")`))

	// x is appended before y fails.
	err := col.Append(value.Record{"x": num("5"), "y": 12})
	assert.True(t, errors.IsInternal(err))
	err = col.Append(value.Record{"x": num("5"), "z": "a"})
	assert.True(t, errors.IsInternal(err))

	assert.Equal(t, 1, col.Len())
	for _, f := range col.fields {
		assert.Equal(t, 1, f.Len())
	}
	assert.True(t, errors.IsUserData(col.AppendText(`(x: 1)`)))
}

func TestArrayColumn(t *testing.T) {
	col := newTestColumn(t, datatype.NewArray(datatype.Number{}))

	require.NoError(t, col.AppendText("[1, 2, 3]"))
	require.NoError(t, col.AppendText("[]"))
	require.NoError(t, col.Append(value.Slice{num("1000000")}))

	first := mustGet(t, col, 0).(value.List)
	assert.True(t, value.Equal(value.Slice{num("1"), num("2"), num("3")}, first))
	assert.Equal(t, 0, mustGet(t, col, 1).(value.List).Len())

	text, err := col.View().Text(2)
	require.NoError(t, err)
	assert.Equal(t, "[1000000]", text)
}

func TestArrayColumnOfUnknownElements(t *testing.T) {
	col := newTestColumn(t, datatype.NewArray(nil))

	require.NoError(t, col.AppendText("[]"))
	require.NoError(t, col.Append(value.Slice{}))
	assert.True(t, errors.IsUserData(col.AppendText("[1]")))
	assert.True(t, errors.IsInternal(col.Append(value.Slice{num("1")})))

	assert.Equal(t, 2, col.Len())
	assert.Equal(t, value.Slice{}, mustGet(t, col, 0))
}

func TestNestedArraysOfRecords(t *testing.T) {
	typ := datatype.NewArray(datatype.NewArray(pointType(t)))
	col := newTestColumn(t, typ)

	literal := `[[(x: 1, y: "a")], [], [(x: 2, y: "b"), (x: 3, y: "c")]]`
	require.NoError(t, col.AppendText(literal))

	text, err := col.View().Text(0)
	require.NoError(t, err)
	assert.Equal(t, literal, text)
}

func TestTextColumnInterns(t *testing.T) {
	names := pool.NewInterner[string]("text", 8)
	col, err := NewColumn(datatype.Text{}, WithInterner(names))
	require.NoError(t, err)

	for _, s := range []string{"red", "green", "red", "red"} {
		require.NoError(t, col.AppendText(s))
	}
	assert.Equal(t, "red", mustGet(t, col, 2))

	size, hits, misses, _ := names.Stats()
	assert.Equal(t, int64(2), size)
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(2), misses)

	col.Truncate(1)
	assert.Equal(t, 1, col.Len())
	assert.True(t, errors.IsInternal(col.Append(3)))
}

func TestBoolColumn(t *testing.T) {
	col := newTestColumn(t, datatype.Boolean{})
	for i := 0; i < 130; i++ {
		require.NoError(t, col.Append(i%3 == 0))
	}
	assert.Equal(t, true, mustGet(t, col, 129))
	assert.Equal(t, false, mustGet(t, col, 128))

	// Truncated bits are cleared when rows are appended again.
	col.Truncate(126)
	require.NoError(t, col.AppendText("FALSE"))
	assert.Equal(t, false, mustGet(t, col, 126))

	assert.True(t, errors.IsUserData(col.AppendText("yes")))
	assert.Equal(t, 127, col.Len())
}

func TestTemporalColumnNormalizes(t *testing.T) {
	col := newTestColumn(t, datatype.Temporal{Granularity: datatype.Date})

	require.NoError(t, col.Append(time.Date(2024, 5, 6, 13, 14, 15, 0, time.UTC)))
	require.NoError(t, col.AppendText("2024/05/07"))
	assert.True(t, errors.IsUserData(col.AppendText("May 8")))

	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), mustGet(t, col, 0))
	text, err := col.View().Text(1)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-07", text)
}

func TestViewIsSharedAcrossGoroutines(t *testing.T) {
	col := newTestColumn(t, datatype.Number{})
	for i := 0; i < 100; i++ {
		col.(*NumberColumn).Add(value.Int(int64(i * 1000)))
	}

	views := make([]*View, 8)
	var wg sync.WaitGroup
	for g := range views {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			views[g] = col.View()
			_, _ = views[g].Get(99)
		}(g)
	}
	wg.Wait()

	for _, v := range views {
		assert.Same(t, views[0], v)
	}
	last, err := views[0].Get(99)
	require.NoError(t, err)
	assert.True(t, value.Equal(num("99000"), last))
}
