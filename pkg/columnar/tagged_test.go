package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/testutil"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

func newTestColumn(t *testing.T, typ datatype.Type) Column {
	t.Helper()
	col, err := NewColumn(typ, WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	return col
}

func mustGet(t *testing.T, col Column, i int) any {
	t.Helper()
	v, err := col.Get(i)
	require.NoError(t, err)
	return v
}

func num(s string) value.Number {
	n, err := value.ParseNumber(s)
	if err != nil {
		panic(err)
	}
	return n
}

func maybeNumber(t *testing.T) datatype.Tagged {
	t.Helper()
	typ, err := datatype.NewTagged("Maybe", nil,
		datatype.Tag{Name: "Missing"},
		datatype.Tag{Name: "NA"},
		datatype.Tag{Name: "Number", Inner: datatype.Number{}})
	require.NoError(t, err)
	return typ
}

func shapeType(t *testing.T) datatype.Tagged {
	t.Helper()
	typ, err := datatype.NewTagged("Shape", nil,
		datatype.Tag{Name: "Point"},
		datatype.Tag{Name: "Circle", Inner: datatype.Number{}},
		datatype.Tag{Name: "Label", Inner: datatype.Text{}})
	require.NoError(t, err)
	return typ
}

func TestFactoryPicksNumericTaggedColumn(t *testing.T) {
	assert.IsType(t, &NumericTaggedColumn{}, newTestColumn(t, maybeNumber(t)))
	assert.IsType(t, &TaggedColumn{}, newTestColumn(t, shapeType(t)))
}

func TestNumericTaggedColumn(t *testing.T) {
	col := newTestColumn(t, maybeNumber(t))

	require.NoError(t, col.AppendText("Number(4.5)"))
	require.NoError(t, col.AppendText("Missing"))
	require.NoError(t, col.Append(value.Tagged{Index: 2, Inner: num("7")}))
	require.NoError(t, col.AppendText("NA"))
	require.Equal(t, 4, col.Len())

	want := []value.Tagged{
		{Index: 2, Inner: num("4.5")},
		{Index: 0},
		{Index: 2, Inner: num("7")},
		{Index: 1},
	}
	for i, w := range want {
		assert.True(t, value.Equal(w, mustGet(t, col, i)), "row %d", i)
	}

	numbers := col.(*NumericTaggedColumn).Numbers()
	assert.Equal(t, 1, numbers.BigCount())
}

func TestNumericTaggedColumnRejects(t *testing.T) {
	col := newTestColumn(t, maybeNumber(t))

	assert.True(t, errors.IsUserData(col.AppendText("Nothing")))
	assert.True(t, errors.IsInternal(col.Append(value.Tagged{Index: 0, Inner: num("1")})))
	assert.True(t, errors.IsInternal(col.Append(value.Tagged{Index: 2, Inner: "x"})))
	assert.True(t, errors.IsInternal(col.Append(value.Tagged{Index: 3})))
	assert.Equal(t, 0, col.Len())
}

func TestTaggedColumn(t *testing.T) {
	col := newTestColumn(t, shapeType(t))

	require.NoError(t, col.AppendText(`Label("a")`))
	require.NoError(t, col.AppendText("Point"))
	require.NoError(t, col.AppendText("Circle(2)"))
	require.NoError(t, col.AppendText(`Label("b")`))

	want := []value.Tagged{
		{Index: 2, Inner: "a"},
		{Index: 0},
		{Index: 1, Inner: num("2")},
		{Index: 2, Inner: "b"},
	}
	for i, w := range want {
		assert.True(t, value.Equal(w, mustGet(t, col, i)), "row %d", i)
	}

	text, err := col.View().Text(0)
	require.NoError(t, err)
	assert.Equal(t, `Label("a")`, text)
}

func TestTaggedColumnTruncateTrimsInnerColumns(t *testing.T) {
	col := newTestColumn(t, shapeType(t)).(*TaggedColumn)

	require.NoError(t, col.AppendText(`Label("a")`))
	require.NoError(t, col.AppendText("Circle(1)"))
	require.NoError(t, col.AppendText(`Label("b")`))
	require.NoError(t, col.AppendText("Circle(2)"))

	col.Truncate(1)
	assert.Equal(t, 1, col.Len())
	assert.Equal(t, 1, col.inner[2].Len())
	assert.Equal(t, 0, col.inner[1].Len())

	require.NoError(t, col.AppendText("Circle(3)"))
	assert.True(t, value.Equal(value.Tagged{Index: 1, Inner: num("3")}, mustGet(t, col, 1)))
}

func TestTaggedColumnCorruptionIsInternal(t *testing.T) {
	col := newTestColumn(t, shapeType(t)).(*TaggedColumn)
	require.NoError(t, col.AppendText("Circle(1)"))

	// Simulate a short sub-column.
	col.inner[1].Truncate(0)
	_, err := col.Get(0)
	require.Error(t, err)
	assert.True(t, errors.IsInternal(err))
	assert.False(t, errors.IsUserData(err))
}

func TestTaggedColumnInnerFailureLeavesNoRow(t *testing.T) {
	col := newTestColumn(t, shapeType(t))
	err := col.Append(value.Tagged{Index: 1, Inner: "not a number"})
	assert.True(t, errors.IsInternal(err))
	assert.Equal(t, 0, col.Len())
}
