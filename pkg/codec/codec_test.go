package codec

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

var numberType = datatype.Number{}

func mustRecord(t *testing.T, fields ...datatype.Field) datatype.Record {
	t.Helper()
	r, err := datatype.NewRecord(fields...)
	require.NoError(t, err)
	return r
}

func mustTagged(t *testing.T, tags ...datatype.Tag) datatype.Tagged {
	t.Helper()
	tt, err := datatype.NewTagged("Maybe", nil, tags...)
	require.NoError(t, err)
	return tt
}

// valueComparer lets cmp.Diff compare numbers and lists logically.
var valueComparer = cmp.Comparer(func(a, b value.Number) bool { return a.Equal(b) })

func num(s string) value.Number {
	n, err := value.ParseNumber(s)
	if err != nil {
		panic(err)
	}
	return n
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123", "123"},
		{"  -42 ", "-42"},
		{"+7", "7"},
		{"4.50", "4.5"},
		{"99999999999999999999", "99999999999999999999"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := Parse(tt.in, numberType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.(value.Number).String())
		})
	}
}

func TestParseRejectsTrailingText(t *testing.T) {
	_, err := Parse("123extra", numberType)
	require.Error(t, err)
	assert.True(t, errors.IsUserData(err))

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	snippet, _ := e.Detail(errors.DetailSnippet)
	assert.Equal(t, "extra", snippet)
	expected, _ := e.Detail(errors.DetailExpectedType)
	assert.Equal(t, "Number", expected)
	text, _ := e.Detail(errors.DetailText)
	assert.Equal(t, "123extra", text)
}

func TestParseUserErrors(t *testing.T) {
	rec := mustRecord(t,
		datatype.Field{Name: "x", Type: numberType},
		datatype.Field{Name: "y", Type: datatype.Text{}})

	tests := []struct {
		name string
		in   string
		typ  datatype.Type
	}{
		{"empty number", "", numberType},
		{"dangling dot", "1.", numberType},
		{"exponent", "1e5", numberType},
		{"unquoted text", "hi", datatype.Text{}},
		{"unterminated text", `"hi`, datatype.Text{}},
		{"bad escape", `"\q"`, datatype.Text{}},
		{"bad boolean", "yes", datatype.Boolean{}},
		{"bad date", "2024-13-01", datatype.Temporal{Granularity: datatype.Date}},
		{"unknown tag", "Nothing", mustTagged(t, datatype.Tag{Name: "Missing"})},
		{"missing field", `(x: 1)`, rec},
		{"repeated field", `(x: 1, x: 2, y: "a")`, rec},
		{"unknown field", `(x: 1, z: "a")`, rec},
		{"unclosed array", "[1, 2", datatype.NewArray(numberType)},
		{"elements of unknown type", "[1]", datatype.NewArray(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in, tt.typ)
			require.Error(t, err)
			assert.True(t, errors.IsUserData(err), "want a data error, got %v", err)
		})
	}
}

func TestParseRecord(t *testing.T) {
	rec := mustRecord(t,
		datatype.Field{Name: "y", Type: datatype.Text{}},
		datatype.Field{Name: "x", Type: numberType})

	v, err := Parse(`(x: 1, y: "hi")`, rec)
	require.NoError(t, err)
	want := value.Record{"x": num("1"), "y": "hi"}
	assert.Empty(t, cmp.Diff(want, v, valueComparer))

	reordered, err := Parse(` ( y :"hi",x:1 ) `, rec)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, reordered, valueComparer))

	out, err := Print(v, rec)
	require.NoError(t, err)
	assert.Equal(t, `(y: "hi", x: 1)`, out)
}

func TestParseArray(t *testing.T) {
	v, err := Parse("[1, 2, 3]", datatype.NewArray(numberType))
	require.NoError(t, err)
	want := value.Slice{num("1"), num("2"), num("3")}
	assert.Empty(t, cmp.Diff(want, v, valueComparer))

	empty, err := Parse("[ ]", datatype.NewArray(nil))
	require.NoError(t, err)
	assert.Equal(t, value.Slice{}, empty)
}

func TestParseTaggedLongestFirst(t *testing.T) {
	typ := mustTagged(t,
		datatype.Tag{Name: "A", Inner: numberType},
		datatype.Tag{Name: "AB", Inner: numberType})

	v, err := Parse("AB(1)", typ)
	require.NoError(t, err)
	tv := v.(value.Tagged)
	assert.Equal(t, 1, tv.Index)
	assert.True(t, value.Equal(num("1"), tv.Inner))
}

func TestParseTagged(t *testing.T) {
	typ := mustTagged(t,
		datatype.Tag{Name: "Missing"},
		datatype.Tag{Name: "Number", Inner: numberType})

	v, err := Parse("Number(4.5)", typ)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(value.Tagged{Index: 1, Inner: num("4.5")}, v, valueComparer))

	v, err = Parse("Missing", typ)
	require.NoError(t, err)
	assert.Equal(t, value.Tagged{Index: 0}, v)

	_, err = Parse("Number", typ)
	assert.True(t, errors.IsUserData(err))
}

func TestParseAtStopsAfterValue(t *testing.T) {
	v, cur, err := ParseAt(NewCursor(`true, false`), datatype.Boolean{})
	require.NoError(t, err)
	assert.Equal(t, true, v)
	assert.Equal(t, ", false", cur.Remaining())
}

func TestRoundTrip(t *testing.T) {
	zoned := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("", 3600))
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	// The second 01:30 of the 2020 autumn clock change in London.
	fallBack := time.Date(2020, 10, 25, 1, 30, 0, 0, time.UTC).In(london)
	stamped := mustRecord(t,
		datatype.Field{Name: "at", Type: datatype.Temporal{Granularity: datatype.DateTimeZoned}},
		datatype.Field{Name: "n", Type: numberType})
	priceType := datatype.Number{MinDecimalPlaces: 2}
	maybe := mustTagged(t,
		datatype.Tag{Name: "Missing"},
		datatype.Tag{Name: "Number", Inner: numberType})
	point := mustRecord(t,
		datatype.Field{Name: "label", Type: datatype.Text{}},
		datatype.Field{Name: "at", Type: datatype.Temporal{Granularity: datatype.Date}},
		datatype.Field{Name: "tags", Type: datatype.NewArray(maybe)})

	tests := []struct {
		name string
		typ  datatype.Type
		v    any
		text string
	}{
		{"integer", numberType, num("-17"), "-17"},
		{"padded decimal", priceType, num("4.5"), "4.50"},
		{"big integer", numberType, num("-123456789012345678901234567890"), "-123456789012345678901234567890"},
		{"escaped text", datatype.Text{}, "a \"q\"\\\n\t\x01é", `"a \"q\"\\\n\t\u0001é"`},
		{"boolean", datatype.Boolean{}, false, "false"},
		{"date", datatype.Temporal{Granularity: datatype.Date}, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), "2024-02-29"},
		{"zoned", datatype.Temporal{Granularity: datatype.DateTimeZoned}, zoned, "2024-03-01 12:30:00 +01:00"},
		{"repeated hour", datatype.Temporal{Granularity: datatype.DateTimeZoned}, fallBack, "2020-10-25 01:30:00+00:00 Europe/London"},
		{"repeated hour in record", stamped, value.Record{"at": fallBack, "n": num("1")},
			"(at: 2020-10-25 01:30:00+00:00 Europe/London, n: 1)"},
		{"five digit year", datatype.Temporal{Granularity: datatype.Date}, time.Date(12345, 1, 2, 0, 0, 0, 0, time.UTC), "12345-01-02"},
		{"negative year", datatype.Temporal{Granularity: datatype.DateTime}, time.Date(-1, 12, 31, 23, 0, 0, 0, time.UTC), "-0001-12-31 23:00:00"},
		{"tagged", maybe, value.Tagged{Index: 1, Inner: num("2")}, "Number(2)"},
		{"record", point, value.Record{
			"label": "p",
			"at":    time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
			"tags":  value.Slice{value.Tagged{Index: 0}, value.Tagged{Index: 1, Inner: num("3")}},
		}, `(label: "p", at: 2020-01-02, tags: [Missing, Number(3)])`},
		{"empty array", datatype.NewArray(nil), value.Slice{}, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := Print(tt.v, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.text, text)

			back, err := Parse(text, tt.typ)
			require.NoError(t, err)
			assert.True(t, value.Equal(tt.v, back), "round trip of %s gave %#v", text, back)
		})
	}
}

func TestPrintInternalErrors(t *testing.T) {
	maybe := mustTagged(t,
		datatype.Tag{Name: "Missing"},
		datatype.Tag{Name: "Number", Inner: numberType})

	tests := []struct {
		name string
		v    any
		typ  datatype.Type
	}{
		{"wrong go type", "12", numberType},
		{"tag out of range", value.Tagged{Index: 5}, maybe},
		{"missing inner", value.Tagged{Index: 1}, maybe},
		{"unexpected inner", value.Tagged{Index: 0, Inner: num("1")}, maybe},
		{"record missing field", value.Record{}, mustRecord(t, datatype.Field{Name: "x", Type: numberType})},
		{"record extra field", value.Record{"x": num("1"), "z": "a"}, mustRecord(t, datatype.Field{Name: "x", Type: numberType})},
		{"elements of unknown type", value.Slice{num("1")}, datatype.NewArray(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Print(tt.v, tt.typ)
			require.Error(t, err)
			assert.True(t, errors.IsInternal(err))
		})
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, Quote("plain"))
	assert.Equal(t, `"\"\\"`, Quote(`"\`))
}

func TestUnicodeEscapes(t *testing.T) {
	v, err := Parse(`"\u00e9\ud83d\ude00"`, datatype.Text{})
	require.NoError(t, err)
	assert.Equal(t, "é😀", v)
}
