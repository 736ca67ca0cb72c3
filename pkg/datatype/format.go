package datatype

import (
	"strings"

	"github.com/ajitpratap0/tablecore/pkg/errors"
	stringpool "github.com/ajitpratap0/tablecore/pkg/strings"
)

// Granularity selects which temporal fields a Temporal value carries.
type Granularity int

const (
	Date Granularity = iota
	Time
	YearMonth
	DateTime
	DateTimeZoned
)

var granularityNames = [...]string{
	Date:          "Date",
	Time:          "Time",
	YearMonth:     "YearMonth",
	DateTime:      "DateTime",
	DateTimeZoned: "DateTimeZoned",
}

func (g Granularity) valid() bool {
	return g >= Date && g <= DateTimeZoned
}

func (g Granularity) String() string {
	if !g.valid() {
		return stringpool.Sprintf("Granularity(%d)", int(g))
	}
	return granularityNames[g]
}

// ParseGranularity accepts the names returned by Granularity.String, case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	for g, name := range granularityNames {
		if strings.EqualFold(name, s) {
			return Granularity(g), nil
		}
	}
	return 0, errors.Newf(errors.ErrorTypeValidation, "unknown granularity %q", s)
}

func (t Number) String() string {
	var b strings.Builder
	b.WriteString("Number")
	if t.Unit != "" {
		b.WriteString("{")
		b.WriteString(t.Unit)
		b.WriteString("}")
	}
	return b.String()
}

func (Text) String() string    { return "Text" }
func (Boolean) String() string { return "Boolean" }

func (t Temporal) String() string { return t.Granularity.String() }

func (t Tagged) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = "(" + a.String() + ")"
	}
	return t.Name + "-" + strings.Join(args, "-")
}

func (t Record) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Name + ": " + f.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t Array) String() string {
	if t.Elem == nil {
		return "[]"
	}
	return "[" + t.Elem.String() + "]"
}

// Kind names the variant of t: number, text, boolean, temporal, tagged,
// record or array. It is used as a metric and log label.
func Kind(t Type) string {
	k, err := Apply[string](t, kindNamer{})
	if err != nil {
		return "unknown"
	}
	return k
}

type kindNamer struct{}

func (kindNamer) Number(Number) (string, error)     { return "number", nil }
func (kindNamer) Text(Text) (string, error)         { return "text", nil }
func (kindNamer) Boolean(Boolean) (string, error)   { return "boolean", nil }
func (kindNamer) Temporal(Temporal) (string, error) { return "temporal", nil }
func (kindNamer) Tagged(Tagged) (string, error)     { return "tagged", nil }
func (kindNamer) Record(Record) (string, error)     { return "record", nil }
func (kindNamer) Array(Array) (string, error)       { return "array", nil }
