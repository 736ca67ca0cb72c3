package codec

import (
	"time"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	stringpool "github.com/ajitpratap0/tablecore/pkg/strings"
	"github.com/ajitpratap0/tablecore/pkg/temporal"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

const hexDigits = "0123456789abcdef"

// Print renders v, a value of type t, as its canonical literal. A Go value
// that does not match t is an internal error.
func Print(v any, t datatype.Type) (string, error) {
	b := stringpool.GetBuilder(stringpool.Small)
	defer stringpool.PutBuilder(b, stringpool.Small)

	if err := printTo(b, v, t); err != nil {
		return "", err
	}
	return stringpool.Clone(b.String()), nil
}

func printTo(b *stringpool.Builder, v any, t datatype.Type) error {
	if t == nil {
		return errors.Internal("codec: print with nil type")
	}
	_, err := datatype.Apply[struct{}](t, printer{b: b, v: v})
	return err
}

// printer writes v to b.
type printer struct {
	b *stringpool.Builder
	v any
}

func (p printer) mismatch(t datatype.Type) error {
	return errors.Internal("codec: cannot print %T as %s", p.v, t)
}

func (p printer) Number(t datatype.Number) (struct{}, error) {
	n, ok := p.v.(value.Number)
	if !ok {
		return struct{}{}, p.mismatch(t)
	}
	p.b.WriteString(n.StringMinDecimals(t.MinDecimalPlaces))
	return struct{}{}, nil
}

func (p printer) Text(t datatype.Text) (struct{}, error) {
	s, ok := p.v.(string)
	if !ok {
		return struct{}{}, p.mismatch(t)
	}
	writeQuoted(p.b, s)
	return struct{}{}, nil
}

// Quote returns s as a text literal.
func Quote(s string) string {
	return stringpool.BuildString(func(b *stringpool.Builder) { writeQuoted(b, s) })
}

func writeQuoted(b *stringpool.Builder, s string) {
	_ = b.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		b.WriteString(s[start:i])
		switch c {
		case '"', '\\':
			_ = b.WriteByte('\\')
			_ = b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteString(`\u00`)
			_ = b.WriteByte(hexDigits[c>>4])
			_ = b.WriteByte(hexDigits[c&0xf])
		}
		start = i + 1
	}
	b.WriteString(s[start:])
	_ = b.WriteByte('"')
}

func (p printer) Boolean(t datatype.Boolean) (struct{}, error) {
	v, ok := p.v.(bool)
	if !ok {
		return struct{}{}, p.mismatch(t)
	}
	if v {
		p.b.WriteString("true")
	} else {
		p.b.WriteString("false")
	}
	return struct{}{}, nil
}

func (p printer) Temporal(t datatype.Temporal) (struct{}, error) {
	tm, ok := p.v.(time.Time)
	if !ok {
		return struct{}{}, p.mismatch(t)
	}
	p.b.WriteString(temporal.Format(tm, t.Granularity))
	return struct{}{}, nil
}

func (p printer) Tagged(t datatype.Tagged) (struct{}, error) {
	tv, ok := p.v.(value.Tagged)
	if !ok {
		return struct{}{}, p.mismatch(t)
	}
	if tv.Index < 0 || tv.Index >= len(t.Tags) {
		return struct{}{}, errors.Internal("codec: tag index %d out of range for %s", tv.Index, t)
	}
	tag := t.Tags[tv.Index]
	p.b.WriteString(tag.Name)
	if tag.Inner == nil {
		if tv.Inner != nil {
			return struct{}{}, errors.Internal("codec: tag %s of %s carries no value, got %T", tag.Name, t, tv.Inner)
		}
		return struct{}{}, nil
	}
	if tv.Inner == nil {
		return struct{}{}, errors.Internal("codec: tag %s of %s is missing its value", tag.Name, t)
	}
	_ = p.b.WriteByte('(')
	if err := printTo(p.b, tv.Inner, tag.Inner); err != nil {
		return struct{}{}, err
	}
	_ = p.b.WriteByte(')')
	return struct{}{}, nil
}

func (p printer) Record(t datatype.Record) (struct{}, error) {
	rec, ok := p.v.(value.Record)
	if !ok {
		return struct{}{}, p.mismatch(t)
	}
	if len(rec) != len(t.Fields) {
		return struct{}{}, errors.Internal("codec: record with %d fields for %s", len(rec), t)
	}
	_ = p.b.WriteByte('(')
	for i, f := range t.Fields {
		fv, ok := rec[f.Name]
		if !ok {
			return struct{}{}, errors.Internal("codec: record value lacks field %q of %s", f.Name, t)
		}
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.b.WriteString(f.Name)
		p.b.WriteString(": ")
		if err := printTo(p.b, fv, f.Type); err != nil {
			return struct{}{}, err
		}
	}
	_ = p.b.WriteByte(')')
	return struct{}{}, nil
}

func (p printer) Array(t datatype.Array) (struct{}, error) {
	list, ok := p.v.(value.List)
	if !ok {
		return struct{}{}, p.mismatch(t)
	}
	if t.Elem == nil && list.Len() > 0 {
		return struct{}{}, errors.Internal("codec: %d elements in an array of unknown element type", list.Len())
	}
	_ = p.b.WriteByte('[')
	for i := 0; i < list.Len(); i++ {
		if i > 0 {
			p.b.WriteString(", ")
		}
		elem, err := list.Get(i)
		if err != nil {
			return struct{}{}, err
		}
		if err := printTo(p.b, elem, t.Elem); err != nil {
			return struct{}{}, err
		}
	}
	_ = p.b.WriteByte(']')
	return struct{}{}, nil
}
