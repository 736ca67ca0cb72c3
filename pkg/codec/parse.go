package codec

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/metrics"
	stringpool "github.com/ajitpratap0/tablecore/pkg/strings"
	"github.com/ajitpratap0/tablecore/pkg/temporal"
	"github.com/ajitpratap0/tablecore/pkg/value"
)

// temporalDelims end a temporal token inside a composite literal.
const temporalDelims = ",)]"

// Parse reads text as a literal of type t. Surrounding whitespace is ignored;
// any other unconsumed text is a data error.
func Parse(text string, t datatype.Type) (any, error) {
	v, cur, err := ParseAt(NewCursor(text), t)
	if err != nil {
		if errors.IsUserData(err) {
			metrics.ParseErrors.WithLabelValues(datatype.Kind(t)).Inc()
		}
		return nil, err
	}
	cur = cur.SkipWhitespace()
	if !cur.AtEnd() {
		metrics.ParseErrors.WithLabelValues(datatype.Kind(t)).Inc()
		return nil, errors.Data(
			stringpool.Sprintf("unexpected %q after %s literal", cur.Remaining(), t),
			cur.Remaining(), t.String(), text)
	}
	return v, nil
}

// ParseAt reads one literal of type t starting at cur, after optional
// leading whitespace, and returns the value with the cursor just past it.
func ParseAt(cur Cursor, t datatype.Type) (any, Cursor, error) {
	if t == nil {
		return nil, cur, errors.Internal("codec: parse with nil type")
	}
	res, err := datatype.Apply[parsed](t, parser{cur: cur.SkipWhitespace()})
	if err != nil {
		return nil, cur, err
	}
	return res.v, res.cur, nil
}

type parsed struct {
	v   any
	cur Cursor
}

// parser reads one value per visit starting at cur.
type parser struct {
	cur Cursor
}

func (p parser) fail(message string, t datatype.Type) error {
	return errors.Data(message, p.cur.snippet(), t.String(), p.cur.Text())
}

// expect consumes lit after optional whitespace.
func (p parser) expect(lit string, t datatype.Type) (Cursor, error) {
	cur, ok := p.cur.SkipWhitespace().TryConsume(lit)
	if !ok {
		return p.cur, parser{cur: p.cur.SkipWhitespace()}.fail("expected "+strconv.Quote(lit), t)
	}
	return cur, nil
}

func (p parser) Number(t datatype.Number) (parsed, error) {
	cur := p.cur
	start := cur.Pos()
	if next, ok := cur.TryConsume("-"); ok {
		cur = next
	} else if next, ok := cur.TryConsume("+"); ok {
		cur = next
	}
	digits, cur := cur.ConsumeDigits()
	if digits == "" {
		return parsed{}, p.fail("expected a number", t)
	}
	if next, ok := cur.TryConsume("."); ok {
		frac, after := next.ConsumeDigits()
		if frac != "" {
			cur = after
		}
	}
	n, err := value.ParseNumber(cur.Text()[start:cur.Pos()])
	if err != nil {
		return parsed{}, err
	}
	return parsed{v: n, cur: cur}, nil
}

func (p parser) Text(t datatype.Text) (parsed, error) {
	cur, ok := p.cur.TryConsume(`"`)
	if !ok {
		return parsed{}, p.fail("expected a quoted string", t)
	}
	s, cur, problem := readQuoted(cur)
	if problem != "" {
		return parsed{}, parser{cur: cur}.fail(problem, t)
	}
	return parsed{v: s, cur: cur}, nil
}

// readQuoted reads up to the closing quote, which it consumes, and unescapes
// the content. A non-empty problem describes malformed input at the returned
// cursor.
func readQuoted(cur Cursor) (s string, next Cursor, problem string) {
	rest := cur.Remaining()
	end := strings.IndexAny(rest, `"\`)
	if end >= 0 && rest[end] == '"' {
		// Fast path: no escapes.
		return rest[:end], Cursor{text: cur.text, pos: cur.pos + end + 1}, ""
	}

	var b strings.Builder
	i := 0
	for i < len(rest) {
		c := rest[i]
		switch c {
		case '"':
			return b.String(), Cursor{text: cur.text, pos: cur.pos + i + 1}, ""
		case '\\':
			if i+1 >= len(rest) {
				return "", Cursor{text: cur.text, pos: cur.pos + i}, "unterminated escape"
			}
			switch esc := rest[i+1]; esc {
			case '"', '\\', '/':
				b.WriteByte(esc)
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				r, width, ok := readUnicodeEscape(rest[i:])
				if !ok {
					return "", Cursor{text: cur.text, pos: cur.pos + i}, "invalid unicode escape"
				}
				b.WriteRune(r)
				i += width
				continue
			default:
				return "", Cursor{text: cur.text, pos: cur.pos + i}, "unknown escape \\" + string(esc)
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", Cursor{text: cur.text, pos: cur.pos + len(rest)}, "unterminated string"
}

// readUnicodeEscape decodes \uXXXX at the start of s, combining a following
// low surrogate escape when present.
func readUnicodeEscape(s string) (rune, int, bool) {
	hex4 := func(s string) (rune, bool) {
		if len(s) < 6 {
			return 0, false
		}
		v, err := strconv.ParseUint(s[2:6], 16, 32)
		return rune(v), err == nil
	}
	r, ok := hex4(s)
	if !ok {
		return 0, 0, false
	}
	if utf16.IsSurrogate(r) && len(s) >= 12 && s[6] == '\\' && s[7] == 'u' {
		if low, ok := hex4(s[6:]); ok {
			if combined := utf16.DecodeRune(r, low); combined != utf8.RuneError {
				return combined, 12, true
			}
		}
	}
	return r, 6, true
}

func (p parser) Boolean(t datatype.Boolean) (parsed, error) {
	if cur, ok := p.cur.TryConsumeFold("true"); ok {
		return parsed{v: true, cur: cur}, nil
	}
	if cur, ok := p.cur.TryConsumeFold("false"); ok {
		return parsed{v: false, cur: cur}, nil
	}
	return parsed{}, p.fail("expected true or false", t)
}

func (p parser) Temporal(t datatype.Temporal) (parsed, error) {
	token, cur := p.cur.ReadUntil(temporalDelims)
	if strings.TrimSpace(token) == "" {
		return parsed{}, p.fail("expected a "+t.String(), t)
	}
	tm, err := temporal.Parse(token, t.Granularity)
	if err != nil {
		return parsed{}, err
	}
	return parsed{v: tm, cur: cur}, nil
}

func (p parser) Tagged(t datatype.Tagged) (parsed, error) {
	for _, idx := range t.TagsLongestFirst() {
		tag := t.Tags[idx]
		cur, ok := p.cur.TryConsume(tag.Name)
		if !ok {
			continue
		}
		if tag.Inner == nil {
			return parsed{v: value.Tagged{Index: idx}, cur: cur}, nil
		}
		cur, err := parser{cur: cur}.expect("(", t)
		if err != nil {
			return parsed{}, err
		}
		inner, cur, err := ParseAt(cur, tag.Inner)
		if err != nil {
			return parsed{}, err
		}
		if cur, err = (parser{cur: cur}).expect(")", t); err != nil {
			return parsed{}, err
		}
		return parsed{v: value.Tagged{Index: idx, Inner: inner}, cur: cur}, nil
	}
	return parsed{}, p.fail("unknown tag", t)
}

func (p parser) Record(t datatype.Record) (parsed, error) {
	cur, err := p.expect("(", t)
	if err != nil {
		return parsed{}, err
	}
	rec := make(value.Record, len(t.Fields))
	if next, ok := cur.SkipWhitespace().TryConsume(")"); ok {
		if len(t.Fields) > 0 {
			return parsed{}, parser{cur: cur.SkipWhitespace()}.fail("missing record fields", t)
		}
		return parsed{v: rec, cur: next}, nil
	}
	for {
		cur = cur.SkipWhitespace()
		name, afterName := cur.ReadUntil(":,)")
		name = strings.TrimSpace(name)
		field, ok := t.Field(name)
		if !ok {
			return parsed{}, parser{cur: cur}.fail(stringpool.Sprintf("unknown field %q", name), t)
		}
		if _, dup := rec[name]; dup {
			return parsed{}, parser{cur: cur}.fail(stringpool.Sprintf("field %q given twice", name), t)
		}
		if cur, err = (parser{cur: afterName}).expect(":", t); err != nil {
			return parsed{}, err
		}
		var v any
		if v, cur, err = ParseAt(cur, field.Type); err != nil {
			return parsed{}, err
		}
		rec[name] = v

		cur = cur.SkipWhitespace()
		if next, ok := cur.TryConsume(","); ok {
			cur = next
			continue
		}
		if next, ok := cur.TryConsume(")"); ok {
			cur = next
			break
		}
		return parsed{}, parser{cur: cur}.fail(`expected "," or ")"`, t)
	}
	for _, f := range t.Fields {
		if _, ok := rec[f.Name]; !ok {
			return parsed{}, parser{cur: cur}.fail(stringpool.Sprintf("missing field %q", f.Name), t)
		}
	}
	return parsed{v: rec, cur: cur}, nil
}

func (p parser) Array(t datatype.Array) (parsed, error) {
	cur, err := p.expect("[", t)
	if err != nil {
		return parsed{}, err
	}
	if next, ok := cur.SkipWhitespace().TryConsume("]"); ok {
		return parsed{v: value.Slice{}, cur: next}, nil
	}
	if t.Elem == nil {
		return parsed{}, parser{cur: cur.SkipWhitespace()}.fail("elements given for an array of unknown element type", t)
	}
	var items value.Slice
	for {
		var v any
		if v, cur, err = ParseAt(cur, t.Elem); err != nil {
			return parsed{}, err
		}
		items = append(items, v)

		cur = cur.SkipWhitespace()
		if next, ok := cur.TryConsume(","); ok {
			cur = next
			continue
		}
		if next, ok := cur.TryConsume("]"); ok {
			return parsed{v: items, cur: next}, nil
		}
		return parsed{}, parser{cur: cur}.fail(`expected "," or "]"`, t)
	}
}
