package codec

import (
	"strings"
	"unicode/utf8"
)

// Cursor is a read position over a source text. Cursors are values: every
// consuming method returns the advanced cursor and leaves the receiver as it
// was, so a failed attempt can simply be discarded.
type Cursor struct {
	text string
	pos  int
}

// NewCursor returns a cursor at the start of text.
func NewCursor(text string) Cursor {
	return Cursor{text: text}
}

// Text returns the whole source text.
func (c Cursor) Text() string { return c.text }

// Pos returns the number of bytes consumed so far.
func (c Cursor) Pos() int { return c.pos }

// Remaining returns the unconsumed text.
func (c Cursor) Remaining() string { return c.text[c.pos:] }

// AtEnd reports whether the whole text has been consumed.
func (c Cursor) AtEnd() bool { return c.pos >= len(c.text) }

// Peek returns the next byte without consuming it.
func (c Cursor) Peek() (byte, bool) {
	if c.AtEnd() {
		return 0, false
	}
	return c.text[c.pos], true
}

// SkipWhitespace consumes spaces, tabs and line breaks.
func (c Cursor) SkipWhitespace() Cursor {
	for c.pos < len(c.text) {
		switch c.text[c.pos] {
		case ' ', '\t', '\n', '\r':
			c.pos++
		default:
			return c
		}
	}
	return c
}

// TryConsume consumes lit if the remaining text starts with it.
func (c Cursor) TryConsume(lit string) (Cursor, bool) {
	if !strings.HasPrefix(c.Remaining(), lit) {
		return c, false
	}
	c.pos += len(lit)
	return c, true
}

// TryConsumeFold is TryConsume with ASCII case folding.
func (c Cursor) TryConsumeFold(lit string) (Cursor, bool) {
	rest := c.Remaining()
	if len(rest) < len(lit) || !strings.EqualFold(rest[:len(lit)], lit) {
		return c, false
	}
	c.pos += len(lit)
	return c, true
}

// ConsumeDigits consumes a possibly empty run of ASCII digits.
func (c Cursor) ConsumeDigits() (string, Cursor) {
	start := c.pos
	for c.pos < len(c.text) && c.text[c.pos] >= '0' && c.text[c.pos] <= '9' {
		c.pos++
	}
	return c.text[start:c.pos], c
}

// ReadUntil consumes up to, not including, the first byte found in delims,
// or to the end of the text.
func (c Cursor) ReadUntil(delims string) (string, Cursor) {
	start := c.pos
	if i := strings.IndexAny(c.Remaining(), delims); i >= 0 {
		c.pos += i
	} else {
		c.pos = len(c.text)
	}
	return c.text[start:c.pos], c
}

// snippet returns a short excerpt of the remaining text for error messages.
func (c Cursor) snippet() string {
	const maxSnippet = 32
	rest := c.Remaining()
	if len(rest) <= maxSnippet {
		return rest
	}
	cut := maxSnippet
	for cut > 0 && !utf8.RuneStart(rest[cut]) {
		cut--
	}
	return rest[:cut] + "..."
}
