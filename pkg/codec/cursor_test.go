package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursor(t *testing.T) {
	c := NewCursor("  TRUE, 123.5]")

	c = c.SkipWhitespace()
	assert.Equal(t, 2, c.Pos())

	_, ok := c.TryConsume("true")
	assert.False(t, ok)
	c, ok = c.TryConsumeFold("true")
	assert.True(t, ok)

	b, ok := c.Peek()
	assert.True(t, ok)
	assert.Equal(t, byte(','), b)

	tok, c := c.ReadUntil("]")
	assert.Equal(t, ", 123.5", tok)
	assert.Equal(t, "]", c.Remaining())

	digits, after := NewCursor("007x").ConsumeDigits()
	assert.Equal(t, "007", digits)
	assert.Equal(t, "x", after.Remaining())

	rest, end := NewCursor("abc").ReadUntil(",")
	assert.Equal(t, "abc", rest)
	assert.True(t, end.AtEnd())
	_, ok = end.Peek()
	assert.False(t, ok)
}

func TestCursorValueSemantics(t *testing.T) {
	start := NewCursor("abc")
	next, ok := start.TryConsume("ab")
	assert.True(t, ok)
	assert.Equal(t, "c", next.Remaining())
	assert.Equal(t, "abc", start.Remaining())
}

func TestSnippetTruncates(t *testing.T) {
	long := NewCursor("0123456789012345678901234567890123456789")
	assert.Equal(t, "01234567890123456789012345678901...", long.snippet())
}
