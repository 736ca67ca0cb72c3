package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesToString(t *testing.T) {
	assert.Equal(t, "hello world", BytesToString([]byte("hello world")))
	assert.Equal(t, "", BytesToString([]byte{}))
}

func TestBuilder(t *testing.T) {
	builder := NewBuilder(32)

	builder.WriteString("hello")
	_ = builder.WriteByte(' ')
	builder.WriteRune('ü')

	assert.Equal(t, "hello ü", builder.String())
	assert.Equal(t, 8, builder.Len())

	builder.Reset()
	assert.Equal(t, 0, builder.Len())
}

func TestPooledBuilders(t *testing.T) {
	for _, size := range []BuilderSize{Small, Medium, Large, BuilderSize(42)} {
		b := GetBuilder(size)
		assert.Equal(t, 0, b.Len())
		b.WriteString("abc")
		PutBuilder(b, size)
	}
	PutBuilder(nil, Small)
}

func TestBuildStringOwnsResult(t *testing.T) {
	first := BuildString(func(b *Builder) { b.WriteString("first") })
	second := BuildString(func(b *Builder) { b.WriteString("other") })

	assert.Equal(t, "first", first)
	assert.Equal(t, "other", second)
}

func TestSprintf(t *testing.T) {
	assert.Equal(t, "plain", Sprintf("plain"))
	assert.Equal(t, "row 3: \"x\"", Sprintf("row %d: %q", 3, "x"))
}
