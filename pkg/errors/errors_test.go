package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataErrorCarriesContext(t *testing.T) {
	err := Data("bad number", "12x", "Number", "(a: 12x)")

	require.NotEmpty(t, err.Stack)
	snippet, ok := err.Detail(DetailSnippet)
	require.True(t, ok)
	assert.Equal(t, "12x", snippet)
	expected, _ := err.Detail(DetailExpectedType)
	assert.Equal(t, "Number", expected)
	text, _ := err.Detail(DetailText)
	assert.Equal(t, "(a: 12x)", text)
}

func TestKindsAreDisjoint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		userData bool
		internal bool
	}{
		{"data", Data("m", "s", "T", "t"), true, false},
		{"internal", Internal("boom"), false, true},
		{"wrapped data", fmt.Errorf("row 2: %w", Data("m", "s", "T", "t")), true, false},
		{"internal under data", Wrap(Internal("boom"), ErrorTypeData, "cell"), false, true},
		{"plain", stderrors.New("plain"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.userData, IsUserData(tt.err))
			assert.Equal(t, tt.internal, IsInternal(tt.err))
		})
	}
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeValidation, "inner")
	outer := Wrap(inner, ErrorTypeConfig, "outer")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, stderrors.Is(outer, inner))
	assert.Nil(t, Wrap(nil, ErrorTypeConfig, "nothing"))
	assert.Equal(t, "config: outer: validation: inner", outer.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeValidation, "duplicate field %q", "x")
	assert.True(t, IsType(err, ErrorTypeValidation))
	assert.Equal(t, `validation: duplicate field "x"`, err.Error())
}
