package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "loud", Encoding: "json"})
	require.Error(t, err)
}

func TestWithContextAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))

	ctx := WithValue(context.Background(), TableKey, "sales")
	ctx = WithValue(ctx, OperationKey, "load_csv")
	WithContext(ctx).Info("loaded")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "sales", fields["table"])
	assert.Equal(t, "load_csv", fields["operation"])
	assert.NotContains(t, fields, "source")
}
