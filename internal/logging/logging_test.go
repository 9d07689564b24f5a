package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDRoundTrip(t *testing.T) {
	_, ok := IDFromContext(context.Background())
	require.False(t, ok)

	ctx := NewContextWithID(context.Background(), "abc")
	id, ok := IDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "abc", id)
}

func TestWithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	WithContext(NewContextWithID(context.Background(), "req-1"), logger).Info("hello")
	WithContext(context.Background(), logger).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	_, present := entries[1].ContextMap()["request_id"]
	require.False(t, present)
}

func TestNewPicksLevelByEnvironment(t *testing.T) {
	dev, err := New(true)
	require.NoError(t, err)
	require.True(t, dev.Core().Enabled(zap.DebugLevel))

	prod, err := New(false)
	require.NoError(t, err)
	require.False(t, prod.Core().Enabled(zap.DebugLevel))
	require.True(t, prod.Core().Enabled(zap.InfoLevel))
}
