package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePruner struct {
	calls     atomic.Int32
	retention atomic.Int64
	err       error
}

func (f *fakePruner) PruneDispatched(_ context.Context, olderThan time.Duration) (int64, error) {
	f.calls.Add(1)
	f.retention.Store(int64(olderThan))
	return 3, f.err
}

func TestPruneDispatchedChanges(t *testing.T) {
	app := &application{logger: zap.NewNop().Sugar()}

	t.Run("prunes at start and on each tick", func(t *testing.T) {
		p := &fakePruner{}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- app.pruneDispatchedChanges(ctx, p, 48*time.Hour, 10*time.Millisecond) }()

		require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		cancel()
		assert.NoError(t, <-done)
		assert.Equal(t, int64(48*time.Hour), p.retention.Load())
	})

	t.Run("errors do not stop the loop", func(t *testing.T) {
		p := &fakePruner{err: errors.New("deadlock detected")}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- app.pruneDispatchedChanges(ctx, p, time.Hour, 10*time.Millisecond) }()

		require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		cancel()
		assert.NoError(t, <-done)
	})
}
