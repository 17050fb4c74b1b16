package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/reflink/backend/internal/config"
	"github.com/DeafMist/reflink/backend/internal/logger"
)

type stubPruner struct {
	maxAge    time.Duration
	batchSize int
	deleted   int64
	err       error
}

func (s *stubPruner) DeleteOlderThan(_ context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	s.maxAge, s.batchSize = maxAge, batchSize
	return s.deleted, s.err
}

type stubPinger struct {
	failures int
	calls    int
}

func (s *stubPinger) Ping(context.Context) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestRunOncePassesConfig(t *testing.T) {
	store := &stubPruner{deleted: 7}
	cfg := &config.Retention{MaxAge: 36 * time.Hour, BatchSize: 123}

	deleted := runOnce(context.Background(), logger.Discard(), store, cfg)
	require.EqualValues(t, 7, deleted)
	require.Equal(t, 36*time.Hour, store.maxAge)
	require.Equal(t, 123, store.batchSize)
}

func TestRunOnceSurvivesFailure(t *testing.T) {
	store := &stubPruner{deleted: 2, err: errors.New("timeout")}
	cfg := &config.Retention{MaxAge: time.Hour, BatchSize: 10}

	require.EqualValues(t, 2, runOnce(context.Background(), logger.Discard(), store, cfg))
}

func TestWaitForStoreRetries(t *testing.T) {
	store := &stubPinger{failures: 2}
	require.True(t, waitForStore(context.Background(), logger.Discard(), store, time.Millisecond))
	require.Equal(t, 3, store.calls)
}

func TestWaitForStoreStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &stubPinger{failures: maxConnectAttempts}
	require.False(t, waitForStore(ctx, logger.Discard(), store, time.Hour))
	require.Equal(t, 1, store.calls)
}
