package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"schedparser/internal/model"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) RunActive(ctx context.Context) ([]model.ParseResult, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return []model.ParseResult{
		model.SuccessResult(1, 2, 0, 0),
		model.FailedResult(2, model.ErrFetchFailure),
	}, nil
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(&countingRunner{}, "not a cron", time.UTC, zap.NewNop())
	err := s.Start(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sync schedule")
	assert.True(t, s.NextRun().IsZero())
}

func TestScheduler_StartStop(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, "0 */2 * * *", time.UTC, zap.NewNop())

	require.NoError(t, s.Start(false))
	assert.Error(t, s.Start(false))

	next := s.NextRun()
	assert.False(t, next.IsZero())
	assert.Zero(t, next.Minute())

	s.Stop()
	s.Stop()
	assert.Zero(t, runner.calls.Load())
}

func TestScheduler_RunNowOnStart(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, "@hourly", time.UTC, zap.NewNop())

	require.NoError(t, s.Start(true))
	defer s.Stop()

	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

// blockingRunner ждет отмены контекста и затем еще немного работает
type blockingRunner struct {
	started  atomic.Bool
	finished atomic.Bool
}

func (r *blockingRunner) RunActive(ctx context.Context) ([]model.ParseResult, error) {
	r.started.Store(true)
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	r.finished.Store(true)
	return nil, ctx.Err()
}

func TestScheduler_StopWaitsForImmediateRun(t *testing.T) {
	runner := &blockingRunner{}
	s := NewScheduler(runner, "@hourly", time.UTC, zap.NewNop())

	require.NoError(t, s.Start(true))
	require.Eventually(t, runner.started.Load, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.True(t, runner.finished.Load())
}

func TestScheduler_RunNow(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, "@daily", nil, zap.NewNop())

	results, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 2)

	runner.err = errors.New("db down")
	_, err = s.RunNow(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestScheduler_SyncLogsFailures(t *testing.T) {
	runner := &countingRunner{err: errors.New("db down")}
	s := NewScheduler(runner, "@daily", nil, zap.NewNop())

	s.sync()
	assert.Equal(t, int32(1), runner.calls.Load())
}
