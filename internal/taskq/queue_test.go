package taskq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/types"
)

func testQueue(t *testing.T, cfg config.WorkerConfig) *Queue {
	t.Helper()
	q := New(cfg, zap.NewNop())
	t.Cleanup(q.Close)
	return q
}

func TestQueueRunsTasks(t *testing.T) {
	q := testQueue(t, config.WorkerConfig{Workers: 2, QueueSize: 8})

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		err := q.Submit(Task{Kind: "tag", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return ran.Load() == 5 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return q.Stats().Completed == 5 }, time.Second, 5*time.Millisecond)
}

func TestQueueRetriesRetryable(t *testing.T) {
	q := testQueue(t, config.WorkerConfig{
		Workers: 1, QueueSize: 4, MaxRetries: 2, RetryBackoff: time.Millisecond,
	})

	var calls atomic.Int32
	require.NoError(t, q.Submit(Task{Kind: "crm", Run: func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return types.NewError(types.ErrCollaborator, "timeout").WithRetryable(true)
		}
		return nil
	}}))

	assert.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	stats := q.Stats()
	assert.EqualValues(t, 1, stats.Completed)
	assert.EqualValues(t, 2, stats.Retried)
	assert.EqualValues(t, 0, stats.Failed)
}

func TestQueueNonRetryableFailsOnce(t *testing.T) {
	q := testQueue(t, config.WorkerConfig{
		Workers: 1, QueueSize: 4, MaxRetries: 3, RetryBackoff: time.Millisecond,
	})

	var calls atomic.Int32
	require.NoError(t, q.Submit(Task{Kind: "crm", Run: func(ctx context.Context) error {
		calls.Add(1)
		return types.NewError(types.ErrInvalidRequest, "bad tag")
	}}))

	assert.Eventually(t, func() bool { return q.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestQueuePanicIsolated(t *testing.T) {
	q := testQueue(t, config.WorkerConfig{Workers: 1, QueueSize: 4})

	require.NoError(t, q.Submit(Task{Kind: "boom", Run: func(ctx context.Context) error {
		panic("boom")
	}}))

	var ran atomic.Bool
	require.NoError(t, q.Submit(Task{Kind: "after", Run: func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}}))

	assert.Eventually(t, func() bool { return ran.Load() }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, q.Stats().Failed)
}

func TestQueueFullRejects(t *testing.T) {
	q := New(config.WorkerConfig{Workers: 1, QueueSize: 1}, zap.NewNop())
	defer q.Close()

	block := make(chan struct{})
	_ = q.Submit(Task{Kind: "slow", Run: func(ctx context.Context) error {
		<-block
		return nil
	}})

	// Fill the buffer, then overflow it.
	var sawFull bool
	for i := 0; i < 4; i++ {
		if err := q.Submit(Task{Kind: "n", Run: func(ctx context.Context) error { return nil }}); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			sawFull = true
			break
		}
	}
	close(block)
	assert.True(t, sawFull)
}

// Submitters racing Close must land on ErrQueueClosed, never a send to a
// closed channel.
func TestQueueSubmitDuringClose(t *testing.T) {
	q := New(config.WorkerConfig{Workers: 2, QueueSize: 4}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := q.Submit(Task{Kind: "noop", Run: func(ctx context.Context) error { return nil }})
				if errors.Is(err, ErrQueueClosed) {
					return
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
}

func TestQueueClosedRejects(t *testing.T) {
	q := New(config.WorkerConfig{Workers: 1, QueueSize: 1}, zap.NewNop())
	q.Close()

	err := q.Submit(Task{Kind: "late", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
