package taskq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/types"
)

var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// Task is one side effect. Kind labels it for logs and metrics.
type Task struct {
	Kind string
	Run  func(ctx context.Context) error
}

// Queue is a bounded side-effect queue consumed by a fixed worker set.
// Retryable failures (collaborator timeouts) are retried with backoff;
// everything else is logged and dropped so one bad task cannot wedge
// the queue.
type Queue struct {
	tasks   chan Task
	cfg     config.WorkerConfig
	logger  *zap.Logger
	wg      sync.WaitGroup
	pending atomic.Int64

	// mu orders Submit's send against Close's channel close.
	mu     sync.RWMutex
	closed bool

	// Counters for tests and the stats endpoint.
	submitted atomic.Int64
	completed atomic.Int64
	retried   atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	onDepth func(int)
}

// New creates a queue and starts its workers.
func New(cfg config.WorkerConfig, logger *zap.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	q := &Queue{
		tasks:  make(chan Task, cfg.QueueSize),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "taskq")),
	}

	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// OnDepth registers a callback invoked with the queue depth after every
// submit and completion. Used to publish the depth gauge.
func (q *Queue) OnDepth(fn func(int)) {
	q.onDepth = fn
}

// Submit enqueues a task without blocking. Returns ErrQueueFull when the
// queue is at capacity; the caller decides whether that is fatal.
func (q *Queue) Submit(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		q.submitted.Add(1)
		q.notifyDepth(q.pending.Add(1))
		return nil
	default:
		q.rejected.Add(1)
		q.logger.Warn("side-effect queue full, task rejected", zap.String("kind", task.Kind))
		return ErrQueueFull
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for task := range q.tasks {
		q.runTask(task)
		q.notifyDepth(q.pending.Add(-1))
	}
}

func (q *Queue) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.failed.Add(1)
			q.logger.Error("side effect panicked",
				zap.String("kind", task.Kind),
				zap.Any("panic", r),
			)
		}
	}()

	var lastErr error
	for attempt := 0; attempt <= q.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			q.retried.Add(1)
			time.Sleep(q.cfg.RetryBackoff)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = task.Run(ctx)
		cancel()

		if lastErr == nil {
			q.completed.Add(1)
			return
		}
		if !types.IsRetryable(lastErr) {
			break
		}
	}

	q.failed.Add(1)
	q.logger.Error("side effect failed",
		zap.String("kind", task.Kind),
		zap.Error(lastErr),
	)
}

func (q *Queue) notifyDepth(n int64) {
	if q.onDepth != nil {
		q.onDepth(int(n))
	}
}

// Stats reports queue counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Retried   int64 `json:"retried"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
	Pending   int64 `json:"pending"`
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Completed: q.completed.Load(),
		Retried:   q.retried.Load(),
		Failed:    q.failed.Load(),
		Rejected:  q.rejected.Load(),
		Pending:   q.pending.Load(),
	}
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.wg.Wait()
}
