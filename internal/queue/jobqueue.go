package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tasksync/pkg/logger"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("job queue closed")

// Job is one unit of deferred work. It should honour ctx, but once started
// it runs to completion before the next job is taken.
type Job func(ctx context.Context)

type entry struct {
	name string
	job  Job
}

// JobQueue is an unbounded FIFO drained by a single consumer, so at most one
// job executes at any instant. There is no priority and no deduplication.
type JobQueue struct {
	mu     sync.Mutex
	items  []entry
	notify chan struct{}
	closed bool
}

// NewJobQueue returns an empty queue. Start the consumer with Run.
func NewJobQueue() *JobQueue {
	return &JobQueue{notify: make(chan struct{}, 1)}
}

// Enqueue appends a job without blocking.
func (q *JobQueue) Enqueue(name string, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, entry{name: name, job: job})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of jobs waiting (not counting a running one).
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting jobs. Run drains what is already queued, then returns.
func (q *JobQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *JobQueue) next() (entry, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return entry{}, false, q.closed
	}
	e := q.items[0]
	q.items[0] = entry{}
	q.items = q.items[1:]
	return e, true, q.closed
}

// Run consumes jobs one at a time until ctx is cancelled or the queue is
// closed and empty. Call it from exactly one goroutine.
func (q *JobQueue) Run(ctx context.Context) {
	logger.Info(ctx, "Job queue consumer started")
	for {
		e, ok, closed := q.next()
		if !ok {
			if closed {
				logger.Info(ctx, "Job queue drained and closed")
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-q.notify:
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}
		q.execute(ctx, e)
	}
}

func (q *JobQueue) execute(ctx context.Context, e entry) {
	jobCtx := logger.WithJob(ctx, e.name)
	defer func() {
		if r := recover(); r != nil {
			logger.Error(jobCtx, "Job panicked", "panic", fmt.Sprint(r))
		}
	}()
	logger.Debug(jobCtx, "Job started")
	e.job(jobCtx)
	logger.Debug(jobCtx, "Job finished")
}
