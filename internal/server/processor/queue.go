package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reverc/internal/server/artifact"
	"reverc/internal/server/metrics"
)

var (
	ErrQueueFull    = errors.New("pipeline queue is full")
	ErrShuttingDown = errors.New("pipeline is shutting down")
)

// Job is one pipeline run for an uploaded artifact
type Job struct {
	Ref      artifact.Ref
	Enqueued time.Time
}

// JobQueue runs jobs on a fixed worker pool over a buffered channel.
// The channel is never closed; workers exit on context cancellation, so a
// late Submit cannot panic.
type JobQueue struct {
	tasks   chan Job
	workers int
	handle  func(context.Context, Job)
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

// NewJobQueue creates and starts a queue with the given worker count and
// capacity
func NewJobQueue(workerCount, capacity int, handle func(context.Context, Job), logger zerolog.Logger) *JobQueue {
	if workerCount < 1 {
		workerCount = 4
	}
	if capacity < 1 {
		capacity = 256
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &JobQueue{
		tasks:   make(chan Job, capacity),
		workers: workerCount,
		handle:  handle,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}

	q.start()
	return q
}

func (q *JobQueue) start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

func (q *JobQueue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.tasks:
			metrics.QueueDepth.Set(float64(len(q.tasks)))
			metrics.ActiveWorkers.Inc()
			q.run(id, job)
			metrics.ActiveWorkers.Dec()
		}
	}
}

// run isolates a panicking job so the worker survives
func (q *JobQueue) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Int("worker", id).Str("ref", job.Ref.String()).Interface("panic", r).Msg("job panicked")
		}
	}()
	q.handle(q.ctx, job)
}

// Submit enqueues without blocking
func (q *JobQueue) Submit(job Job) error {
	if q.ctx.Err() != nil {
		return ErrShuttingDown
	}
	select {
	case q.tasks <- job:
		metrics.QueueDepth.Set(float64(len(q.tasks)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Len is the number of queued jobs not yet picked up
func (q *JobQueue) Len() int {
	return len(q.tasks)
}

// Shutdown stops the workers. Queued jobs that were not started are
// dropped; their statuses stay non-terminal until the janitor sweeps them.
func (q *JobQueue) Shutdown(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if n := len(q.tasks); n > 0 {
			q.logger.Warn().Int("dropped", n).Msg("pipeline stopped with queued jobs")
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
