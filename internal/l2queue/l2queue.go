// Package l2queue implements the bounded asynchronous diagnostic job queue:
// non-blocking enqueue under a configurable drop policy, a
// fixed worker pool, retry with a cap, and a wall-clock circuit breaker
// that keeps upstream producers moving during a downstream outage.
//
// The mutex + atomic-counter shape mirrors a token bucket:
// small struct, one mutex guarding the small bit of state
// that needs read-modify-write semantics, atomic.Uint64 counters for the
// metrics that only ever increase.
package l2queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one unit of diagnostic work dispatched to a worker.
type Job struct {
	Site    string
	Asset   string
	Point   string
	Payload any
	retries int
}

// DropPolicy selects what happens when Enqueue is called on a full queue.
type DropPolicy int

const (
	// DropNew discards the job being enqueued, keeping the existing queue
	// contents untouched.
	DropNew DropPolicy = iota
	// DropOldest evicts the head of the queue to make room for the new job.
	DropOldest
)

// WorkerFunc performs the actual diagnostic work for one Job. A non-nil
// error counts as a failure for retry and circuit-breaker accounting.
type WorkerFunc func(ctx context.Context, job Job) error

// Config holds the queue's fixed parameters.
type Config struct {
	Capacity      int
	WorkerCount   int
	MaxRetries    int
	FailThreshold int
	ResetSeconds  int
	DropPolicy    DropPolicy
}

// Queue is the bounded diagnostic job queue.
type Queue struct {
	cfg    Config
	work   WorkerFunc
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	notify chan struct{}

	mu              sync.Mutex
	buf             []Job
	consecutiveFail int
	circuitOpenTil  time.Time

	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a Queue with the given configuration and worker function, and
// starts the worker pool. Capacity, WorkerCount and FailThreshold must all
// be positive; New panics otherwise, a fail-fast-on-misconfiguration
// convention.
func New(cfg Config, work WorkerFunc) *Queue {
	if cfg.Capacity <= 0 {
		panic("l2queue: capacity must be > 0")
	}
	if cfg.WorkerCount <= 0 {
		panic("l2queue: worker_count must be > 0")
	}
	if cfg.FailThreshold <= 0 {
		panic("l2queue: fail_threshold must be > 0")
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		cfg:    cfg,
		work:   work,
		ctx:    ctx,
		cancel: cancel,
		buf:    make([]Job, 0, cfg.Capacity),
		notify: make(chan struct{}, 1),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		q.wg.Add(1)
		go q.workerLoop()
	}
	return q
}

// Enqueue offers job to the queue. Never blocks. Returns true if the job
// was accepted (possibly by evicting another job under DropOldest), false
// if it was dropped outright.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	accepted := false
	if len(q.buf) < q.cfg.Capacity {
		q.buf = append(q.buf, job)
		accepted = true
	} else {
		switch q.cfg.DropPolicy {
		case DropOldest:
			q.buf = append(q.buf[1:], job)
			q.dropped.Add(1)
			accepted = true
		default:
			q.dropped.Add(1)
		}
	}
	if accepted {
		q.wake()
	}
	return accepted
}

// wake signals a worker that new work may be available, without blocking
// if one is already pending.
func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop removes and returns the head of the queue, if any.
func (q *Queue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return Job{}, false
	}
	job := q.buf[0]
	q.buf = q.buf[1:]
	return job, true
}

// requeue re-inserts a retried job using the same drop policy as Enqueue.
func (q *Queue) requeue(job Job) {
	q.Enqueue(job)
}

func (q *Queue) circuitOpen() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return time.Now().Before(q.circuitOpenTil)
}

func (q *Queue) recordSuccess() {
	q.mu.Lock()
	q.consecutiveFail = 0
	q.mu.Unlock()
	q.processed.Add(1)
}

func (q *Queue) recordFailure(job Job) {
	q.failed.Add(1)

	q.mu.Lock()
	q.consecutiveFail++
	tripped := q.consecutiveFail >= q.cfg.FailThreshold
	if tripped {
		q.circuitOpenTil = time.Now().Add(time.Duration(q.cfg.ResetSeconds) * time.Second)
	}
	q.mu.Unlock()

	if job.retries < q.cfg.MaxRetries {
		job.retries++
		q.requeue(job)
		return
	}
	q.dropped.Add(1)
}

// workerLoop is the body run by each of cfg.WorkerCount goroutines. It
// wakes as soon as Enqueue signals new work, falling back to a 1-second
// poll so an idle queue still notices jobs requeued by a sibling worker.
// While the breaker is open, popped jobs are discarded outright (counted
// as dropped) rather than executed — this is what keeps upstream enqueues
// moving during a downstream outage.
func (q *Queue) workerLoop() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.notify:
		case <-time.After(time.Second):
		}

		job, ok := q.pop()
		if !ok {
			continue
		}
		if q.circuitOpen() {
			q.dropped.Add(1)
			continue
		}
		if err := q.work(q.ctx, job); err != nil {
			q.recordFailure(job)
			continue
		}
		q.recordSuccess()
	}
}

// Stop flips the running flag and joins every worker, waiting at most
// timeout before giving up.
func (q *Queue) Stop(timeout time.Duration) {
	q.cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// Stats is a point-in-time snapshot of the queue's metrics, suitable for
// scraping into the observability package's gauges.
type Stats struct {
	Processed   uint64
	Failed      uint64
	Dropped     uint64
	QueueSize   int
	CircuitOpen bool
	Capacity    int
}

// Snapshot returns the current Stats.
func (q *Queue) Snapshot() Stats {
	q.mu.Lock()
	size := len(q.buf)
	open := time.Now().Before(q.circuitOpenTil)
	q.mu.Unlock()

	return Stats{
		Processed:   q.processed.Load(),
		Failed:      q.failed.Load(),
		Dropped:     q.dropped.Load(),
		QueueSize:   size,
		CircuitOpen: open,
		Capacity:    q.cfg.Capacity,
	}
}
