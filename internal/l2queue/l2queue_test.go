package l2queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solusimicro/vibralyzer/internal/l2queue"
)

func TestEnqueue_NeverExceedsCapacity(t *testing.T) {
	block := make(chan struct{})
	q := l2queue.New(l2queue.Config{
		Capacity: 2, WorkerCount: 1, MaxRetries: 0, FailThreshold: 100, ResetSeconds: 1,
		DropPolicy: l2queue.DropNew,
	}, func(ctx context.Context, j l2queue.Job) error {
		<-block // hold the single worker busy so the queue actually fills
		return nil
	})
	defer func() { close(block); q.Stop(time.Second) }()

	accepted := 0
	for i := 0; i < 10; i++ {
		if q.Enqueue(l2queue.Job{Asset: "a1", Point: "p1"}) {
			accepted++
		}
	}
	snap := q.Snapshot()
	if snap.QueueSize > 2 {
		t.Fatalf("queue size %d exceeds capacity 2", snap.QueueSize)
	}
	if accepted > 3 { // 1 picked up by the worker immediately + 2 buffered
		t.Fatalf("accepted too many jobs: %d", accepted)
	}
}

func TestEnqueue_DropOldestEvictsHead(t *testing.T) {
	block := make(chan struct{})
	q := l2queue.New(l2queue.Config{
		Capacity: 2, WorkerCount: 1, MaxRetries: 0, FailThreshold: 100, ResetSeconds: 1,
		DropPolicy: l2queue.DropOldest,
	}, func(ctx context.Context, j l2queue.Job) error {
		<-block
		return nil
	})
	defer func() { close(block); q.Stop(time.Second) }()

	q.Enqueue(l2queue.Job{Point: "picked-up"}) // claimed by the worker, buffer empties
	time.Sleep(50 * time.Millisecond)
	q.Enqueue(l2queue.Job{Point: "oldest"})
	q.Enqueue(l2queue.Job{Point: "newest"})
	if ok := q.Enqueue(l2queue.Job{Point: "evicts-oldest"}); !ok {
		t.Fatal("expected drop_oldest enqueue to report accepted")
	}
	if q.Snapshot().Dropped == 0 {
		t.Fatal("expected eviction to count toward jobs_dropped")
	}
}

func TestEnqueue_DropNewRejectsWhenFull(t *testing.T) {
	var processed atomic.Int32
	block := make(chan struct{})
	q := l2queue.New(l2queue.Config{
		Capacity: 1, WorkerCount: 1, MaxRetries: 0, FailThreshold: 100, ResetSeconds: 1,
		DropPolicy: l2queue.DropNew,
	}, func(ctx context.Context, j l2queue.Job) error {
		processed.Add(1)
		<-block
		return nil
	})
	defer func() { close(block); q.Stop(time.Second) }()

	q.Enqueue(l2queue.Job{}) // picked up by the worker almost immediately
	time.Sleep(50 * time.Millisecond)
	q.Enqueue(l2queue.Job{}) // fills the now-empty buffer
	ok := q.Enqueue(l2queue.Job{})
	if ok {
		t.Fatal("expected third enqueue to be dropped under drop_new")
	}
	if q.Snapshot().Dropped == 0 {
		t.Fatal("expected jobs_dropped to increment")
	}
}

func TestQueue_DrainsAndBreakerOpens(t *testing.T) {
	alwaysFail := func(ctx context.Context, j l2queue.Job) error {
		return errors.New("diagnostic worker unavailable")
	}
	q := l2queue.New(l2queue.Config{
		Capacity: 2, WorkerCount: 1, MaxRetries: 1, FailThreshold: 3, ResetSeconds: 10,
		DropPolicy: l2queue.DropNew,
	}, alwaysFail)
	defer q.Stop(time.Second)

	for i := 0; i < 5; i++ {
		q.Enqueue(l2queue.Job{Asset: "a1", Point: "p1"})
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if q.Snapshot().QueueSize == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := q.Snapshot()
	if snap.QueueSize != 0 {
		t.Fatalf("expected queue to drain to empty, size=%d", snap.QueueSize)
	}
	if snap.Failed < 3 {
		t.Fatalf("expected jobs_failed >= 3, got %d", snap.Failed)
	}
	if !snap.CircuitOpen {
		t.Fatal("expected breaker to be open")
	}

	// Enqueue during the open window; the worker should discard it as
	// dropped-on-execute rather than run it.
	q.Enqueue(l2queue.Job{Asset: "a1", Point: "p1"})
	before := snap.Dropped
	time.Sleep(100 * time.Millisecond)
	if q.Snapshot().Dropped <= before {
		t.Fatal("expected enqueue during open breaker window to be dropped on execute")
	}
}
