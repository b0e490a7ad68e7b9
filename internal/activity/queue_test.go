package activity

import (
	"sync"
	"testing"
	"time"
)

func TestBoundedQueue_SubmitBlocksWhenFull(t *testing.T) {
	q := newBoundedQueue(2)
	gate := make(chan struct{})
	q.Submit(func() { <-gate })
	q.Submit(func() {})

	submitted := make(chan struct{})
	go func() {
		q.Submit(func() {})
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("expected submit to block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}
	if q.Pending() != 2 {
		t.Fatalf("expected two pending tasks, got %d", q.Pending())
	}

	close(gate)
	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("expected submit to resume once the worker drained")
	}
	q.StopWait()
	if q.Pending() != 0 {
		t.Fatalf("expected empty queue after stop, got %d", q.Pending())
	}
}

func TestBoundedQueue_RunsInSubmissionOrder(t *testing.T) {
	q := newBoundedQueue(3)
	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.StopWait()

	if len(got) != 50 {
		t.Fatalf("expected 50 tasks to run, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected submission order, task %d ran as %d", v, i)
		}
	}
}
