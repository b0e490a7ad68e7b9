package activity

import "github.com/gammazero/workerpool"

// DefaultQueueLimit caps the tasks queued or running on each concern's worker.
const DefaultQueueLimit = 1000

// boundedQueue runs tasks one at a time in submission order. Submit blocks
// while limit tasks are pending, which stalls the gateway reader instead of
// growing memory.
type boundedQueue struct {
	pool  *workerpool.WorkerPool
	slots chan struct{}
}

func newBoundedQueue(limit int) *boundedQueue {
	return &boundedQueue{
		pool:  workerpool.New(1),
		slots: make(chan struct{}, max(limit, 1)),
	}
}

func (q *boundedQueue) Submit(task func()) {
	q.slots <- struct{}{}
	q.pool.Submit(func() {
		defer func() { <-q.slots }()
		task()
	})
}

func (q *boundedQueue) Pending() int {
	return len(q.slots)
}

func (q *boundedQueue) StopWait() {
	q.pool.StopWait()
}
