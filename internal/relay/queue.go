package relay

import (
	"sync"

	"github.com/roach88/contextsync/internal/replica"
)

// updateQueue is an unbounded FIFO of local updates waiting to be written.
//
// Document observers enqueue from whatever goroutine ran the transaction and
// must never block, so the queue grows instead of applying backpressure. The
// provider's write loop is the only consumer.
type updateQueue struct {
	mu      sync.Mutex
	updates []replica.Update
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{
		updates: make([]replica.Update, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends u. Returns false once the queue is closed.
func (q *updateQueue) Enqueue(u replica.Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.updates = append(q.updates, u)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the oldest update without blocking.
func (q *updateQueue) TryDequeue() (replica.Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.updates) == 0 {
		return replica.Update{}, false
	}
	u := q.updates[0]
	q.updates[0] = replica.Update{}
	if len(q.updates) == 1 {
		q.updates = q.updates[:0]
	} else {
		q.updates = q.updates[1:]
	}
	return u, true
}

// Drain discards everything queued and returns how many updates it dropped.
// Called before a fresh sync-step-1, which already covers them.
func (q *updateQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.updates)
	clear(q.updates)
	q.updates = q.updates[:0]
	return n
}

// Wait returns a channel that receives when updates may be available.
func (q *updateQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *updateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.updates)
}

// Close wakes all waiters. Further enqueues are rejected.
func (q *updateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
