package job

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"

	"github.com/ringjobs/ringjobs/ring"
)

// pendingQueue is the per-peer FIFO of pending job ids (spec §4.6:
// "Workers pull from a per-peer FIFO queue of Pending job ids"), backed by
// gods' linked-list queue instead of a hand-rolled ring buffer.
type pendingQueue struct {
	mu       sync.Mutex
	q        *linkedlistqueue.Queue
	inFlight map[string]struct{} // jobID hex already queued or running, dedup guard
	wake     chan struct{}
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{
		q:        linkedlistqueue.New(),
		inFlight: make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

func (pq *pendingQueue) len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.q.Size()
}

// tryEnqueue adds id if it isn't already queued/running and the queue is
// under highWaterMark. enqueued reports whether this call is the one that
// queued it; duplicate reports whether another in-flight submission of the
// same id already claimed it (a safe no-op for the caller, not an
// overload). Neither set means the queue is at its high-water mark.
func (pq *pendingQueue) tryEnqueue(id ring.ID, highWaterMark int) (enqueued, duplicate bool) {
	key := id.String()
	pq.mu.Lock()
	if _, dup := pq.inFlight[key]; dup {
		pq.mu.Unlock()
		return false, true
	}
	if highWaterMark > 0 && pq.q.Size() >= highWaterMark {
		pq.mu.Unlock()
		return false, false
	}
	pq.inFlight[key] = struct{}{}
	pq.q.Enqueue(id)
	pq.mu.Unlock()

	select {
	case pq.wake <- struct{}{}:
	default:
	}
	return true, false
}

// dequeue pops the next id, if any. The id stays marked in-flight until
// done is called, so a re-submit of the same job while it runs is rejected
// as a duplicate rather than queued twice.
func (pq *pendingQueue) dequeue() (ring.ID, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	v, ok := pq.q.Dequeue()
	if !ok {
		return nil, false
	}
	return v.(ring.ID), true
}

// done clears the in-flight marker for id once execution finishes.
func (pq *pendingQueue) done(id ring.ID) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	delete(pq.inFlight, id.String())
}
