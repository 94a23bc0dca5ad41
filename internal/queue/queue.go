// Package queue implements the bootstrap request queue: a bounded
// multiset of block requests drained by a fixed number of workers, with
// a completion barrier that releases once every worker has reported done.
package queue

import (
	"sync"

	"github.com/parity-mesh/paritynode/internal/wire"
)

// Queue hands out wire.BlockRequest values to a fixed number of workers
// and tracks, via a single lock and condition variable, whether the
// barrier of W workers reporting done has been reached.
//
// A request is at all times pending (in q.pending), in flight with
// exactly one worker (removed from q.pending, not yet requeued or
// completed), or completed (simply dropped once a worker has written its
// bytes into the store — the queue itself does not track completed
// requests, only pending ones).
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending []wire.BlockRequest

	workers   int
	remaining int
}

// New constructs a Queue preloaded with reqs, expecting exactly workers
// calls to MarkWorkerDone before the barrier releases.
func New(reqs []wire.BlockRequest, workers int) *Queue {
	q := &Queue{
		pending:   append([]wire.BlockRequest(nil), reqs...),
		workers:   workers,
		remaining: workers,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Take atomically removes and returns one pending request, or reports ok
// == false when the queue has no more pending requests to hand out. Take
// never blocks: an empty queue simply means this worker has nothing left
// to do and should call MarkWorkerDone.
func (q *Queue) Take() (req wire.BlockRequest, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return wire.BlockRequest{}, false
	}
	req = q.pending[0]
	q.pending = q.pending[1:]
	return req, true
}

// Requeue pushes a request back to the tail of the pending list. Used
// when a worker's peer connection broke while the request was in flight.
func (q *Queue) Requeue(req wire.BlockRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, req)
}

// MarkWorkerDone records that one worker has exited. Once all workers
// registered at construction have reported done, the barrier releases
// and any goroutine blocked in Await wakes up.
func (q *Queue) MarkWorkerDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remaining--
	if q.remaining <= 0 {
		q.cond.Broadcast()
	}
}

// Await blocks until every worker has called MarkWorkerDone.
func (q *Queue) Await() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.remaining > 0 {
		q.cond.Wait()
	}
}

// IsComplete reports whether the barrier has released with no requests
// left pending. A non-empty pending list after every worker has exited
// means at least one peer failed to serve its share and no other worker
// picked it back up before also exiting — bootstrap has failed.
func (q *Queue) IsComplete() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining <= 0 && len(q.pending) == 0
}

// Len reports the number of requests currently pending. Exposed for
// metrics/observability only.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
