package fetchclient

import (
	"container/heap"
	"sync"
	"time"

	"feedcore/internal/domain"
)

// Queue orders pending fetch requests by priority then enqueue time, and
// coalesces repeated enqueues for the same node so at most one request per
// subscription is ever in flight.
type Queue struct {
	mu       sync.Mutex
	heap     requestHeap
	inFlight map[domain.NodeID]bool
	pending  map[domain.NodeID]*queuedRequest
	seq      int
}

type queuedRequest struct {
	req       *Request
	enqueued  time.Time
	seq       int
	cancelled bool
}

func NewQueue() *Queue {
	return &Queue{
		inFlight: make(map[domain.NodeID]bool),
		pending:  make(map[domain.NodeID]*queuedRequest),
	}
}

// Enqueue adds req. If a request for the same NodeID is already waiting,
// the new one replaces it in place (coalescing) rather than growing the
// queue.
func (q *Queue) Enqueue(req *Request, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.pending[req.NodeID]; ok {
		existing.req = req
		existing.cancelled = false
		return
	}

	q.seq++
	item := &queuedRequest{req: req, enqueued: now, seq: q.seq}
	q.pending[req.NodeID] = item
	heap.Push(&q.heap, item)
}

// Dequeue pops the next eligible request: highest priority, earliest
// enqueue time, whose subscription has no in-flight request. It returns
// nil if nothing is ready.
func (q *Queue) Dequeue() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.heap.Len() > 0 {
		item := heap.Pop(&q.heap).(*queuedRequest)
		delete(q.pending, item.req.NodeID)
		if item.cancelled {
			continue
		}
		if q.inFlight[item.req.NodeID] {
			// The node already has a request in flight; drop this one.
			continue
		}
		q.inFlight[item.req.NodeID] = true
		return item.req
	}
	return nil
}

// Done marks node's in-flight request complete, allowing its next
// enqueue to be dequeued.
func (q *Queue) Done(node domain.NodeID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, node)
}

// Cancel marks a still-pending (not yet dequeued) request for node as
// cancelled. It is a no-op, not an error, if the request already started
// or does not exist — cancellation is best-effort and idempotent.
func (q *Queue) Cancel(node domain.NodeID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item, ok := q.pending[node]; ok {
		item.cancelled = true
	}
}

func (q *Queue) InFlight(node domain.NodeID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight[node]
}

type requestHeap []*queuedRequest

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority // higher priority first
	}
	if !h[i].enqueued.Equal(h[j].enqueued) {
		return h[i].enqueued.Before(h[j].enqueued)
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x interface{}) {
	*h = append(*h, x.(*queuedRequest))
}

func (h *requestHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
