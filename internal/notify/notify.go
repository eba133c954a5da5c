// Package notify delivers the "new items" egress signal to an arbitrary
// set of sinks: a desktop tray icon, a webhook, or a test recorder. Each
// signal carries a per-node new-item count rather than individual
// article payloads.
package notify

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"feedcore/internal/domain"
	"feedcore/internal/resilience/circuitbreaker"

	"golang.org/x/time/rate"
)

// Event is one "new items" signal.
type Event struct {
	Node  domain.NodeID
	Title string
	Delta int
	Time  time.Time
}

// Sink delivers Events somewhere: a GUI tray badge, a Slack/Discord
// webhook, a log line. Implementations should be quick; Hub already
// serializes delivery and applies rate limiting and circuit breaking
// around Send.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Hub is a FIFO event queue drained by a single dispatcher goroutine, so
// sinks see events in the order merges actually happened, matching the
// concurrency model's ordering guarantee for GUI signals.
type Hub struct {
	mu      sync.Mutex
	queue   *list.List
	notEmpty chan struct{}

	sinks   []Sink
	limiter *rate.Limiter
	log     *slog.Logger

	breakers map[string]*circuitbreaker.CircuitBreaker
}

// NewHub builds a Hub dispatching to sinks, rate limited at
// eventsPerSecond with a burst of one, matching a typical webhook's own
// one-message-per-second rate limit.
func NewHub(sinks []Sink, eventsPerSecond float64, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		queue:    list.New(),
		notEmpty: make(chan struct{}, 1),
		sinks:    sinks,
		limiter:  rate.NewLimiter(rate.Limit(eventsPerSecond), 1),
		log:      log,
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
	}
	for _, s := range sinks {
		h.breakers[s.Name()] = circuitbreaker.New(circuitbreaker.FeedFetchConfig())
	}
	return h
}

// NotifyNewItems implements control.NewItemsNotifier: it enqueues an
// Event and returns immediately, never blocking the control loop on
// sink I/O.
func (h *Hub) NotifyNewItems(node domain.NodeID, delta int) {
	h.Enqueue(Event{Node: node, Delta: delta, Time: time.Now()})
}

// Enqueue appends ev to the FIFO queue, waking the dispatcher.
func (h *Hub) Enqueue(ev Event) {
	h.mu.Lock()
	h.queue.PushBack(ev)
	h.mu.Unlock()

	select {
	case h.notEmpty <- struct{}{}:
	default:
	}
}

func (h *Hub) dequeue() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	front := h.queue.Front()
	if front == nil {
		return Event{}, false
	}
	h.queue.Remove(front)
	return front.Value.(Event), true
}

// Run drains the queue in FIFO order until ctx is cancelled, fanning
// each event out to every sink.
func (h *Hub) Run(ctx context.Context) {
	for {
		ev, ok := h.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-h.notEmpty:
				continue
			}
		}
		if err := h.limiter.Wait(ctx); err != nil {
			return
		}
		h.dispatch(ctx, ev)
	}
}

func (h *Hub) dispatch(ctx context.Context, ev Event) {
	for _, sink := range h.sinks {
		breaker := h.breakers[sink.Name()]
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, sink.Send(ctx, ev)
		})
		if err != nil {
			h.log.Warn("notify sink delivery failed",
				slog.String("sink", sink.Name()),
				slog.String("node", string(ev.Node)),
				slog.Any("error", err))
		}
	}
}
