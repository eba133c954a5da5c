package fetchclient

import (
	"testing"
	"time"

	"feedcore/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestQueueOrdersByPriorityThenTime(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	q.Enqueue(&Request{NodeID: "a", Priority: PriorityScheduled}, now)
	q.Enqueue(&Request{NodeID: "b", Priority: PriorityInteractive}, now.Add(time.Second))
	q.Enqueue(&Request{NodeID: "c", Priority: PriorityBackground}, now)

	require.Equal(t, domain.NodeID("b"), q.Dequeue().NodeID)
	require.Equal(t, domain.NodeID("a"), q.Dequeue().NodeID)
	require.Equal(t, domain.NodeID("c"), q.Dequeue().NodeID)
	require.Nil(t, q.Dequeue())
}

func TestQueueCoalescesRepeatedEnqueue(t *testing.T) {
	q := NewQueue()
	now := time.Now()
	q.Enqueue(&Request{NodeID: "a", Source: "first"}, now)
	q.Enqueue(&Request{NodeID: "a", Source: "second"}, now.Add(time.Second))

	req := q.Dequeue()
	require.Equal(t, "second", req.Source)
	require.Nil(t, q.Dequeue())
}

func TestQueueSkipsInFlightSubscription(t *testing.T) {
	q := NewQueue()
	now := time.Now()
	q.Enqueue(&Request{NodeID: "a"}, now)
	req := q.Dequeue()
	require.NotNil(t, req)
	require.True(t, q.InFlight("a"))

	q.Enqueue(&Request{NodeID: "a"}, now.Add(time.Second))
	require.Nil(t, q.Dequeue(), "in-flight subscription must not be dequeued twice")

	q.Done("a")
	require.False(t, q.InFlight("a"))
}

func TestQueueCancelIsIdempotent(t *testing.T) {
	q := NewQueue()
	now := time.Now()
	q.Enqueue(&Request{NodeID: "a"}, now)
	q.Cancel("a")
	q.Cancel("a") // must not panic or error
	require.Nil(t, q.Dequeue())
}
