// Package scheduler drives the periodic tick loop that decides which
// subscriptions are due for an update and hands them to the fetch queue.
package scheduler

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"feedcore/internal/domain"
	"feedcore/internal/fetchclient"
	"feedcore/internal/tree"

	"golang.org/x/time/rate"
)

// Config holds the process-global scheduling knobs left to the host.
type Config struct {
	// DefaultUpdateIntervalMinutes backs update_interval == -1 when a
	// subscription has no positive default_update_interval of its own.
	DefaultUpdateIntervalMinutes int

	// BackoffCeilingMinutes caps exponential backoff after repeated
	// failures.
	BackoffCeilingMinutes int

	// TickInterval is how often the scheduler re-scans the tree.
	TickInterval time.Duration

	// FaviconRefreshInterval is how often a feed's favicon is eligible
	// for a re-poll, independent of its article update interval.
	FaviconRefreshInterval time.Duration

	// EnqueueRatePerSecond bounds how fast due subscriptions are handed
	// to the fetch queue, smoothing out a tick that finds many
	// subscriptions due at once.
	EnqueueRatePerSecond float64
}

func DefaultConfig() Config {
	return Config{
		DefaultUpdateIntervalMinutes: 60,
		BackoffCeilingMinutes:        240,
		TickInterval:                 10 * time.Second,
		FaviconRefreshInterval:       7 * 24 * time.Hour,
		EnqueueRatePerSecond:         5,
	}
}

// Scheduler walks the tree every tick and enqueues due subscriptions.
type Scheduler struct {
	cfg     Config
	tree    *tree.Tree
	queue   *fetchclient.Queue
	limiter *rate.Limiter
	offline atomic.Bool
	now     func() time.Time
}

func New(cfg Config, t *tree.Tree, q *fetchclient.Queue) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		tree:    t,
		queue:   q,
		limiter: rate.NewLimiter(rate.Limit(cfg.EnqueueRatePerSecond), 1),
		now:     time.Now,
	}
}

// SetOffline toggles the global offline flag. Already in-flight
// requests proceed; only new network enqueues are inhibited.
func (s *Scheduler) SetOffline(offline bool) {
	s.offline.Store(offline)
}

func (s *Scheduler) Offline() bool {
	return s.offline.Load()
}

// TickInterval exposes the configured scan period so collaborators (the
// node-source tick loop) can share its cadence instead of inventing
// their own.
func (s *Scheduler) TickInterval() time.Duration {
	return s.cfg.TickInterval
}

// Run starts the tick loop; it blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick scans every feed-kind node once and enqueues those that are due.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	root := s.tree.Root()
	_ = s.tree.ForeachChild(root.ID, func(n *domain.Node) {
		if n.Kind != domain.NodeKindFeed || n.Subscription == nil {
			return
		}
		s.considerNode(ctx, n, now)
	})
}

func (s *Scheduler) considerNode(ctx context.Context, n *domain.Node, now time.Time) {
	sub := n.Subscription
	if !s.due(sub, now) {
		return
	}
	if s.offline.Load() && isNetworkSource(sub.SourceType) {
		return
	}
	if !s.limiter.Allow() {
		return
	}
	s.enqueue(n, sub, fetchclient.PriorityScheduled)
}

func (s *Scheduler) due(sub *domain.Subscription, now time.Time) bool {
	if sub.InFlight {
		return false
	}
	if !sub.DueForAutoUpdate() {
		return false
	}
	return !sub.NextDue.After(now)
}

func isNetworkSource(t domain.SourceType) bool {
	return t == domain.SourceTypeHTTP || t == domain.SourceTypeNodeSourceFeed
}

func (s *Scheduler) enqueue(n *domain.Node, sub *domain.Subscription, prio fetchclient.Priority) {
	sub.InFlight = true
	s.queue.Enqueue(&fetchclient.Request{
		NodeID:     n.ID,
		Source:     sub.SourceURL,
		SourceType: sub.SourceType,
		Options:    sub.UpdateOptions,
		State:      sub.UpdateState,
		FilterCmd:  sub.FilterCmd,
		Priority:   prio,
	}, s.now())
}

// RefreshNow bypasses due-ness but still respects in-flight coalescing.
func (s *Scheduler) RefreshNow(n *domain.Node) {
	if n.Subscription == nil {
		return
	}
	s.enqueue(n, n.Subscription, fetchclient.PriorityInteractive)
}

// OnSuccess resets backoff and computes the next due time from the
// subscription's effective interval.
func (s *Scheduler) OnSuccess(sub *domain.Subscription) {
	sub.InFlight = false
	sub.ConsecutiveFailures = 0
	sub.UpdateError = ""
	sub.HTTPErrorCode = 0
	interval := sub.EffectiveIntervalMinutes(s.cfg.DefaultUpdateIntervalMinutes)
	if interval <= 0 {
		sub.NextDue = time.Time{}
		return
	}
	sub.NextDue = s.now().Add(time.Duration(interval) * time.Minute)
}

// OnFailure increments the failure count and applies exponential backoff
// bounded by BackoffCeilingMinutes.
func (s *Scheduler) OnFailure(sub *domain.Subscription, errMsg string) {
	sub.InFlight = false
	sub.ConsecutiveFailures++
	sub.UpdateError = errMsg

	backoff := time.Duration(math.Pow(2, float64(sub.ConsecutiveFailures))) * time.Minute
	ceiling := time.Duration(s.cfg.BackoffCeilingMinutes) * time.Minute
	if backoff > ceiling {
		backoff = ceiling
	}
	sub.NextDue = s.now().Add(backoff)
}

// FaviconDue reports whether node's favicon is eligible for a re-poll,
// on its own cadence independent of the feed's article update interval.
func (s *Scheduler) FaviconDue(n *domain.Node, now time.Time) bool {
	if n.Subscription == nil {
		return false
	}
	last := n.Subscription.UpdateState.LastFaviconPollTS
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= s.cfg.FaviconRefreshInterval
}
