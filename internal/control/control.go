// Package control implements the single-threaded cooperative control loop:
// scheduler ticks, parser dispatch, and merge happen on this goroutine;
// the fetch client's HTTP/file/cmd I/O runs on a separate worker pool
// that reports back via typed completion messages, so the control loop
// itself never blocks on I/O.
package control

import (
	"context"
	"log/slog"
	"time"

	"feedcore/internal/domain"
	"feedcore/internal/fetchclient"
	"feedcore/internal/guidindex"
	"feedcore/internal/merge"
	"feedcore/internal/nodesource"
	"feedcore/internal/observability/tracing"
	"feedcore/internal/parser"
	"feedcore/internal/persist/layout"
	"feedcore/internal/scheduler"
	"feedcore/internal/store"
	"feedcore/internal/tree"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// NewItemsNotifier is the egress hook the control loop calls after a
// successful merge adds items, decoupling it from any one delivery
// mechanism (internal/notify implements this for the desktop case).
type NewItemsNotifier interface {
	NotifyNewItems(node domain.NodeID, delta int)
}

// completion is what a worker posts back to the control loop once a
// fetch finishes.
type completion struct {
	req *fetchclient.Request
	res *fetchclient.Result
	err error
}

// faviconCompletion is posted back to the control loop once a favicon
// poll finishes, so LastFaviconPollTS is only ever mutated on the
// control-loop goroutine.
type faviconCompletion struct {
	node domain.NodeID
	err  error
}

// Controller hosts the control-channel RPC surface and owns every
// control-loop-exclusive resource: the tree, item store, GUID index,
// and scheduler.
type Controller struct {
	Tree  *tree.Tree
	Store store.ItemStore

	idx      *guidindex.Index
	queue    *fetchclient.Queue
	client   *fetchclient.Client
	sched    *scheduler.Scheduler
	favicons *scheduler.FaviconFetcher
	notifier NewItemsNotifier
	log      *slog.Logger

	sources map[domain.NodeID]*nodesource.Source

	completions        chan completion
	faviconCompletions chan faviconCompletion
	workers            int
}

// New builds a Controller. workers is the size of the I/O worker pool.
// dirs locates the favicon cache; pass its zero value to disable favicon
// polling (e.g. in tests that don't exercise the filesystem).
func New(t *tree.Tree, st store.ItemStore, idx *guidindex.Index, queue *fetchclient.Queue, client *fetchclient.Client, sched *scheduler.Scheduler, dirs layout.Dirs, notifier NewItemsNotifier, workers int, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Controller{
		Tree:               t,
		Store:              st,
		idx:                idx,
		queue:              queue,
		client:             client,
		sched:              sched,
		favicons:           scheduler.NewFaviconFetcher(client, dirs),
		notifier:           notifier,
		log:                log,
		sources:            make(map[domain.NodeID]*nodesource.Source),
		completions:        make(chan completion, 64),
		faviconCompletions: make(chan faviconCompletion, 16),
		workers:            workers,
	}
}

// RegisterSource binds a running remote node-source instance to its
// source-root node, so the control loop ticks its state machine
// alongside the ordinary scheduler.
func (c *Controller) RegisterSource(node domain.NodeID, src *nodesource.Source) {
	c.sources[node] = src
}

// Run drives the scheduler, the I/O worker pool, and the node-source tick
// loop until ctx is cancelled. It blocks; callers typically run it in its
// own goroutine from cmd/feedctl's main.
func (c *Controller) Run(ctx context.Context) {
	go c.sched.Run(ctx)
	for i := 0; i < c.workers; i++ {
		go c.worker(ctx)
	}
	go c.tickSources(ctx)
	go c.tickFavicons(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case comp := <-c.completions:
			c.handleCompletion(ctx, comp)
		case fc := <-c.faviconCompletions:
			c.handleFaviconCompletion(fc)
		}
	}
}

// worker pulls requests off the fetch queue and runs them, entirely off
// the control-loop goroutine.
func (c *Controller) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		req := c.queue.Dequeue()
		if req == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		res, err := c.client.Do(ctx, req)
		select {
		case c.completions <- completion{req: req, res: res, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) tickSources(ctx context.Context) {
	ticker := time.NewTicker(c.sched.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for id, src := range c.sources {
				node, err := c.Tree.NodeFromID(id)
				if err != nil || node.Source == nil {
					continue
				}
				if err := src.Tick(ctx, node.Source); err != nil {
					c.log.Warn("nodesource tick failed", slog.String("node", string(id)), slog.Any("error", err))
				}
			}
		}
	}
}

// tickFavicons scans feed nodes on the scheduler's own cadence and kicks
// off a background favicon poll for each one due. The poll itself runs
// off this goroutine since it's I/O; only its result is applied back on
// the control loop.
func (c *Controller) tickFavicons(ctx context.Context) {
	ticker := time.NewTicker(c.sched.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			root := c.Tree.Root()
			_ = c.Tree.ForeachChild(root.ID, func(n *domain.Node) {
				if n.Kind != domain.NodeKindFeed || n.Subscription == nil {
					return
				}
				if !c.sched.FaviconDue(n, now) {
					return
				}
				nodeID, sourceURL := n.ID, n.Subscription.SourceURL
				go func() {
					err := c.favicons.Fetch(ctx, nodeID, sourceURL)
					select {
					case c.faviconCompletions <- faviconCompletion{node: nodeID, err: err}:
					case <-ctx.Done():
					}
				}()
			})
		}
	}
}

// handleFaviconCompletion stamps LastFaviconPollTS once a favicon poll
// finishes, regardless of outcome, so a persistently broken favicon
// doesn't get retried every tick.
func (c *Controller) handleFaviconCompletion(fc faviconCompletion) {
	node, err := c.Tree.NodeFromID(fc.node)
	if err != nil || node.Subscription == nil {
		return
	}
	node.Subscription.UpdateState.LastFaviconPollTS = time.Now()
	if fc.err != nil {
		c.log.Warn("favicon fetch failed", slog.String("node", string(fc.node)), slog.Any("error", fc.err))
	}
}

// handleCompletion applies one finished fetch: parse, merge, counter
// propagation, scheduler feedback, and new-item notification, in that
// order, synchronously, right after the merge.
func (c *Controller) handleCompletion(ctx context.Context, comp completion) {
	defer c.queue.Done(comp.req.NodeID)

	node, err := c.Tree.NodeFromID(comp.req.NodeID)
	if err != nil || node.Subscription == nil {
		return
	}
	sub := node.Subscription

	if comp.err != nil {
		c.sched.OnFailure(sub, comp.err.Error())
		return
	}
	res := comp.res
	if res.AuthRequired {
		sub.HTTPErrorCode = 401
		c.sched.OnFailure(sub, "authentication required")
		return
	}
	if res.Moved && res.FinalURL != "" {
		sub.SourceURL = res.FinalURL
	}
	sub.UpdateState.ETag = res.ETag
	sub.UpdateState.LastModified = res.LastModified
	sub.UpdateState.LastPollTS = time.Now()
	if res.FilterError != "" {
		sub.FilterError = res.FilterError
	}

	if res.Unchanged {
		c.sched.OnSuccess(sub)
		return
	}
	if res.UpdateError != "" {
		sub.HTTPErrorCode = res.StatusCode
		c.sched.OnFailure(sub, res.UpdateError)
		return
	}

	ctx, span := tracing.Tracer().Start(ctx, "control.parse_and_merge")
	span.SetAttributes(
		attribute.String("feedcore.node_id", string(node.ID)),
		attribute.String("feedcore.source_url", sub.SourceURL),
	)
	defer span.End()

	feed, err := parser.Parse(res.Body, res.ContentType, sub.SourceURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.sched.OnFailure(sub, err.Error())
		return
	}
	c.applyFeedMetadata(node, feed)

	policy := merge.Policy{}
	if node.Feed != nil {
		policy.MergeDropOld = node.Feed.MergeDropOld
		policy.CacheLimit = node.Feed.CacheLimit
	}
	result, err := merge.Merge(ctx, c.Store, c.idx, node.ID, feed.Items, policy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.sched.OnFailure(sub, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Int("feedcore.new_items", len(result.New)),
		attribute.Int("feedcore.delta_unread", result.DeltaUnread),
	)
	for _, it := range result.New {
		if it.ValidGUID {
			c.idx.Add(it.GUID, node.ID)
		}
	}

	ids, err := c.Store.LoadItems(ctx, node.ID)
	if err == nil {
		_ = c.Tree.UpdateCounters(node.ID, domain.Counters{
			Items:  len(ids),
			Unread: node.Counters.Unread + result.DeltaUnread,
			New:    node.Counters.New + result.DeltaNew,
		})
	}

	c.sched.OnSuccess(sub)

	if c.notifier != nil && result.DeltaNew > 0 {
		c.notifier.NotifyNewItems(node.ID, result.DeltaNew)
	}
}

// applyFeedMetadata fills in feed-level fields discovered only once the
// body is parsed, including the "reset-title" semantics a fresh
// Subscribe call relies on: a node still titled by its raw URL adopts
// the feed's declared title on first successful parse.
func (c *Controller) applyFeedMetadata(node *domain.Node, feed *parser.ParsedFeed) {
	if node.Feed != nil {
		node.Feed.ParseErrors = feed.ParseErrors
		node.Feed.Format = feed.Format
		if feed.HTMLURL != "" {
			node.Feed.HTMLURL = feed.HTMLURL
		}
	}
	if feed.Title != "" && node.Subscription != nil && node.Title == node.Subscription.SourceURL {
		node.Title = feed.Title
	}
}

// Ping answers the control channel's liveness probe.
func (c *Controller) Ping() bool { return true }

// SetOnline flips the scheduler's offline flag.
func (c *Controller) SetOnline(online bool) bool {
	c.sched.SetOffline(!online)
	return true
}

// Subscribe adds a feed under the root with the given URL and schedules
// an immediate update; the node's title is the raw URL until the first
// successful parse replaces it.
func (c *Controller) Subscribe(url string) bool {
	node := &domain.Node{
		Kind:  domain.NodeKindFeed,
		Title: url,
		Subscription: &domain.Subscription{
			SourceURL:      url,
			SourceType:     domain.SourceTypeHTTP,
			UpdateInterval: domain.UpdateIntervalUseDefault,
		},
		Feed: &domain.FeedPayload{},
	}
	if err := c.Tree.AddChild(c.Tree.Root().ID, node, -1); err != nil {
		c.log.Warn("subscribe failed", slog.String("url", url), slog.Any("error", err))
		return false
	}
	c.sched.RefreshNow(node)
	return true
}

// GetUnreadItems returns the root's aggregate unread counter.
func (c *Controller) GetUnreadItems() int32 {
	return int32(c.Tree.Root().Counters.Unread)
}

// GetNewItems returns the root's aggregate new counter. Clearing a
// surfaced item's popup bit is left to the caller's own GetItem/SetPopup
// calls rather than an unconditional store-wide scan on every poll.
func (c *Controller) GetNewItems() int32 {
	return int32(c.Tree.Root().Counters.New)
}

// Refresh explicitly refreshes every feed in the tree, recursively from
// the root.
func (c *Controller) Refresh() bool {
	root := c.Tree.Root()
	_ = c.Tree.ForeachChild(root.ID, func(n *domain.Node) {
		if n.Kind == domain.NodeKindFeed && n.Subscription != nil {
			c.sched.RefreshNow(n)
		}
	})
	return true
}
