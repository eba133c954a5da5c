package control

import (
	"context"
	"testing"

	"feedcore/internal/domain"
	"feedcore/internal/fetchclient"
	"feedcore/internal/guidindex"
	"feedcore/internal/persist/layout"
	"feedcore/internal/scheduler"
	"feedcore/internal/store/sqlite"
	"feedcore/internal/tree"

	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example Feed</title>
<link>https://example.com/</link>
<item><title>First post</title><link>https://example.com/1</link><guid>https://example.com/1</guid><description>hello</description></item>
</channel></rss>`

type recordingNotifier struct {
	node  domain.NodeID
	delta int
}

func (r *recordingNotifier) NotifyNewItems(node domain.NodeID, delta int) {
	r.node = node
	r.delta = delta
}

func newTestController(t *testing.T) (*Controller, *recordingNotifier) {
	t.Helper()
	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tr := tree.New()
	idx := guidindex.New()
	queue := fetchclient.NewQueue()
	client, err := fetchclient.New()
	require.NoError(t, err)
	sched := scheduler.New(scheduler.DefaultConfig(), tr, queue)
	notifier := &recordingNotifier{}

	c := New(tr, st, idx, queue, client, sched, layout.Dirs{}, notifier, 1, nil)
	return c, notifier
}

func TestSubscribeAddsFeedNodeUnderRootAndSchedulesRefresh(t *testing.T) {
	c, _ := newTestController(t)
	require.True(t, c.Subscribe("https://example.com/feed.xml"))

	root := c.Tree.Root()
	require.Len(t, root.Children, 1)

	req := c.queue.Dequeue()
	require.NotNil(t, req)
	require.Equal(t, fetchclient.PriorityInteractive, req.Priority)
}

func TestHandleCompletionMergesParsedItemsAndUpdatesCounters(t *testing.T) {
	c, notifier := newTestController(t)

	node := &domain.Node{
		Kind:  domain.NodeKindFeed,
		Title: "https://example.com/feed.xml",
		Subscription: &domain.Subscription{
			SourceURL:  "https://example.com/feed.xml",
			SourceType: domain.SourceTypeHTTP,
		},
		Feed: &domain.FeedPayload{},
	}
	require.NoError(t, c.Tree.AddChild(c.Tree.Root().ID, node, -1))

	req := &fetchclient.Request{NodeID: node.ID, Source: node.Subscription.SourceURL}
	res := &fetchclient.Result{Body: []byte(sampleRSS), ContentType: "application/rss+xml"}
	c.handleCompletion(context.Background(), completion{req: req, res: res})

	reloaded, err := c.Tree.NodeFromID(node.ID)
	require.NoError(t, err)
	require.Equal(t, "Example Feed", reloaded.Title)
	require.Equal(t, 1, reloaded.Counters.Items)
	require.Equal(t, 1, reloaded.Counters.Unread)
	require.Equal(t, 1, reloaded.Counters.New)
	require.Equal(t, 1, notifier.delta)
	require.Equal(t, node.ID, notifier.node)
}

func TestHandleCompletionAuthRequiredAppliesBackoffWithoutMerge(t *testing.T) {
	c, notifier := newTestController(t)

	node := &domain.Node{
		Kind:         domain.NodeKindFeed,
		Subscription: &domain.Subscription{SourceURL: "https://example.com/feed.xml", SourceType: domain.SourceTypeHTTP},
		Feed:         &domain.FeedPayload{},
	}
	require.NoError(t, c.Tree.AddChild(c.Tree.Root().ID, node, -1))

	req := &fetchclient.Request{NodeID: node.ID}
	res := &fetchclient.Result{AuthRequired: true}
	c.handleCompletion(context.Background(), completion{req: req, res: res})

	reloaded, err := c.Tree.NodeFromID(node.ID)
	require.NoError(t, err)
	require.Equal(t, 401, reloaded.Subscription.HTTPErrorCode)
	require.Equal(t, 1, reloaded.Subscription.ConsecutiveFailures)
	require.Equal(t, 0, notifier.delta)
}
