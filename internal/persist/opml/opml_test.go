package opml

import (
	"bytes"
	"testing"

	"feedcore/internal/domain"
	"feedcore/internal/tree"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTripsSubscriptionFields(t *testing.T) {
	src := tree.New()
	folder := &domain.Node{Kind: domain.NodeKindFolder, Title: "Tech"}
	require.NoError(t, src.AddChild(src.Root().ID, folder, -1))

	feed := &domain.Node{
		Kind:  domain.NodeKindFeed,
		Title: "Example Feed",
		Subscription: &domain.Subscription{
			SourceURL:      "https://example.com/feed.xml",
			FilterCmd:      "sed s/foo/bar/",
			SourceType:     domain.SourceTypeHTTP,
			UpdateInterval: 45,
			Discontinued:   false,
			UpdateOptions: domain.UpdateOptions{
				Username: "alice",
				Password: "hunter2",
			},
		},
		Feed: &domain.FeedPayload{
			HTMLURL:    "https://example.com/",
			CacheLimit: domain.CacheLimit{Kind: domain.CacheLimitFixed, Fixed: 200},
		},
	}
	require.NoError(t, src.AddChild(folder.ID, feed, -1))

	search := &domain.Node{
		Kind: domain.NodeKindSearchFolder,
		Title: "Unread tech",
		SearchRules: &domain.RuleSet{
			Combinator: domain.CombinatorAny,
			Rules: []domain.Rule{
				{Kind: domain.RuleUnread},
				{Kind: domain.RuleTitleContains, Value: "go; lang", Negate: true},
			},
		},
	}
	require.NoError(t, src.AddChild(src.Root().ID, search, -1))

	var buf bytes.Buffer
	require.NoError(t, Save(src, &buf, true))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	var gotFolder, gotSearch *domain.Node
	root := loaded.Root()
	require.Len(t, root.Children, 2)
	for _, id := range root.Children {
		n, err := loaded.NodeFromID(id)
		require.NoError(t, err)
		switch n.Kind {
		case domain.NodeKindFolder:
			gotFolder = n
		case domain.NodeKindSearchFolder:
			gotSearch = n
		}
	}
	require.NotNil(t, gotFolder)
	require.Equal(t, "Tech", gotFolder.Title)
	require.Len(t, gotFolder.Children, 1)

	gotFeed, err := loaded.NodeFromID(gotFolder.Children[0])
	require.NoError(t, err)
	require.Equal(t, feed.ID, gotFeed.ID)
	require.Equal(t, "https://example.com/feed.xml", gotFeed.Subscription.SourceURL)
	require.Equal(t, "sed s/foo/bar/", gotFeed.Subscription.FilterCmd)
	require.Equal(t, 45, gotFeed.Subscription.UpdateInterval)
	require.Equal(t, "alice", gotFeed.Subscription.UpdateOptions.Username)
	require.Equal(t, "hunter2", gotFeed.Subscription.UpdateOptions.Password)
	require.Equal(t, domain.CacheLimitFixed, gotFeed.Feed.CacheLimit.Kind)
	require.Equal(t, 200, gotFeed.Feed.CacheLimit.Fixed)

	require.NotNil(t, gotSearch)
	require.Equal(t, search.ID, gotSearch.ID)
	require.Equal(t, domain.CombinatorAny, gotSearch.SearchRules.Combinator)
	require.Len(t, gotSearch.SearchRules.Rules, 2)
	require.Equal(t, "go; lang", gotSearch.SearchRules.Rules[1].Value)
	require.True(t, gotSearch.SearchRules.Rules[1].Negate)
}

func TestSaveOmitsPasswordWhenUntrusted(t *testing.T) {
	src := tree.New()
	feed := &domain.Node{
		Kind:  domain.NodeKindFeed,
		Title: "Private feed",
		Subscription: &domain.Subscription{
			SourceURL: "https://example.com/private.xml",
			UpdateOptions: domain.UpdateOptions{
				Username: "bob",
				Password: "secret",
			},
		},
		Feed: &domain.FeedPayload{},
	}
	require.NoError(t, src.AddChild(src.Root().ID, feed, -1))

	var buf bytes.Buffer
	require.NoError(t, Save(src, &buf, false))
	require.NotContains(t, buf.String(), "secret")
	require.Contains(t, buf.String(), "bob")
}
