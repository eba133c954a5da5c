package sqlite_test

import (
	"context"
	"testing"
	"time"

	"feedcore/internal/domain"
	"feedcore/internal/store"
	"feedcore/internal/store/sqlite"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndGetItemRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	it := &domain.Item{
		NodeID:      "node-1",
		GUID:        "guid-1",
		ValidGUID:   true,
		Title:       "Hello",
		SourceURL:   "http://example.test/a",
		Description: "body",
		Time:        time.Unix(1000, 0).UTC(),
		New:         true,
		MetadataList: []domain.MetadataPair{
			{Key: "category", Value: "tech"},
			{Key: "category", Value: "go"},
		},
	}
	require.NoError(t, s.PutItem(ctx, it))
	require.NotZero(t, it.ID)

	got, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	require.Equal(t, "Hello", got.Title)
	require.True(t, got.ValidGUID)
	require.Len(t, got.MetadataList, 2)
	require.Equal(t, "tech", got.MetadataList[0].Value)
	require.Equal(t, "go", got.MetadataList[1].Value)
}

func TestGetItemNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetItem(context.Background(), domain.ItemID(999))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadItemsOrdersNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	older := &domain.Item{NodeID: "n", Title: "old", Time: time.Unix(100, 0)}
	newer := &domain.Item{NodeID: "n", Title: "new", Time: time.Unix(200, 0)}
	require.NoError(t, s.PutItem(ctx, older))
	require.NoError(t, s.PutItem(ctx, newer))

	ids, err := s.LoadItems(ctx, "n")
	require.NoError(t, err)
	require.Equal(t, []domain.ItemID{newer.ID, older.ID}, ids)
}

func TestSetReadUpdatesField(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	it := &domain.Item{NodeID: "n", Title: "x", New: true}
	require.NoError(t, s.PutItem(ctx, it))

	require.NoError(t, s.SetRead(ctx, it.ID, true))
	got, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	require.True(t, got.Read)
}

func TestFindDuplicatesAcrossNodes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a := &domain.Item{NodeID: "n1", GUID: "g", ValidGUID: true, Title: "a"}
	b := &domain.Item{NodeID: "n2", GUID: "g", ValidGUID: true, Title: "b"}
	require.NoError(t, s.PutItem(ctx, a))
	require.NoError(t, s.PutItem(ctx, b))

	nodes, err := s.FindDuplicates(ctx, "g")
	require.NoError(t, err)
	require.ElementsMatch(t, []domain.NodeID{"n1", "n2"}, nodes)
}

func TestPutItemUpdateReplacesMetadata(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	it := &domain.Item{NodeID: "n", Title: "a", MetadataList: []domain.MetadataPair{{Key: "k", Value: "v1"}}}
	require.NoError(t, s.PutItem(ctx, it))

	it.MetadataList = []domain.MetadataPair{{Key: "k", Value: "v2"}}
	require.NoError(t, s.PutItem(ctx, it))

	got, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, got.MetadataList, 1)
	require.Equal(t, "v2", got.MetadataList[0].Value)
}

func TestSearchFolderRescanUnreadRule(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	unread := &domain.Item{NodeID: "n", Title: "u", New: true}
	read := &domain.Item{NodeID: "n", Title: "r", Read: true}
	require.NoError(t, s.PutItem(ctx, unread))
	require.NoError(t, s.PutItem(ctx, read))

	ids, err := s.SearchFolderRescan(ctx, domain.RuleSet{Rules: []domain.Rule{{Kind: domain.RuleUnread}}})
	require.NoError(t, err)
	require.Equal(t, []domain.ItemID{unread.ID}, ids)
}
