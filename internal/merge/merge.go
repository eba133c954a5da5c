// Package merge implements the item merge engine: matching fetched
// candidates against stored items, classifying them, applying drop and
// cache-eviction policy, and computing counter deltas.
package merge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"feedcore/internal/domain"
	"feedcore/internal/guidindex"
	"feedcore/internal/parser"
	"feedcore/internal/store"
)

// Policy carries the per-node knobs the algorithm needs beyond the
// items themselves.
type Policy struct {
	MergeDropOld         bool
	CacheLimit           domain.CacheLimit
	DefaultCacheLimit    int
	DuplicatePropagation bool
}

// Result summarizes one merge run.
type Result struct {
	New     []*domain.Item
	Updated []*domain.Item
	Removed []domain.ItemID

	DeltaNew    int
	DeltaUnread int

	// Rematch lists items whose title/description/read/flag/updated
	// fields changed, for the caller to re-check against search-folder
	// rule sets via internal/searchfolder.ReferencesField.
	Rematch []*domain.Item
}

// Merge runs the full algorithm for one node's candidates against its
// currently stored items: match, classify, drop, and evict. Rematching
// against search-folder rules is surfaced via Result.Rematch for the
// caller to act on rather than done here.
func Merge(ctx context.Context, st store.ItemStore, idx *guidindex.Index, node domain.NodeID, candidates []parser.ParsedItem, policy Policy) (*Result, error) {
	stored, err := loadAll(ctx, st, node)
	if err != nil {
		return nil, err
	}

	unreadBefore := countUnread(stored)
	byGUID, byTitleURL, byHash := indexStored(stored)
	seen := make(map[domain.ItemID]bool, len(candidates))

	res := &Result{}
	for _, cand := range candidates {
		match := matchCandidate(cand, byGUID, byTitleURL, byHash)
		if match == nil {
			item := newItem(node, cand)
			if err := st.PutItem(ctx, item); err != nil {
				return nil, fmt.Errorf("merge: put new item: %w", err)
			}
			if item.ValidGUID {
				idx.Add(item.GUID, node)
			}
			res.New = append(res.New, item)
			res.DeltaNew++
			res.DeltaUnread++
			seen[item.ID] = true
			continue
		}

		seen[match.ID] = true
		changed, nonTrivial := applyContentChange(match, cand)
		if !changed {
			continue
		}
		wasUnread := !match.Read
		match.Updated = true
		if nonTrivial {
			match.Read = false
		}
		match.ApplyInvariants()
		if err := st.PutItem(ctx, match); err != nil {
			return nil, fmt.Errorf("merge: put updated item: %w", err)
		}
		if !wasUnread && !match.Read {
			res.DeltaUnread++
		}
		res.Updated = append(res.Updated, match)
		res.Rematch = append(res.Rematch, match)
	}

	remaining, err := dropUnseen(ctx, st, idx, stored, seen, policy)
	if err != nil {
		return nil, err
	}
	res.Removed = append(res.Removed, remaining.removed...)

	kept := append(remaining.kept, res.New...)
	evicted, err := evictByCacheLimit(ctx, st, idx, node, kept, policy)
	if err != nil {
		return nil, err
	}
	res.Removed = append(res.Removed, evicted...)

	final, err := loadAll(ctx, st, node)
	if err != nil {
		return nil, err
	}
	res.DeltaUnread = countUnread(final) - unreadBefore
	return res, nil
}

func loadAll(ctx context.Context, st store.ItemStore, node domain.NodeID) ([]*domain.Item, error) {
	ids, err := st.LoadItems(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("merge: load items: %w", err)
	}
	items := make([]*domain.Item, 0, len(ids))
	for _, id := range ids {
		it, err := st.GetItem(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("merge: get item %d: %w", id, err)
		}
		items = append(items, it)
	}
	return items, nil
}

func countUnread(items []*domain.Item) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

func indexStored(items []*domain.Item) (byGUID, byTitleURL, byHash map[string]*domain.Item) {
	byGUID = make(map[string]*domain.Item)
	byTitleURL = make(map[string]*domain.Item)
	byHash = make(map[string]*domain.Item)
	for _, it := range items {
		if it.ValidGUID && it.GUID != "" {
			byGUID[it.GUID] = it
		}
		byTitleURL[titleURLKey(it.Title, it.SourceURL)] = it
		byHash[contentHash(it.Title, it.Description, it.SourceURL)] = it
	}
	return
}

func titleURLKey(title, sourceURL string) string {
	return title + "\x00" + sourceURL
}

func contentHash(title, description, sourceURL string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(description))
	h.Write([]byte{0})
	h.Write([]byte(sourceURL))
	return hex.EncodeToString(h.Sum(nil))
}

// matchCandidate applies the match priority order: GUID, then
// (title, source_url), then content hash.
func matchCandidate(cand parser.ParsedItem, byGUID, byTitleURL, byHash map[string]*domain.Item) *domain.Item {
	if cand.ValidGUID {
		if m, ok := byGUID[cand.GUID]; ok {
			return m
		}
	}
	if m, ok := byTitleURL[titleURLKey(cand.Title, cand.SourceURL)]; ok {
		return m
	}
	if m, ok := byHash[contentHash(cand.Title, cand.Description, cand.SourceURL)]; ok {
		return m
	}
	return nil
}

func newItem(node domain.NodeID, cand parser.ParsedItem) *domain.Item {
	it := &domain.Item{
		NodeID:       node,
		GUID:         cand.GUID,
		ValidGUID:    cand.ValidGUID,
		Title:        cand.Title,
		SourceURL:    cand.SourceURL,
		Description:  cand.Description,
		ContentType:  cand.ContentType,
		Time:         cand.Time,
		New:          true,
		Popup:        true,
		HasEnclosure: cand.HasEnclosure,
		MetadataList: cand.MetadataList,
	}
	if cand.HasEnclosure {
		it.AddEnclosure(domain.Enclosure{URL: cand.EnclosureURL, MimeType: cand.EnclosureMime, Size: cand.EnclosureSize})
	}
	it.ApplyInvariants()
	return it
}

// applyContentChange overwrites match's content fields from cand if any
// differ, and reports whether the change is non-trivial (whitespace-only
// and volatile-metadata-only changes don't count).
func applyContentChange(match *domain.Item, cand parser.ParsedItem) (changed, nonTrivial bool) {
	titleChanged := match.Title != cand.Title
	descChanged := normalizeWhitespace(match.Description) != normalizeWhitespace(cand.Description)
	urlChanged := match.SourceURL != cand.SourceURL
	metaChangedAtAll := !metadataEqual(match.MetadataList, cand.MetadataList)
	metaChanged := metadataChangedNonVolatile(match.MetadataList, cand.MetadataList)

	if !titleChanged && !descChanged && !urlChanged && !metaChangedAtAll {
		return false, false
	}

	match.Title = cand.Title
	match.Description = cand.Description
	match.SourceURL = cand.SourceURL
	match.ContentType = cand.ContentType
	match.MetadataList = cand.MetadataList

	nonTrivial = titleChanged || urlChanged || descChanged || metaChanged
	return true, nonTrivial
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func metadataEqual(a, b []domain.MetadataPair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func metadataChangedNonVolatile(oldMeta, newMeta []domain.MetadataPair) bool {
	oldFiltered := filterVolatile(oldMeta)
	newFiltered := filterVolatile(newMeta)
	if len(oldFiltered) != len(newFiltered) {
		return true
	}
	for i := range oldFiltered {
		if oldFiltered[i] != newFiltered[i] {
			return true
		}
	}
	return false
}

func filterVolatile(meta []domain.MetadataPair) []domain.MetadataPair {
	out := make([]domain.MetadataPair, 0, len(meta))
	for _, m := range meta {
		if domain.VolatileMetaKeys[m.Key] {
			continue
		}
		out = append(out, m)
	}
	return out
}

type dropResult struct {
	kept    []*domain.Item
	removed []domain.ItemID
}

// dropUnseen removes stored items the candidate set no longer contains,
// when the subscription's drop-old policy is enabled.
func dropUnseen(ctx context.Context, st store.ItemStore, idx *guidindex.Index, stored []*domain.Item, seen map[domain.ItemID]bool, policy Policy) (dropResult, error) {
	var out dropResult
	for _, it := range stored {
		if seen[it.ID] {
			out.kept = append(out.kept, it)
			continue
		}
		if !policy.MergeDropOld {
			out.kept = append(out.kept, it)
			continue
		}
		if err := st.RemoveItem(ctx, it.ID); err != nil {
			return dropResult{}, fmt.Errorf("merge: drop old item %d: %w", it.ID, err)
		}
		if it.ValidGUID {
			idx.Remove(it.GUID, it.NodeID)
		}
		out.removed = append(out.removed, it.ID)
	}
	return out, nil
}

// evictByCacheLimit trims kept items down to the node's cache limit,
// oldest read-and-unflagged items first.
func evictByCacheLimit(ctx context.Context, st store.ItemStore, idx *guidindex.Index, node domain.NodeID, kept []*domain.Item, policy Policy) ([]domain.ItemID, error) {
	switch policy.CacheLimit.Kind {
	case domain.CacheLimitUnlimited:
		return nil, nil
	case domain.CacheLimitDisable:
		return evictAllExcept(ctx, st, idx, kept, func(it *domain.Item) bool { return !it.Read || it.Flag })
	case domain.CacheLimitFixed, domain.CacheLimitDefault:
		limit := policy.CacheLimit.Fixed
		if policy.CacheLimit.Kind == domain.CacheLimitDefault {
			limit = policy.DefaultCacheLimit
		}
		if limit <= 0 {
			return nil, nil
		}
		return evictOldestOverLimit(ctx, st, idx, kept, limit)
	default:
		return nil, nil
	}
}

func evictAllExcept(ctx context.Context, st store.ItemStore, idx *guidindex.Index, items []*domain.Item, keep func(*domain.Item) bool) ([]domain.ItemID, error) {
	var removed []domain.ItemID
	for _, it := range items {
		if keep(it) {
			continue
		}
		if err := st.RemoveItem(ctx, it.ID); err != nil {
			return nil, fmt.Errorf("merge: evict item %d: %w", it.ID, err)
		}
		if it.ValidGUID {
			idx.Remove(it.GUID, node(it))
		}
		removed = append(removed, it.ID)
	}
	return removed, nil
}

func node(it *domain.Item) domain.NodeID { return it.NodeID }

func evictOldestOverLimit(ctx context.Context, st store.ItemStore, idx *guidindex.Index, items []*domain.Item, limit int) ([]domain.ItemID, error) {
	candidates := make([]*domain.Item, 0, len(items))
	for _, it := range items {
		if !it.Read || it.Flag {
			continue // only read, unflagged items are evictable
		}
		candidates = append(candidates, it)
	}

	total := len(items)
	if total <= limit {
		return nil, nil
	}
	overage := total - limit
	if overage > len(candidates) {
		overage = len(candidates)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Time.Equal(candidates[j].Time) {
			return candidates[i].Time.Before(candidates[j].Time)
		}
		return candidates[i].ID < candidates[j].ID
	})

	var removed []domain.ItemID
	for _, it := range candidates[:overage] {
		if err := st.RemoveItem(ctx, it.ID); err != nil {
			return nil, fmt.Errorf("merge: evict oldest item %d: %w", it.ID, err)
		}
		if it.ValidGUID {
			idx.Remove(it.GUID, it.NodeID)
		}
		removed = append(removed, it.ID)
	}
	return removed, nil
}

// PropagateRead marks every other node's item sharing guid as read, once
// the item at node/except has been read. Neither Merge nor the control
// loop calls it; merge-time items are always freshly unread.
func PropagateRead(ctx context.Context, st store.ItemStore, guid string, except domain.NodeID) error {
	items, err := st.ItemsByGUID(ctx, guid)
	if err != nil {
		return fmt.Errorf("merge: propagate read: %w", err)
	}
	for _, it := range items {
		if it.NodeID == except || it.Read {
			continue
		}
		if err := st.SetRead(ctx, it.ID, true); err != nil {
			return fmt.Errorf("merge: propagate read to item %d: %w", it.ID, err)
		}
	}
	return nil
}
