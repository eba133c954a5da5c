package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"feedcore/internal/domain"

	"github.com/mmcdole/gofeed"
)

// parseGofeed delegates RSS 0.9x/1.0(RDF)/2.0 and Atom parsing to
// github.com/mmcdole/gofeed, contributing full metadata (not just
// title/url/content/time) via namespaceMetadata in namespace.go.
func parseGofeed(body []byte, baseURL string, hint domain.FeedFormat) (*ParsedFeed, error) {
	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(body))
	if err != nil {
		return &ParsedFeed{ParseErrors: []string{fmt.Sprintf("gofeed: %v", err)}}, nil
	}

	out := &ParsedFeed{
		Format:   formatFromGofeed(feed.FeedType, feed.FeedVersion, hint),
		Title:    feed.Title,
		HTMLURL:  resolveURL(baseURL, feed.Link),
		Items:    make([]ParsedItem, 0, len(feed.Items)),
	}
	if feed.Image != nil {
		out.ImageURL = resolveURL(baseURL, feed.Image.URL)
	}

	for _, it := range feed.Items {
		pi, perr := convertGofeedItem(it, baseURL)
		if perr != "" {
			out.ParseErrors = append(out.ParseErrors, perr)
			continue
		}
		out.Items = append(out.Items, pi)
	}
	return out, nil
}

func formatFromGofeed(feedType, version string, hint domain.FeedFormat) domain.FeedFormat {
	switch {
	case feedType == "atom":
		return domain.FeedFormatAtom
	case strings.Contains(strings.ToLower(version), "rdf") || strings.Contains(strings.ToLower(version), "rss1"):
		return domain.FeedFormatRDF
	case strings.HasPrefix(version, "rss0.9"):
		return domain.FeedFormatRSS09x
	case feedType == "rss":
		return domain.FeedFormatRSS2
	}
	if hint != domain.FeedFormatUnknown {
		return hint
	}
	return domain.FeedFormatUnknown
}

// convertGofeedItem normalizes one gofeed.Item; a non-empty second return
// value is a tolerated parse error for this item only — a malformed entry
// is skipped, it never aborts the rest of the feed.
func convertGofeedItem(it *gofeed.Item, baseURL string) (ParsedItem, string) {
	if it == nil {
		return ParsedItem{}, "nil item"
	}

	content := it.Content
	if content == "" {
		content = it.Description
	}

	pi := ParsedItem{
		Title:       it.Title,
		SourceURL:   resolveURL(baseURL, it.Link),
		Description: content,
		ContentType: "text/html",
		Time:        itemTime(it),
	}

	if it.GUID != "" {
		pi.GUID = it.GUID
		pi.ValidGUID = true
	} else {
		pi.GUID = synthesizeGUID(pi.Title, pi.SourceURL, content)
		pi.ValidGUID = false
	}

	if len(it.Enclosures) > 0 {
		enc := it.Enclosures[0]
		pi.HasEnclosure = true
		pi.EnclosureURL = resolveURL(baseURL, enc.URL)
		pi.EnclosureMime = enc.Type
	}

	for _, c := range it.Categories {
		pi.MetadataList = append(pi.MetadataList, domain.MetadataPair{Key: domain.MetaCategory, Value: c})
	}
	if it.Author != nil && it.Author.Name != "" {
		pi.MetadataList = append(pi.MetadataList, domain.MetadataPair{Key: domain.MetaAuthor, Value: it.Author.Name})
	}
	pi.MetadataList = append(pi.MetadataList, namespaceMetadata(it)...)

	return pi, ""
}

func itemTime(it *gofeed.Item) time.Time {
	if it.PublishedParsed != nil {
		return it.PublishedParsed.UTC()
	}
	if it.UpdatedParsed != nil {
		return it.UpdatedParsed.UTC()
	}
	return time.Time{}
}
