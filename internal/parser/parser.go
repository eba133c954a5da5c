// Package parser dispatches a fetched feed body to the right format
// parser by sniffing its root element, and normalizes every format's
// output into a single ParsedFeed/ParsedItem shape.
package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"feedcore/internal/domain"
)

// ParsedItem is one format parser's output for a single entry, before it
// reaches the merge engine.
type ParsedItem struct {
	GUID      string
	ValidGUID bool

	Title       string
	SourceURL   string
	Description string
	ContentType string
	Time        time.Time

	HasEnclosure  bool
	EnclosureURL  string
	EnclosureMime string
	EnclosureSize int64

	MetadataList []domain.MetadataPair
}

// ParsedFeed is a format parser's normalized output: feed metadata, the
// item list, and any per-item parse errors tolerated along the way.
type ParsedFeed struct {
	Format   domain.FeedFormat
	Title    string
	HTMLURL  string
	ImageURL string

	Items       []ParsedItem
	ParseErrors []string
}

// Parse sniffs body's root element (or, failing that, whether it looks
// like JSON) and delegates to the matching format parser.
func Parse(body []byte, declaredContentType, baseURL string) (*ParsedFeed, error) {
	root, ns, err := sniffRootElement(body)
	if err == nil {
		switch {
		case strings.EqualFold(root, "rss"), strings.EqualFold(root, "rdf"):
			return parseGofeed(body, baseURL, domain.FeedFormatUnknown)
		case strings.EqualFold(root, "feed") && strings.Contains(strings.ToLower(ns), "atom"):
			return parseGofeed(body, baseURL, domain.FeedFormatAtom)
		case strings.EqualFold(root, "channel"):
			return parseCDF(body, baseURL)
		case strings.EqualFold(root, "opml"), strings.EqualFold(root, "oml"), strings.EqualFold(root, "outlinedocument"):
			return parseOPMLAsFeed(body, baseURL)
		default:
			return parseGofeed(body, baseURL, domain.FeedFormatUnknown)
		}
	}

	if looksLikeJSON(body) || strings.Contains(declaredContentType, "json") {
		return parseNodeSourceJSON(body)
	}

	return &ParsedFeed{ParseErrors: []string{"unrecognized feed format"}}, nil
}

// sniffRootElement returns the first element's local name and the xmlns
// value in effect for it, or an error if body does not parse as XML.
func sniffRootElement(body []byte) (name, namespace string, err error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return "", "", fmt.Errorf("parser: no root element found")
			}
			return "", "", fmt.Errorf("parser: not well-formed xml: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, se.Name.Space, nil
		}
	}
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// resolveURL resolves ref against base; an unparsable base or ref returns
// ref unchanged.
func resolveURL(base, ref string) string {
	if ref == "" || base == "" {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
