package parser

import (
	"encoding/xml"
	"fmt"

	"feedcore/internal/domain"
)

// opmlOutline is the generic subset of an OPML outline element used both
// here (blogroll ingestion: an OPML document fetched as a feed source)
// and by internal/persist/opml (the on-disk feedlist.opml, which extends
// this shape with Liferea-namespace attributes).
type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	HTMLURL  string        `xml:"htmlUrl,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlDoc struct {
	XMLName xml.Name `xml:"opml"`
	Body    opmlBody `xml:"body"`
}

// parseOPMLAsFeed flattens an OPML document's outline tree into pseudo
// items, one per feed-bearing outline, so a node-source or blogroll
// subscription pointed at an OPML URL can be merged like any other feed.
func parseOPMLAsFeed(body []byte, baseURL string) (*ParsedFeed, error) {
	var doc opmlDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return &ParsedFeed{ParseErrors: []string{fmt.Sprintf("opml: %v", err)}}, nil
	}

	out := &ParsedFeed{Format: domain.FeedFormatUnknown}
	var walk func(outlines []opmlOutline)
	walk = func(outlines []opmlOutline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				pi := ParsedItem{
					Title:       title,
					SourceURL:   resolveURL(baseURL, o.XMLURL),
					Description: resolveURL(baseURL, o.HTMLURL),
					ContentType: "text/plain",
				}
				pi.GUID = synthesizeGUID(pi.Title, pi.SourceURL, "")
				out.Items = append(out.Items, pi)
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return out, nil
}
