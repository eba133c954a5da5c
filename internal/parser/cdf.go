package parser

import (
	"encoding/xml"
	"fmt"

	"feedcore/internal/domain"
)

// cdfChannel mirrors the handful of CDF (Channel Definition Format)
// elements Liferea-compatible feeds actually use; CDF is not covered by
// gofeed so it is hand-parsed, tolerating and accumulating per-item
// errors rather than aborting on the first malformed element.
type cdfChannel struct {
	XMLName  xml.Name  `xml:"Channel"`
	Title    string    `xml:"TITLE"`
	Abstract string    `xml:"ABSTRACT"`
	HREF     string    `xml:"HREF,attr"`
	Items    []cdfItem `xml:"ITEM"`
}

type cdfItem struct {
	Title    string `xml:"TITLE"`
	Abstract string `xml:"ABSTRACT"`
	HREF     string `xml:"HREF,attr"`
}

func parseCDF(body []byte, baseURL string) (*ParsedFeed, error) {
	var ch cdfChannel
	if err := xml.Unmarshal(body, &ch); err != nil {
		return &ParsedFeed{ParseErrors: []string{fmt.Sprintf("cdf: %v", err)}}, nil
	}

	out := &ParsedFeed{
		Format:  domain.FeedFormatCDF,
		Title:   ch.Title,
		HTMLURL: resolveURL(baseURL, ch.HREF),
	}

	for _, it := range ch.Items {
		if it.HREF == "" && it.Title == "" {
			out.ParseErrors = append(out.ParseErrors, "cdf: item missing both HREF and TITLE")
			continue
		}
		source := resolveURL(baseURL, it.HREF)
		pi := ParsedItem{
			Title:       it.Title,
			SourceURL:   source,
			Description: it.Abstract,
			ContentType: "text/html",
		}
		pi.GUID = synthesizeGUID(pi.Title, pi.SourceURL, pi.Description)
		out.Items = append(out.Items, pi)
	}
	return out, nil
}
