package domain

import (
	"strconv"
	"strings"
)

// enclosureDelim separates the fields of a serialized enclosure. It must
// not appear in a URL or mime type, so '|' is used.
const enclosureDelim = "|"

// EncodeEnclosure serializes an Enclosure into the delimited string
// stored under MetaEnclosure in an item's metadata list.
func EncodeEnclosure(e Enclosure) string {
	downloaded := "0"
	if e.Downloaded {
		downloaded = "1"
	}
	fields := []string{e.URL, e.MimeType, strconv.FormatInt(e.Size, 10), downloaded}
	return strings.Join(fields, enclosureDelim)
}

// DecodeEnclosure parses a string previously produced by EncodeEnclosure.
// It is tolerant of missing trailing fields, matching the parser's
// never-abort-on-a-malformed-element posture.
func DecodeEnclosure(s string) Enclosure {
	parts := strings.Split(s, enclosureDelim)
	var e Enclosure
	if len(parts) > 0 {
		e.URL = parts[0]
	}
	if len(parts) > 1 {
		e.MimeType = parts[1]
	}
	if len(parts) > 2 {
		if n, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			e.Size = n
		}
	}
	if len(parts) > 3 {
		e.Downloaded = parts[3] == "1"
	}
	return e
}

// Enclosures extracts every enclosure recorded in an item's metadata list.
func (it *Item) Enclosures() []Enclosure {
	var out []Enclosure
	for _, m := range it.MetadataList {
		if m.Key == MetaEnclosure {
			out = append(out, DecodeEnclosure(m.Value))
		}
	}
	return out
}

// AddEnclosure appends an enclosure entry and sets HasEnclosure.
func (it *Item) AddEnclosure(e Enclosure) {
	it.MetadataList = append(it.MetadataList, MetadataPair{Key: MetaEnclosure, Value: EncodeEnclosure(e)})
	it.HasEnclosure = true
}
