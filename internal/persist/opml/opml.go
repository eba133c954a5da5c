// Package opml persists and restores the subscription tree as an OPML 1.0
// document, with private extension attributes in a dedicated namespace
// carrying every Liferea-specific field a plain OPML reader would drop.
//
// The document's top-level outlines are the root node's direct children;
// the root itself (always a single, freshly minted source-root per
// internal/tree.New) is never serialized.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"feedcore/internal/domain"
	"feedcore/internal/tree"
)

// lifereaNS is the private-extension namespace declared as xmlns:lf on the
// document root. Attributes in this namespace are the only ones a
// round-trip depends on; everything else is plain OPML for interop with
// other readers.
const lifereaNS = "https://liferea.sf.net/ns/opml"

const nsPrefix = "lf"

// outlineType values mirror domain.NodeKind / domain.SourceType, spelled
// the way other OPML-producing feed readers do so a foreign reader can
// still make sense of the type attribute.
const (
	typeFolder       = "folder"
	typeRSS          = "rss"
	typeNewsBin      = "newsbin"
	typeSearchFolder = "searchfolder"
	typeSource       = "source"
)

// Save writes t's subscription tree to w as OPML. Passwords are included
// only when trusted is true, so an export meant for sharing with another
// person never carries credentials along with it.
func Save(t *tree.Tree, w io.Writer, trusted bool) error {
	root := t.Root()

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	rootStart := xml.StartElement{
		Name: xml.Name{Local: "opml"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "version"}, Value: "1.0"},
			{Name: xml.Name{Local: "xmlns:" + nsPrefix}, Value: lifereaNS},
		},
	}
	if err := enc.EncodeToken(rootStart); err != nil {
		return err
	}

	headStart := xml.StartElement{Name: xml.Name{Local: "head"}}
	if err := enc.EncodeToken(headStart); err != nil {
		return err
	}
	if err := encodeLeaf(enc, xml.StartElement{Name: xml.Name{Local: "title"}}, root.Title); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.EndElement{Name: headStart.Name}); err != nil {
		return err
	}

	if err := enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "body"}}); err != nil {
		return err
	}
	for _, id := range root.Children {
		child, err := t.NodeFromID(id)
		if err != nil {
			return err
		}
		if err := encodeNode(enc, t, child, trusted); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "body"}}); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "opml"}}); err != nil {
		return err
	}
	return enc.Flush()
}

func encodeLeaf(enc *xml.Encoder, start xml.StartElement, text string) error {
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if text != "" {
		if err := enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

func lfAttr(local, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: nsPrefix + ":" + local}, Value: value}
}

func encodeNode(enc *xml.Encoder, t *tree.Tree, n *domain.Node, trusted bool) error {
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "text"}, Value: n.Title},
		{Name: xml.Name{Local: "title"}, Value: n.Title},
		lfAttr("id", string(n.ID)),
	}

	switch n.Kind {
	case domain.NodeKindFolder:
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "type"}, Value: typeFolder})
	case domain.NodeKindNewsBin:
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "type"}, Value: typeNewsBin})
	case domain.NodeKindSearchFolder:
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "type"}, Value: typeSearchFolder})
		if n.SearchRules != nil {
			attrs = append(attrs, lfAttr("searchRules", encodeRuleSet(*n.SearchRules)))
		}
	case domain.NodeKindSourceRoot:
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "type"}, Value: typeSource})
		if n.Source != nil {
			attrs = append(attrs, lfAttr("providerId", n.Source.ProviderID))
		}
	case domain.NodeKindFeed:
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "type"}, Value: typeRSS})
		attrs = append(attrs, encodeSubscriptionAttrs(n.Subscription, trusted)...)
		if n.Feed != nil {
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "htmlUrl"}, Value: n.Feed.HTMLURL})
			attrs = append(attrs, lfAttr("cacheLimit", encodeCacheLimit(n.Feed.CacheLimit)))
			if n.Feed.MergeDropOld {
				attrs = append(attrs, lfAttr("mergeDropOld", "true"))
			}
		}
	}

	start := xml.StartElement{Name: xml.Name{Local: "outline"}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, id := range n.Children {
		child, err := t.NodeFromID(id)
		if err != nil {
			return err
		}
		if err := encodeNode(enc, t, child, trusted); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

func encodeSubscriptionAttrs(sub *domain.Subscription, trusted bool) []xml.Attr {
	if sub == nil {
		return nil
	}
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "xmlUrl"}, Value: sub.SourceURL},
		lfAttr("updateInterval", strconv.Itoa(sub.UpdateInterval)),
		lfAttr("sourceType", sourceTypeName(sub.SourceType)),
	}
	if sub.FilterCmd != "" {
		attrs = append(attrs, lfAttr("filtercmd", sub.FilterCmd))
	}
	if sub.Discontinued {
		attrs = append(attrs, lfAttr("discontinued", "true"))
	}
	if sub.UpdateOptions.Username != "" {
		attrs = append(attrs, lfAttr("username", sub.UpdateOptions.Username))
		if trusted && sub.UpdateOptions.Password != "" {
			attrs = append(attrs, lfAttr("password", sub.UpdateOptions.Password))
		}
	}
	if sub.UpdateOptions.DontUseProxy {
		attrs = append(attrs, lfAttr("dontUseProxy", "true"))
	}
	return attrs
}

func sourceTypeName(t domain.SourceType) string {
	switch t {
	case domain.SourceTypeFile:
		return "file"
	case domain.SourceTypeCmd:
		return "cmd"
	case domain.SourceTypeNodeSourceFeed:
		return "nodesource-feed"
	default:
		return "http"
	}
}

func sourceTypeFromName(s string) domain.SourceType {
	switch s {
	case "file":
		return domain.SourceTypeFile
	case "cmd":
		return domain.SourceTypeCmd
	case "nodesource-feed":
		return domain.SourceTypeNodeSourceFeed
	default:
		return domain.SourceTypeHTTP
	}
}

func encodeCacheLimit(c domain.CacheLimit) string {
	switch c.Kind {
	case domain.CacheLimitDisable:
		return "disable"
	case domain.CacheLimitUnlimited:
		return "unlimited"
	case domain.CacheLimitFixed:
		return strconv.Itoa(c.Fixed)
	default:
		return "default"
	}
}

func decodeCacheLimit(s string) domain.CacheLimit {
	switch s {
	case "disable":
		return domain.CacheLimit{Kind: domain.CacheLimitDisable}
	case "unlimited":
		return domain.CacheLimit{Kind: domain.CacheLimitUnlimited}
	case "default", "":
		return domain.CacheLimit{Kind: domain.CacheLimitDefault}
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return domain.CacheLimit{Kind: domain.CacheLimitDefault}
		}
		return domain.CacheLimit{Kind: domain.CacheLimitFixed, Fixed: n}
	}
}

// encodeRuleSet serializes a RuleSet into one compact attribute string:
// "<all|any>;<kind>[!]:<value>;...". The format is private to this
// package; a foreign OPML reader only sees the attribute exists.
func encodeRuleSet(rs domain.RuleSet) string {
	var b strings.Builder
	if rs.Combinator == domain.CombinatorAny {
		b.WriteString("any")
	} else {
		b.WriteString("all")
	}
	for _, r := range rs.Rules {
		b.WriteByte(';')
		b.WriteString(strconv.Itoa(int(r.Kind)))
		if r.Negate {
			b.WriteByte('!')
		}
		b.WriteByte(':')
		b.WriteString(strings.ReplaceAll(r.Value, ";", "\\;"))
	}
	return b.String()
}

func decodeRuleSet(s string) domain.RuleSet {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' && (i == 0 || s[i-1] != '\\') {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	if len(parts) == 0 {
		return domain.RuleSet{}
	}
	rs := domain.RuleSet{}
	if parts[0] == "any" {
		rs.Combinator = domain.CombinatorAny
	}
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, ":", 2)
		if len(kv) != 2 {
			continue
		}
		kindStr := kv[0]
		negate := strings.HasSuffix(kindStr, "!")
		kindStr = strings.TrimSuffix(kindStr, "!")
		kind, err := strconv.Atoi(kindStr)
		if err != nil {
			continue
		}
		rs.Rules = append(rs.Rules, domain.Rule{
			Kind:   domain.RuleKind(kind),
			Negate: negate,
			Value:  strings.ReplaceAll(kv[1], "\\;", ";"),
		})
	}
	return rs
}

// Load parses an OPML document written by Save and rebuilds a tree under a
// freshly minted root; the root node itself is never part of the round
// trip (see internal/tree.New).
func Load(r io.Reader) (*tree.Tree, error) {
	doc, err := decode(r)
	if err != nil {
		return nil, fmt.Errorf("opml: load: %w", err)
	}

	t := tree.New()
	root := t.Root()
	root.Title = doc.Title
	for _, o := range doc.Outlines {
		if err := addOutline(t, root.ID, o); err != nil {
			return nil, fmt.Errorf("opml: load: %w", err)
		}
	}
	return t, nil
}

func addOutline(t *tree.Tree, parent domain.NodeID, o outline) error {
	node := &domain.Node{
		ID:    domain.NodeID(o.id),
		Title: o.title,
	}

	switch o.kind {
	case typeFolder:
		node.Kind = domain.NodeKindFolder
	case typeNewsBin:
		node.Kind = domain.NodeKindNewsBin
	case typeSearchFolder:
		node.Kind = domain.NodeKindSearchFolder
		rs := decodeRuleSet(o.searchRules)
		node.SearchRules = &rs
	case typeSource:
		node.Kind = domain.NodeKindSourceRoot
		node.Source = &domain.SourceState{ProviderID: o.providerID, State: domain.NodeSourceStateNone}
	default:
		node.Kind = domain.NodeKindFeed
		interval, _ := strconv.Atoi(o.updateInterval)
		node.Subscription = &domain.Subscription{
			SourceURL:    o.xmlURL,
			FilterCmd:    o.filterCmd,
			SourceType:   sourceTypeFromName(o.sourceType),
			Discontinued: o.discontinued,
			UpdateInterval: interval,
			UpdateOptions: domain.UpdateOptions{
				Username:     o.username,
				Password:     o.password,
				DontUseProxy: o.dontUseProxy,
			},
		}
		node.Feed = &domain.FeedPayload{
			HTMLURL:      o.htmlURL,
			CacheLimit:   decodeCacheLimit(o.cacheLimit),
			MergeDropOld: o.mergeDropOld,
		}
	}

	if err := t.AddChild(parent, node, -1); err != nil {
		return err
	}
	for _, c := range o.children {
		if err := addOutline(t, node.ID, c); err != nil {
			return err
		}
	}
	return nil
}

// outline is the decode-side mirror of encodeNode's attribute set.
type outline struct {
	id, title, kind                        string
	xmlURL, htmlURL, sourceType, filterCmd string
	updateInterval, cacheLimit             string
	discontinued, mergeDropOld, dontUseProxy bool
	username, password                     string
	searchRules                            string
	providerID                             string
	children                                []outline
}

type document struct {
	Title    string
	Outlines []outline
}

func decode(r io.Reader) (*document, error) {
	dec := xml.NewDecoder(r)
	doc := &document{}
	var stack []*outline
	var titleText *strings.Builder
	inHead := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "head":
				inHead = true
			case "outline":
				o := parseOutlineAttrs(el.Attr)
				stack = append(stack, &o)
			case "title":
				if inHead {
					titleText = &strings.Builder{}
				}
			}
		case xml.CharData:
			if titleText != nil {
				titleText.Write(el)
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "head":
				inHead = false
			case "title":
				if titleText != nil {
					doc.Title = titleText.String()
					titleText = nil
				}
			case "outline":
				if len(stack) == 0 {
					continue
				}
				finished := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					doc.Outlines = append(doc.Outlines, *finished)
				} else {
					parent := stack[len(stack)-1]
					parent.children = append(parent.children, *finished)
				}
			}
		}
	}
	return doc, nil
}

func parseOutlineAttrs(attrs []xml.Attr) outline {
	o := outline{}
	for _, a := range attrs {
		if a.Name.Space == lifereaNS {
			switch a.Name.Local {
			case "id":
				o.id = a.Value
			case "updateInterval":
				o.updateInterval = a.Value
			case "cacheLimit":
				o.cacheLimit = a.Value
			case "discontinued":
				o.discontinued = a.Value == "true"
			case "mergeDropOld":
				o.mergeDropOld = a.Value == "true"
			case "filtercmd":
				o.filterCmd = a.Value
			case "username":
				o.username = a.Value
			case "password":
				o.password = a.Value
			case "dontUseProxy":
				o.dontUseProxy = a.Value == "true"
			case "sourceType":
				o.sourceType = a.Value
			case "searchRules":
				o.searchRules = a.Value
			case "providerId":
				o.providerID = a.Value
			}
			continue
		}
		switch a.Name.Local {
		case "text", "title":
			o.title = a.Value
		case "type":
			o.kind = a.Value
		case "xmlUrl":
			o.xmlURL = a.Value
		case "htmlUrl":
			o.htmlURL = a.Value
		}
	}
	if o.id == "" {
		o.id = string(domain.NewNodeID())
	}
	return o
}
