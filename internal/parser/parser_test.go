package parser

import (
	"testing"

	"feedcore/internal/domain"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <link>http://example.test/</link>
    <item>
      <title>First post</title>
      <link>/posts/1</link>
      <guid>urn:uuid:abc</guid>
      <description>Hello world</description>
    </item>
    <item>
      <title>No guid post</title>
      <link>/posts/2</link>
      <description>Still here</description>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom feed</title>
  <entry>
    <title>Atom entry</title>
    <id>tag:example.test,2026:1</id>
    <link href="/e/1"/>
  </entry>
</feed>`

const sampleCDF = `<Channel HREF="http://example.test/">
  <TITLE>CDF channel</TITLE>
  <ITEM HREF="/item1"><TITLE>Item one</TITLE><ABSTRACT>abs</ABSTRACT></ITEM>
</Channel>`

const sampleOPML = `<opml version="2.0">
  <body>
    <outline title="Folder">
      <outline text="Blog" title="Blog" xmlUrl="http://example.test/rss" htmlUrl="http://example.test/"/>
    </outline>
  </body>
</opml>`

func TestParseRSSAssignsValidGUIDOrSynthesizes(t *testing.T) {
	feed, err := Parse([]byte(sampleRSS), "", "http://example.test/")
	require.NoError(t, err)
	require.Equal(t, domain.FeedFormatRSS2, feed.Format)
	require.Len(t, feed.Items, 2)

	require.True(t, feed.Items[0].ValidGUID)
	require.Equal(t, "urn:uuid:abc", feed.Items[0].GUID)
	require.Equal(t, "http://example.test/posts/1", feed.Items[0].SourceURL)

	require.False(t, feed.Items[1].ValidGUID)
	require.NotEmpty(t, feed.Items[1].GUID)
}

func TestParseAtomSniffsByNamespace(t *testing.T) {
	feed, err := Parse([]byte(sampleAtom), "", "http://example.test/")
	require.NoError(t, err)
	require.Equal(t, domain.FeedFormatAtom, feed.Format)
	require.Len(t, feed.Items, 1)
	require.Equal(t, "http://example.test/e/1", feed.Items[0].SourceURL)
}

func TestParseCDFHandParsed(t *testing.T) {
	feed, err := Parse([]byte(sampleCDF), "", "")
	require.NoError(t, err)
	require.Equal(t, domain.FeedFormatCDF, feed.Format)
	require.Len(t, feed.Items, 1)
	require.Equal(t, "Item one", feed.Items[0].Title)
}

func TestParseOPMLBlogrollFlattensOutlines(t *testing.T) {
	feed, err := Parse([]byte(sampleOPML), "", "")
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	require.Equal(t, "http://example.test/rss", feed.Items[0].SourceURL)
}

func TestParseUnrecognizedBodyProducesSingleError(t *testing.T) {
	feed, err := Parse([]byte("not xml or json at all"), "text/plain", "")
	require.NoError(t, err)
	require.Empty(t, feed.Items)
	require.Len(t, feed.ParseErrors, 1)
}

func TestParseToleratesMalformedItemWithoutAbortingFeed(t *testing.T) {
	body := `<Channel><TITLE>c</TITLE><ITEM></ITEM><ITEM HREF="/ok"><TITLE>ok</TITLE></ITEM></Channel>`
	feed, err := Parse([]byte(body), "", "")
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	require.Len(t, feed.ParseErrors, 1)
}

func TestSynthesizeGUIDIsDeterministic(t *testing.T) {
	a := synthesizeGUID("t", "u", "b")
	b := synthesizeGUID("t", "u", "b")
	require.Equal(t, a, b)
	require.NotEqual(t, a, synthesizeGUID("t", "u", "different"))
}
