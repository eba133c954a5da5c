package fetchclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"feedcore/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestDoHTTPConditionalGETReturnsUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, `"abc"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	c, err := New()
	require.NoError(t, err)

	res, err := c.Do(context.Background(), &Request{
		Source:     srv.URL,
		SourceType: domain.SourceTypeHTTP,
		State:      domain.UpdateState{ETag: `"abc"`},
	})
	require.NoError(t, err)
	require.True(t, res.Unchanged)
	require.Empty(t, res.Body)
}

func TestDoHTTPDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte("<rss></rss>"))
		_ = gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Etag", `"new-etag"`)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c, err := New()
	require.NoError(t, err)

	res, err := c.Do(context.Background(), &Request{Source: srv.URL, SourceType: domain.SourceTypeHTTP})
	require.NoError(t, err)
	require.Equal(t, "<rss></rss>", string(res.Body))
	require.Equal(t, `"new-etag"`, res.ETag)
}

func TestDoHTTPSignalsAuthRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New()
	require.NoError(t, err)

	res, err := c.Do(context.Background(), &Request{Source: srv.URL, SourceType: domain.SourceTypeHTTP})
	require.NoError(t, err)
	require.True(t, res.AuthRequired)
}

func TestDoFileReadsLocalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte("<rss/>"), 0o644))

	c, err := New()
	require.NoError(t, err)

	res, err := c.Do(context.Background(), &Request{Source: path, SourceType: domain.SourceTypeFile})
	require.NoError(t, err)
	require.Equal(t, "<rss/>", string(res.Body))
	require.NotEmpty(t, res.LastModified)
}

func TestDoCmdCapturesStdout(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	res, err := c.Do(context.Background(), &Request{Source: "printf hello", SourceType: domain.SourceTypeCmd})
	require.NoError(t, err)
	require.Equal(t, "hello", string(res.Body))
}

func TestFilterCmdNonZeroExitSetsFilterError(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	res, err := c.Do(context.Background(), &Request{
		Source:     "printf raw",
		SourceType: domain.SourceTypeCmd,
		FilterCmd:  "cat; exit 1",
	})
	require.NoError(t, err)
	require.Equal(t, "raw", string(res.Body))
	require.NotEmpty(t, res.FilterError)
}
