package fetchclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/exec"
	"time"

	"feedcore/internal/domain"
	"feedcore/internal/resilience/circuitbreaker"
	"feedcore/internal/resilience/retry"

	"github.com/sony/gobreaker"
)

const (
	userAgent       = "Liferea/feedcore (+https://lzone.de/liferea/)"
	maxRedirects    = 10
	maxCmdOutput    = 8 << 20  // 8 MiB cap on captured command stdout
	maxFilterOutput = 8 << 20
)

// Client issues update requests for HTTP, file and command sources,
// sharing one cookie jar across subscriptions keyed by hostname.
type Client struct {
	jar            *cookiejar.Jar
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config

	// ProxyURL is the process-global proxy, honored unless a request's
	// Options.DontUseProxy opts out.
	ProxyURL *url.URL
}

// New builds a Client with a fresh shared cookie jar.
func New() (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("fetchclient: new cookie jar: %w", err)
	}
	return &Client{
		jar:            jar,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
	}, nil
}

// Do performs req, dispatching on SourceType.
func (c *Client) Do(ctx context.Context, req *Request) (*Result, error) {
	var res *Result
	var err error

	switch req.SourceType {
	case domain.SourceTypeFile:
		res, err = c.doFile(req)
	case domain.SourceTypeCmd:
		res, err = c.doCmd(ctx, req)
	default:
		res, err = c.doHTTPResilient(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if req.FilterCmd != "" && !res.Unchanged {
		c.applyFilter(ctx, req.FilterCmd, res)
	}
	return res, nil
}

// FetchFavicon issues a plain GET for faviconURL, reusing the same
// resilient HTTP path (circuit breaker + retry, shared cookie jar) as an
// ordinary subscription fetch. It never sends conditional-GET headers:
// favicon polls don't track ETag/Last-Modified state.
func (c *Client) FetchFavicon(ctx context.Context, faviconURL string) (*Result, error) {
	return c.doHTTPResilient(ctx, &Request{
		Source:     faviconURL,
		SourceType: domain.SourceTypeHTTP,
	})
}

// doHTTPResilient wraps the HTTP path in a circuit breaker + retry pair
// so a persistently failing host stops taking fetch attempts until it
// recovers, instead of retrying forever on every scheduler tick.
func (c *Client) doHTTPResilient(ctx context.Context, req *Request) (*Result, error) {
	var res *Result

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doHTTP(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("service", "feed-fetch"),
					slog.String("url", req.Source),
					slog.String("state", c.circuitBreaker.State().String()))
			}
			return err
		}
		res = cbResult.(*Result)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return res, nil
}

func (c *Client) httpClient(dontUseProxy bool) *http.Client {
	transport := &http.Transport{
		DisableCompression: true, // we decode gzip/deflate ourselves
	}
	if !dontUseProxy && c.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(c.ProxyURL)
	}
	return &http.Client{
		Jar:       c.jar,
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) doHTTP(ctx context.Context, req *Request) (*Result, error) {
	current := req.Source
	var moved bool
	client := c.httpClient(req.Options.DontUseProxy)

	for redirect := 0; ; redirect++ {
		if redirect > maxRedirects {
			return nil, fmt.Errorf("fetchclient: too many redirects for %s", req.Source)
		}

		httpReq, err := c.buildRequest(ctx, current, req)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, &retry.HTTPError{StatusCode: 0, Message: err.Error()}
		}

		if loc, ok := redirectLocation(resp); ok {
			if resp.StatusCode == http.StatusMovedPermanently {
				moved = true
			}
			next, err := resp.Request.URL.Parse(loc)
			_ = resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("fetchclient: bad redirect location %q: %w", loc, err)
			}
			current = next.String()
			continue
		}

		return c.buildResult(resp, current, moved)
	}
}

func redirectLocation(resp *http.Response) (string, bool) {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		loc := resp.Header.Get("Location")
		return loc, loc != ""
	default:
		return "", false
	}
}

func (c *Client) buildRequest(ctx context.Context, target string, req *Request) (*http.Request, error) {
	var body io.Reader
	method := http.MethodGet
	if len(req.PostBody) > 0 {
		method = http.MethodPost
		body = bytes.NewReader(req.PostBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("fetchclient: build request: %w", err)
	}

	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate")
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.State.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.State.ETag)
	}
	if req.State.LastModified != "" {
		httpReq.Header.Set("If-Modified-Since", req.State.LastModified)
	}
	if req.AuthHeader != "" {
		httpReq.Header.Set("Authorization", req.AuthHeader)
	} else if req.Options.Username != "" {
		httpReq.SetBasicAuth(req.Options.Username, req.Options.Password)
	}
	return httpReq, nil
}

func (c *Client) buildResult(resp *http.Response, finalURL string, moved bool) (*Result, error) {
	defer func() { _ = resp.Body.Close() }()

	res := &Result{
		FinalURL:     finalURL,
		StatusCode:   resp.StatusCode,
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("Etag"),
		ContentType:  resp.Header.Get("Content-Type"),
		Moved:        moved,
	}

	switch resp.StatusCode {
	case http.StatusNotModified:
		res.Unchanged = true
		return res, nil
	case http.StatusUnauthorized, http.StatusProxyAuthRequired:
		res.AuthRequired = true
		return res, nil
	}

	body, err := decodeBody(resp)
	if err != nil {
		res.UpdateError = err.Error()
		return res, nil
	}
	res.Body = body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.UpdateError = fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)
	}
	return res, nil
}

func decodeBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetchclient: gzip: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer func() { _ = fl.Close() }()
		r = fl
	}
	return io.ReadAll(r)
}

func (c *Client) doFile(req *Request) (*Result, error) {
	info, err := os.Stat(req.Source)
	if err != nil {
		return &Result{UpdateError: err.Error()}, nil
	}
	body, err := os.ReadFile(req.Source)
	if err != nil {
		return &Result{UpdateError: err.Error()}, nil
	}
	return &Result{
		FinalURL:     req.Source,
		StatusCode:   http.StatusOK,
		Body:         body,
		LastModified: info.ModTime().UTC().Format(http.TimeFormat),
	}, nil
}

func (c *Client) doCmd(ctx context.Context, req *Request) (*Result, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", req.Source)
	cmd.Env = os.Environ()
	out, filterErr := runCapped(cmd, maxCmdOutput)
	res := &Result{
		FinalURL:   req.Source,
		StatusCode: http.StatusOK,
		Body:       out,
	}
	if filterErr != "" {
		res.UpdateError = filterErr
	}
	return res, nil
}

// applyFilter pipes a fetched body through a subscription's filter_cmd.
// A non-zero exit sets FilterError but the (possibly empty) captured
// stdout still becomes the body.
func (c *Client) applyFilter(ctx context.Context, filterCmd string, res *Result) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", filterCmd)
	cmd.Stdin = bytes.NewReader(res.Body)
	out, errStr := runCapped(cmd, maxFilterOutput)
	res.Body = out
	res.FilterError = errStr
}

func runCapped(cmd *exec.Cmd, limit int64) ([]byte, string) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &capWriter{w: &stdout, limit: limit}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), fmt.Sprintf("exit %s: %s", exitErr.String(), stderr.String())
		}
		return stdout.Bytes(), err.Error()
	}
	return stdout.Bytes(), ""
}

// capWriter truncates writes once limit bytes have been written, so a
// runaway command source can't exhaust memory.
type capWriter struct {
	w     io.Writer
	limit int64
	n     int64
}

func (c *capWriter) Write(p []byte) (int, error) {
	if c.n >= c.limit {
		return len(p), nil
	}
	remaining := c.limit - c.n
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	written, err := c.w.Write(p)
	c.n += int64(written)
	return len(p), err
}
