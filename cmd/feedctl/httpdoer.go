package main

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"feedcore/internal/nodesource"
)

// netHTTPDoer adapts net/http to nodesource.HTTPDoer, the transport-agnostic
// interface nodesource.Source drives its remote Google-Reader-compatible
// calls through.
type netHTTPDoer struct {
	client *http.Client
}

func newHTTPDoer() *netHTTPDoer {
	return &netHTTPDoer{client: &http.Client{Timeout: 30 * time.Second}}
}

func (d *netHTTPDoer) Do(req *nodesource.Request) (*nodesource.Response, error) {
	httpReq, err := http.NewRequest(req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	header := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		header[k] = resp.Header.Get(k)
	}

	return &nodesource.Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     header,
	}, nil
}
