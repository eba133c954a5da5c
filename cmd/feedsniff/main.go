// Command feedsniff fetches one or more feed URLs and reports what
// internal/parser's format sniffer made of each one: which parser it
// dispatched to, how many items it found, and any parse errors. It is a
// standalone diagnostic tool for debugging a subscription that refuses to
// merge items, taking URLs on argv and printing a human-readable report
// per feed, or one JSON report per feed with -json.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"feedcore/internal/domain"
	"feedcore/internal/fetchclient"
	"feedcore/internal/observability/logging"
	"feedcore/internal/parser"
)

// diagnostic is one feed URL's sniff result.
type diagnostic struct {
	URL          string   `json:"url"`
	Status       string   `json:"status"`
	HTTPCode     int      `json:"http_code"`
	Format       string   `json:"format"`
	ItemCount    int      `json:"item_count"`
	ParseErrors  []string `json:"parse_errors,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	ResponseTime int64    `json:"response_time_ms"`
}

func main() {
	jsonOutput := flag.Bool("json", false, "emit one JSON object per line instead of a human-readable report")
	timeout := flag.Duration("timeout", 30*time.Second, "per-feed fetch timeout")
	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: feedsniff [-json] [-timeout 30s] <feed-url> [more-urls...]")
		os.Exit(2)
	}

	logger := logging.NewTextLogger()
	client, err := fetchclient.New()
	if err != nil {
		logger.Error("failed to build fetch client", slog.Any("error", err))
		os.Exit(1)
	}

	diagnostics := make([]diagnostic, 0, len(urls))
	for _, u := range urls {
		diagnostics = append(diagnostics, sniff(client, u, *timeout))
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		for _, d := range diagnostics {
			_ = enc.Encode(d)
		}
		return
	}

	for _, d := range diagnostics {
		printReport(d)
	}
}

func sniff(client *fetchclient.Client, url string, timeout time.Duration) diagnostic {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	res, err := client.Do(ctx, &fetchclient.Request{Source: url, SourceType: domain.SourceTypeHTTP})
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return diagnostic{URL: url, Status: "FETCH_ERROR", ErrorMessage: err.Error(), ResponseTime: elapsed}
	}
	if res.AuthRequired {
		return diagnostic{URL: url, Status: "AUTH_REQUIRED", HTTPCode: res.StatusCode, ResponseTime: elapsed}
	}
	if res.UpdateError != "" {
		return diagnostic{URL: url, Status: "HTTP_ERROR", HTTPCode: res.StatusCode, ErrorMessage: res.UpdateError, ResponseTime: elapsed}
	}

	feed, err := parser.Parse(res.Body, res.ContentType, res.FinalURL)
	if err != nil {
		return diagnostic{URL: url, Status: "PARSE_ERROR", HTTPCode: res.StatusCode, ErrorMessage: err.Error(), ResponseTime: elapsed}
	}

	status := "OK"
	if len(feed.Items) == 0 {
		status = "EMPTY"
	}
	if len(feed.ParseErrors) > 0 {
		status = "PARSE_WARNINGS"
	}

	return diagnostic{
		URL:          url,
		Status:       status,
		HTTPCode:     res.StatusCode,
		Format:       feed.Format.String(),
		ItemCount:    len(feed.Items),
		ParseErrors:  feed.ParseErrors,
		ResponseTime: elapsed,
	}
}

func printReport(d diagnostic) {
	fmt.Printf("%-60s %-16s format=%-8s items=%-4d http=%-3d %dms\n",
		d.URL, d.Status, d.Format, d.ItemCount, d.HTTPCode, d.ResponseTime)
	if d.ErrorMessage != "" {
		fmt.Printf("  error: %s\n", d.ErrorMessage)
	}
	for _, pe := range d.ParseErrors {
		fmt.Printf("  parse warning: %s\n", pe)
	}
}
