package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"feedcore/internal/domain"
	"feedcore/internal/fetchclient"
	"feedcore/internal/observability/metrics"
	"feedcore/internal/persist/layout"
)

// FaviconFetcher polls and caches a feed's favicon on its own cadence,
// independent of article update intervals.
type FaviconFetcher struct {
	client *fetchclient.Client
	dirs   layout.Dirs
	now    func() time.Time
}

// NewFaviconFetcher builds a fetcher that writes cached icons under
// dirs.FaviconDir().
func NewFaviconFetcher(client *fetchclient.Client, dirs layout.Dirs) *FaviconFetcher {
	return &FaviconFetcher{client: client, dirs: dirs, now: time.Now}
}

// Fetch polls the favicon for a feed node given its id and subscription
// source URL, and writes it to the cache on success. It touches no
// domain.Node state itself — callers running it off the control-loop
// goroutine (favicon fetches are I/O, like ordinary subscription
// fetches) are expected to apply LastFaviconPollTS themselves once this
// returns, to keep all node mutation on the control loop.
func (f *FaviconFetcher) Fetch(ctx context.Context, nodeID domain.NodeID, sourceURL string) error {
	faviconURL, err := deriveFaviconURL(sourceURL)
	if err != nil {
		return err
	}

	start := f.now()
	res, err := f.client.FetchFavicon(ctx, faviconURL)
	metrics.RecordFaviconFetch(f.now().Sub(start))
	if err != nil {
		return fmt.Errorf("favicon: fetch %s: %w", faviconURL, err)
	}
	if res.Unchanged || res.AuthRequired || res.UpdateError != "" || len(res.Body) == 0 {
		return nil
	}

	if err := os.MkdirAll(f.dirs.FaviconDir(), 0o755); err != nil {
		return fmt.Errorf("favicon: mkdir cache dir: %w", err)
	}
	if err := os.WriteFile(f.dirs.FaviconPath(nodeID), res.Body, 0o644); err != nil {
		return fmt.Errorf("favicon: write cache file: %w", err)
	}
	return nil
}

// deriveFaviconURL resolves a subscription's feed URL to its site's
// conventional /favicon.ico location.
func deriveFaviconURL(sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("favicon: cannot derive favicon URL from %q", sourceURL)
	}
	return fmt.Sprintf("%s://%s/favicon.ico", u.Scheme, u.Host), nil
}
