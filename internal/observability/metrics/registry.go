// Package metrics provides centralized Prometheus metrics for the feed core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Feed metrics track crawl activity and subscription/item counts.
var (
	// NodesTotal tracks the number of nodes of each kind in the tree.
	NodesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedcore_nodes_total",
			Help: "Total number of nodes in the tree, by kind",
		},
		[]string{"kind"},
	)

	// ItemsTotal tracks total number of stored items.
	ItemsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedcore_items_total",
			Help: "Total number of items in the item store",
		},
	)

	// FeedCrawlDuration measures time to fetch and merge one subscription.
	FeedCrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedcore_feed_crawl_duration_seconds",
			Help:    "Time taken to fetch and merge a subscription",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"node_id"},
	)

	// FeedCrawlErrors counts errors during feed crawling, by error class.
	FeedCrawlErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcore_feed_crawl_errors_total",
			Help: "Total number of feed crawl errors",
		},
		[]string{"node_id", "error_class"},
	)

	// MergeItemsTotal counts merge outcomes (new, updated, dropped) per node.
	MergeItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcore_merge_items_total",
			Help: "Total number of items processed by the merge engine, by outcome",
		},
		[]string{"node_id", "outcome"}, // outcome: new, updated, dropped
	)

	// FetchQueueDepth tracks the number of pending requests in the fetch queue.
	FetchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedcore_fetch_queue_depth",
			Help: "Number of requests currently queued for fetching",
		},
	)

	// NodeSourceEditQueueLength tracks the length of a remote node-source's
	// pending edit queue, which grows whenever edits are made while offline.
	NodeSourceEditQueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedcore_nodesource_edit_queue_length",
			Help: "Number of queued edits awaiting sync for a node-source root",
		},
		[]string{"source_root"},
	)

	// FaviconFetchDuration measures time to fetch a feed's favicon.
	FaviconFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedcore_favicon_fetch_duration_seconds",
			Help:    "Time taken to fetch a feed's favicon",
			Buckets: []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4},
		},
	)

	// NotifyQueueDepth tracks the number of pending egress events in the
	// notification hub's FIFO queue.
	NotifyQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedcore_notify_queue_depth",
			Help: "Number of events pending delivery in the notify hub",
		},
	)
)

// Database metrics track store performance.
var (
	// DBQueryDuration measures database query duration.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedcore_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections.
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedcore_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections.
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedcore_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordOperationDuration records the duration of a named database operation.
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
