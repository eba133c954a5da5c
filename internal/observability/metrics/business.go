package metrics

import "time"

// RecordFeedCrawl records metrics for one subscription's fetch-and-merge
// cycle.
func RecordFeedCrawl(nodeID string, duration time.Duration, newItems, updatedItems, droppedItems int) {
	FeedCrawlDuration.WithLabelValues(nodeID).Observe(duration.Seconds())
	if newItems > 0 {
		MergeItemsTotal.WithLabelValues(nodeID, "new").Add(float64(newItems))
	}
	if updatedItems > 0 {
		MergeItemsTotal.WithLabelValues(nodeID, "updated").Add(float64(updatedItems))
	}
	if droppedItems > 0 {
		MergeItemsTotal.WithLabelValues(nodeID, "dropped").Add(float64(droppedItems))
	}
}

// RecordFeedCrawlError records an error during feed crawling, classified
// by errorClass (e.g. "network", "auth", "parse").
func RecordFeedCrawlError(nodeID, errorClass string) {
	FeedCrawlErrors.WithLabelValues(nodeID, errorClass).Inc()
}

// UpdateNodesTotal updates the gauge tracking node counts by kind. Callers
// pass a snapshot taken after a tree mutation.
func UpdateNodesTotal(counts map[string]int) {
	for kind, n := range counts {
		NodesTotal.WithLabelValues(kind).Set(float64(n))
	}
}

// UpdateItemsTotal updates the total stored item count gauge.
func UpdateItemsTotal(count int) {
	ItemsTotal.Set(float64(count))
}

// UpdateFetchQueueDepth updates the fetch queue depth gauge.
func UpdateFetchQueueDepth(depth int) {
	FetchQueueDepth.Set(float64(depth))
}

// UpdateNodeSourceEditQueueLength updates a node-source root's pending edit
// queue length gauge.
func UpdateNodeSourceEditQueueLength(sourceRoot string, length int) {
	NodeSourceEditQueueLength.WithLabelValues(sourceRoot).Set(float64(length))
}

// RecordFaviconFetch records the duration of a favicon fetch.
func RecordFaviconFetch(duration time.Duration) {
	FaviconFetchDuration.Observe(duration.Seconds())
}

// UpdateNotifyQueueDepth updates the notify hub's pending event count gauge.
func UpdateNotifyQueueDepth(depth int) {
	NotifyQueueDepth.Set(float64(depth))
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_items", "insert_item").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
