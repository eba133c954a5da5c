// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - Feed crawl metrics (duration, errors, merge outcomes)
//   - Tree and item counts
//   - Queue depth (fetch queue, notify hub, node-source edit queues)
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "feedcore/internal/observability/metrics"
//
//	func crawlSubscription(nodeID string) {
//	    start := time.Now()
//	    // ... fetch and merge ...
//	    newItems, updatedItems, droppedItems := 4, 1, 0
//
//	    metrics.RecordFeedCrawl(nodeID, time.Since(start), newItems, updatedItems, droppedItems)
//	}
package metrics
