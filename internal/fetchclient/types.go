// Package fetchclient performs outbound subscription fetches: HTTP with
// conditional GET and cookie/proxy handling, local file reads, and command
// execution. Only HTTP fetches go through the circuit breaker and retry
// policy.
package fetchclient

import (
	"feedcore/internal/domain"
)

// Priority orders the fetch queue: interactive requests (user clicked
// "update now") jump ahead of scheduled ticks, which jump ahead of
// background prefetch.
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityScheduled
	PriorityInteractive
)

// Request describes a single outbound fetch attempt.
type Request struct {
	NodeID     domain.NodeID
	Source     string
	SourceType domain.SourceType
	Options    domain.UpdateOptions
	State      domain.UpdateState
	FilterCmd  string

	PostBody    []byte
	ContentType string
	AuthHeader  string

	Priority Priority
}

// Result is the outcome of a fetch attempt.
type Result struct {
	FinalURL     string
	StatusCode   int
	Body         []byte
	LastModified string
	ETag         string
	ContentType  string

	Unchanged   bool // HTTP 304: body is empty, caller skips parsing
	Moved       bool // HTTP 301: caller should update the stored source
	AuthRequired bool

	FilterError string
	UpdateError string
}
