// Package domain defines the core entities of the subscription tree: nodes,
// subscriptions, feed payloads, items, and search-folder rule sets.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

// NodeID is the stable, opaque identifier assigned to a node at creation.
// It is also used as a filesystem path component (favicon cache, per-source
// OPML caches), so it is restricted to the canonical string form of a UUID.
type NodeID string

// NewNodeID generates a fresh, process-wide unique node identifier.
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// NodeKind discriminates the polymorphic node variants. Each non-folder
// kind carries its payload in the corresponding pointer field of Node.
type NodeKind int

const (
	NodeKindFeed NodeKind = iota
	NodeKindFolder
	NodeKindNewsBin
	NodeKindSearchFolder
	NodeKindSourceRoot
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindFeed:
		return "feed"
	case NodeKindFolder:
		return "folder"
	case NodeKindNewsBin:
		return "newsbin"
	case NodeKindSearchFolder:
		return "searchfolder"
	case NodeKindSourceRoot:
		return "source-root"
	default:
		return "unknown"
	}
}

// Aggregates reports whether a node of this kind contributes its
// counters to an ancestor folder's aggregate counters.
func (k NodeKind) Aggregates() bool {
	return k != NodeKindSearchFolder
}

var (
	ErrCycle           = errors.New("domain: node would create a cycle")
	ErrNotFound        = errors.New("domain: node not found")
	ErrKindNotPermitted = errors.New("domain: child kind not permitted under parent")
)

// Counters holds the three counters every node carries.
type Counters struct {
	Unread int
	New    int
	Items  int
}

// Add accumulates delta into the counters in place.
func (c *Counters) Add(d Counters) {
	c.Unread += d.Unread
	c.New += d.New
	c.Items += d.Items
}

// Node is a vertex in the subscription tree. Parent/child links are kept
// as NodeIDs rather than pointers so the tree can be represented as a flat
// arena (internal/tree.Tree) with no reference cycles.
type Node struct {
	ID       NodeID
	Kind     NodeKind
	ParentID NodeID // zero value for the root
	Children []NodeID

	Title    string
	IconRef  string
	Counters Counters

	// Subscription is present for Feed and SourceRoot kinds, nil otherwise.
	Subscription *Subscription

	// Feed is present only for Feed-kind nodes.
	Feed *FeedPayload

	// Source is present only for SourceRoot-kind nodes.
	Source *SourceState

	// SearchRules is present only for SearchFolder-kind nodes.
	SearchRules *RuleSet

	// PendingRemoval marks a node awaiting an async remote delete
	// confirmation from its owning node source.
	PendingRemoval bool
}

// IsRoot reports whether this node is the tree's unique root.
func (n *Node) IsRoot() bool {
	return n.ParentID == ""
}
