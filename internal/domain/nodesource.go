package domain

import "time"

// NodeSourceState is the runtime state machine position of a remote
// aggregator.
type NodeSourceState int

const (
	NodeSourceStateNone NodeSourceState = iota
	NodeSourceStateInProgress
	NodeSourceStateActive
	NodeSourceStateMigrate
)

func (s NodeSourceState) String() string {
	switch s {
	case NodeSourceStateNone:
		return "none"
	case NodeSourceStateInProgress:
		return "in_progress"
	case NodeSourceStateActive:
		return "active"
	case NodeSourceStateMigrate:
		return "migrate"
	default:
		return "unknown"
	}
}

// Capabilities is the per-provider capability set.
type Capabilities struct {
	IsRoot                bool
	MultiInstance         bool
	WritableFeedList      bool
	HierarchicFeedList    bool
	SupportsItemsReadSync bool
	SupportsItemsFlagSync bool
	ConvertToLocal        bool
	AddFeed               bool
	AddFolder             bool
	RemoveNode            bool
}

// SourceState is the payload of a SourceRoot-kind node.
type SourceState struct {
	ProviderID   string
	State        NodeSourceState
	Token        string
	TokenExpiry  time.Time
	Capabilities Capabilities
	LastSyncTS   time.Time
}
