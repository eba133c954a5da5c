// Package plugin defines the three plugin surfaces the core consumes.
// Calls into a plugin are always synchronous and made from the control
// loop; a plugin must never re-enter it.
package plugin

import (
	"context"

	"feedcore/internal/domain"
)

// AuthInfo is a credential pair supplied by an AuthActivatable plugin in
// response to a query.
type AuthInfo struct {
	Username string
	Password string
}

// AuthActivatable supplies and stores credentials for a subscription on
// behalf of an external secret store.
type AuthActivatable interface {
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error

	// Query asks the plugin for stored credentials for authID (typically
	// a subscription's source URL). ok is false when the plugin holds no
	// entry for authID.
	Query(ctx context.Context, authID string) (info AuthInfo, ok bool, err error)

	// Store persists a credential pair under authID.
	Store(ctx context.Context, authID string, info AuthInfo) error
}

// SubscriptionPreparator validates and normalizes a subscription's
// source before the core creates its node.
type SubscriptionPreparator interface {
	PrepareFeed(ctx context.Context, rawSource string) (canonicalSource string, err error)
	PrepareSource(ctx context.Context, rawSource string) (canonicalSource string, err error)
}

// NodeSourceActivatable is a remote aggregator provider plugin. The
// concrete Google-Reader-compatible runtime in internal/nodesource
// implements the request/response mechanics this interface delegates to.
type NodeSourceActivatable interface {
	SubscriptionPreparator

	GetID() string
	GetName() string
	GetCapabilities() domain.Capabilities

	// New provisions a fresh source-root node's runtime state for a
	// subscription identified by rawSource (credentials, if any, already
	// resolved via AuthActivatable).
	New(ctx context.Context, rawSource string, creds AuthInfo) (*domain.SourceState, error)
	Delete(ctx context.Context, node domain.NodeID) error
	Free(ctx context.Context, node domain.NodeID) error

	ItemMarkRead(ctx context.Context, node domain.NodeID, item domain.ItemID, read bool) error
	ItemSetFlag(ctx context.Context, node domain.NodeID, item domain.ItemID, flag bool) error

	AddFolder(ctx context.Context, sourceRoot domain.NodeID, title string) error
	AddSubscription(ctx context.Context, sourceRoot domain.NodeID, url string) error
	RemoveNode(ctx context.Context, node domain.NodeID) error

	// ConvertToLocal detaches node from this provider, turning it into a
	// plain local feed the default-local provider owns from then on.
	ConvertToLocal(ctx context.Context, node domain.NodeID) error
}

// Enclosure mirrors domain.Enclosure for plugin consumption, kept
// independent so a media-player plugin does not need to import the
// item-store-facing domain package's full surface.
type Enclosure struct {
	URL      string
	MimeType string
}

// MediaPlayerActivatable hands enclosures off to an external player.
type MediaPlayerActivatable interface {
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
	Load(ctx context.Context, parent domain.NodeID, enclosures []Enclosure) error
}
