// Package tree implements the in-memory subscription hierarchy. Nodes are
// kept in a flat arena keyed by domain.NodeID and linked only by ID, so a
// node can never hold a direct pointer cycle back to one of its own
// ancestors.
package tree

import (
	"fmt"
	"sync"

	"feedcore/internal/domain"
)

// Tree owns every domain.Node and is the sole mutator of parent/child
// links and counters. It is meant to be used only from the control loop:
// every other goroutine only reads node state it was handed back over a
// completion channel.
type Tree struct {
	mu    sync.RWMutex
	nodes map[domain.NodeID]*domain.Node
	root  domain.NodeID
}

// New creates a tree with a freshly minted root node of kind SourceRoot,
// provider "default-local". Every tree has exactly one such root.
func New() *Tree {
	root := &domain.Node{
		ID:    domain.NewNodeID(),
		Kind:  domain.NodeKindSourceRoot,
		Title: "Feeds",
		Source: &domain.SourceState{
			ProviderID: "default-local",
			State:      domain.NodeSourceStateActive,
		},
	}
	t := &Tree{nodes: make(map[domain.NodeID]*domain.Node)}
	t.nodes[root.ID] = root
	t.root = root.ID
	return t
}

// Root returns the tree's unique root node.
func (t *Tree) Root() *domain.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodes[t.root]
}

// NodeFromID looks up a node by id.
func (t *Tree) NodeFromID(id domain.NodeID) (*domain.Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("tree: %s: %w", id, domain.ErrNotFound)
	}
	return n, nil
}

// canParent reports whether parent's provider capabilities permit a child
// of the given kind.
func canParent(parent *domain.Node, childKind domain.NodeKind) bool {
	if parent.Kind == domain.NodeKindSearchFolder || parent.Kind == domain.NodeKindNewsBin {
		return false
	}
	if parent.Kind == domain.NodeKindSourceRoot && parent.Source != nil {
		caps := parent.Source.Capabilities
		switch childKind {
		case domain.NodeKindFolder:
			if !caps.AddFolder && parent.Source.ProviderID != "default-local" {
				return false
			}
		case domain.NodeKindFeed:
			if !caps.AddFeed && parent.Source.ProviderID != "default-local" {
				return false
			}
		}
		if !caps.HierarchicFeedList && childKind == domain.NodeKindFolder && parent.Source.ProviderID != "default-local" {
			return false
		}
	}
	return true
}

// AddChild inserts node as a child of parent at the given position
// (0-indexed; position >= len(children) appends). It fails with
// ErrKindNotPermitted if parent's node kind or provider capabilities
// don't allow a child of node's kind.
func (t *Tree) AddChild(parentID domain.NodeID, node *domain.Node, position int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.nodes[parentID]
	if !ok {
		return fmt.Errorf("tree: AddChild: parent %s: %w", parentID, domain.ErrNotFound)
	}
	if !canParent(parent, node.Kind) {
		return fmt.Errorf("tree: AddChild: %w", domain.ErrKindNotPermitted)
	}
	if node.ID == "" {
		node.ID = domain.NewNodeID()
	}
	if _, exists := t.nodes[node.ID]; exists {
		return fmt.Errorf("tree: AddChild: node %s already present", node.ID)
	}

	node.ParentID = parentID
	t.nodes[node.ID] = node

	if position < 0 || position >= len(parent.Children) {
		parent.Children = append(parent.Children, node.ID)
	} else {
		parent.Children = append(parent.Children, "")
		copy(parent.Children[position+1:], parent.Children[position:])
		parent.Children[position] = node.ID
	}

	t.recomputeCountersLocked(parentID)
	return nil
}

// Remove deletes node and its descendants. Removal under a remote-owned
// parent may be asynchronous: the caller marks the node PendingRemoval and
// calls Remove only once the source confirms; Remove itself is always the
// synchronous, final tree mutation.
func (t *Tree) Remove(id domain.NodeID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("tree: Remove: %s: %w", id, domain.ErrNotFound)
	}
	if node.IsRoot() {
		return fmt.Errorf("tree: Remove: cannot remove root")
	}

	t.removeSubtreeLocked(id)

	parent := t.nodes[node.ParentID]
	parent.Children = removeID(parent.Children, id)
	t.recomputeCountersLocked(parent.ID)
	return nil
}

func (t *Tree) removeSubtreeLocked(id domain.NodeID) {
	node := t.nodes[id]
	for _, c := range node.Children {
		t.removeSubtreeLocked(c)
	}
	delete(t.nodes, id)
}

// Move relinquishes node from its current parent and inserts it under
// newParent at the given position. Fails with ErrCycle if newParent is
// node itself or one of its descendants.
func (t *Tree) Move(id domain.NodeID, newParentID domain.NodeID, position int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("tree: Move: %s: %w", id, domain.ErrNotFound)
	}
	if node.IsRoot() {
		return fmt.Errorf("tree: Move: cannot move root")
	}
	newParent, ok := t.nodes[newParentID]
	if !ok {
		return fmt.Errorf("tree: Move: new parent %s: %w", newParentID, domain.ErrNotFound)
	}
	if id == newParentID || t.isDescendantLocked(id, newParentID) {
		return domain.ErrCycle
	}
	if !canParent(newParent, node.Kind) {
		return fmt.Errorf("tree: Move: %w", domain.ErrKindNotPermitted)
	}

	oldParent := t.nodes[node.ParentID]
	oldParent.Children = removeID(oldParent.Children, id)

	node.ParentID = newParentID
	if position < 0 || position >= len(newParent.Children) {
		newParent.Children = append(newParent.Children, id)
	} else {
		newParent.Children = append(newParent.Children, "")
		copy(newParent.Children[position+1:], newParent.Children[position:])
		newParent.Children[position] = id
	}

	t.recomputeCountersLocked(oldParent.ID)
	t.recomputeCountersLocked(newParentID)
	return nil
}

func (t *Tree) isDescendantLocked(ancestor, candidate domain.NodeID) bool {
	node := t.nodes[candidate]
	for node.ParentID != "" {
		if node.ParentID == ancestor {
			return true
		}
		node = t.nodes[node.ParentID]
	}
	return false
}

func removeID(ids []domain.NodeID, target domain.NodeID) []domain.NodeID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// ForeachChild performs a pre-order depth-first walk starting at node
// (inclusive). The callback must not structurally mutate the walked
// subtree.
func (t *Tree) ForeachChild(id domain.NodeID, fn func(*domain.Node)) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.walkLocked(id, fn)
}

func (t *Tree) walkLocked(id domain.NodeID, fn func(*domain.Node)) error {
	node, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("tree: ForeachChild: %s: %w", id, domain.ErrNotFound)
	}
	fn(node)
	for _, c := range node.Children {
		if err := t.walkLocked(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// UpdateCounters sets a node's own-item counters and recomputes every
// ancestor's aggregate counters bottom-up, since a descendant's counters
// changing always changes its ancestors' totals too.
func (t *Tree) UpdateCounters(id domain.NodeID, own domain.Counters) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("tree: UpdateCounters: %s: %w", id, domain.ErrNotFound)
	}
	node.Counters = own
	t.recomputeCountersLocked(node.ParentID)
	return nil
}

// recomputeCountersLocked recomputes aggregate counters for id and every
// ancestor above it, bottom-up. It is a no-op once it reaches above the
// root (ParentID == "").
func (t *Tree) recomputeCountersLocked(id domain.NodeID) {
	for id != "" {
		node, ok := t.nodes[id]
		if !ok {
			return
		}
		if node.Kind.Aggregates() {
			var agg domain.Counters
			for _, c := range node.Children {
				child := t.nodes[c]
				if child == nil {
					continue
				}
				if child.Kind.Aggregates() || child.Kind == domain.NodeKindNewsBin {
					agg.Add(child.Counters)
				}
			}
			node.Counters = agg
		}
		id = node.ParentID
	}
}
