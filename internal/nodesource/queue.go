package nodesource

import (
	"container/list"
	"fmt"

	"feedcore/internal/domain"
)

// EditActionKind enumerates client-initiated mutations that must reach
// the remote provider.
type EditActionKind int

const (
	EditSubscribe EditActionKind = iota
	EditUnsubscribe
	EditRemoveReadTag
	EditAddKeptUnreadTag
	EditAddReadTag
	EditFlag
	EditUnflag
)

// EditAction is one queued mutation.
type EditAction struct {
	Kind   EditActionKind
	ItemID domain.ItemID
	URL    string // feed URL, for Subscribe/Unsubscribe
}

func (a EditAction) render(ep EndpointTable) (endpoint, body string) {
	switch a.Kind {
	case EditSubscribe:
		return ep.AddSubscriptionPost, fmt.Sprintf("s=feed/%s", a.URL)
	case EditUnsubscribe:
		return ep.RemoveSubscriptionPost, fmt.Sprintf("s=feed/%s&ac=unsubscribe", a.URL)
	case EditAddReadTag:
		return ep.EditTagAddPost, fmt.Sprintf("i=%d&a=user/-/state/com.google/read", a.ItemID)
	case EditRemoveReadTag:
		return ep.EditTagRemovePost, fmt.Sprintf("i=%d&r=user/-/state/com.google/read", a.ItemID)
	case EditAddKeptUnreadTag:
		return ep.EditTagAddPost, fmt.Sprintf("i=%d&a=user/-/state/com.google/tracking-kept-unread", a.ItemID)
	case EditFlag:
		return ep.EditAddLabelPost, fmt.Sprintf("i=%d&a=user/-/state/com.google/starred", a.ItemID)
	case EditUnflag:
		return ep.EditRemoveLabelPost, fmt.Sprintf("i=%d&r=user/-/state/com.google/starred", a.ItemID)
	default:
		return "", ""
	}
}

// MarkUnread enqueues a two-action sequence so a failure after the
// first call still leaves the item visibly unread: remove the read
// tag, then add the tracking-kept-unread tag.
func MarkUnread(item domain.ItemID) []EditAction {
	return []EditAction{
		{Kind: EditRemoveReadTag, ItemID: item},
		{Kind: EditAddKeptUnreadTag, ItemID: item},
	}
}

// EditQueue is a per-source FIFO of pending edit actions, backed by
// container/list so head-priority inserts (subscribe/unsubscribe) are
// O(1) alongside normal tail appends (item edits).
type EditQueue struct {
	l *list.List
}

func NewEditQueue() *EditQueue {
	return &EditQueue{l: list.New()}
}

// Push appends a to the tail — the default for item edits.
func (q *EditQueue) Push(a EditAction) {
	q.l.PushBack(a)
}

// PushFront inserts a at the head — used for subscribe/unsubscribe so
// they beat any already-queued state sync that depends on membership.
func (q *EditQueue) PushFront(a EditAction) {
	q.l.PushFront(a)
}

func (q *EditQueue) Peek() (EditAction, bool) {
	front := q.l.Front()
	if front == nil {
		return EditAction{}, false
	}
	return front.Value.(EditAction), true
}

func (q *EditQueue) Pop() {
	if front := q.l.Front(); front != nil {
		q.l.Remove(front)
	}
}

func (q *EditQueue) Len() int {
	return q.l.Len()
}
