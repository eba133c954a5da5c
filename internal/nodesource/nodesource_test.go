package nodesource

import (
	"context"
	"testing"
	"time"

	"feedcore/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct {
	responses []*Response
	calls     []*Request
	err       error
}

func (f *fakeDoer) Do(req *Request) (*Response, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &Response{StatusCode: 200}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestLoginTransitionsNoneToActive(t *testing.T) {
	doer := &fakeDoer{responses: []*Response{{StatusCode: 200, Body: []byte("Auth=" + signedToken(t, time.Now().Add(time.Hour)))}}}
	src := NewSource("n1", EndpointTable{LoginPost: "/login"}, Credentials{Username: "u", Password: "p"}, doer)

	state := &domain.SourceState{State: domain.NodeSourceStateNone}
	require.NoError(t, src.Tick(context.Background(), state))
	require.Equal(t, domain.NodeSourceStateActive, state.State)
	require.NotEmpty(t, state.Token)
	require.False(t, state.TokenExpiry.IsZero())
}

func TestLoginUnauthorizedStaysNone(t *testing.T) {
	doer := &fakeDoer{responses: []*Response{{StatusCode: 401}}}
	src := NewSource("n1", EndpointTable{LoginPost: "/login"}, Credentials{}, doer)

	state := &domain.SourceState{State: domain.NodeSourceStateNone}
	err := src.Tick(context.Background(), state)
	require.Error(t, err)
	require.Equal(t, domain.NodeSourceStateNone, state.State)
}

func TestProcessQueueAppliesHeadActionAndPops(t *testing.T) {
	doer := &fakeDoer{}
	src := NewSource("n1", EndpointTable{EditTagAddPost: "/edit-tag"}, Credentials{}, doer)
	src.Enqueue(EditAction{Kind: EditAddReadTag, ItemID: 42})

	state := &domain.SourceState{State: domain.NodeSourceStateActive, Token: "tok"}
	require.NoError(t, src.Tick(context.Background(), state))
	require.Equal(t, 0, src.queue.Len())
	require.Len(t, doer.calls, 1)
	require.Equal(t, "/edit-tag", doer.calls[0].URL)
}

func TestMarkUnreadEnqueuesTwoActionsInOrder(t *testing.T) {
	actions := MarkUnread(7)
	require.Len(t, actions, 2)
	require.Equal(t, EditRemoveReadTag, actions[0].Kind)
	require.Equal(t, EditAddKeptUnreadTag, actions[1].Kind)
}

func TestSubscribeJumpsQueueHeadAheadOfItemEdit(t *testing.T) {
	src := NewSource("n1", EndpointTable{}, Credentials{}, &fakeDoer{})
	src.Enqueue(EditAction{Kind: EditAddReadTag, ItemID: 1})
	src.Enqueue(EditAction{Kind: EditSubscribe, URL: "http://new.example/feed"})

	first, ok := src.queue.Peek()
	require.True(t, ok)
	require.Equal(t, EditSubscribe, first.Kind)
}

func TestAuthFailureDuringQueueProcessingResetsToNone(t *testing.T) {
	doer := &fakeDoer{responses: []*Response{{StatusCode: 401}}}
	src := NewSource("n1", EndpointTable{EditTagAddPost: "/edit-tag"}, Credentials{}, doer)
	src.Enqueue(EditAction{Kind: EditAddReadTag, ItemID: 1})

	state := &domain.SourceState{State: domain.NodeSourceStateActive, Token: "tok"}
	err := src.Tick(context.Background(), state)
	require.Error(t, err)
	require.Equal(t, domain.NodeSourceStateNone, state.State)
	require.Equal(t, 1, src.queue.Len(), "failed action must stay at the head for retry")
}

func TestExpiredTokenForcesReloginBeforeProcessingQueue(t *testing.T) {
	doer := &fakeDoer{}
	src := NewSource("n1", EndpointTable{}, Credentials{}, doer)
	src.Enqueue(EditAction{Kind: EditAddReadTag, ItemID: 1})

	state := &domain.SourceState{State: domain.NodeSourceStateActive, Token: "tok", TokenExpiry: time.Now().Add(-time.Minute)}
	require.NoError(t, src.Tick(context.Background(), state))
	require.Equal(t, domain.NodeSourceStateNone, state.State)
	require.Empty(t, doer.calls, "no remote call should happen once the token is known expired")
}
