// Package nodesource runs the client-side state machine and edit-action
// queue for a remote, Google-Reader-compatible aggregator bound to a
// source-root node.
package nodesource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedcore/internal/domain"
	"feedcore/internal/resilience/circuitbreaker"
	"feedcore/internal/resilience/retry"
)

// EndpointTable is the API surface a Google-Reader-compatible provider
// exposes.
type EndpointTable struct {
	Login               string
	LoginPost           string
	UnreadCount         string
	SubscriptionList    string
	AddSubscription     string
	AddSubscriptionPost string
	RemoveSubscription  string
	RemoveSubscriptionPost string
	EditTag                string
	EditTagAddPost         string
	EditTagARTagPost       string
	EditTagRemovePost      string
	EditLabel              string
	EditAddLabelPost       string
	EditRemoveLabelPost    string
	Token                  string
}

// Credentials are the username/password the provider logs in with.
type Credentials struct {
	Username string
	Password string
}

// Source runs one provider instance bound to a source-root node.
type Source struct {
	NodeID      domain.NodeID
	Endpoints   EndpointTable
	Credentials Credentials

	httpClient     HTTPDoer
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	queue          *EditQueue
}

// HTTPDoer is the minimal surface nodesource needs from an HTTP client,
// so tests can substitute a fake transport.
type HTTPDoer interface {
	Do(req *Request) (*Response, error)
}

// Request and Response are a transport-agnostic stand-in for
// net/http.Request/Response, keeping this package free of wire-format
// decisions the concrete Google-Reader-compatible provider makes.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

type Response struct {
	StatusCode int
	Body       []byte
	Header     map[string]string
}

// NewSource builds a Source bound to node, ready to be driven by
// Tick from state none.
func NewSource(node domain.NodeID, endpoints EndpointTable, creds Credentials, client HTTPDoer) *Source {
	return &Source{
		NodeID:         node,
		Endpoints:      endpoints,
		Credentials:    creds,
		httpClient:     client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
		queue:          NewEditQueue(),
	}
}

// Tick drives the state machine for one scheduler pass, handling both
// the login/auth state transitions and edit-action queue draining.
func (s *Source) Tick(ctx context.Context, state *domain.SourceState) error {
	switch state.State {
	case domain.NodeSourceStateNone:
		return s.login(ctx, state)
	case domain.NodeSourceStateInProgress:
		return nil // awaiting login response delivered by a prior Tick
	case domain.NodeSourceStateActive:
		return s.processQueue(ctx, state)
	case domain.NodeSourceStateMigrate:
		return nil // import-only; handled by internal/persist/opml
	default:
		return fmt.Errorf("nodesource: unknown state %v", state.State)
	}
}

func (s *Source) login(ctx context.Context, state *domain.SourceState) error {
	state.State = domain.NodeSourceStateInProgress
	resp, err := s.doResilient(ctx, &Request{
		Method: "POST",
		URL:    s.Endpoints.LoginPost,
		Body:   []byte(fmt.Sprintf("Email=%s&Passwd=%s", s.Credentials.Username, s.Credentials.Password)),
	})
	if err != nil {
		state.State = domain.NodeSourceStateNone
		return fmt.Errorf("nodesource: login: %w", err)
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		state.State = domain.NodeSourceStateNone
		return fmt.Errorf("nodesource: login: unauthorized")
	}

	token := extractToken(resp.Body)
	state.Token = token
	state.TokenExpiry = tokenExpiry(token)
	state.State = domain.NodeSourceStateActive
	return nil
}

// doResilient wraps every remote call in the same circuit breaker +
// retry pair the fetch client uses for HTTP subscriptions.
func (s *Source) doResilient(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response
	err := retry.WithBackoff(ctx, s.retryConfig, func() error {
		cbResult, err := s.circuitBreaker.Execute(func() (interface{}, error) {
			return s.httpClient.Do(req)
		})
		if err != nil {
			return err
		}
		resp = cbResult.(*Response)
		if resp.StatusCode == 401 {
			return &retry.HTTPError{StatusCode: 401, Message: "auth expired"}
		}
		return nil
	})
	return resp, err
}

// expired reports whether the stored token is past its claimed expiry,
// triggering the active -> none transition on the next Tick.
func (s *Source) expired(state *domain.SourceState, now time.Time) bool {
	return !state.TokenExpiry.IsZero() && now.After(state.TokenExpiry)
}

// HandleAuthFailure implements the active -> none transition. The
// pending edit queue is preserved; re-login is attempted on the next
// Tick.
func (s *Source) HandleAuthFailure(state *domain.SourceState) {
	state.State = domain.NodeSourceStateNone
	state.Token = ""
	state.TokenExpiry = time.Time{}
}

// Enqueue adds a to the edit queue. Subscribe/unsubscribe jump the queue
// head; everything else appends at the tail.
func (s *Source) Enqueue(a EditAction) {
	if a.Kind == EditSubscribe || a.Kind == EditUnsubscribe {
		s.queue.PushFront(a)
		return
	}
	s.queue.Push(a)
}

func (s *Source) processQueue(ctx context.Context, state *domain.SourceState) error {
	if now := time.Now(); s.expired(state, now) {
		s.HandleAuthFailure(state)
		return nil
	}

	for {
		action, ok := s.queue.Peek()
		if !ok {
			return nil
		}
		if err := s.applyAction(ctx, state, action); err != nil {
			return fmt.Errorf("nodesource: apply action: %w", err)
		}
		s.queue.Pop()
	}
}

func (s *Source) applyAction(ctx context.Context, state *domain.SourceState, a EditAction) error {
	endpoint, body := a.render(s.Endpoints)
	_, err := s.doResilient(ctx, &Request{
		Method: "POST",
		URL:    endpoint,
		Header: map[string]string{"Authorization": "GoogleLogin auth=" + state.Token},
		Body:   []byte(body),
	})
	if err != nil {
		if isAuthError(err) {
			s.HandleAuthFailure(state)
		}
		return err
	}
	return nil
}

func isAuthError(err error) bool {
	var httpErr *retry.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 401
}
