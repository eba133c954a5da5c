package domain

import "time"

// SourceType discriminates how a Subscription's Source is fetched: over
// HTTP, from a local file, or via a shell command. A fourth value,
// SourceTypeNodeSourceFeed, marks feed subscriptions whose lifecycle is
// owned by a remote node source rather than fetched directly.
type SourceType int

const (
	SourceTypeHTTP SourceType = iota
	SourceTypeFile
	SourceTypeCmd
	SourceTypeNodeSourceFeed
)

// UpdateInterval sentinels.
const (
	UpdateIntervalUseDefault = -1
	UpdateIntervalNever      = 0
)

// UpdateState is the per-subscription HTTP exchange memory: conditional
// GET validators and poll timestamps.
type UpdateState struct {
	LastModified      string
	ETag              string
	LastPollTS        time.Time
	LastFaviconPollTS time.Time
	MaxWeeklyCount    int
	Cookies           []*Cookie
}

// Cookie is a minimal serializable cookie record; the fetch client
// projects these to/from net/http.Cookie at the HTTP boundary.
type Cookie struct {
	Name, Value, Domain, Path string
	Expires                   time.Time
}

// UpdateOptions are the per-subscription request-shaping knobs.
type UpdateOptions struct {
	Username       string
	Password       string
	DontUseProxy   bool
	CookieJarRef   string
}

// Subscription is the update-able descriptor attached to a Feed or
// SourceRoot node.
type Subscription struct {
	SourceURL  string
	FilterCmd  string
	SourceType SourceType

	UpdateState   UpdateState
	UpdateOptions UpdateOptions

	UpdateInterval        int // minutes; -1 = default, 0 = never, >0 = override
	DefaultUpdateInterval int

	UpdateError   string
	HTTPErrorCode int
	FilterError   string

	Discontinued bool

	// ConsecutiveFailures and NextDue are scheduler-owned state but travel
	// with the subscription record so a reloaded tree resumes backoff
	// where it left off.
	ConsecutiveFailures int
	NextDue             time.Time
	InFlight            bool
}

// DueForAutoUpdate reports whether auto-update is allowed, returning false
// when it is inhibited for reasons intrinsic to the subscription itself.
// It does not evaluate
// NextDue <= now; that is the scheduler's job.
func (s *Subscription) DueForAutoUpdate() bool {
	if s.Discontinued {
		return false
	}
	if s.UpdateInterval == UpdateIntervalNever {
		return false
	}
	return true
}

// EffectiveIntervalMinutes resolves the -1/0/positive override rule
// against a process-global default.
func (s *Subscription) EffectiveIntervalMinutes(globalDefault int) int {
	switch {
	case s.UpdateInterval > 0:
		return s.UpdateInterval
	case s.UpdateInterval == UpdateIntervalUseDefault:
		if s.DefaultUpdateInterval > 0 {
			return s.DefaultUpdateInterval
		}
		return globalDefault
	default: // UpdateIntervalNever
		return 0
	}
}
