// Package guard decides whether a protected view may render for the current
// auth state, and where to send the client when it may not.
package guard

import (
	"net/url"
	"strings"
	"sync"

	"todoapp/internal/authstate"
)

// Outcome is the kind of decision.
type Outcome int

const (
	// Wait means the state is still initializing; render a placeholder.
	Wait Outcome = iota
	Allow
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Wait:
		return "wait"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decision is the result of evaluating requirements.
type Decision struct {
	Outcome Outcome
	Target  string
	Reason  string
}

// Requirement is a capability check against a resolved snapshot.
type Requirement interface {
	Name() string
	Satisfied(snap authstate.Snapshot) bool
	// Fallback is the view to send the client to when unsatisfied.
	Fallback() string
}

type authenticated struct{ entry string }

// Authenticated requires a signed-in user; otherwise the client goes to entry.
func Authenticated(entry string) Requirement { return authenticated{entry: entry} }

func (authenticated) Name() string                           { return "authenticated" }
func (authenticated) Satisfied(snap authstate.Snapshot) bool { return snap.Authenticated() }
func (a authenticated) Fallback() string                     { return a.entry }

type subscribed struct{ plan string }

// Subscribed requires a subscription that grants access; otherwise the
// client goes to the plan view.
func Subscribed(plan string) Requirement { return subscribed{plan: plan} }

func (subscribed) Name() string                           { return "subscribed" }
func (subscribed) Satisfied(snap authstate.Snapshot) bool { return snap.IsSubscribed() }
func (s subscribed) Fallback() string                     { return s.plan }

// Decide evaluates reqs in order. It never redirects while initializing, and
// never redirects to the path being guarded.
func Decide(snap authstate.Snapshot, path string, reqs ...Requirement) Decision {
	if snap.Initializing {
		return Decision{Outcome: Wait, Reason: "initializing"}
	}
	for _, r := range reqs {
		if r.Satisfied(snap) {
			continue
		}
		if samePath(r.Fallback(), path) {
			return Decision{Outcome: Allow, Reason: r.Name() + " unsatisfied on fallback view"}
		}
		return Decision{Outcome: Redirect, Target: WithFrom(r.Fallback(), path), Reason: r.Name()}
	}
	return Decision{Outcome: Allow}
}

// WithFrom appends the originally requested path as the from parameter.
func WithFrom(target, from string) string {
	if from == "" {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "from=" + url.QueryEscape(from)
}

// SafeFrom returns raw when it is a local absolute path, else "".
func SafeFrom(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return raw
}

func samePath(target, path string) bool {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	return target == path
}

// Memo remembers one decision per guard and path for each resolved state, so
// a client sees a single decision per transition however often it asks.
type Memo struct {
	mu         sync.Mutex
	resolution uint64
	decisions  map[string]Decision
}

func NewMemo() *Memo {
	return &Memo{decisions: make(map[string]Decision)}
}

// Decide returns the memoized decision for snap or computes it. fresh is true
// when the decision was computed by this call.
func (m *Memo) Decide(name string, snap authstate.Snapshot, path string, reqs ...Requirement) (d Decision, fresh bool) {
	if snap.Initializing {
		return Decision{Outcome: Wait, Reason: "initializing"}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Resolution != m.resolution {
		m.resolution = snap.Resolution
		clear(m.decisions)
	}
	key := name + " " + path
	if d, ok := m.decisions[key]; ok {
		return d, false
	}
	d = Decide(snap, path, reqs...)
	m.decisions[key] = d
	return d, true
}
