// Package authstate holds the per-client authentication and subscription
// state machine: Initializing until the session and, when signed in, the
// subscription have been resolved.
package authstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"todoapp/internal/domain"
	"todoapp/internal/infra"
	"todoapp/internal/session"
)

// DefaultFetchTimeout bounds a single subscription lookup.
const DefaultFetchTimeout = 5 * time.Second

// SessionSource is the session store the context follows.
type SessionSource interface {
	GetSession(ctx context.Context) (*domain.Session, error)
	OnSessionChange(l session.Listener) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// SubscriptionResolver looks up the subscription of a user; (nil, nil) means none.
type SubscriptionResolver interface {
	GetUserSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
}

// Snapshot is an immutable view of the context state.
type Snapshot struct {
	Initializing         bool
	Session              *domain.Session
	Subscription         *domain.Subscription
	SubscriptionFetching bool
	// Version increases on every change.
	Version uint64
	// Resolution increases each time a resolved state is published.
	Resolution uint64
}

// User returns the signed-in user or nil.
func (s Snapshot) User() *domain.User {
	if s.Session == nil {
		return nil
	}
	u := s.Session.User
	return &u
}

func (s Snapshot) Authenticated() bool { return s.Session != nil }

// IsSubscribed is derived from the subscription status, never stored.
func (s Snapshot) IsSubscribed() bool { return s.Subscription.IsSubscribed() }

// Options tunes a Context.
type Options struct {
	FetchTimeout time.Duration
	Logger       *infra.Logger
}

// Context tracks one client's session and subscription. Every resolution
// cycle and every subscription request takes a token; a response is applied
// only while its token is still the latest.
type Context struct {
	sessions SessionSource
	subs     SubscriptionResolver
	timeout  time.Duration
	logger   *infra.Logger

	base   context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	snap        Snapshot
	cycle       uint64
	fetchSeq    uint64
	appliedSeq  uint64
	changed     chan struct{}
	unsubscribe func()
	mounted     bool
	closed      bool
}

func New(sessions SessionSource, subs SubscriptionResolver, opts Options) *Context {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Context{
		sessions: sessions,
		subs:     subs,
		timeout:  timeout,
		logger:   logger,
		base:     base,
		cancel:   cancel,
		snap:     Snapshot{Initializing: true},
		changed:  make(chan struct{}),
	}
}

// Mount starts the first resolution and follows session changes until Close.
// Calling it again is a no-op.
func (c *Context) Mount() {
	c.mu.Lock()
	if c.mounted || c.closed {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	token := c.beginCycleLocked()
	c.mu.Unlock()

	go c.resolve(token)

	unsubscribe := c.sessions.OnSessionChange(c.onSessionChange)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// Close stops following session changes and discards in-flight work.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cycle++
	c.fetchSeq++
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.cancel()
}

// Snapshot returns the current state.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Changed returns a channel closed at the next state change.
func (c *Context) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// WaitReady blocks until the context has left Initializing or ctx ends. The
// last observed snapshot is returned either way.
func (c *Context) WaitReady(ctx context.Context) (Snapshot, error) {
	for {
		c.mu.Lock()
		snap, ch := c.snap, c.changed
		c.mu.Unlock()
		if !snap.Initializing {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// RefreshSubscription re-runs the subscription lookup for the current user
// without touching the session. Failures leave the subscription absent and
// are logged; the resulting snapshot is returned.
func (c *Context) RefreshSubscription(ctx context.Context) Snapshot {
	c.mu.Lock()
	if c.closed || c.snap.Session == nil {
		snap := c.snap
		c.mu.Unlock()
		return snap
	}
	userID := c.snap.Session.User.ID
	c.fetchSeq++
	token := c.fetchSeq
	c.snap.SubscriptionFetching = true
	c.bumpLocked()
	c.mu.Unlock()

	sub, err := c.fetch(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.fetchSeq || c.snap.Session.UserID() != userID {
		c.logger.Debug().Uint64("token", token).Msg("stale subscription response discarded")
		return c.snap
	}
	c.applySubscriptionLocked(token, userID, sub, err)
	if !c.snap.Initializing {
		c.snap.Resolution++
	}
	c.bumpLocked()
	return c.snap
}

// Logout enters Initializing and signs out through the session store; the
// resulting session change resolves the unauthenticated state.
func (c *Context) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	token := c.beginCycleLocked()
	c.mu.Unlock()

	if err := c.sessions.SignOut(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("sign out failed")
		go c.resolve(token)
		return fmt.Errorf("sign out: %w", err)
	}
	c.mu.Lock()
	stillCurrent := token == c.cycle
	c.mu.Unlock()
	if stillCurrent {
		go c.resolve(token)
	}
	return nil
}

func (c *Context) onSessionChange(event domain.AuthEvent, _ *domain.Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	token := c.beginCycleLocked()
	c.mu.Unlock()

	c.logger.Debug().Str("event", string(event)).Uint64("cycle", token).Msg("session changed")
	go c.resolve(token)
}

// beginCycleLocked enters Initializing and returns the new cycle token.
func (c *Context) beginCycleLocked() uint64 {
	c.cycle++
	c.snap.Initializing = true
	c.bumpLocked()
	return c.cycle
}

func (c *Context) resolve(token uint64) {
	sess, err := c.sessions.GetSession(c.base)
	if err != nil {
		c.logger.Warn().Err(err).Msg("session lookup failed, treating as signed out")
		sess = nil
	}

	c.mu.Lock()
	if token != c.cycle {
		c.mu.Unlock()
		return
	}
	if c.snap.Session.UserID() != sess.UserID() {
		c.snap.Subscription = nil
	}
	c.snap.Session = sess
	if sess == nil {
		c.fetchSeq++
		c.snap.SubscriptionFetching = false
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	userID := sess.User.ID
	c.fetchSeq++
	fetchToken := c.fetchSeq
	c.snap.SubscriptionFetching = true
	c.bumpLocked()
	c.mu.Unlock()

	sub, err := c.fetch(c.base, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.cycle {
		return
	}
	switch {
	case fetchToken == c.fetchSeq:
		c.applySubscriptionLocked(fetchToken, userID, sub, err)
	case c.appliedSeq < fetchToken:
		// A newer refresh is still in flight and replaces this result when
		// it lands.
		c.applySubscriptionLocked(fetchToken, userID, sub, err)
		c.snap.SubscriptionFetching = true
	}
	c.publishLocked()
}

// fetch runs the lookup on its own goroutine so a resolver that ignores
// cancellation still cannot hold the caller past the timeout.
func (c *Context) fetch(parent context.Context, userID string) (*domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	type result struct {
		sub *domain.Subscription
		err error
	}
	done := make(chan result, 1)
	go func() {
		sub, err := c.subs.GetUserSubscription(ctx, userID)
		done <- result{sub: sub, err: err}
	}()

	select {
	case r := <-done:
		return r.sub, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("subscription lookup: %w", ctx.Err())
	}
}

func (c *Context) applySubscriptionLocked(token uint64, userID string, sub *domain.Subscription, err error) {
	c.appliedSeq = token
	c.snap.SubscriptionFetching = false
	if err != nil {
		c.logger.Error().Err(err).Str("user_id", userID).Msg("subscription unavailable")
		c.snap.Subscription = nil
		return
	}
	c.snap.Subscription = sub
}

func (c *Context) publishLocked() {
	c.snap.Initializing = false
	c.snap.Resolution++
	c.bumpLocked()
	c.logger.Debug().
		Bool("authenticated", c.snap.Session != nil).
		Bool("subscribed", c.snap.IsSubscribed()).
		Uint64("resolution", c.snap.Resolution).
		Msg("auth state resolved")
}

func (c *Context) bumpLocked() {
	c.snap.Version++
	close(c.changed)
	c.changed = make(chan struct{})
}
