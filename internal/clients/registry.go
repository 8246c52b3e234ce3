// Package clients keeps the per-browser state of the server: one session
// store, auth context, todo list and guard memo per client id.
package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"todoapp/internal/authstate"
	"todoapp/internal/domain"
	"todoapp/internal/guard"
	"todoapp/internal/infra"
	"todoapp/internal/session"
	"todoapp/internal/todos"
)

const (
	DefaultIdleTTL    = 30 * time.Minute
	DefaultMaxClients = 10000
	sweepInterval     = time.Minute
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("client registry closed")

var activeClients = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "todoapp_active_clients",
	Help: "Number of browser clients with mounted auth state.",
})

// Client bundles the state of one browser.
type Client struct {
	ID      string
	Session *session.Store
	Auth    *authstate.Context
	Todos   *todos.List
	Guard   *guard.Memo

	lastSeen time.Time
}

// Deps wires a Registry.
type Deps struct {
	Auth          session.AuthClient
	Sessions      domain.SessionRepository
	Verifier      *session.TokenVerifier
	Subscriptions authstate.SubscriptionResolver
	Todos         domain.TodoRepository
	FetchTimeout  time.Duration
	IdleTTL       time.Duration
	// MaxClients bounds the mounted clients; the least recently seen one is
	// unmounted to make room.
	MaxClients int
	Logger     *infra.Logger
	Now        func() time.Time
}

type Registry struct {
	deps   Deps
	logger *infra.Logger

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

func NewRegistry(deps Deps) *Registry {
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = DefaultIdleTTL
	}
	if deps.MaxClients <= 0 {
		deps.MaxClients = DefaultMaxClients
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Registry{deps: deps, logger: logger, clients: make(map[string]*Client)}
}

// Get returns the client for id, creating and mounting it on first use.
func (r *Registry) Get(id string) (*Client, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: client id is required", domain.ErrValidation)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	now := r.deps.Now()
	if c, ok := r.clients[id]; ok {
		c.lastSeen = now
		r.mu.Unlock()
		return c, nil
	}
	evicted := r.evictLocked()

	store := session.NewStore(id, r.deps.Auth, session.Options{
		Persistence: r.deps.Sessions,
		Verifier:    r.deps.Verifier,
		Logger:      r.logger,
	})
	auth := authstate.New(store, r.deps.Subscriptions, authstate.Options{
		FetchTimeout: r.deps.FetchTimeout,
		Logger:       r.logger,
	})
	c := &Client{
		ID:       id,
		Session:  store,
		Auth:     auth,
		Todos:    todos.NewList(r.deps.Todos),
		Guard:    guard.NewMemo(),
		lastSeen: now,
	}
	r.clients[id] = c
	activeClients.Inc()
	auth.Mount()
	r.mu.Unlock()

	if evicted != nil {
		evicted.Auth.Close()
		activeClients.Dec()
		r.logger.Debug().Str("client_id", evicted.ID).Msg("client evicted")
	}
	r.logger.Debug().Str("client_id", id).Msg("client mounted")
	return c, nil
}

// evictLocked removes the least recently seen client when the registry is
// full and returns it for unmounting.
func (r *Registry) evictLocked() *Client {
	if len(r.clients) < r.deps.MaxClients {
		return nil
	}
	var oldest *Client
	for _, c := range r.clients {
		if oldest == nil || c.lastSeen.Before(oldest.lastSeen) {
			oldest = c
		}
	}
	if oldest != nil {
		delete(r.clients, oldest.ID)
	}
	return oldest
}

// Len is the number of mounted clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep unmounts clients idle for longer than the TTL and returns how many.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	cutoff := r.deps.Now().Add(-r.deps.IdleTTL)
	var idle []*Client
	for id, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			idle = append(idle, c)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		c.Auth.Close()
		activeClients.Dec()
	}
	if len(idle) > 0 {
		r.logger.Info().Int("count", len(idle)).Msg("idle clients swept")
	}
	return len(idle)
}

// Run sweeps every minute until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// RefreshUser re-fetches the subscription on every client signed in as
// userID and returns how many were refreshed.
func (r *Registry) RefreshUser(ctx context.Context, userID string) int {
	if userID == "" {
		return 0
	}
	r.mu.Lock()
	var matched []*Client
	for _, c := range r.clients {
		if u := c.Auth.Snapshot().User(); u != nil && u.ID == userID {
			matched = append(matched, c)
		}
	}
	r.mu.Unlock()

	for _, c := range matched {
		c.Auth.RefreshSubscription(ctx)
	}
	return len(matched)
}

// Close unmounts every client. Get fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	all := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range all {
		c.Auth.Close()
		activeClients.Dec()
	}
}
