package clients

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoapp/internal/domain"
	"todoapp/internal/providers/gotrue"
)

type stubAuth struct {
	session *domain.Session
}

func (a stubAuth) SignInWithPassword(context.Context, string, string) (*domain.Session, error) {
	return a.session, nil
}

func (a stubAuth) SignUp(context.Context, string, string) (*gotrue.SignUpResult, error) {
	return &gotrue.SignUpResult{Session: a.session}, nil
}

func (stubAuth) SignOut(context.Context, string) error { return nil }

func (a stubAuth) RefreshSession(context.Context, string) (*domain.Session, error) {
	return a.session, nil
}

func (a stubAuth) VerifyOTP(context.Context, string, string, domain.OTPType) (*domain.Session, error) {
	return a.session, nil
}

func (stubAuth) Resend(context.Context, string, domain.OTPType) error { return nil }

type countingSubs struct {
	calls atomic.Int32
}

func (s *countingSubs) GetUserSubscription(_ context.Context, userID string) (*domain.Subscription, error) {
	s.calls.Add(1)
	return &domain.Subscription{UserID: userID, Status: domain.StatusActive}, nil
}

type noTodos struct{}

func (noTodos) List(context.Context, string) ([]domain.Todo, error) { return []domain.Todo{}, nil }
func (noTodos) Create(context.Context, string, domain.NewTodo) (*domain.Todo, error) {
	return nil, domain.ErrNotFound
}
func (noTodos) Update(context.Context, string, string, domain.TodoPatch) (*domain.Todo, error) {
	return nil, domain.ErrNotFound
}
func (noTodos) Delete(context.Context, string, string) error { return domain.ErrNotFound }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(subs *countingSubs, clk *clock) *Registry {
	return NewRegistry(Deps{
		Auth: stubAuth{session: &domain.Session{
			AccessToken: "token",
			ExpiresAt:   time.Now().Add(time.Hour),
			User:        domain.User{ID: "user-1", Email: "a@example.com"},
		}},
		Subscriptions: subs,
		Todos:         noTodos{},
		IdleTTL:       10 * time.Minute,
		Now:           clk.Now,
	})
}

func TestGetMountsOnce(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	reg := newTestRegistry(&countingSubs{}, clk)
	defer reg.Close()

	first, err := reg.Get("client-a")
	require.NoError(t, err)
	second, err := reg.Get("client-a")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, reg.Len())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := first.Auth.WaitReady(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Authenticated())

	_, err = reg.Get("")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSweepDropsIdleClients(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	reg := newTestRegistry(&countingSubs{}, clk)
	defer reg.Close()

	_, err := reg.Get("idle")
	require.NoError(t, err)
	clk.Advance(8 * time.Minute)
	_, err = reg.Get("busy")
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)
	assert.Equal(t, 1, reg.Sweep())
	assert.Equal(t, 1, reg.Len())

	again, err := reg.Get("idle")
	require.NoError(t, err)
	assert.Equal(t, "idle", again.ID)
	assert.Equal(t, 2, reg.Len())
}

func TestRefreshUserTouchesMatchingClients(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	subs := &countingSubs{}
	reg := newTestRegistry(subs, clk)
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	signedIn, err := reg.Get("signed-in")
	require.NoError(t, err)
	anonymous, err := reg.Get("anonymous")
	require.NoError(t, err)
	_, err = anonymous.Auth.WaitReady(ctx)
	require.NoError(t, err)

	_, err = signedIn.Session.SignInWithPassword(ctx, "a@example.com", "secret")
	require.NoError(t, err)
	snap, err := signedIn.Auth.WaitReady(ctx)
	require.NoError(t, err)
	require.True(t, snap.IsSubscribed())
	before := subs.calls.Load()

	assert.Equal(t, 1, reg.RefreshUser(ctx, "user-1"))
	assert.Equal(t, before+1, subs.calls.Load())
	assert.Equal(t, 0, reg.RefreshUser(ctx, "someone-else"))
}

func TestGetAfterClose(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	reg := newTestRegistry(&countingSubs{}, clk)
	_, err := reg.Get("client")
	require.NoError(t, err)

	reg.Close()
	reg.Close()
	_, err = reg.Get("client")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, reg.Len())
}

func TestGetEvictsLeastRecentlySeenWhenFull(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	reg := newTestRegistry(&countingSubs{}, clk)
	reg.deps.MaxClients = 2
	defer reg.Close()

	a, err := reg.Get("a")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = reg.Get("b")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = reg.Get("a")
	require.NoError(t, err)
	clk.Advance(time.Second)

	_, err = reg.Get("c")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	again, err := reg.Get("a")
	require.NoError(t, err)
	assert.Same(t, a, again, "recently seen client stays mounted")

	reg.mu.Lock()
	_, kept := reg.clients["b"]
	reg.mu.Unlock()
	assert.False(t, kept, "least recently seen client is evicted")
}
