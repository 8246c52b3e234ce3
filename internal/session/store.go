package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"todoapp/internal/domain"
	"todoapp/internal/infra"
	"todoapp/internal/providers/gotrue"
)

// DefaultRefreshMargin is how close to expiry a session gets refreshed.
const DefaultRefreshMargin = 30 * time.Second

// AuthClient is the auth provider surface the store drives.
type AuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*gotrue.SignUpResult, error)
	SignOut(ctx context.Context, accessToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error)
	VerifyOTP(ctx context.Context, email, token string, kind domain.OTPType) (*domain.Session, error)
	Resend(ctx context.Context, email string, kind domain.OTPType) error
}

// Listener observes session changes. It runs on the goroutine that caused the
// change, after the store has released its locks.
type Listener func(event domain.AuthEvent, s *domain.Session)

// Options tunes a Store. Every field is optional.
type Options struct {
	Persistence   domain.SessionRepository
	Verifier      *TokenVerifier
	Logger        *infra.Logger
	RefreshMargin time.Duration
	Now           func() time.Time
}

// Store owns the session of one browser client.
type Store struct {
	clientID string
	auth     AuthClient
	persist  domain.SessionRepository
	verifier *TokenVerifier
	logger   *infra.Logger
	margin   time.Duration
	now      func() time.Time

	// op serializes load, refresh and credential calls and guards loaded.
	op     sync.Mutex
	loaded bool

	mu        sync.Mutex
	session   *domain.Session
	listeners map[int]Listener
	nextID    int
}

func NewStore(clientID string, auth AuthClient, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	margin := opts.RefreshMargin
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		clientID:  clientID,
		auth:      auth,
		persist:   opts.Persistence,
		verifier:  opts.Verifier,
		logger:    logger,
		margin:    margin,
		now:       now,
		listeners: make(map[int]Listener),
	}
}

// ClientID identifies the browser the store belongs to.
func (s *Store) ClientID() string { return s.clientID }

// GetSession returns the current session, or nil when signed out. The first
// call restores a persisted session; sessions close to expiry are refreshed.
func (s *Store) GetSession(ctx context.Context) (*domain.Session, error) {
	s.op.Lock()
	if err := s.restore(ctx); err != nil {
		s.op.Unlock()
		return nil, err
	}
	current := s.current()
	if current == nil || !current.ExpiresWithin(s.now(), s.margin) {
		s.op.Unlock()
		return current, nil
	}

	refreshed, err := s.auth.RefreshSession(ctx, current.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) {
			s.logger.Info().Err(err).Str("client_id", s.clientID).Msg("session refresh rejected, signing out")
			s.set(ctx, nil)
			s.op.Unlock()
			s.emit(domain.EventSignedOut, nil)
			return nil, nil
		}
		s.op.Unlock()
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	s.set(ctx, refreshed)
	s.op.Unlock()
	s.emit(domain.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// OnSessionChange registers l and returns the function that removes it.
func (s *Store) OnSessionChange(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SignInWithPassword authenticates with credentials.
func (s *Store) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}
	s.op.Lock()
	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.op.Unlock()
		return nil, err
	}
	s.loaded = true
	s.set(ctx, sess)
	s.op.Unlock()
	s.emit(domain.EventSignedIn, sess)
	return sess, nil
}

// SignUp registers an account. The result carries a session only when the
// provider does not require email verification.
func (s *Store) SignUp(ctx context.Context, email, password string) (*gotrue.SignUpResult, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}
	s.op.Lock()
	res, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		s.op.Unlock()
		return nil, err
	}
	if res.Session == nil {
		s.op.Unlock()
		return res, nil
	}
	s.loaded = true
	s.set(ctx, res.Session)
	s.op.Unlock()
	s.emit(domain.EventSignedIn, res.Session)
	return res, nil
}

// VerifyOTP confirms a one-time code and signs the client in.
func (s *Store) VerifyOTP(ctx context.Context, email, token string, kind domain.OTPType) (*domain.Session, error) {
	if email == "" || token == "" {
		return nil, fmt.Errorf("%w: email and code are required", domain.ErrValidation)
	}
	s.op.Lock()
	sess, err := s.auth.VerifyOTP(ctx, email, token, kind)
	if err != nil {
		s.op.Unlock()
		return nil, err
	}
	s.loaded = true
	s.set(ctx, sess)
	s.op.Unlock()
	s.emit(domain.EventSignedIn, sess)
	return sess, nil
}

// Resend asks for another verification code.
func (s *Store) Resend(ctx context.Context, email string, kind domain.OTPType) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	return s.auth.Resend(ctx, email, kind)
}

// SignOut clears the local session first, then revokes it remotely. A remote
// failure is logged; the client is signed out either way.
func (s *Store) SignOut(ctx context.Context) error {
	s.op.Lock()
	if err := s.restore(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("restore before sign out failed")
	}
	previous := s.current()
	s.loaded = true
	s.set(ctx, nil)
	s.op.Unlock()

	if previous != nil {
		if err := s.auth.SignOut(ctx, previous.AccessToken); err != nil {
			s.logger.Warn().Err(err).Str("client_id", s.clientID).Msg("remote sign out failed")
		}
	}
	s.emit(domain.EventSignedOut, nil)
	return nil
}

// restore loads the persisted session once. Callers hold s.op.
func (s *Store) restore(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	if s.persist == nil {
		s.loaded = true
		return nil
	}

	stored, err := s.persist.Load(ctx, s.clientID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("restore session: %w", err)
	}
	var restored *domain.Session
	if stored != nil {
		restored = s.fromStored(stored)
	}
	s.mu.Lock()
	s.session = restored
	s.mu.Unlock()
	s.loaded = true
	return nil
}

func (s *Store) fromStored(stored *domain.StoredSession) *domain.Session {
	if s.verifier != nil {
		claims, err := s.verifier.Verify(stored.AccessToken)
		if err != nil || claims.Subject != stored.UserID {
			s.logger.Warn().Err(err).Str("client_id", s.clientID).Msg("discarding stored session")
			return nil
		}
	}
	return &domain.Session{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    "bearer",
		ExpiresAt:    stored.ExpiresAt,
		User:         domain.User{ID: stored.UserID, Email: stored.Email},
	}
}

func (s *Store) current() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// set replaces the in-memory session and mirrors it to persistence.
func (s *Store) set(ctx context.Context, sess *domain.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
	if s.persist == nil {
		return
	}
	var err error
	if sess == nil {
		err = s.persist.Delete(ctx, s.clientID)
	} else {
		err = s.persist.Save(ctx, domain.StoredSession{
			ClientID:     s.clientID,
			UserID:       sess.User.ID,
			Email:        sess.User.Email,
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
			ExpiresAt:    sess.ExpiresAt,
		})
	}
	if err != nil {
		s.logger.Error().Err(err).Str("client_id", s.clientID).Msg("persist session failed")
	}
}

func (s *Store) emit(event domain.AuthEvent, sess *domain.Session) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()
	for _, l := range listeners {
		l(event, sess)
	}
}
