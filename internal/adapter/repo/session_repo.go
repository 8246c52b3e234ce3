package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"todoapp/internal/domain"
	"todoapp/internal/infra"
	"todoapp/internal/sqlinline"
)

// SessionRepositoryPG stores the session of each browser client.
type SessionRepositoryPG struct {
	db infra.SQLExecutor
}

func NewSessionRepository(db infra.SQLExecutor) *SessionRepositoryPG {
	return &SessionRepositoryPG{db: db}
}

// Load returns domain.ErrNotFound when the client has no stored session.
func (r *SessionRepositoryPG) Load(ctx context.Context, clientID string) (*domain.StoredSession, error) {
	var s domain.StoredSession
	err := r.db.QueryRow(ctx, sqlinline.QSelectClientSession, clientID).Scan(
		&s.ClientID, &s.UserID, &s.Email, &s.AccessToken, &s.RefreshToken, &s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepositoryPG) Save(ctx context.Context, s domain.StoredSession) error {
	_, err := r.db.Exec(ctx, sqlinline.QUpsertClientSession,
		s.ClientID, s.UserID, s.Email, s.AccessToken, s.RefreshToken, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete is idempotent.
func (r *SessionRepositoryPG) Delete(ctx context.Context, clientID string) error {
	if _, err := r.db.Exec(ctx, sqlinline.QDeleteClientSession, clientID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ domain.SessionRepository = (*SessionRepositoryPG)(nil)
