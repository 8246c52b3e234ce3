package domain

import (
	"context"
	"time"
)

// TodoRepository persists todos scoped to their owner.
type TodoRepository interface {
	List(ctx context.Context, userID string) ([]Todo, error)
	Create(ctx context.Context, userID string, in NewTodo) (*Todo, error)
	Update(ctx context.Context, userID, id string, patch TodoPatch) (*Todo, error)
	Delete(ctx context.Context, userID, id string) error
}

// SubscriptionRepository reads and mirrors subscription records.
type SubscriptionRepository interface {
	GetUserSubscription(ctx context.Context, userID string) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, userID string) error
}

// StoredSession is a persisted session for one browser client.
type StoredSession struct {
	ClientID     string
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// SessionRepository persists client sessions across restarts.
type SessionRepository interface {
	Load(ctx context.Context, clientID string) (*StoredSession, error)
	Save(ctx context.Context, s StoredSession) error
	Delete(ctx context.Context, clientID string) error
}
