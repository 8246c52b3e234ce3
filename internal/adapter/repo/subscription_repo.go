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

// SubscriptionRepositoryPG resolves and mirrors subscription rows.
type SubscriptionRepositoryPG struct {
	db infra.SQLExecutor
}

func NewSubscriptionRepository(db infra.SQLExecutor) *SubscriptionRepositoryPG {
	return &SubscriptionRepositoryPG{db: db}
}

// GetUserSubscription returns (nil, nil) when the user has no record. Any
// other failure wraps domain.ErrLookup.
func (r *SubscriptionRepositoryPG) GetUserSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	if userID == "" {
		return nil, nil
	}
	var (
		s      domain.Subscription
		status string
	)
	err := r.db.QueryRow(ctx, sqlinline.QSelectSubscriptionByUser, userID).Scan(
		&s.UserID,
		&s.SubscriptionID,
		&s.OrderID,
		&s.ProductID,
		&s.ProductName,
		&s.VariantID,
		&s.VariantName,
		&status,
		&s.RenewsAt,
		&s.EndsAt,
		&s.TrialEndsAt,
		&s.URL,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrLookup, err)
	}
	s.Status = domain.NormalizeStatus(status)
	return &s, nil
}

// Upsert mirrors provider state for sub.UserID.
func (r *SubscriptionRepositoryPG) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if sub == nil || sub.UserID == "" {
		return fmt.Errorf("%w: subscription user is required", domain.ErrValidation)
	}
	if sub.SubscriptionID == "" {
		return fmt.Errorf("%w: subscription id is required", domain.ErrValidation)
	}
	_, err := r.db.Exec(ctx, sqlinline.QUpsertSubscription,
		sub.UserID,
		sub.SubscriptionID,
		sub.OrderID,
		sub.ProductID,
		sub.ProductName,
		sub.VariantID,
		sub.VariantName,
		string(domain.NormalizeStatus(string(sub.Status))),
		sub.RenewsAt,
		sub.EndsAt,
		sub.TrialEndsAt,
		sub.URL,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// Delete removes the local mirror for userID.
func (r *SubscriptionRepositoryPG) Delete(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx, sqlinline.QDeleteSubscription, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.SubscriptionRepository = (*SubscriptionRepositoryPG)(nil)
