package domain

import (
	"strings"
	"time"
)

// SubscriptionStatus mirrors the billing provider's status values.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusTrialing  SubscriptionStatus = "trialing"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusUnpaid    SubscriptionStatus = "unpaid"
	StatusExpired   SubscriptionStatus = "expired"
	StatusPaused    SubscriptionStatus = "paused"
)

// NormalizeStatus maps provider spellings onto the stored vocabulary.
// Unknown values pass through lowercased.
func NormalizeStatus(raw string) SubscriptionStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "on_trial":
		return StatusTrialing
	case "canceled":
		return StatusCancelled
	}
	return SubscriptionStatus(s)
}

// Subscription is the locally mirrored billing record, one per user.
type Subscription struct {
	UserID         string             `json:"user_id"`
	SubscriptionID string             `json:"subscription_id"`
	OrderID        string             `json:"order_id,omitempty"`
	ProductID      string             `json:"product_id"`
	ProductName    string             `json:"product_name"`
	VariantID      string             `json:"variant_id"`
	VariantName    string             `json:"variant_name"`
	Status         SubscriptionStatus `json:"status"`
	RenewsAt       *time.Time         `json:"renews_at,omitempty"`
	EndsAt         *time.Time         `json:"ends_at,omitempty"`
	TrialEndsAt    *time.Time         `json:"trial_ends_at,omitempty"`
	URL            string             `json:"url,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// IsSubscribed reports whether the record grants paid access. A nil
// subscription is not subscribed.
func (s *Subscription) IsSubscribed() bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case StatusActive, StatusTrialing, StatusPastDue:
		return true
	}
	return false
}
