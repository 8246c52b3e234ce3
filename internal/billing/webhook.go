package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"todoapp/internal/domain"
	"todoapp/internal/infra"
	"todoapp/internal/providers/lemonsqueezy"
)

var (
	// ErrSignature is returned for webhook bodies whose signature does not verify.
	ErrSignature = errors.New("webhook signature mismatch")
	// ErrIgnoredEvent marks deliveries that carry nothing to mirror.
	ErrIgnoredEvent = errors.New("webhook event ignored")
)

// VerifySignature checks the hex HMAC-SHA256 of body against signature.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return fmt.Errorf("%w: secret not configured", ErrSignature)
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return ErrSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), got) {
		return ErrSignature
	}
	return nil
}

// Sign returns the hex signature the provider would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookEvent is a decoded subscription delivery.
type WebhookEvent struct {
	Name           string
	UserID         string
	SubscriptionID string
	Attributes     lemonsqueezy.SubscriptionAttributes
}

type webhookPayload struct {
	Meta struct {
		EventName  string         `json:"event_name"`
		CustomData map[string]any `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string                              `json:"id"`
		Type       string                              `json:"type"`
		Attributes lemonsqueezy.SubscriptionAttributes `json:"attributes"`
	} `json:"data"`
}

// ParseWebhook decodes a verified body. Deliveries that are not about a
// subscription, or that cannot be attributed to a user, yield ErrIgnoredEvent.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: decode webhook: %w", domain.ErrValidation, err)
	}
	name := p.Meta.EventName
	if !strings.HasPrefix(name, "subscription_") || p.Data.Type != "subscriptions" {
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, name)
	}
	userID, _ := p.Meta.CustomData["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("%w: %s without user_id", ErrIgnoredEvent, name)
	}
	if p.Data.ID == "" {
		return nil, fmt.Errorf("%w: subscription id missing", domain.ErrValidation)
	}
	return &WebhookEvent{
		Name:           name,
		UserID:         userID,
		SubscriptionID: p.Data.ID,
		Attributes:     p.Data.Attributes,
	}, nil
}

// SubscriptionSource fetches provider state for a single subscription.
type SubscriptionSource interface {
	GetSubscription(ctx context.Context, id string) (*lemonsqueezy.SubscriptionAttributes, error)
	CancelSubscription(ctx context.Context, id string) (*lemonsqueezy.SubscriptionAttributes, error)
}

// Mirror writes provider subscription state into the local table. It is the
// only writer of subscription rows.
type Mirror struct {
	subs   domain.SubscriptionRepository
	logger *infra.Logger
}

func NewMirror(subs domain.SubscriptionRepository, logger *infra.Logger) *Mirror {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Mirror{subs: subs, logger: logger}
}

// Apply mirrors a webhook event.
func (m *Mirror) Apply(ctx context.Context, evt *WebhookEvent) (*domain.Subscription, error) {
	sub := evt.Attributes.ToDomain(evt.UserID, evt.SubscriptionID)
	if err := m.subs.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	m.logger.Info().
		Str("event", evt.Name).
		Str("user_id", evt.UserID).
		Str("subscription_id", evt.SubscriptionID).
		Str("status", string(sub.Status)).
		Msg("subscription mirrored")
	return sub, nil
}

// Sync pulls subscriptionID from the provider and mirrors it for userID.
func (m *Mirror) Sync(ctx context.Context, source SubscriptionSource, userID, subscriptionID string) (*domain.Subscription, error) {
	attrs, err := source.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}
	return m.Apply(ctx, &WebhookEvent{
		Name:           "subscription_synced",
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Attributes:     *attrs,
	})
}
