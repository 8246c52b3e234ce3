package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoapp/internal/domain"
	"todoapp/internal/providers/lemonsqueezy"
)

const subscriptionUpdated = `{
  "meta": {"event_name": "subscription_updated", "custom_data": {"user_id": "user-1"}},
  "data": {
    "type": "subscriptions",
    "id": "sub-9",
    "attributes": {
      "order_id": 12,
      "product_id": 7,
      "variant_id": 70,
      "product_name": "Pro",
      "variant_name": "Monthly",
      "status": "on_trial",
      "trial_ends_at": "2026-10-30T00:00:00Z",
      "renews_at": "2026-10-30T00:00:00Z",
      "ends_at": null,
      "urls": {"customer_portal": "https://shop.example.com/billing"}
    }
  }
}`

type memorySubs struct {
	rows map[string]*domain.Subscription
	err  error
}

func (m *memorySubs) GetUserSubscription(_ context.Context, userID string) (*domain.Subscription, error) {
	return m.rows[userID], nil
}

func (m *memorySubs) Upsert(_ context.Context, sub *domain.Subscription) error {
	if m.err != nil {
		return m.err
	}
	if m.rows == nil {
		m.rows = map[string]*domain.Subscription{}
	}
	m.rows[sub.UserID] = sub
	return nil
}

func (m *memorySubs) Delete(_ context.Context, userID string) error {
	delete(m.rows, userID)
	return nil
}

func TestVerifySignature(t *testing.T) {
	body := []byte(subscriptionUpdated)
	sig := Sign("whsec", body)

	assert.NoError(t, VerifySignature("whsec", body, sig))
	assert.ErrorIs(t, VerifySignature("whsec", body, "deadbeef"), ErrSignature)
	assert.ErrorIs(t, VerifySignature("whsec", body, "not-hex"), ErrSignature)
	assert.ErrorIs(t, VerifySignature("other", body, sig), ErrSignature)
	assert.ErrorIs(t, VerifySignature("", body, sig), ErrSignature)
	assert.ErrorIs(t, VerifySignature("whsec", append(body, ' '), sig), ErrSignature)
}

func TestParseWebhookAndApply(t *testing.T) {
	evt, err := ParseWebhook([]byte(subscriptionUpdated))
	require.NoError(t, err)
	assert.Equal(t, "user-1", evt.UserID)
	assert.Equal(t, "sub-9", evt.SubscriptionID)

	subs := &memorySubs{}
	sub, err := NewMirror(subs, nil).Apply(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTrialing, sub.Status)
	assert.True(t, sub.IsSubscribed())
	assert.Equal(t, "12", sub.OrderID)
	assert.Nil(t, sub.EndsAt)
	assert.Same(t, sub, subs.rows["user-1"])
}

func TestParseWebhookIgnoresUnrelatedEvents(t *testing.T) {
	cases := map[string]string{
		"order event":     `{"meta":{"event_name":"order_created","custom_data":{"user_id":"u"}},"data":{"type":"orders","id":"1"}}`,
		"invoice payload": `{"meta":{"event_name":"subscription_payment_success","custom_data":{"user_id":"u"}},"data":{"type":"subscription-invoices","id":"1"}}`,
		"no user":         `{"meta":{"event_name":"subscription_created"},"data":{"type":"subscriptions","id":"1"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWebhook([]byte(body))
			assert.ErrorIs(t, err, ErrIgnoredEvent)
		})
	}

	_, err := ParseWebhook([]byte("{"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

type stubProvider struct {
	attrs *lemonsqueezy.SubscriptionAttributes
	err   error
}

func (s stubProvider) GetSubscription(context.Context, string) (*lemonsqueezy.SubscriptionAttributes, error) {
	return s.attrs, s.err
}

func (s stubProvider) CancelSubscription(context.Context, string) (*lemonsqueezy.SubscriptionAttributes, error) {
	return s.attrs, s.err
}

func TestMirrorSync(t *testing.T) {
	subs := &memorySubs{}
	mirror := NewMirror(subs, nil)

	sub, err := mirror.Sync(context.Background(), stubProvider{attrs: &lemonsqueezy.SubscriptionAttributes{Status: "active", ProductName: "Pro"}}, "user-2", "sub-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, "sub-2", subs.rows["user-2"].SubscriptionID)

	_, err = mirror.Sync(context.Background(), stubProvider{err: domain.ErrNotFound}, "user-3", "gone")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Nil(t, subs.rows["user-3"])
}
