package billing

import (
	"fmt"
	"net/url"
	"strings"

	"todoapp/internal/domain"
)

// CheckoutURL decorates a plan's hosted checkout link with the buyer. The
// user id rides along as custom data so webhooks can be attributed; the
// email is only added when known.
func CheckoutURL(plan domain.Plan, userID, email string) (string, error) {
	if strings.TrimSpace(plan.CheckoutURL) == "" {
		return "", fmt.Errorf("%w: plan %s has no checkout url", domain.ErrValidation, plan.ID)
	}
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	u, err := url.Parse(plan.CheckoutURL)
	if err != nil {
		return "", fmt.Errorf("%w: checkout url: %w", domain.ErrValidation, err)
	}
	q := u.Query()
	q.Set("checkout[custom][user_id]", userID)
	if email = strings.TrimSpace(email); email != "" {
		q.Set("checkout[email]", email)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
