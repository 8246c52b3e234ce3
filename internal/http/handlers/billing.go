package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"

	"todoapp/internal/authstate"
	"todoapp/internal/billing"
	"todoapp/internal/clients"
	"todoapp/internal/domain"
	"todoapp/internal/middleware"
)

// descriptionPolicy cleans the store-authored product description, which
// arrives as HTML.
var descriptionPolicy = bluemonday.UGCPolicy()

type planView struct {
	ID          string
	Name        string
	Description template.HTML
	Price       string
	Interval    string
	Current     bool
}

type subscriptionView struct {
	Status      string
	ProductName string
	VariantName string
	RenewsAt    *time.Time
	EndsAt      *time.Time
	TrialEndsAt *time.Time
	ManageURL   string
	Active      bool
	Cancellable bool
}

type planResponse struct {
	Plans        []domain.Plan        `json:"plans"`
	Subscription *domain.Subscription `json:"subscription,omitempty"`
	IsSubscribed bool                 `json:"is_subscribed"`
}

func toPlanViews(tag language.Tag, plans []domain.Plan, sub *domain.Subscription) []planView {
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, planView{
			ID:          p.ID,
			Name:        p.Name,
			Description: template.HTML(descriptionPolicy.Sanitize(p.ProductDescription)),
			Price:       billing.FormatPrice(tag, p.Price, p.Currency),
			Interval:    billing.IntervalLabel(p.Interval),
			Current:     sub.IsSubscribed() && sub.VariantID == p.VariantID,
		})
	}
	return out
}

func toSubscriptionView(sub *domain.Subscription) *subscriptionView {
	if sub == nil {
		return nil
	}
	cancellable := sub.SubscriptionID != "" && sub.EndsAt == nil &&
		sub.Status != domain.StatusCancelled && sub.Status != domain.StatusExpired
	return &subscriptionView{
		Status:      strings.ReplaceAll(string(sub.Status), "_", " "),
		ProductName: sub.ProductName,
		VariantName: sub.VariantName,
		RenewsAt:    sub.RenewsAt,
		EndsAt:      sub.EndsAt,
		TrialEndsAt: sub.TrialEndsAt,
		ManageURL:   sub.URL,
		Active:      sub.IsSubscribed(),
		Cancellable: cancellable,
	}
}

// renderPlan renders the billing view. A catalog failure is shown on the
// page; failMsg, when set, takes its place.
func (a *App) renderPlan(w http.ResponseWriter, r *http.Request, snap authstate.Snapshot, status int, failMsg, notice string) {
	data := viewData{
		Title:        "Your plan",
		User:         snap.User(),
		Subscribed:   snap.IsSubscribed(),
		Subscription: toSubscriptionView(snap.Subscription),
		Notice:       notice,
		Error:        failMsg,
	}
	plans, err := a.catalog.GetPlans(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("plan catalog unavailable")
		if data.Error == "" {
			data.Error = userMessage(err)
			status, _ = statusFor(err)
		}
	}
	data.Plans = toPlanViews(middleware.LocaleFromContext(r.Context()), plans, snap.Subscription)
	a.render(w, r, "plan", status, data)
}

func (a *App) Plan(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	snap := c.Auth.Snapshot()
	if !isJSON(r) {
		a.renderPlan(w, r, snap, http.StatusOK, "", "")
		return
	}
	plans, err := a.catalog.GetPlans(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, planResponse{Plans: plans, Subscription: snap.Subscription, IsSubscribed: snap.IsSubscribed()})
}

// billingFailure answers a failed billing action.
func (a *App) billingFailure(w http.ResponseWriter, r *http.Request, c *clients.Client, err error) {
	if isJSON(r) {
		a.fail(w, r, err)
		return
	}
	status, _ := statusFor(err)
	a.renderPlan(w, r, c.Auth.Snapshot(), status, userMessage(err), "")
}

// Checkout sends the client to the provider's hosted checkout for a plan.
func (a *App) Checkout(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	user := c.Auth.Snapshot().User()
	if user == nil {
		a.billingFailure(w, r, c, domain.ErrUnauthorized)
		return
	}

	var in struct {
		PlanID string `json:"plan_id"`
	}
	var err error
	if jsonBody(r) {
		err = decodeJSON(w, r, &in)
	} else if err = r.ParseForm(); err == nil {
		in.PlanID = r.PostFormValue("plan_id")
	}
	if err == nil && strings.TrimSpace(in.PlanID) == "" {
		err = fmt.Errorf("%w: plan_id is required", domain.ErrValidation)
	}
	var plan *domain.Plan
	if err == nil {
		plan, err = a.catalog.Plan(r.Context(), strings.TrimSpace(in.PlanID))
	}
	var target string
	if err == nil {
		target, err = billing.CheckoutURL(*plan, user.ID, user.Email)
	}
	if err != nil {
		a.billingFailure(w, r, c, err)
		return
	}

	a.logger.Info().Str("user_id", user.ID).Str("plan_id", plan.ID).Msg("checkout started")
	if isJSON(r) {
		a.json(w, http.StatusOK, map[string]string{"url": target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// RefreshPlan re-fetches the subscription on demand.
func (a *App) RefreshPlan(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	snap := c.Auth.RefreshSubscription(r.Context())
	if isJSON(r) {
		a.json(w, http.StatusOK, toSessionView(snap))
		return
	}
	http.Redirect(w, r, "/plan", http.StatusSeeOther)
}

// CancelPlan cancels at the provider. The local record follows through the
// webhook, so the refreshed state may still show the old status.
func (a *App) CancelPlan(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	snap := c.Auth.Snapshot()
	sub := snap.Subscription
	if sub == nil || sub.SubscriptionID == "" {
		a.billingFailure(w, r, c, fmt.Errorf("%w: no subscription to cancel", domain.ErrNotFound))
		return
	}
	if a.billing == nil {
		a.billingFailure(w, r, c, fmt.Errorf("%w: billing provider not configured", domain.ErrNetwork))
		return
	}
	if _, err := a.billing.CancelSubscription(r.Context(), sub.SubscriptionID); err != nil {
		a.billingFailure(w, r, c, err)
		return
	}
	a.logger.Info().Str("user_id", sub.UserID).Str("subscription_id", sub.SubscriptionID).Msg("subscription cancelled at provider")

	snap = c.Auth.RefreshSubscription(r.Context())
	if isJSON(r) {
		a.json(w, http.StatusOK, toSessionView(snap))
		return
	}
	a.renderPlan(w, r, snap, http.StatusOK, "", "Your subscription has been cancelled.")
}

// ManagePlan redirects to the provider's customer portal.
func (a *App) ManagePlan(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	sub := c.Auth.Snapshot().Subscription
	if sub == nil || sub.URL == "" {
		a.billingFailure(w, r, c, fmt.Errorf("%w: no customer portal for this account", domain.ErrNotFound))
		return
	}
	http.Redirect(w, r, sub.URL, http.StatusSeeOther)
}
