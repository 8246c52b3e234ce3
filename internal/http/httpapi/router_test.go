package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"todoapp/internal/clients"
	"todoapp/internal/domain"
	"todoapp/internal/http/handlers"
	"todoapp/internal/infra"
	"todoapp/internal/middleware"
	"todoapp/internal/providers/gotrue"
)

type noAuth struct{}

func (noAuth) SignInWithPassword(context.Context, string, string) (*domain.Session, error) {
	return nil, domain.ErrAuth
}
func (noAuth) SignUp(context.Context, string, string) (*gotrue.SignUpResult, error) {
	return nil, domain.ErrAuth
}
func (noAuth) SignOut(context.Context, string) error { return nil }
func (noAuth) RefreshSession(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrAuth
}
func (noAuth) VerifyOTP(context.Context, string, string, domain.OTPType) (*domain.Session, error) {
	return nil, domain.ErrAuth
}
func (noAuth) Resend(context.Context, string, domain.OTPType) error { return nil }

type noSubs struct{}

func (noSubs) GetUserSubscription(context.Context, string) (*domain.Subscription, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, webhookSecret string) http.Handler {
	t.Helper()
	reg := clients.NewRegistry(clients.Deps{Auth: noAuth{}, Subscriptions: noSubs{}})
	t.Cleanup(reg.Close)
	app := handlers.NewApp(handlers.Options{WebhookSecret: webhookSecret})
	return NewRouter(app, Deps{
		Config:     &infra.Config{DefaultLocale: "en", RateLimitPerMin: 30},
		Logger:     zerolog.Nop(),
		Clients:    reg,
		GuardGrace: 2 * time.Second,
	})
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id header missing")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("metrics = %d", rec.Code)
	}
}

func TestWebhookMountedOnlyWithSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, "").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/lemonsqueezy", strings.NewReader("{}")))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("without secret status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	newTestRouter(t, "secret").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/lemonsqueezy", strings.NewReader("{}")))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned delivery status = %d, want 401", rec.Code)
	}
}

func TestGuardedRouteRedirectsAnonymousClient(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/todos", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/?from=%2Ftodos" {
		t.Fatalf("Location = %q", got)
	}
	var issued bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.ClientCookie && c.HttpOnly {
			issued = true
		}
	}
	if !issued {
		t.Fatalf("client cookie should be issued")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plan", nil))
	if got := rec.Header().Get("Location"); got != "/?from=%2Fplan" {
		t.Fatalf("plan Location = %q", got)
	}
}

func TestEntryRendersForAnonymousClient(t *testing.T) {
	router := newTestRouter(t, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?from=%2Ftodos", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `action="/auth/sign-in"`) || !strings.Contains(body, `value="/todos"`) {
		t.Fatalf("entry view missing form or from: %s", body)
	}
}
