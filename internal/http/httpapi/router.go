package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"todoapp/internal/clients"
	"todoapp/internal/guard"
	"todoapp/internal/http/handlers"
	"todoapp/internal/infra"
	"todoapp/internal/middleware"
)

// Deps is everything the router needs beyond the handlers.
type Deps struct {
	Config  *infra.Config
	Logger  infra.Logger
	Clients *clients.Registry
	Country middleware.CountryLookup
	// GuardGrace overrides middleware.DefaultGuardGrace when non-zero.
	GuardGrace time.Duration
}

func NewRouter(app *handlers.App, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(deps.Logger),
		chimw.Recoverer,
		middleware.Metrics,
		middleware.CORS(deps.Config.AllowedOrigins),
		middleware.I18N(deps.Config.DefaultLocale, deps.Country),
	)

	r.Get("/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if app.WebhooksEnabled() {
		r.Post("/webhooks/lemonsqueezy", app.LemonSqueezyWebhook)
	}

	grace := deps.GuardGrace
	if grace == 0 {
		grace = middleware.DefaultGuardGrace
	}
	authenticated := guard.Authenticated("/")
	subscribed := guard.Subscribed("/plan")
	placeholder := http.HandlerFunc(app.Placeholder)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Client(deps.Clients, deps.Config.CookieSecure))

		r.Get("/", app.Entry)
		r.Route("/auth", func(r chi.Router) {
			r.Get("/session", app.Session)
			r.Get("/verify", app.VerifyForm)
			r.Post("/sign-out", app.SignOut)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(deps.Config.RateLimitPerMin, time.Minute))
				r.Post("/sign-in", app.SignIn)
				r.Post("/sign-up", app.SignUp)
				r.Post("/verify", app.Verify)
				r.Post("/resend", app.Resend)
			})
		})

		r.Route("/plan", func(r chi.Router) {
			r.Use(middleware.Guard(middleware.GuardOptions{
				Name:         "plan",
				Requirements: []guard.Requirement{authenticated},
				Grace:        grace,
				Placeholder:  placeholder,
			}))
			r.Get("/", app.Plan)
			r.Post("/checkout", app.Checkout)
			r.Post("/refresh", app.RefreshPlan)
			r.Post("/cancel", app.CancelPlan)
			r.Get("/manage", app.ManagePlan)
		})

		r.Route("/todos", func(r chi.Router) {
			r.Use(middleware.Guard(middleware.GuardOptions{
				Name:         "todos",
				Requirements: []guard.Requirement{authenticated, subscribed},
				Grace:        grace,
				Placeholder:  placeholder,
			}))
			r.Get("/", app.ListTodos)
			r.Post("/", app.CreateTodo)
			r.Patch("/{id}", app.UpdateTodo)
			r.Delete("/{id}", app.DeleteTodo)
			r.Post("/{id}", app.EditTodo)
			r.Post("/{id}/toggle", app.ToggleTodo)
			r.Post("/{id}/delete", app.DeleteTodo)
		})
	})

	return r
}
