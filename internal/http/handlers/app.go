package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"todoapp/internal/billing"
	"todoapp/internal/clients"
	"todoapp/internal/domain"
	"todoapp/internal/infra"
	"todoapp/internal/middleware"
)

//go:embed views/*.html
var viewFS embed.FS

// PlanCatalog lists purchasable plans.
type PlanCatalog interface {
	GetPlans(ctx context.Context) ([]domain.Plan, error)
	Plan(ctx context.Context, id string) (*domain.Plan, error)
}

// UserRefresher re-resolves the subscription of every client of a user.
type UserRefresher interface {
	RefreshUser(ctx context.Context, userID string) int
}

// Pinger checks the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires an App.
type Options struct {
	Logger        *infra.Logger
	DB            Pinger
	Catalog       PlanCatalog
	Billing       billing.SubscriptionSource
	Mirror        *billing.Mirror
	Clients       UserRefresher
	WebhookSecret string
	// ReadyWait bounds how long unguarded views wait for auth resolution.
	ReadyWait time.Duration
}

type App struct {
	logger        *infra.Logger
	db            Pinger
	catalog       PlanCatalog
	billing       billing.SubscriptionSource
	mirror        *billing.Mirror
	clients       UserRefresher
	webhookSecret string
	readyWait     time.Duration
	views         map[string]*template.Template
}

func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	wait := opts.ReadyWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &App{
		logger:        logger,
		db:            opts.DB,
		catalog:       opts.Catalog,
		billing:       opts.Billing,
		mirror:        opts.Mirror,
		clients:       opts.Clients,
		webhookSecret: opts.WebhookSecret,
		readyWait:     wait,
		views:         parseViews(),
	}
}

// WebhooksEnabled reports whether a webhook secret is configured.
func (a *App) WebhooksEnabled() bool { return a.webhookSecret != "" }

var pages = []string{"entry", "verify", "todos", "plan", "placeholder"}

func parseViews() map[string]*template.Template {
	funcs := template.FuncMap{
		"date": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("2 Jan 2006")
		},
	}
	views := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		views[page] = template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(viewFS, "views/layout.html", "views/"+page+".html"))
	}
	return views
}

// viewData is shared by every page.
type viewData struct {
	Title      string
	Greeting   string
	User       *domain.User
	Subscribed bool
	Error      string
	Notice     string
	From       string
	Email      string

	Todos      []domain.Todo
	Total      int
	Incomplete int

	Plans        []planView
	Subscription *subscriptionView
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAuth), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrCatalog), errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway, "upstream"
	}
	return http.StatusInternalServerError, "internal"
}

// userMessage is the text shown to people for err.
func userMessage(err error) string {
	status, _ := statusFor(err)
	switch status {
	case http.StatusUnprocessableEntity, http.StatusUnauthorized:
		msg := err.Error()
		if i := strings.LastIndex(msg, ": "); i >= 0 {
			msg = msg[i+2:]
		}
		return msg
	case http.StatusNotFound:
		return "Not found."
	case http.StatusBadGateway:
		return "A service we depend on is unavailable. Please try again."
	}
	return "Something went wrong."
}

// fail answers a JSON request with the mapped error envelope.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	a.error(w, status, code, userMessage(err))
}

func (a *App) render(w http.ResponseWriter, r *http.Request, page string, status int, data viewData) {
	tmpl, ok := a.views[page]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if data.User != nil && data.Greeting == "" {
		data.Greeting = greeting(middleware.LocaleFromContext(r.Context()), data.User.Email)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("page", page).Msg("render failed")
	}
}

// greeting derives a display name from the mailbox part of an email.
func greeting(tag language.Tag, email string) string {
	name, _, _ := strings.Cut(email, "@")
	name = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(name)
	if strings.TrimSpace(name) == "" {
		return "Hello"
	}
	return "Hello, " + cases.Title(tag).String(name)
}

// client returns the per-browser state attached by middleware.Client.
func (a *App) client(w http.ResponseWriter, r *http.Request) *clients.Client {
	c := middleware.ClientFromContext(r.Context())
	if c == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
	return c
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrValidation)
	}
	return nil
}

func isJSON(r *http.Request) bool { return middleware.WantsJSON(r) }

// Placeholder renders the view shown while auth state is resolving.
func (a *App) Placeholder(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "placeholder", http.StatusOK, viewData{Title: "Loading"})
}
