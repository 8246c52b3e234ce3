package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"todoapp/internal/guard"
)

// DefaultGuardGrace is how long a guarded request waits for an
// initializing client before the placeholder is rendered.
const DefaultGuardGrace = 250 * time.Millisecond

var guardDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "guard_redirect_decisions_total",
		Help: "Route guard decisions, one per resolved auth state and path.",
	},
	[]string{"guard", "outcome"},
)

// GuardOptions configures Guard.
type GuardOptions struct {
	Name         string
	Requirements []guard.Requirement
	Grace        time.Duration
	// Placeholder renders the HTML shown while the client is initializing.
	Placeholder http.Handler
}

// Guard protects a route with requirements evaluated against the client's
// auth state. It never redirects while that state is initializing.
func Guard(opts GuardOptions) func(http.Handler) http.Handler {
	grace := opts.Grace
	if grace < 0 {
		grace = 0
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientFromContext(r.Context())
			if client == nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			snap := client.Auth.Snapshot()
			if snap.Initializing && grace > 0 {
				ctx, cancel := context.WithTimeout(r.Context(), grace)
				snap, _ = client.Auth.WaitReady(ctx)
				cancel()
			}

			d, fresh := client.Guard.Decide(opts.Name, snap, r.URL.Path, opts.Requirements...)
			if fresh {
				guardDecisions.WithLabelValues(opts.Name, d.Outcome.String()).Inc()
				zerolog.Ctx(r.Context()).Info().
					Str("guard", opts.Name).
					Str("path", r.URL.Path).
					Str("outcome", d.Outcome.String()).
					Str("target", d.Target).
					Str("reason", d.Reason).
					Uint64("resolution", snap.Resolution).
					Msg("guard decision")
			}

			switch d.Outcome {
			case guard.Wait:
				renderPlaceholder(w, r, opts.Placeholder)
			case guard.Redirect:
				http.Redirect(w, r, d.Target, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func renderPlaceholder(w http.ResponseWriter, r *http.Request, placeholder http.Handler) {
	w.Header().Set("Cache-Control", "no-store")
	if WantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"state":"initializing"}`))
		return
	}
	w.Header().Set("Refresh", "1")
	if placeholder != nil {
		placeholder.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Loading..."))
}

// WantsJSON reports whether the client asked for a JSON response.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
