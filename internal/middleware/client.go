package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"todoapp/internal/clients"
)

// ClientCookie names the cookie that identifies a browser.
const ClientCookie = "todo_client"

const clientCookieMaxAge = 365 * 24 * time.Hour

type clientContextKey struct{}

// Client resolves the browser's client state from its cookie, issuing a new
// id when the cookie is missing or malformed.
func Client(reg *clients.Registry, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(ClientCookie); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(clientCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			client, err := reg.Get(id)
			if err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("client registry unavailable")
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			ctx := context.WithValue(r.Context(), clientContextKey{}, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientFromContext returns the client attached by Client, or nil.
func ClientFromContext(ctx context.Context) *clients.Client {
	c, _ := ctx.Value(clientContextKey{}).(*clients.Client)
	return c
}

// ContextWithClient attaches c to ctx.
func ContextWithClient(ctx context.Context, c *clients.Client) context.Context {
	return context.WithValue(ctx, clientContextKey{}, c)
}
