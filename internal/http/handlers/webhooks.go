package handlers

import (
	"errors"
	"io"
	"net/http"

	"todoapp/internal/billing"
)

const maxWebhookBody = 1 << 20

// LemonSqueezyWebhook mirrors subscription deliveries and refreshes the
// affected clients.
func (a *App) LemonSqueezyWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "payload too large")
		return
	}
	if err := billing.VerifySignature(a.webhookSecret, body, r.Header.Get("X-Signature")); err != nil {
		a.logger.Warn().Err(err).Msg("webhook rejected")
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
		return
	}

	evt, err := billing.ParseWebhook(body)
	if errors.Is(err, billing.ErrIgnoredEvent) {
		a.logger.Debug().Err(err).Msg("webhook ignored")
		a.json(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	sub, err := a.mirror.Apply(r.Context(), evt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	refreshed := 0
	if a.clients != nil {
		refreshed = a.clients.RefreshUser(r.Context(), sub.UserID)
	}
	a.logger.Info().Str("event", evt.Name).Str("user_id", sub.UserID).Int("clients_refreshed", refreshed).Msg("webhook applied")
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
