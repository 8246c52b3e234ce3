package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"todoapp/internal/authstate"
	"todoapp/internal/clients"
	"todoapp/internal/domain"
	"todoapp/internal/guard"
	"todoapp/internal/providers/gotrue"
)

const homePath = "/todos"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type otpRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
	Type  string `json:"type"`
	From  string `json:"from"`
}

type sessionView struct {
	Initializing         bool                 `json:"initializing"`
	Authenticated        bool                 `json:"authenticated"`
	User                 *domain.User         `json:"user,omitempty"`
	Subscription         *domain.Subscription `json:"subscription,omitempty"`
	IsSubscribed         bool                 `json:"is_subscribed"`
	SubscriptionFetching bool                 `json:"subscription_fetching"`
	Version              uint64               `json:"version"`
}

func toSessionView(s authstate.Snapshot) sessionView {
	return sessionView{
		Initializing:         s.Initializing,
		Authenticated:        s.Authenticated(),
		User:                 s.User(),
		Subscription:         s.Subscription,
		IsSubscribed:         s.IsSubscribed(),
		SubscriptionFetching: s.SubscriptionFetching,
		Version:              s.Version,
	}
}

// waitReady gives an unguarded view a bounded chance to see resolved state.
func (a *App) waitReady(r *http.Request, c *clients.Client) authstate.Snapshot {
	ctx, cancel := context.WithTimeout(r.Context(), a.readyWait)
	defer cancel()
	snap, _ := c.Auth.WaitReady(ctx)
	return snap
}

func jsonBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var in credentials
	if jsonBody(r) {
		if err := decodeJSON(w, r, &in); err != nil {
			return in, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return in, fmt.Errorf("%w: invalid form", domain.ErrValidation)
		}
		in = credentials{Email: r.PostFormValue("email"), Password: r.PostFormValue("password"), From: r.PostFormValue("from")}
	}
	in.Email = strings.TrimSpace(in.Email)
	in.From = guard.SafeFrom(in.From)
	return in, nil
}

func readOTP(w http.ResponseWriter, r *http.Request) (otpRequest, error) {
	var in otpRequest
	if jsonBody(r) {
		if err := decodeJSON(w, r, &in); err != nil {
			return in, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return in, fmt.Errorf("%w: invalid form", domain.ErrValidation)
		}
		in = otpRequest{
			Email: r.PostFormValue("email"),
			Token: r.PostFormValue("token"),
			Type:  r.PostFormValue("type"),
			From:  r.PostFormValue("from"),
		}
	}
	in.Email = strings.TrimSpace(in.Email)
	in.Token = strings.TrimSpace(in.Token)
	in.From = guard.SafeFrom(in.From)
	return in, nil
}

func otpType(raw string) (domain.OTPType, error) {
	switch t := domain.OTPType(strings.TrimSpace(raw)); t {
	case "":
		return domain.OTPSignup, nil
	case domain.OTPSignup, domain.OTPEmail, domain.OTPRecovery, domain.OTPEmailChange:
		return t, nil
	}
	return "", fmt.Errorf("%w: unsupported verification type", domain.ErrValidation)
}

func afterSignIn(from string) string {
	if from != "" {
		return from
	}
	return homePath
}

// Entry renders the sign-in and sign-up forms, or sends signed-in clients on.
func (a *App) Entry(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	from := guard.SafeFrom(r.URL.Query().Get("from"))
	snap := a.waitReady(r, c)
	if !snap.Initializing && snap.Authenticated() {
		http.Redirect(w, r, afterSignIn(from), http.StatusSeeOther)
		return
	}
	a.render(w, r, "entry", http.StatusOK, viewData{Title: "Sign in", From: from})
}

func (a *App) SignIn(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	in, err := readCredentials(w, r)
	if err == nil {
		_, err = c.Session.SignInWithPassword(r.Context(), in.Email, in.Password)
	}
	if err != nil {
		a.logger.Info().Err(err).Str("client_id", c.ID).Msg("sign in rejected")
		if isJSON(r) {
			a.fail(w, r, err)
			return
		}
		status, _ := statusFor(err)
		a.render(w, r, "entry", status, viewData{Title: "Sign in", Error: userMessage(err), From: in.From, Email: in.Email})
		return
	}
	if isJSON(r) {
		a.json(w, http.StatusOK, toSessionView(c.Auth.Snapshot()))
		return
	}
	http.Redirect(w, r, afterSignIn(in.From), http.StatusSeeOther)
}

func (a *App) SignUp(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	in, err := readCredentials(w, r)
	verify := false
	if err == nil {
		var res *gotrue.SignUpResult
		if res, err = c.Session.SignUp(r.Context(), in.Email, in.Password); err == nil {
			verify = res.Session == nil
			a.logger.Info().Str("client_id", c.ID).Bool("verification_required", verify).Msg("sign up accepted")
		}
	}
	if err != nil {
		if isJSON(r) {
			a.fail(w, r, err)
			return
		}
		status, _ := statusFor(err)
		a.render(w, r, "entry", status, viewData{Title: "Sign in", Error: userMessage(err), From: in.From, Email: in.Email})
		return
	}
	if verify {
		if isJSON(r) {
			a.json(w, http.StatusAccepted, map[string]any{"verification_required": true, "email": in.Email})
			return
		}
		a.render(w, r, "verify", http.StatusOK, viewData{
			Title:  "Verify your email",
			Email:  in.Email,
			From:   in.From,
			Notice: "We sent a verification code to " + in.Email + ".",
		})
		return
	}
	if isJSON(r) {
		a.json(w, http.StatusCreated, toSessionView(c.Auth.Snapshot()))
		return
	}
	http.Redirect(w, r, afterSignIn(in.From), http.StatusSeeOther)
}

// VerifyForm renders the one-time code form.
func (a *App) VerifyForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "verify", http.StatusOK, viewData{
		Title: "Verify your email",
		Email: strings.TrimSpace(r.URL.Query().Get("email")),
		From:  guard.SafeFrom(r.URL.Query().Get("from")),
	})
}

func (a *App) Verify(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	in, err := readOTP(w, r)
	if err == nil {
		var kind domain.OTPType
		if kind, err = otpType(in.Type); err == nil {
			_, err = c.Session.VerifyOTP(r.Context(), in.Email, in.Token, kind)
		}
	}
	if err != nil {
		if isJSON(r) {
			a.fail(w, r, err)
			return
		}
		status, _ := statusFor(err)
		a.render(w, r, "verify", status, viewData{Title: "Verify your email", Email: in.Email, From: in.From, Error: userMessage(err)})
		return
	}
	if isJSON(r) {
		a.json(w, http.StatusOK, toSessionView(c.Auth.Snapshot()))
		return
	}
	http.Redirect(w, r, afterSignIn(in.From), http.StatusSeeOther)
}

func (a *App) Resend(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	in, err := readOTP(w, r)
	if err == nil {
		var kind domain.OTPType
		if kind, err = otpType(in.Type); err == nil {
			err = c.Session.Resend(r.Context(), in.Email, kind)
		}
	}
	if isJSON(r) {
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.json(w, http.StatusAccepted, map[string]string{"status": "sent"})
		return
	}
	data := viewData{Title: "Verify your email", Email: in.Email, From: in.From}
	status := http.StatusOK
	if err != nil {
		status, _ = statusFor(err)
		data.Error = userMessage(err)
	} else {
		data.Notice = "A new code is on its way."
	}
	a.render(w, r, "verify", status, data)
}

func (a *App) SignOut(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	if err := c.Auth.Logout(r.Context()); err != nil {
		a.logger.Warn().Err(err).Str("client_id", c.ID).Msg("sign out failed")
	}
	_ = c.Todos.Sync(r.Context(), "")
	if isJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Session returns the client's auth state.
func (a *App) Session(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	a.json(w, http.StatusOK, toSessionView(c.Auth.Snapshot()))
}
