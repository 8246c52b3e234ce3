package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"todoapp/internal/domain"
	"todoapp/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without the anon key.
var ErrMissingAPIKey = errors.New("gotrue: api key is required")

// Options configures the Supabase Auth (GoTrue) client.
type Options struct {
	BaseURL        string
	APIKey         string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Client talks to the GoTrue REST endpoints under /auth/v1.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
}

// APIError is a non-2xx answer from GoTrue. 5xx answers unwrap to
// domain.ErrNetwork, everything else to domain.ErrAuth.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gotrue: %s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("gotrue: %s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	if e.Status >= 500 {
		return domain.ErrNetwork
	}
	return domain.ErrAuth
}

type userPayload struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *userPayload `json:"user"`
}

// signUpPayload covers both shapes: a session when auto-confirm is on, a bare
// user when email confirmation is pending.
type signUpPayload struct {
	sessionPayload
	userPayload
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
}

// SignUpResult is the outcome of a sign up. Session is nil while the email
// still needs verification.
type SignUpResult struct {
	Session *domain.Session
	User    domain.User
}

// NewClient constructs a client with defaults for the optional collaborators.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gotrue: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		now:        now,
	}, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	var out sessionPayload
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &out); err != nil {
		return nil, err
	}
	return c.toSession(out)
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", domain.ErrAuth)
	}
	var out sessionPayload
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &out); err != nil {
		return nil, err
	}
	return c.toSession(out)
}

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	var out signUpPayload
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken != "" {
		session, err := c.toSession(out.sessionPayload)
		if err != nil {
			return nil, err
		}
		return &SignUpResult{Session: session, User: session.User}, nil
	}
	if out.userPayload.ID == "" {
		return nil, fmt.Errorf("%w: gotrue: sign up returned no user", domain.ErrAuth)
	}
	return &SignUpResult{User: toUser(out.userPayload)}, nil
}

// VerifyOTP confirms a one-time code and returns the resulting session.
func (c *Client) VerifyOTP(ctx context.Context, email, token string, kind domain.OTPType) (*domain.Session, error) {
	var out sessionPayload
	body := map[string]string{"email": email, "token": token, "type": string(kind)}
	if err := c.do(ctx, http.MethodPost, "/verify", "", body, &out); err != nil {
		return nil, err
	}
	return c.toSession(out)
}

// Resend asks GoTrue to send another code for kind.
func (c *Client) Resend(ctx context.Context, email string, kind domain.OTPType) error {
	body := map[string]string{"email": email, "type": string(kind)}
	return c.do(ctx, http.MethodPost, "/resend", "", body, nil)
}

// GetUser returns the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	var out userPayload
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &out); err != nil {
		return nil, err
	}
	u := toUser(out)
	return &u, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	endpoint := c.baseURL + "/auth/v1" + path
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gotrue: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("gotrue: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", redactQuery(path)).Msg("gotrue request failed")
		return fmt.Errorf("%w: gotrue: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: gotrue: read response: %w", domain.ErrNetwork, err)
	}

	if resp.StatusCode >= 300 {
		apiErr := decodeError(resp.StatusCode, raw)
		c.logger.Debug().Int("status", resp.StatusCode).Str("code", apiErr.Code).Msg("gotrue error")
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gotrue: decode response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		switch {
		case detail.ErrorDescription != "":
			apiErr.Message = detail.ErrorDescription
		case detail.Msg != "":
			apiErr.Message = detail.Msg
		case detail.Message != "":
			apiErr.Message = detail.Message
		}
		apiErr.Code = detail.ErrorCode
		if apiErr.Code == "" {
			apiErr.Code = detail.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func (c *Client) toSession(p sessionPayload) (*domain.Session, error) {
	if p.AccessToken == "" || p.User == nil {
		return nil, fmt.Errorf("%w: gotrue: response carried no session", domain.ErrAuth)
	}
	expires := time.Unix(p.ExpiresAt, 0)
	if p.ExpiresAt == 0 {
		expires = c.now().Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	tokenType := p.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &domain.Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    tokenType,
		ExpiresAt:    expires.UTC(),
		User:         toUser(*p.User),
	}, nil
}

func toUser(p userPayload) domain.User {
	return domain.User{ID: p.ID, Email: p.Email, EmailConfirmedAt: p.EmailConfirmedAt}
}

func redactQuery(path string) string {
	if u, err := url.Parse(path); err == nil {
		return u.Path
	}
	return path
}
