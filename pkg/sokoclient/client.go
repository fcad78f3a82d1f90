package sokoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// APIError is a structured error returned by the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// SessionExpiredError signals a terminal session end: the automatic refresh
// failed and the local session has been cleared. The owning application is
// expected to redirect to its login flow.
type SessionExpiredError struct {
	Cause error
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("sokoclient: session expired: %v", e.Cause)
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Cause
}

// Client calls the ServiceSoko API. Every authenticated call goes through
// the interceptor: the current access token is attached pre-flight, and a
// 401/403 response triggers a coordinated refresh followed by exactly one
// retry of the original call.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       SessionStore
	coordinator *RefreshCoordinator
	logger      *zap.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionStore overrides the default in-memory session store.
func WithSessionStore(store SessionStore) Option {
	return func(c *Client) { c.store = store }
}

// WithLogger attaches a zap logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		store:      NewMemorySessionStore(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.coordinator = NewRefreshCoordinator(c.store, c.refreshCall)
	return c
}

// SessionStore exposes the client's session cache.
func (c *Client) SessionStore() SessionStore {
	return c.store
}

// SignupParams is the payload for Signup.
type SignupParams struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// LoginParams is the payload for Login.
type LoginParams struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

type sessionPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

type refreshPayload struct {
	AccessToken string `json:"accessToken"`
}

type validatePayload struct {
	Valid bool `json:"valid"`
	User  User `json:"user"`
}

// Signup registers a new account and stores the resulting session.
func (c *Client) Signup(ctx context.Context, params SignupParams) (*Session, error) {
	return c.startSession(ctx, "/auth/signup", params)
}

// Login authenticates and stores the resulting session.
func (c *Client) Login(ctx context.Context, params LoginParams) (*Session, error) {
	return c.startSession(ctx, "/auth/login", params)
}

func (c *Client) startSession(ctx context.Context, path string, body any) (*Session, error) {
	var payload sessionPayload
	if err := c.send(ctx, http.MethodPost, path, "", body, &payload); err != nil {
		return nil, err
	}

	session := &Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		User:         payload.User,
	}
	if err := c.store.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// ValidateToken asks the server to validate the current access token and
// returns the fresh user record.
func (c *Client) ValidateToken(ctx context.Context) (*User, error) {
	var payload validatePayload
	if err := c.Do(ctx, http.MethodGet, "/auth/validate-token", nil, &payload); err != nil {
		return nil, err
	}
	return &payload.User, nil
}

// Logout tells the server, then clears the local session. The local clear
// happens even when the server call fails; the tokens are stateless.
func (c *Client) Logout(ctx context.Context) error {
	err := c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if clearErr := c.store.Clear(); clearErr != nil {
		return clearErr
	}
	return err
}

// Do performs an authenticated API call; out, when non-nil, receives the
// decoded JSON response. This is the entry point the marketplace modules
// (orders, services, messaging, reviews) use for their requests.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.doAuthed(ctx, method, path, body, out, 0)
}

// doAuthed is the interceptor. The attempt counter is carried explicitly so
// a persistently rejecting server cannot cause a retry loop.
func (c *Client) doAuthed(ctx context.Context, method, path string, body, out any, attempt int) error {
	token := ""
	if session, err := c.store.Load(); err == nil && session != nil {
		token = session.AccessToken
	}

	err := c.send(ctx, method, path, token, body, out)
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if attempt > 0 || (apiErr.StatusCode != http.StatusUnauthorized && apiErr.StatusCode != http.StatusForbidden) {
		return err
	}

	c.logger.Debug("authorization failure, refreshing session",
		zap.String("path", path),
		zap.Int("status", apiErr.StatusCode),
		zap.String("code", apiErr.Code),
	)

	if _, refreshErr := c.coordinator.Refresh(); refreshErr != nil {
		return &SessionExpiredError{Cause: refreshErr}
	}

	return c.doAuthed(ctx, method, path, body, out, attempt+1)
}

// refreshCall is the single network call owned by the coordinator.
func (c *Client) refreshCall(ctx context.Context, refreshToken string) (string, error) {
	var payload refreshPayload
	err := c.send(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refreshToken}, &payload)
	if err != nil {
		return "", err
	}
	return payload.AccessToken, nil
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

func parseAPIError(status int, data []byte) *APIError {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status, Code: "UNKNOWN", Message: http.StatusText(status)}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}
