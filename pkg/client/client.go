// Package client implements the online registry client: bearer-token
// session lifecycle, the execute-and-classify request wrapper with one
// transparent retry on authentication failure, and the typed operation
// surface (get, get-children, project info, create, update, delete).
//
// The client is synchronous and not safe for concurrent use; callers that
// share one instance must serialize externally.
package client

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

	"flexilims/pkg/domain"
)

// DefaultBaseURL is the production registry endpoint.
const DefaultBaseURL = "https://flexylims.thecrick.org/flexilims/api/"

// credentialApp is the application name passed to credential providers.
const credentialApp = "flexilims"

const (
	defaultRenewInterval = 5 * time.Second
	defaultRenewTimeout  = 2 * time.Minute
)

// CredentialProvider resolves the secret for a username and application.
// It replaces any process-wide password lookup; providers are injected at
// construction and treated as opaque.
type CredentialProvider interface {
	Secret(username, app string) (string, error)
}

// CredentialFunc adapts a function to the CredentialProvider interface.
type CredentialFunc func(username, app string) (string, error)

// Secret implements CredentialProvider.
func (f CredentialFunc) Secret(username, app string) (string, error) {
	return f(username, app)
}

// StaticCredentials returns a provider that always yields the given secret.
func StaticCredentials(secret string) CredentialProvider {
	return CredentialFunc(func(string, string) (string, error) { return secret, nil })
}

// Config holds construction parameters for the registry client.
type Config struct {
	// BaseURL is the registry API root. Defaults to DefaultBaseURL.
	BaseURL string

	// Username identifies the account tokens are issued for. Required
	// unless a pre-obtained Token is supplied.
	Username string

	// Password authenticates Username directly. When empty, Credentials
	// is consulted.
	Password string

	// Credentials resolves the password when Password is empty.
	Credentials CredentialProvider

	// Token is a pre-obtained bearer token. When set, no authentication
	// round trip happens at construction.
	Token string

	// ProjectID scopes operations that omit an explicit project.
	ProjectID string

	// HTTPClient is used for all requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// RenewTimeout bounds the blocking token renewal loop. Defaults to
	// two minutes.
	RenewTimeout time.Duration
}

// Client is a stateful registry session. It owns one bearer token and
// routes every call through a uniform execute-and-classify wrapper.
type Client struct {
	baseURL      string
	username     string
	password     string
	projectID    string
	httpClient   *http.Client
	token        string
	renewTimeout time.Duration

	renewInterval time.Duration
	logger        Logger
	clock         Clock
	metrics       MetricsRecorder
	audit         AuditRecorder

	// after schedules the renewal poll sleep. Tests pair it with a fake
	// clock so the timeout math and the waiting share one time source.
	after func(time.Duration) <-chan time.Time

	// lastRaw holds the body of the most recent 2xx response that could
	// not be decoded into its typed result.
	lastRaw string
}

// New constructs a client and authenticates immediately unless a token was
// supplied. Construction fails if the project id is malformed, credentials
// cannot be resolved, or the authenticate endpoint rejects them.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if cfg.ProjectID != "" {
		if err := domain.ValidateHexID("project_id", cfg.ProjectID); err != nil {
			return nil, err
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	renewTimeout := cfg.RenewTimeout
	if renewTimeout <= 0 {
		renewTimeout = defaultRenewTimeout
	}

	password := cfg.Password
	if password == "" && cfg.Token == "" {
		if cfg.Credentials == nil {
			return nil, domain.Validationf("no password, credential provider, or token supplied for user %q", cfg.Username)
		}
		var err error
		password, err = cfg.Credentials.Secret(cfg.Username, credentialApp)
		if err != nil {
			return nil, fmt.Errorf("resolve credentials for %q: %w", cfg.Username, err)
		}
	}

	c := &Client{
		baseURL:       baseURL,
		username:      cfg.Username,
		password:      password,
		projectID:     cfg.ProjectID,
		httpClient:    httpClient,
		token:         cfg.Token,
		renewTimeout:  renewTimeout,
		renewInterval: defaultRenewInterval,
		logger:        noopLogger{},
		clock:         systemClock(),
		audit:         NewMemoryAuditRecorder(),
		after:         time.After,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// ProjectID returns the project the session is bound to, if any.
func (c *Client) ProjectID() string { return c.projectID }

// SetProjectID rebinds the session to another project.
func (c *Client) SetProjectID(projectID string) error {
	if projectID != "" {
		if err := domain.ValidateHexID("project_id", projectID); err != nil {
			return err
		}
	}
	c.projectID = projectID
	return nil
}

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

// LastRawResponse returns the body of the most recent 2xx response that
// could not be decoded into its typed result, for manual inspection. It is
// cleared by the next request.
func (c *Client) LastRawResponse() string { return c.lastRaw }

// Audit returns the session's audit recorder.
func (c *Client) Audit() AuditRecorder { return c.audit }

// Authenticate acquires a bearer token for the configured user. Calling it
// on an already authenticated session is a logged no-op.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.token != "" {
		c.logger.Info("session already exists", "user", c.username)
		c.recordAudit("authenticate", "session already exists for user "+c.username)
		return nil
	}
	token, err := c.fetchToken(ctx)
	if err != nil {
		return err
	}
	c.token = token
	c.logger.Info("session created", "user", c.username)
	c.recordAudit("authenticate", "session created for user "+c.username)
	return nil
}

// RenewToken replaces the session token, polling the authenticate endpoint
// every few seconds until it yields a token or timeout elapses. The loop
// exists because the credential endpoint itself can be transiently
// unavailable; renewal must not fail on the first blip.
func (c *Client) RenewToken(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.renewTimeout
	}
	deadline := c.clock.Now().Add(timeout)
	var lastErr error
	for {
		token, err := c.fetchToken(ctx)
		if err == nil {
			c.token = token
			c.logger.Info("token renewed", "user", c.username)
			c.recordAudit("renew_token", "token renewed for user "+c.username)
			return nil
		}
		lastErr = err
		c.logger.Warn("token renewal attempt failed", "user", c.username, "error", err)
		if !c.clock.Now().Add(c.renewInterval).Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.after(c.renewInterval):
		}
	}
	return domain.TransportError{Msg: fmt.Sprintf(
		"could not renew token for user %q within %s: %v; is the registry reachable?",
		c.username, timeout, lastErr)}
}

// fetchToken performs one authenticate round trip using HTTP basic auth.
// The response body is the opaque bearer token.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"authenticate", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.username, c.password)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.TransportError{Msg: fmt.Sprintf(
			"authenticate request failed: %v; is the registry reachable?", err)}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read authenticate response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", classifyStatus(resp.StatusCode, body)
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", domain.TransportError{Msg: "authenticate returned an empty token"}
	}
	return token, nil
}

// execute runs one registry request and classifies the response. A JSON
// result is decoded into out when non-nil, otherwise the decoded text body
// is returned. On an authentication failure the token is renewed and the
// request retried exactly once; a second failure propagates.
func (c *Client) execute(ctx context.Context, method, endpoint string, query url.Values, body any, out any) (string, error) {
	text, err := c.doOnce(ctx, method, endpoint, query, body, out)
	if err == nil {
		return text, nil
	}
	var stale domain.AuthenticationError
	if !errors.As(err, &stale) {
		return "", err
	}
	c.logger.Warn("token rejected, renewing once", "endpoint", endpoint)
	if renewErr := c.RenewToken(ctx, c.renewTimeout); renewErr != nil {
		return "", renewErr
	}
	return c.doOnce(ctx, method, endpoint, query, body, out)
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, query url.Values, body any, out any) (string, error) {
	c.lastRaw = ""
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", domain.Validationf("encode request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.TransportError{Msg: fmt.Sprintf(
			"%s %s failed: %v; is the registry reachable?", method, endpoint, err)}
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", classifyStatus(resp.StatusCode, raw)
	}
	if out == nil {
		return string(raw), nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// A 2xx with an undecodable body is success with a warning;
		// the raw body is kept for manual inspection.
		c.lastRaw = string(raw)
		c.logger.Warn("response decoded as text, expected JSON",
			"endpoint", endpoint, "status", resp.StatusCode)
		return string(raw), nil
	}
	return "", nil
}

func (c *Client) recordAudit(operation, detail string) {
	if c.audit == nil {
		return
	}
	c.audit.Record(AuditEntry{
		Timestamp: c.clock.Now(),
		Operation: operation,
		Detail:    detail,
	})
}

// observe reports one finished operation to the metrics recorder.
func (c *Client) observe(ctx context.Context, operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.Observe(ctx, operation, err == nil, c.clock.Now().Sub(start))
}
