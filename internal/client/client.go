package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"furniture-store/internal/domain"
)

const defaultTimeout = 15 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTokenStore persists the session between runs.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		if store != nil {
			c.tokens = store
		}
	}
}

// Client talks to the storefront backend. It implements the auth, profile,
// product, order and file-storage ports and reports identity changes to
// subscribers in the order they happen.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	tokens  TokenStore

	mu      sync.RWMutex
	session *Session

	listenersMu  sync.Mutex
	listeners    map[int]func(domain.IdentityEvent)
	nextListener int
	// emitMu serialises delivery so listeners see events in order.
	emitMu sync.Mutex
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: defaultTimeout},
		logger:    zap.NewNop(),
		tokens:    NewMemoryTokenStore(),
		listeners: make(map[int]func(domain.IdentityEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Probe checks the backend health endpoint.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, http.MethodGet, "/health", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d: %w", resp.StatusCode, domain.ErrConnectivity)
	}
	return nil
}

type requestOptions struct {
	auth   bool
	retry  bool
	header http.Header
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	header := http.Header{}
	if in != nil {
		header.Set("Content-Type", "application/json")
	}
	return c.send(ctx, method, path, body, out, requestOptions{auth: auth, retry: true, header: header})
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, out any, opts requestOptions) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range opts.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	if opts.auth {
		s := c.currentSession()
		if s == nil {
			return domain.ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && opts.auth && opts.retry {
		_, _ = io.Copy(io.Discard, resp.Body)
		if rerr := c.refresh(ctx); rerr != nil {
			return rerr
		}
		opts.retry = false
		return c.send(ctx, method, path, body, out, opts)
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, method, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	c.logger.Debug("Backend request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Error(err),
	)
	return fmt.Errorf("%s %s: %v: %w", method, path, err, domain.ErrConnectivity)
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			ValidationErrors []struct {
				Field   string `json:"field"`
				Message string `json:"message"`
			} `json:"validation_errors"`
		} `json:"details"`
	} `json:"error"`
}

// decodeError maps a non-2xx response onto the error taxonomy, keeping the
// backend's message verbatim.
func decodeError(resp *http.Response) error {
	var env errorEnvelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &env)

	message := env.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
		if ve := env.Error.Details.ValidationErrors; len(ve) > 0 {
			return domain.NewValidationError(ve[0].Field, ve[0].Message)
		}
		return domain.NewValidationError("", message)
	}

	remote := &domain.RemoteError{Status: resp.StatusCode, Code: env.Error.Code, Message: message}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		remote.Kind = domain.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		remote.Kind = domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		remote.Kind = domain.ErrConflict
	case resp.StatusCode == http.StatusPaymentRequired:
		remote.Kind = domain.ErrPaymentFailed
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		remote.Kind = domain.ErrConnectivity
	}
	return remote
}
