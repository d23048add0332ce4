package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"furniture-store/internal/domain"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	TaxID    string `json:"tax_id,omitempty"`
}

type authResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int             `json:"expires_in"`
	User         domain.Identity `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// GetSession restores a saved session, validating it against the backend.
// It returns nil without error when there is no usable session.
func (c *Client) GetSession(ctx context.Context) (*domain.Identity, error) {
	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()

	if current == nil {
		saved, err := c.tokens.Load()
		if err != nil {
			c.logger.Warn("Failed to load saved session", zap.Error(err))
			return nil, nil
		}
		if saved == nil {
			return nil, nil
		}
		c.mu.Lock()
		c.session = saved
		c.mu.Unlock()
	}

	var me domain.Identity
	err := c.doJSON(ctx, http.MethodGet, "/api/auth/session", nil, &me, true)
	switch {
	case err == nil:
		return &me, nil
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNotSignedIn):
		c.dropSession()
		return nil, nil
	default:
		return nil, err
	}
}

// SignInWithPassword authenticates and starts a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, error) {
	var resp authResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", credentialsRequest{Email: email, Password: password}, &resp, false)
	if err != nil {
		return nil, err
	}
	identity := c.startSession(resp)
	c.emit(domain.IdentityEvent{Kind: domain.IdentitySignedIn, Identity: identity})
	return identity, nil
}

// SignUp registers an account and starts its session.
func (c *Client) SignUp(ctx context.Context, email, password string, meta domain.SignUpMetadata) (*domain.Identity, error) {
	var resp authResponse
	req := credentialsRequest{Email: email, Password: password, FullName: meta.FullName, TaxID: meta.TaxID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/signup", req, &resp, false); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, nil
	}
	identity := c.startSession(resp)
	c.emit(domain.IdentityEvent{Kind: domain.IdentitySignedIn, Identity: identity})
	return identity, nil
}

// SignOut revokes the refresh token and drops the local session. The local
// session is dropped even when the backend call fails.
func (c *Client) SignOut(ctx context.Context) error {
	s := c.currentSession()
	if s == nil {
		return nil
	}

	err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", refreshRequest{RefreshToken: s.RefreshToken}, nil, true)
	c.dropSession()
	return err
}

// OnIdentityChange registers fn for identity changes. Events are delivered
// synchronously and in order.
func (c *Client) OnIdentityChange(fn func(domain.IdentityEvent)) func() {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

// CurrentSession returns a copy of the active session, or nil.
func (c *Client) CurrentSession() *Session {
	return c.currentSession()
}

func (c *Client) currentSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Client) startSession(resp authResponse) *domain.Identity {
	s := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		User:         resp.User,
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	if err := c.tokens.Save(s); err != nil {
		c.logger.Warn("Failed to persist session", zap.Error(err))
	}
	identity := resp.User
	return &identity
}

func (c *Client) dropSession() {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.mu.Unlock()

	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("Failed to clear saved session", zap.Error(err))
	}
	if had {
		c.emit(domain.IdentityEvent{Kind: domain.IdentitySignedOut})
	}
}

// refresh exchanges the refresh token for a new access token. A rejected
// refresh ends the session.
func (c *Client) refresh(ctx context.Context) error {
	s := c.currentSession()
	if s == nil || s.RefreshToken == "" {
		return domain.ErrNotSignedIn
	}

	var resp refreshResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/refresh", refreshRequest{RefreshToken: s.RefreshToken}, &resp, false)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			c.logger.Info("Refresh token rejected, ending session", zap.Error(err))
			c.dropSession()
		}
		return err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.AccessToken = resp.AccessToken
		c.session.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		cp := *c.session
		s = &cp
	}
	c.mu.Unlock()

	if err := c.tokens.Save(s); err != nil {
		c.logger.Warn("Failed to persist refreshed session", zap.Error(err))
	}
	return nil
}

func (c *Client) emit(event domain.IdentityEvent) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.listenersMu.Lock()
	listeners := make([]func(domain.IdentityEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}
