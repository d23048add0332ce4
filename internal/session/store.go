package session

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"furniture-store/internal/domain"
)

// Status is the tri-state resolution of the session.
type Status int

const (
	StatusLoading Status = iota
	StatusSignedIn
	StatusSignedOut
)

func (s Status) String() string {
	switch s {
	case StatusSignedIn:
		return "signed_in"
	case StatusSignedOut:
		return "signed_out"
	default:
		return "loading"
	}
}

// State is a snapshot of the session. Role is always derived from Profile.
type State struct {
	Status   Status
	Identity *domain.Identity
	Profile  *domain.Profile
	Role     domain.Role
	Busy     bool
}

// IsAdmin is false while loading or signed out.
func (s State) IsAdmin() bool {
	return s.Status == StatusSignedIn && s.Role == domain.RoleAdmin
}

// SignUpResult reports the outcome of a registration.
type SignUpResult struct {
	Success  bool
	Identity *domain.Identity
}

const (
	queueSize      = 64
	profileTimeout = 10 * time.Second
	minPasswordLen = 6
)

type queued struct {
	event   domain.IdentityEvent
	barrier chan struct{}
}

// Store holds the authenticated identity and its role. Identity changes
// reported by the auth provider are applied one at a time by a single
// worker, each with its profile fetched before the next is taken.
type Store struct {
	auth     domain.AuthProvider
	profiles domain.ProfileSource
	logger   *zap.Logger

	mu        sync.RWMutex
	state     State
	observers map[int]func(State)
	nextObs   int

	queue       chan queued
	done        chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
	inFlight    atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStore creates a store in the loading state and starts its worker.
func NewStore(auth domain.AuthProvider, profiles domain.ProfileSource, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		auth:      auth,
		profiles:  profiles,
		logger:    logger,
		state:     State{Status: StatusLoading},
		observers: make(map[int]func(State)),
		queue:     make(chan queued, queueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go s.run()
	return s
}

// Start subscribes to identity changes and restores any existing session.
func (s *Store) Start(ctx context.Context) error {
	s.unsubscribe = s.auth.OnIdentityChange(s.enqueue)

	identity, err := s.auth.GetSession(ctx)
	if err != nil {
		s.logger.Warn("Failed to restore session", zap.Error(err))
		s.enqueue(domain.IdentityEvent{Kind: domain.IdentitySignedOut})
		if ferr := s.Flush(ctx); ferr != nil {
			return ferr
		}
		return fmt.Errorf("failed to restore session: %w", err)
	}

	if identity == nil {
		s.enqueue(domain.IdentityEvent{Kind: domain.IdentitySignedOut})
	} else {
		s.enqueue(domain.IdentityEvent{Kind: domain.IdentityRestored, Identity: identity})
	}
	return s.Flush(ctx)
}

// Close stops the worker and the identity subscription.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.cancel()
		close(s.done)
		<-s.stopped
	})
}

// SignIn authenticates with email and password. On failure no session state
// changes and the error describes why.
func (s *Store) SignIn(ctx context.Context, email, password string) (bool, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false, domain.ErrActionInFlight
	}
	defer s.inFlight.Store(false)

	s.setBusy(true)
	defer s.setBusy(false)

	identity, err := s.auth.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		s.logger.Info("Sign in rejected", zap.String("email", email), zap.Error(err))
		return false, err
	}

	if err := s.Flush(ctx); err != nil {
		return false, err
	}
	s.logger.Info("User signed in", zap.String("user_id", identity.ID.String()))
	return true, nil
}

// SignUp registers a new account. The returned identity is nil when the
// account was created without an immediate session.
func (s *Store) SignUp(ctx context.Context, email, password string, meta domain.SignUpMetadata) (SignUpResult, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return SignUpResult{}, domain.NewValidationError("email", "a valid email address is required")
	}
	if len(password) < minPasswordLen {
		return SignUpResult{}, domain.NewValidationError("password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return SignUpResult{}, domain.ErrActionInFlight
	}
	defer s.inFlight.Store(false)

	s.setBusy(true)
	defer s.setBusy(false)

	identity, err := s.auth.SignUp(ctx, email, password, meta)
	if err != nil {
		s.logger.Info("Sign up rejected", zap.String("email", email), zap.Error(err))
		return SignUpResult{}, err
	}

	if err := s.Flush(ctx); err != nil {
		return SignUpResult{}, err
	}
	return SignUpResult{Success: true, Identity: identity}, nil
}

// SignOut clears identity, profile and role even when the provider call
// fails. The provider error is returned for reporting only.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.auth.SignOut(ctx)
	if err != nil {
		s.logger.Warn("Sign out call failed, clearing local session anyway", zap.Error(err))
	}

	s.enqueue(domain.IdentityEvent{Kind: domain.IdentitySignedOut})
	ferr := s.Flush(ctx)
	select {
	case <-s.done:
		// The worker is gone and will not apply the queued event.
		<-s.stopped
		s.clear()
	default:
		if ferr != nil {
			s.clear()
		}
	}

	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// RefreshRole re-reads the profile of the current identity.
func (s *Store) RefreshRole(ctx context.Context) error {
	identity := s.State().Identity
	if identity == nil {
		return domain.ErrNotSignedIn
	}
	s.enqueue(domain.IdentityEvent{Kind: domain.IdentityRestored, Identity: identity})
	return s.Flush(ctx)
}

// Flush waits until every identity change queued so far has been applied.
func (s *Store) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case s.queue <- queued{barrier: barrier}:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current session snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAdmin reports whether the signed-in identity has the admin role.
func (s *Store) IsAdmin() bool {
	return s.State().IsAdmin()
}

// Identity returns the signed-in identity or nil.
func (s *Store) Identity() *domain.Identity {
	return s.State().Identity
}

// Profile returns the profile of the signed-in identity or nil.
func (s *Store) Profile() *domain.Profile {
	return s.State().Profile
}

// Subscribe registers fn to receive every state change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) enqueue(event domain.IdentityEvent) {
	select {
	case s.queue <- queued{event: event}:
	case <-s.done:
	}
}

func (s *Store) run() {
	defer close(s.stopped)
	for {
		select {
		case item := <-s.queue:
			if item.barrier != nil {
				close(item.barrier)
				continue
			}
			s.apply(item.event)
		case <-s.done:
			return
		}
	}
}

func (s *Store) apply(event domain.IdentityEvent) {
	if event.Kind == domain.IdentitySignedOut || event.Identity == nil {
		s.clear()
		return
	}

	identity := *event.Identity
	s.update(func(st *State) {
		st.Status = StatusLoading
		st.Identity = &identity
		st.Profile = nil
		st.Role = ""
	})

	ctx, cancel := context.WithTimeout(s.ctx, profileTimeout)
	profile, err := s.profiles.GetProfile(ctx, identity.ID)
	cancel()

	role := domain.RoleCustomer
	if err != nil {
		s.logger.Warn("Profile lookup failed, defaulting to customer role",
			zap.String("user_id", identity.ID.String()),
			zap.Error(err),
		)
		profile = nil
	} else if profile != nil && profile.Role.Valid() {
		role = profile.Role
	}

	s.update(func(st *State) {
		st.Status = StatusSignedIn
		st.Identity = &identity
		st.Profile = profile
		st.Role = role
	})
}

func (s *Store) clear() {
	s.update(func(st *State) {
		st.Status = StatusSignedOut
		st.Identity = nil
		st.Profile = nil
		st.Role = ""
	})
}

func (s *Store) setBusy(busy bool) {
	s.update(func(st *State) {
		st.Busy = busy
	})
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	observers := make([]func(State), 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
}
