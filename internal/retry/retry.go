package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"furniture-store/internal/domain"
)

// Policy describes how a collaborator call is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Default returns the policy used for backend calls: 3 attempts starting
// at one second and doubling.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    8 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	p = p.normalized()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = p.Multiplier
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		exp.MaxInterval = p.MaxDelay
	}
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// IsTransient reports whether err is worth retrying. Only connectivity
// failures are.
func IsTransient(err error) bool {
	return errors.Is(err, domain.ErrConnectivity)
}

// NotifyFunc observes a failed attempt before the next one starts.
type NotifyFunc func(attempt int, err error, next time.Duration)

// Option configures a single Do call.
type Option func(*callOptions)

type callOptions struct {
	retryable func(error) bool
	notify    NotifyFunc
}

// WithClassifier overrides which errors are retried.
func WithClassifier(fn func(error) bool) Option {
	return func(o *callOptions) {
		o.retryable = fn
	}
}

// WithNotify registers fn to run after each failed attempt that will be retried.
func WithNotify(fn NotifyFunc) Option {
	return func(o *callOptions) {
		o.notify = fn
	}
}

// Retrier runs operations under a Policy.
type Retrier struct {
	policy Policy
	logger *zap.Logger
}

// New creates a Retrier. A nil logger disables retry logging.
func New(policy Policy, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{policy: policy.normalized(), logger: logger}
}

// Policy returns the policy in use.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// policy is exhausted or ctx is done. The last error from fn is returned.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error, opts ...Option) error {
	o := callOptions{retryable: IsTransient}
	for _, opt := range opts {
		opt(&o)
	}

	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("Operation succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}
		if !o.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		r.logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", next),
			zap.Error(err),
		)
		if o.notify != nil {
			o.notify(attempt, err, next)
		}
	}

	err := backoff.RetryNotify(op, r.policy.backOff(ctx), notify)
	if err != nil && o.retryable(err) && attempt >= r.policy.MaxAttempts {
		r.logger.Error("Operation failed after all retry attempts",
			zap.String("operation", operation),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Error(err),
		)
	}
	return err
}
