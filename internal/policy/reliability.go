// ABOUTME: Rate limiting, circuit breaking and optional retries around a policy Client
// ABOUTME: Only availability failures trip the breaker or qualify for a retry

package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Tammibriggs/food-ordering/internal/store"
)

// Observer receives call outcomes; the metrics package implements it
type Observer interface {
	ObservePolicyCall(op, outcome string, elapsed time.Duration)
	SetBreakerState(name string, open bool)
}

type noopObserver struct{}

func (noopObserver) ObservePolicyCall(string, string, time.Duration) {}
func (noopObserver) SetBreakerState(string, bool)                    {}

// ReliabilityConfig tunes the wrapper. Zero values select the defaults.
type ReliabilityConfig struct {
	Name               string
	RateLimit          float64       // requests per second
	Burst              int           // limiter bucket size
	Attempts           uint          // 1 means no retries
	AttemptTimeout     time.Duration // per attempt
	BreakerMaxFailures uint32        // consecutive failures before opening
	BreakerTimeout     time.Duration // open -> half-open delay
}

// DefaultReliabilityConfig returns the settings used when none are configured
func DefaultReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{
		Name:               "policy",
		RateLimit:          50,
		Burst:              10,
		Attempts:           1,
		AttemptTimeout:     10 * time.Second,
		BreakerMaxFailures: 5,
		BreakerTimeout:     30 * time.Second,
	}
}

func (c ReliabilityConfig) withDefaults() ReliabilityConfig {
	d := DefaultReliabilityConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.RateLimit <= 0 {
		c.RateLimit = d.RateLimit
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	// retry-go treats 0 attempts as "retry forever"
	if c.Attempts == 0 {
		c.Attempts = d.Attempts
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = d.BreakerMaxFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = d.BreakerTimeout
	}
	return c
}

// Reliable decorates a Client with a rate limiter, a circuit breaker and retries
type Reliable struct {
	next     Client
	cfg      ReliabilityConfig
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	observer Observer
	logger   *slog.Logger
}

// NewReliable wraps next. A nil observer disables call reporting.
func NewReliable(next Client, cfg ReliabilityConfig, observer Observer) *Reliable {
	cfg = cfg.withDefaults()
	if observer == nil {
		observer = noopObserver{}
	}
	logger := slog.Default().With("component", "policy-reliability")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		// Domain rejections and callers giving up are not service failures
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			observer.SetBreakerState(name, to == gobreaker.StateOpen)
		},
	})
	observer.SetBreakerState(cfg.Name, false)

	return &Reliable{
		next:     next,
		cfg:      cfg,
		cb:       cb,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		observer: observer,
		logger:   logger,
	}
}

// call runs fn through the limiter, breaker and retrier
func call[T any](r *Reliable, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()

	if err := r.limiter.Wait(ctx); err != nil {
		r.observer.ObservePolicyCall(op, "rate_limited", time.Since(start))
		return zero, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := r.cb.Execute(func() (interface{}, error) {
		var out T
		retrier := retry.New(
			retry.Context(ctx),
			retry.Attempts(r.cfg.Attempts),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return errors.Is(err, ErrUnavailable)
			}),
		)
		retryErr := retrier.Do(func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
			defer cancel()

			v, callErr := fn(attemptCtx)
			if callErr != nil {
				// Only our own attempt deadline counts against the service
				if ctx.Err() == nil && errors.Is(callErr, context.DeadlineExceeded) {
					return fmt.Errorf("%w: %s: no answer within %s", ErrUnavailable, op, r.cfg.AttemptTimeout)
				}
				return callErr
			}
			out = v
			return nil
		})
		return out, retryErr
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: circuit %s", ErrUnavailable, err)
	}
	r.observer.ObservePolicyCall(op, outcome(err), time.Since(start))
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			r.logger.Error("policy call failed", "op", op, "error", err)
		}
		return zero, err
	}

	v, _ := result.(T)
	return v, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "rejected"
	}
}

// CheckAccess implements Client
func (r *Reliable) CheckAccess(ctx context.Context, user string, action Action, resource Resource) (bool, error) {
	return call(r, ctx, "check_access", func(ctx context.Context) (bool, error) {
		return r.next.CheckAccess(ctx, user, action, resource)
	})
}

// RequestRestaurantAccess implements Client
func (r *Reliable) RequestRestaurantAccess(ctx context.Context, user string, restaurant store.Restaurant) (*Request, error) {
	return call(r, ctx, "request_restaurant_access", func(ctx context.Context) (*Request, error) {
		return r.next.RequestRestaurantAccess(ctx, user, restaurant)
	})
}

// RequestDishOrder implements Client
func (r *Reliable) RequestDishOrder(ctx context.Context, user string, restaurant store.Restaurant, dish store.Dish) (*Request, error) {
	return call(r, ctx, "request_dish_order", func(ctx context.Context) (*Request, error) {
		return r.next.RequestDishOrder(ctx, user, restaurant, dish)
	})
}

// ListPending implements Client
func (r *Reliable) ListPending(ctx context.Context, approver string, kind RequestKind) ([]Request, error) {
	return call(r, ctx, "list_pending", func(ctx context.Context) ([]Request, error) {
		return r.next.ListPending(ctx, approver, kind)
	})
}

// Approve implements Client
func (r *Reliable) Approve(ctx context.Context, approver string, kind RequestKind, requestID string) (*Request, error) {
	return call(r, ctx, "approve", func(ctx context.Context) (*Request, error) {
		return r.next.Approve(ctx, approver, kind, requestID)
	})
}

// Close releases the wrapped client when it holds background resources
func (r *Reliable) Close() error {
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
