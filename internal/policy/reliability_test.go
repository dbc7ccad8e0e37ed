// ABOUTME: Tests for the rate limit / circuit breaker / retry wrapper
// ABOUTME: Uses a scripted Client to count attempts and force failures

package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tammibriggs/food-ordering/internal/store"
)

// scriptedClient returns errs in order on CheckAccess, then succeeds
type scriptedClient struct {
	*Local
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedClient) CheckAccess(ctx context.Context, user string, action Action, resource Resource) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return false, err
	}
	return true, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	open     bool
}

func (r *recordingObserver) ObservePolicyCall(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, op+":"+outcome)
}

func (r *recordingObserver) SetBreakerState(_ string, open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = open
}

func unavailable() error {
	return fmt.Errorf("%w: status 503", ErrUnavailable)
}

func TestReliable_NoRetryByDefault(t *testing.T) {
	inner := &scriptedClient{Local: NewLocal(), errs: []error{unavailable()}}
	obs := &recordingObserver{}
	r := NewReliable(inner, ReliabilityConfig{}, obs)

	_, err := r.CheckAccess(context.Background(), "rose", ActionRead, RestaurantResource(1))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, []string{"check_access:unavailable"}, obs.outcomes)
}

func TestReliable_RetriesWhenConfigured(t *testing.T) {
	inner := &scriptedClient{Local: NewLocal(), errs: []error{unavailable(), unavailable()}}
	r := NewReliable(inner, ReliabilityConfig{Attempts: 3}, nil)

	allowed, err := r.CheckAccess(context.Background(), "rose", ActionRead, RestaurantResource(1))
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 3, inner.calls)
}

func TestReliable_DomainErrorsNotRetried(t *testing.T) {
	inner := &scriptedClient{Local: NewLocal(), errs: []error{ErrForbidden}}
	r := NewReliable(inner, ReliabilityConfig{Attempts: 3}, nil)

	_, err := r.CheckAccess(context.Background(), "rose", ActionRead, RestaurantResource(1))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 1, inner.calls)
}

func TestReliable_BreakerOpens(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = unavailable()
	}
	inner := &scriptedClient{Local: NewLocal(), errs: errs}
	obs := &recordingObserver{}
	r := NewReliable(inner, ReliabilityConfig{BreakerMaxFailures: 2, BreakerTimeout: time.Hour}, obs)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := r.CheckAccess(ctx, "rose", ActionRead, RestaurantResource(1))
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.True(t, obs.open)

	// Open breaker short-circuits without reaching the inner client
	_, err := r.CheckAccess(ctx, "rose", ActionRead, RestaurantResource(1))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, inner.calls)
}

func TestReliable_DomainErrorsDoNotTripBreaker(t *testing.T) {
	inner := &scriptedClient{Local: NewLocal(), errs: []error{ErrForbidden, ErrForbidden, ErrForbidden}}
	obs := &recordingObserver{}
	r := NewReliable(inner, ReliabilityConfig{BreakerMaxFailures: 2}, obs)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.CheckAccess(ctx, "rose", ActionRead, RestaurantResource(1))
		require.ErrorIs(t, err, ErrForbidden)
	}
	assert.False(t, obs.open)

	allowed, err := r.CheckAccess(ctx, "rose", ActionRead, RestaurantResource(1))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestReliable_PassesThroughWorkflow(t *testing.T) {
	pdp := newFamilyPDP(t)
	r := NewReliable(pdp, DefaultReliabilityConfig(), nil)
	ctx := context.Background()

	req, err := r.RequestRestaurantAccess(ctx, "rose", fancyFrench)
	require.NoError(t, err)

	pending, err := r.ListPending(ctx, "joe", "")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = r.Approve(ctx, "joe", KindRestaurantAccess, req.ID)
	require.NoError(t, err)

	_, err = r.RequestDishOrder(ctx, "rose", fancyFrench, store.Dish{ID: 8, RestaurantID: 3, Name: "Foie Gras", PriceCents: 1999})
	require.NoError(t, err)
}

func TestReliable_CanceledContext(t *testing.T) {
	inner := &scriptedClient{Local: NewLocal()}
	r := NewReliable(inner, ReliabilityConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.CheckAccess(ctx, "rose", ActionRead, RestaurantResource(1))
	assert.True(t, errors.Is(err, context.Canceled))
}

type closingClient struct {
	*Local
	closed bool
}

func (c *closingClient) Close() error {
	c.closed = true
	return nil
}

func TestReliable_CloseForwards(t *testing.T) {
	inner := &closingClient{Local: NewLocal()}
	require.NoError(t, NewReliable(inner, ReliabilityConfig{}, nil).Close())
	assert.True(t, inner.closed)

	assert.NoError(t, NewReliable(NewLocal(), ReliabilityConfig{}, nil).Close(), "clients without Close are fine")
}

// slowPDP answers /allowed only after the request context ends or a second
// passes, unless fast is set.
func slowPDP(t *testing.T) (*HTTPClient, *atomic.Bool) {
	t.Helper()
	var fast atomic.Bool
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !fast.Load() {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(time.Second):
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"allow": true})
	})
	return c, &fast
}

func TestReliable_CallerDeadlineDoesNotTripBreaker(t *testing.T) {
	inner, fast := slowPDP(t)
	obs := &recordingObserver{}
	r := NewReliable(inner, ReliabilityConfig{BreakerMaxFailures: 2, BreakerTimeout: time.Hour}, obs)

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := r.CheckAccess(ctx, "rose", ActionRead, RestaurantResource(1))
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.False(t, obs.open, "callers giving up must not open the breaker")

	fast.Store(true)
	allowed, err := r.CheckAccess(context.Background(), "rose", ActionRead, RestaurantResource(1))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestReliable_AttemptTimeoutTripsBreaker(t *testing.T) {
	inner, _ := slowPDP(t)
	obs := &recordingObserver{}
	r := NewReliable(inner, ReliabilityConfig{
		AttemptTimeout:     20 * time.Millisecond,
		BreakerMaxFailures: 2,
		BreakerTimeout:     time.Hour,
	}, obs)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := r.CheckAccess(ctx, "rose", ActionRead, RestaurantResource(1))
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.True(t, obs.open, "a silent policy service is an outage")

	_, err := r.CheckAccess(ctx, "rose", ActionRead, RestaurantResource(1))
	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "circuit")
}
