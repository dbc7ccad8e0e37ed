// ABOUTME: Tests for the in-process policy decision point
// ABOUTME: Covers role checks, request lifecycle, duplicate handling and approver scoping

package policy

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tammibriggs/food-ordering/internal/store"
)

var (
	pizzaPalace = store.Restaurant{ID: 1, Name: "Pizza Palace", AllowedForChildren: true}
	fancyFrench = store.Restaurant{ID: 3, Name: "Fancy French"}
	escargot    = store.Dish{ID: 7, RestaurantID: 3, Name: "Escargot", PriceCents: 1599}
)

// newFamilyPDP assigns joe as parent on both restaurants and rose as a child on Pizza Palace
func newFamilyPDP(t *testing.T) *Local {
	t.Helper()
	ctx := context.Background()
	pdp := NewLocal()
	require.NoError(t, pdp.AssignRole(ctx, "joe", RoleParent, RestaurantResource(pizzaPalace.ID)))
	require.NoError(t, pdp.AssignRole(ctx, "joe", RoleParent, RestaurantResource(fancyFrench.ID)))
	require.NoError(t, pdp.AssignRole(ctx, "rose", RoleChildCanOrder, RestaurantResource(pizzaPalace.ID)))
	return pdp
}

func TestLocal_CheckAccess(t *testing.T) {
	pdp := newFamilyPDP(t)
	ctx := context.Background()

	tests := []struct {
		user     string
		action   Action
		resource Resource
		want     bool
	}{
		{"joe", ActionOrder, RestaurantResource(3), true},
		{"joe", ActionApprove, RestaurantResource(1), true},
		{"rose", ActionOrder, RestaurantResource(1), true},
		{"rose", ActionRead, RestaurantResource(1), true},
		{"rose", ActionApprove, RestaurantResource(1), false},
		{"rose", ActionOrder, RestaurantResource(3), false},
		{"rose", ActionOrder, DishResource(7), false},
		{"stranger", ActionRead, RestaurantResource(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.user+"/"+string(tt.action)+"/"+tt.resource.String(), func(t *testing.T) {
			got, err := pdp.CheckAccess(ctx, tt.user, tt.action, tt.resource)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocal_AssignRole_UnknownRole(t *testing.T) {
	pdp := NewLocal()
	err := pdp.AssignRole(context.Background(), "rose", "owner", RestaurantResource(1))
	assert.Error(t, err)
}

func TestLocal_RestaurantAccessLifecycle(t *testing.T) {
	pdp := newFamilyPDP(t)
	ctx := context.Background()

	req, err := pdp.RequestRestaurantAccess(ctx, "rose", fancyFrench)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, KindRestaurantAccess, req.Kind)
	assert.Equal(t, RoleChildCanOrder, req.Role)
	assert.Equal(t, "User rose requests role child-can-order for Fancy French restaurant", req.Reason)

	// Still denied while pending
	allowed, err := pdp.CheckAccess(ctx, "rose", ActionOrder, RestaurantResource(fancyFrench.ID))
	require.NoError(t, err)
	assert.False(t, allowed)

	pending, err := pdp.ListPending(ctx, "joe", KindRestaurantAccess)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)

	approved, err := pdp.Approve(ctx, "joe", KindRestaurantAccess, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, "joe", approved.ApprovedBy)

	allowed, err = pdp.CheckAccess(ctx, "rose", ActionOrder, RestaurantResource(fancyFrench.ID))
	require.NoError(t, err)
	assert.True(t, allowed)

	pending, err = pdp.ListPending(ctx, "joe", "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLocal_DishOrderLifecycle(t *testing.T) {
	pdp := newFamilyPDP(t)
	ctx := context.Background()

	req, err := pdp.RequestDishOrder(ctx, "rose", fancyFrench, escargot)
	require.NoError(t, err)
	assert.Equal(t, KindDishOrder, req.Kind)
	assert.Equal(t, escargot.ID, req.DishID)
	assert.Equal(t, "User rose requests approval to order Escargot", req.Reason)

	_, err = pdp.Approve(ctx, "joe", KindDishOrder, req.ID)
	require.NoError(t, err)

	allowed, err := pdp.CheckAccess(ctx, "rose", ActionOrder, DishResource(escargot.ID))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLocal_DuplicatePendingRequest(t *testing.T) {
	pdp := newFamilyPDP(t)
	ctx := context.Background()

	_, err := pdp.RequestRestaurantAccess(ctx, "rose", fancyFrench)
	require.NoError(t, err)

	_, err = pdp.RequestRestaurantAccess(ctx, "rose", fancyFrench)
	assert.ErrorIs(t, err, ErrRequestExists)

	_, err = pdp.RequestDishOrder(ctx, "rose", fancyFrench, escargot)
	require.NoError(t, err, "different kind is a separate request")

	_, err = pdp.RequestDishOrder(ctx, "rose", fancyFrench, escargot)
	assert.ErrorIs(t, err, ErrRequestExists)
}

func TestLocal_ApproveErrors(t *testing.T) {
	pdp := newFamilyPDP(t)
	ctx := context.Background()

	req, err := pdp.RequestRestaurantAccess(ctx, "rose", fancyFrench)
	require.NoError(t, err)

	t.Run("unknown id", func(t *testing.T) {
		_, err := pdp.Approve(ctx, "joe", KindRestaurantAccess, "no-such-id")
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("wrong kind", func(t *testing.T) {
		_, err := pdp.Approve(ctx, "joe", KindDishOrder, req.ID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("child cannot approve", func(t *testing.T) {
		_, err := pdp.Approve(ctx, "rose", KindRestaurantAccess, req.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("already approved", func(t *testing.T) {
		_, err := pdp.Approve(ctx, "joe", KindRestaurantAccess, req.ID)
		require.NoError(t, err)

		_, err = pdp.Approve(ctx, "joe", KindRestaurantAccess, req.ID)
		assert.ErrorIs(t, err, ErrAlreadyApproved)
	})
}

func TestLocal_ListPending_ScopedToApprover(t *testing.T) {
	pdp := newFamilyPDP(t)
	ctx := context.Background()

	_, err := pdp.RequestRestaurantAccess(ctx, "rose", fancyFrench)
	require.NoError(t, err)

	pending, err := pdp.ListPending(ctx, "rose", "")
	require.NoError(t, err)
	assert.Empty(t, pending, "children see nothing to approve")

	pending, err = pdp.ListPending(ctx, "joe", KindDishOrder)
	require.NoError(t, err)
	assert.Empty(t, pending, "kind filter applies")
}

func TestLocal_ConcurrentRequests(t *testing.T) {
	pdp := newFamilyPDP(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pdp.RequestRestaurantAccess(ctx, "rose", fancyFrench)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, ErrRequestExists)
		}
	}
	assert.Equal(t, 1, created)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("dish_order")
	require.NoError(t, err)
	assert.Equal(t, KindDishOrder, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, RequestKind(""), k)

	_, err = ParseKind("refund")
	assert.Error(t, err)
}
