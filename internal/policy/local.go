// ABOUTME: In-process policy decision point with role assignments and a request book
// ABOUTME: Backs tests and the offline demo mode; mirrors the remote PDP's semantics

package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tammibriggs/food-ordering/internal/store"
)

// rolePermissions maps a restaurant-instance role to the actions it grants
var rolePermissions = map[string][]Action{
	RoleParent:        {ActionRead, ActionOrder, ActionApprove},
	RoleChildCanOrder: {ActionRead, ActionOrder},
}

// Local is an in-memory Client and Directory. It is safe for concurrent use.
type Local struct {
	mu          sync.Mutex
	users       map[string]store.User
	instances   map[Resource]struct{}
	assignments map[string]map[Resource]map[string]struct{}
	grants      map[string]map[Resource]map[Action]struct{}
	requests    map[string]*Request
	now         func() time.Time
	logger      *slog.Logger
}

// NewLocal creates an empty in-process policy decision point
func NewLocal() *Local {
	return &Local{
		users:       make(map[string]store.User),
		instances:   make(map[Resource]struct{}),
		assignments: make(map[string]map[Resource]map[string]struct{}),
		grants:      make(map[string]map[Resource]map[Action]struct{}),
		requests:    make(map[string]*Request),
		now:         time.Now,
		logger:      slog.Default().With("component", "policy", "mode", "local"),
	}
}

// SyncUser records a user. Role assignments are separate.
func (l *Local) SyncUser(_ context.Context, user store.User) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[UserKey(user.Username)] = user
	return nil
}

// EnsureResourceInstance records a resource instance; repeating it is a no-op
func (l *Local) EnsureResourceInstance(_ context.Context, resource Resource) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.instances[resource] = struct{}{}
	return nil
}

// AssignRole gives user a role on a resource instance. Idempotent.
func (l *Local) AssignRole(_ context.Context, user, role string, resource Resource) error {
	if _, ok := rolePermissions[role]; !ok {
		return fmt.Errorf("unknown role %q", role)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.assignRoleLocked(UserKey(user), role, resource)
	return nil
}

func (l *Local) assignRoleLocked(key, role string, resource Resource) {
	byResource, ok := l.assignments[key]
	if !ok {
		byResource = make(map[Resource]map[string]struct{})
		l.assignments[key] = byResource
	}
	roles, ok := byResource[resource]
	if !ok {
		roles = make(map[string]struct{})
		byResource[resource] = roles
	}
	roles[role] = struct{}{}
}

func (l *Local) grantLocked(key string, action Action, resource Resource) {
	byResource, ok := l.grants[key]
	if !ok {
		byResource = make(map[Resource]map[Action]struct{})
		l.grants[key] = byResource
	}
	actions, ok := byResource[resource]
	if !ok {
		actions = make(map[Action]struct{})
		byResource[resource] = actions
	}
	actions[action] = struct{}{}
}

// CheckAccess evaluates role assignments and direct grants
func (l *Local) CheckAccess(_ context.Context, user string, action Action, resource Resource) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowedLocked(UserKey(user), action, resource), nil
}

func (l *Local) allowedLocked(key string, action Action, resource Resource) bool {
	if actions, ok := l.grants[key][resource]; ok {
		if _, ok := actions[action]; ok {
			return true
		}
	}
	for role := range l.assignments[key][resource] {
		for _, a := range rolePermissions[role] {
			if a == action {
				return true
			}
		}
	}
	return false
}

// RequestRestaurantAccess files a pending child-can-order request
func (l *Local) RequestRestaurantAccess(_ context.Context, user string, restaurant store.Restaurant) (*Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := UserKey(user)
	if l.pendingLocked(KindRestaurantAccess, key, restaurant.ID, 0) {
		return nil, ErrRequestExists
	}

	req := &Request{
		ID:             uuid.New().String(),
		Kind:           KindRestaurantAccess,
		Requester:      key,
		RestaurantID:   restaurant.ID,
		RestaurantName: restaurant.Name,
		Role:           RoleChildCanOrder,
		Reason:         AccessReason(user, restaurant.Name),
		Status:         StatusPending,
		CreatedAt:      l.now().UTC(),
	}
	l.requests[req.ID] = req

	l.logger.Info("access request filed", "request_id", req.ID, "user", key, "restaurant", restaurant.Name)
	out := *req
	return &out, nil
}

// RequestDishOrder files a pending approval for one dish
func (l *Local) RequestDishOrder(_ context.Context, user string, restaurant store.Restaurant, dish store.Dish) (*Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := UserKey(user)
	if l.pendingLocked(KindDishOrder, key, restaurant.ID, dish.ID) {
		return nil, ErrRequestExists
	}

	req := &Request{
		ID:             uuid.New().String(),
		Kind:           KindDishOrder,
		Requester:      key,
		RestaurantID:   restaurant.ID,
		RestaurantName: restaurant.Name,
		DishID:         dish.ID,
		DishName:       dish.Name,
		Reason:         DishReason(user, dish.Name),
		Status:         StatusPending,
		CreatedAt:      l.now().UTC(),
	}
	l.requests[req.ID] = req

	l.logger.Info("dish order request filed", "request_id", req.ID, "user", key, "dish", dish.Name)
	out := *req
	return &out, nil
}

func (l *Local) pendingLocked(kind RequestKind, key string, restaurantID, dishID int64) bool {
	for _, r := range l.requests {
		if r.Status == StatusPending && r.Kind == kind && r.Requester == key &&
			r.RestaurantID == restaurantID && r.DishID == dishID {
			return true
		}
	}
	return false
}

// ListPending returns pending requests on restaurants the approver may approve, oldest first
func (l *Local) ListPending(_ context.Context, approver string, kind RequestKind) ([]Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := UserKey(approver)
	pending := []Request{}
	for _, r := range l.requests {
		if r.Status != StatusPending {
			continue
		}
		if kind != "" && r.Kind != kind {
			continue
		}
		if !l.allowedLocked(key, ActionApprove, RestaurantResource(r.RestaurantID)) {
			continue
		}
		pending = append(pending, *r)
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// Approve marks a pending request approved and applies its grant
func (l *Local) Approve(_ context.Context, approver string, kind RequestKind, requestID string) (*Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.requests[requestID]
	if !ok || (kind != "" && req.Kind != kind) {
		return nil, ErrRequestNotFound
	}

	key := UserKey(approver)
	if !l.allowedLocked(key, ActionApprove, RestaurantResource(req.RestaurantID)) {
		return nil, ErrForbidden
	}
	if req.Status == StatusApproved {
		return nil, ErrAlreadyApproved
	}

	req.Status = StatusApproved
	req.ApprovedBy = key

	switch req.Kind {
	case KindRestaurantAccess:
		l.assignRoleLocked(req.Requester, RoleChildCanOrder, RestaurantResource(req.RestaurantID))
	case KindDishOrder:
		l.grantLocked(req.Requester, ActionOrder, DishResource(req.DishID))
	}

	l.logger.Info("request approved", "request_id", req.ID, "kind", req.Kind, "approver", key, "requester", req.Requester)
	out := *req
	return &out, nil
}
