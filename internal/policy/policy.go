// ABOUTME: Policy client contract, request workflow types and sentinel errors
// ABOUTME: Every authorization decision and request state lives behind this interface

package policy

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Tammibriggs/food-ordering/internal/store"
)

// Sentinel errors returned by Client implementations
var (
	// ErrRequestExists is returned when an identical request is already pending
	ErrRequestExists = errors.New("request already pending")

	// ErrAlreadyApproved is returned when approving a request that is already approved
	ErrAlreadyApproved = errors.New("request already approved")

	// ErrRequestNotFound is returned when a request ID is unknown for the given kind
	ErrRequestNotFound = errors.New("request not found")

	// ErrForbidden is returned when the approver may not review the request
	ErrForbidden = errors.New("not permitted to approve this request")

	// ErrUnavailable wraps transport failures and server errors from the policy service
	ErrUnavailable = errors.New("policy service unavailable")
)

// Action is an operation checked against a resource
type Action string

const (
	ActionRead    Action = "read"
	ActionOrder   Action = "order"
	ActionApprove Action = "approve"
)

// Resource types known to the policy service
const (
	ResourceRestaurants = "restaurants"
	ResourceDishes      = "dishes"
)

// Roles assigned on restaurant instances
const (
	RoleParent        = "parent"
	RoleChildCanOrder = "child-can-order"
)

// Resource identifies a resource instance, e.g. restaurants:3
type Resource struct {
	Type string
	Key  string
}

func (r Resource) String() string {
	return r.Type + ":" + r.Key
}

// RestaurantResource returns the resource for a restaurant row
func RestaurantResource(id int64) Resource {
	return Resource{Type: ResourceRestaurants, Key: strconv.FormatInt(id, 10)}
}

// DishResource returns the resource for a dish row
func DishResource(id int64) Resource {
	return Resource{Type: ResourceDishes, Key: strconv.FormatInt(id, 10)}
}

// RequestKind distinguishes the two approval workflows
type RequestKind string

const (
	KindRestaurantAccess RequestKind = "restaurant_access"
	KindDishOrder        RequestKind = "dish_order"
)

// ParseKind validates a kind string. Empty input yields the empty kind.
func ParseKind(s string) (RequestKind, error) {
	switch RequestKind(s) {
	case "", KindRestaurantAccess, KindDishOrder:
		return RequestKind(s), nil
	}
	return "", errors.New("unknown request kind " + strconv.Quote(s))
}

// Status is the lifecycle state of a request: pending then approved
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// Request is an access request or dish order request as tracked by the policy service
type Request struct {
	ID             string      `json:"id"`
	Kind           RequestKind `json:"kind"`
	Requester      string      `json:"requester"`
	RestaurantID   int64       `json:"restaurant_id"`
	RestaurantName string      `json:"restaurant"`
	DishID         int64       `json:"dish_id,omitempty"`
	DishName       string      `json:"dish,omitempty"`
	Role           string      `json:"role,omitempty"`
	Reason         string      `json:"reason"`
	Status         Status      `json:"status"`
	ApprovedBy     string      `json:"approved_by,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Client is the boundary to the external policy decision point
type Client interface {
	// CheckAccess reports whether user may perform action on resource
	CheckAccess(ctx context.Context, user string, action Action, resource Resource) (bool, error)

	// RequestRestaurantAccess files a pending request for the child-can-order role
	RequestRestaurantAccess(ctx context.Context, user string, restaurant store.Restaurant) (*Request, error)

	// RequestDishOrder files a pending approval to order one restricted dish
	RequestDishOrder(ctx context.Context, user string, restaurant store.Restaurant, dish store.Dish) (*Request, error)

	// ListPending returns pending requests approver may review. Empty kind lists both kinds.
	ListPending(ctx context.Context, approver string, kind RequestKind) ([]Request, error)

	// Approve moves a pending request to approved
	Approve(ctx context.Context, approver string, kind RequestKind, requestID string) (*Request, error)
}

// AccessReason is the reason text filed with a restaurant access request
func AccessReason(user, restaurant string) string {
	return "User " + user + " requests role " + RoleChildCanOrder + " for " + restaurant + " restaurant"
}

// DishReason is the reason text filed with a dish order request
func DishReason(user, dish string) string {
	return "User " + user + " requests approval to order " + dish
}
