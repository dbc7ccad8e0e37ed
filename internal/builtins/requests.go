// ABOUTME: Requests pack: access and dish order requests plus the approval tools.
// ABOUTME: Children file requests; approvers list and approve them through the policy service.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tammibriggs/food-ordering/internal/packs"
	"github.com/Tammibriggs/food-ordering/internal/policy"
	"github.com/Tammibriggs/food-ordering/internal/store"
)

// RequestsPack creates the requests pack.
func RequestsPack(deps Deps) *packs.BuiltinPack {
	deps = deps.withDefaults()
	r := &requestHandlers{deps: deps}
	return &packs.BuiltinPack{
		ID: "builtin:requests",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "request_restaurant_access",
					Description: "Ask a parent for permission to order from a restaurant",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"username":{"type":"string"},"restaurant_name":{"type":"string"}},"required":["restaurant_name"]}`),
				},
				Handler: guard(deps.Logger, "request_restaurant_access", r.RequestRestaurantAccess),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "request_dish_order",
					Description: "Ask a parent to approve ordering a dish above the price limit",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"username":{"type":"string"},"dish_name":{"type":"string"},"restaurant_name":{"type":"string"}},"required":["dish_name"]}`),
				},
				Handler: guard(deps.Logger, "request_dish_order", r.RequestDishOrder),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "list_pending_requests",
					Description: "List pending requests waiting for your approval",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"username":{"type":"string"},"kind":{"type":"string","enum":["restaurant_access","dish_order"]}}}`),
				},
				Handler: guard(deps.Logger, "list_pending_requests", r.ListPendingRequests),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "approve_request",
					Description: "Approve a pending restaurant access or dish order request",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"username":{"type":"string"},"kind":{"type":"string","enum":["restaurant_access","dish_order"]},"request_id":{"type":"string"}},"required":["kind","request_id"]}`),
				},
				Handler: guard(deps.Logger, "approve_request", r.ApproveRequest),
			},
		},
	}
}

type requestHandlers struct {
	deps Deps
}

const requestSentMessage = "Your request has been sent. Please check back later."

type requestAccessInput struct {
	Username       string `json:"username"`
	RestaurantName string `json:"restaurant_name"`
}

func (h *requestHandlers) RequestRestaurantAccess(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in requestAccessInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := h.requireChild(ctx, caller, in.Username, "restaurant access")
	if err != nil {
		return nil, err
	}
	restaurant, err := lookupRestaurant(ctx, h.deps.Catalog, in.RestaurantName)
	if err != nil {
		return nil, err
	}

	ok, err := h.deps.Policy.CheckAccess(ctx, user.Username, policy.ActionOrder, policy.RestaurantResource(restaurant.ID))
	if err != nil {
		return nil, err
	}
	if ok {
		return json.Marshal(map[string]any{
			"status":     "granted",
			"restaurant": restaurant.Name,
			"message":    fmt.Sprintf("You can already order from %s.", restaurant.Name),
		})
	}

	req, err := h.deps.Policy.RequestRestaurantAccess(ctx, user.Username, *restaurant)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"status":  string(req.Status),
		"request": req,
		"message": requestSentMessage,
	})
}

type requestDishInput struct {
	Username       string `json:"username"`
	DishName       string `json:"dish_name"`
	RestaurantName string `json:"restaurant_name,omitempty"`
}

func (h *requestHandlers) RequestDishOrder(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in requestDishInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := h.requireChild(ctx, caller, in.Username, "dish order")
	if err != nil {
		return nil, err
	}
	restaurant, dish, err := h.resolveDish(ctx, in.RestaurantName, in.DishName)
	if err != nil {
		return nil, err
	}

	if dish.PriceCents <= h.deps.ChildPriceThresholdCents {
		return nil, fmt.Errorf("%w: %s costs %s, which is within your limit, so you can order it directly",
			ErrNotApplicable, dish.Name, store.FormatPrice(dish.PriceCents))
	}

	canOrder, err := h.deps.Policy.CheckAccess(ctx, user.Username, policy.ActionOrder, policy.RestaurantResource(restaurant.ID))
	if err != nil {
		return nil, err
	}
	if !canOrder {
		return nil, fmt.Errorf("%w: you cannot order from %s yet, use request_restaurant_access first",
			ErrUnauthorized, restaurant.Name)
	}

	approved, err := h.deps.Policy.CheckAccess(ctx, user.Username, policy.ActionOrder, policy.DishResource(dish.ID))
	if err != nil {
		return nil, err
	}
	if approved {
		return json.Marshal(map[string]any{
			"status":  "granted",
			"dish":    dish.Name,
			"message": fmt.Sprintf("You are already approved to order %s.", dish.Name),
		})
	}

	req, err := h.deps.Policy.RequestDishOrder(ctx, user.Username, *restaurant, *dish)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"status":  string(req.Status),
		"request": req,
		"message": requestSentMessage,
	})
}

func (h *requestHandlers) resolveDish(ctx context.Context, restaurantName, dishName string) (*store.Restaurant, *store.Dish, error) {
	if strings.TrimSpace(dishName) == "" {
		return nil, nil, fmt.Errorf("%w: dish_name is required", ErrInvalidInput)
	}

	if strings.TrimSpace(restaurantName) != "" {
		restaurant, err := lookupRestaurant(ctx, h.deps.Catalog, restaurantName)
		if err != nil {
			return nil, nil, err
		}
		dish, err := lookupDish(ctx, h.deps.Catalog, restaurant, dishName)
		if err != nil {
			return nil, nil, err
		}
		return restaurant, dish, nil
	}

	dish, err := h.deps.Catalog.FindDishByName(ctx, dishName)
	if err != nil {
		return nil, nil, notFound("dish", dishName, err)
	}
	restaurant, err := h.deps.Catalog.GetRestaurant(ctx, dish.RestaurantID)
	if err != nil {
		return nil, nil, err
	}
	return restaurant, dish, nil
}

type listPendingInput struct {
	Username string `json:"username"`
	Kind     string `json:"kind,omitempty"`
}

func (h *requestHandlers) ListPendingRequests(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in listPendingInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	kind, err := policy.ParseKind(in.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := h.requireApprover(ctx, caller, in.Username)
	if err != nil {
		return nil, err
	}

	requests, err := h.deps.Policy.ListPending(ctx, user.Username, kind)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []policy.Request{}
	}

	return json.Marshal(map[string]any{
		"requests": requests,
		"count":    len(requests),
	})
}

type approveInput struct {
	Username  string `json:"username"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id"`
}

func (h *requestHandlers) ApproveRequest(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in approveInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	kind, err := policy.ParseKind(in.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if kind == "" {
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.RequestID) == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrInvalidInput)
	}

	user, err := h.requireApprover(ctx, caller, in.Username)
	if err != nil {
		return nil, err
	}

	req, err := h.deps.Policy.Approve(ctx, user.Username, kind, strings.TrimSpace(in.RequestID))
	if err != nil {
		return nil, err
	}

	h.deps.Logger.Info("request approved", "request_id", req.ID, "kind", req.Kind, "approver", user.Username)

	return json.Marshal(map[string]any{
		"status":  string(req.Status),
		"request": req,
		"message": fmt.Sprintf("Approved %s request from %s.", strings.ReplaceAll(string(req.Kind), "_", " "), req.Requester),
	})
}

func (h *requestHandlers) requireChild(ctx context.Context, caller, username, what string) (*store.User, error) {
	user, err := resolveUser(ctx, h.deps.Catalog, caller, username)
	if err != nil {
		return nil, err
	}
	if user.Role != store.RoleChild {
		return nil, fmt.Errorf("%w: %s requests are only needed for children", ErrNotApplicable, what)
	}
	return user, nil
}

func (h *requestHandlers) requireApprover(ctx context.Context, caller, username string) (*store.User, error) {
	user, err := resolveUser(ctx, h.deps.Catalog, caller, username)
	if err != nil {
		return nil, err
	}
	ok, err := approverCapable(ctx, h.deps, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot review requests", ErrUnauthorized, user.Username)
	}
	return user, nil
}
