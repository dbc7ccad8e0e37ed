// ABOUTME: Ordering pack: the order_dish tool.
// ABOUTME: Enforces restaurant permission and the child price threshold via the policy service.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tammibriggs/food-ordering/internal/packs"
	"github.com/Tammibriggs/food-ordering/internal/policy"
	"github.com/Tammibriggs/food-ordering/internal/store"
)

// OrderingPack creates the ordering pack.
func OrderingPack(deps Deps) *packs.BuiltinPack {
	deps = deps.withDefaults()
	o := &orderHandlers{deps: deps}
	return &packs.BuiltinPack{
		ID: "builtin:ordering",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "order_dish",
					Description: "Place an order for a dish from a restaurant",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"username":{"type":"string"},"restaurant_name":{"type":"string"},"dish_name":{"type":"string"}},"required":["restaurant_name","dish_name"]}`),
				},
				Handler: guard(deps.Logger, "order_dish", o.OrderDish),
			},
		},
	}
}

type orderHandlers struct {
	deps Deps
}

type orderDishInput struct {
	Username       string `json:"username"`
	RestaurantName string `json:"restaurant_name"`
	DishName       string `json:"dish_name"`
}

func (o *orderHandlers) OrderDish(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in orderDishInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := resolveUser(ctx, o.deps.Catalog, caller, in.Username)
	if err != nil {
		return nil, err
	}
	restaurant, err := lookupRestaurant(ctx, o.deps.Catalog, in.RestaurantName)
	if err != nil {
		return nil, err
	}
	dish, err := lookupDish(ctx, o.deps.Catalog, restaurant, in.DishName)
	if err != nil {
		return nil, err
	}

	ok, err := o.deps.Policy.CheckAccess(ctx, user.Username, policy.ActionOrder, policy.RestaurantResource(restaurant.ID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: you are not permitted to order from %s", ErrUnauthorized, restaurant.Name)
	}

	if user.Role == store.RoleChild && dish.PriceCents > o.deps.ChildPriceThresholdCents {
		approved, err := o.deps.Policy.CheckAccess(ctx, user.Username, policy.ActionOrder, policy.DishResource(dish.ID))
		if err != nil {
			return nil, err
		}
		if !approved {
			return nil, fmt.Errorf("%w: this dish costs %s, and you can only order dishes up to %s. To order this dish, you need to request approval",
				ErrApprovalRequired, store.FormatPrice(dish.PriceCents), store.FormatPrice(o.deps.ChildPriceThresholdCents))
		}
	}

	o.deps.Logger.Info("order placed", "user", user.Username, "restaurant", restaurant.Name, "dish", dish.Name)

	return json.Marshal(map[string]any{
		"status":     "ordered",
		"restaurant": restaurant.Name,
		"dish":       dish.Name,
		"price":      store.FormatPrice(dish.PriceCents),
		"message":    fmt.Sprintf("Order successfully placed for %s from %s!", dish.Name, restaurant.Name),
	})
}
