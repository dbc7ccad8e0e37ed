// ABOUTME: Catalog pack: verify_access, list_restaurants and list_dishes tools.
// ABOUTME: Read-only views of the seeded catalog, filtered through the policy service.

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

// CatalogPack creates the catalog pack.
func CatalogPack(deps Deps) *packs.BuiltinPack {
	deps = deps.withDefaults()
	c := &catalogHandlers{deps: deps}
	return &packs.BuiltinPack{
		ID: "builtin:catalog",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "verify_access",
					Description: "Check that a user exists and report their role (parent or child)",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"username":{"type":"string"}}}`),
				},
				Handler: guard(deps.Logger, "verify_access", c.VerifyAccess),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "list_restaurants",
					Description: "List all restaurants with their dishes. With a username, also reports where that user can order",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"username":{"type":"string"}}}`),
				},
				Handler: guard(deps.Logger, "list_restaurants", c.ListRestaurants),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "list_dishes",
					Description: "List the dishes of a restaurant the user is allowed to view",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"username":{"type":"string"},"restaurant_name":{"type":"string"}},"required":["restaurant_name"]}`),
				},
				Handler: guard(deps.Logger, "list_dishes", c.ListDishes),
			},
		},
	}
}

type catalogHandlers struct {
	deps Deps
}

type verifyAccessInput struct {
	Username string `json:"username"`
}

func (c *catalogHandlers) VerifyAccess(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in verifyAccessInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := resolveUser(ctx, c.deps.Catalog, caller, in.Username)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"username": user.Username,
		"role":     user.Role,
		"exists":   true,
	})
}

type listRestaurantsInput struct {
	Username string `json:"username,omitempty"`
}

type dishOutput struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type restaurantOutput struct {
	ID                 int64        `json:"id"`
	Name               string       `json:"name"`
	AllowedForChildren bool         `json:"allowed_for_children"`
	CanOrder           *bool        `json:"can_order,omitempty"`
	Dishes             []dishOutput `json:"dishes"`
}

func (c *catalogHandlers) ListRestaurants(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in listRestaurantsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var user *store.User
	if caller != "" || strings.TrimSpace(in.Username) != "" {
		u, err := resolveUser(ctx, c.deps.Catalog, caller, in.Username)
		if err != nil {
			return nil, err
		}
		user = u
	}

	restaurants, err := c.deps.Catalog.ListRestaurants(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]restaurantOutput, 0, len(restaurants))
	for _, r := range restaurants {
		ro := restaurantOutput{
			ID:                 r.ID,
			Name:               r.Name,
			AllowedForChildren: r.AllowedForChildren,
			Dishes:             dishesOutput(r.Dishes),
		}
		if user != nil {
			ok, err := c.deps.Policy.CheckAccess(ctx, user.Username, policy.ActionOrder, policy.RestaurantResource(r.ID))
			if err != nil {
				return nil, err
			}
			ro.CanOrder = &ok
		}
		out = append(out, ro)
	}

	return json.Marshal(map[string]any{
		"restaurants": out,
		"count":       len(out),
	})
}

type listDishesInput struct {
	Username       string `json:"username"`
	RestaurantName string `json:"restaurant_name"`
}

func (c *catalogHandlers) ListDishes(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
	var in listDishesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := resolveUser(ctx, c.deps.Catalog, caller, in.Username)
	if err != nil {
		return nil, err
	}
	restaurant, err := lookupRestaurant(ctx, c.deps.Catalog, in.RestaurantName)
	if err != nil {
		return nil, err
	}

	ok, err := c.deps.Policy.CheckAccess(ctx, user.Username, policy.ActionRead, policy.RestaurantResource(restaurant.ID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: you are not permitted to view dishes from %s", ErrUnauthorized, restaurant.Name)
	}

	lines := make([]string, 0, len(restaurant.Dishes))
	for _, d := range restaurant.Dishes {
		lines = append(lines, fmt.Sprintf("- %s (%s)", d.Name, store.FormatPrice(d.PriceCents)))
	}
	text := strings.Join(lines, "\n")
	if len(lines) == 0 {
		text = "No dishes available for this restaurant."
	}

	return json.Marshal(map[string]any{
		"restaurant": restaurant.Name,
		"dishes":     dishesOutput(restaurant.Dishes),
		"text":       text,
	})
}

func dishesOutput(dishes []store.Dish) []dishOutput {
	out := make([]dishOutput, 0, len(dishes))
	for _, d := range dishes {
		out = append(out, dishOutput{ID: d.ID, Name: d.Name, Price: store.FormatPrice(d.PriceCents)})
	}
	return out
}
