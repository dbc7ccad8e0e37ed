// ABOUTME: Registers the food-ordering tool packs and shares caller/lookup helpers.
// ABOUTME: Every pack reads the catalog and asks the policy client for decisions.

package builtins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Tammibriggs/food-ordering/internal/packs"
	"github.com/Tammibriggs/food-ordering/internal/policy"
	"github.com/Tammibriggs/food-ordering/internal/store"
)

// DefaultChildPriceThresholdCents is the most a child may spend on a dish without approval.
const DefaultChildPriceThresholdCents int64 = 1000

// Deps are the collaborators shared by all food-ordering tools.
type Deps struct {
	Catalog store.Catalog
	Policy  policy.Client
	// ChildPriceThresholdCents: dishes priced above this need an approved dish order request for children.
	ChildPriceThresholdCents int64
	Logger                   *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.ChildPriceThresholdCents <= 0 {
		d.ChildPriceThresholdCents = DefaultChildPriceThresholdCents
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// RegisterAll registers the catalog, ordering and requests packs.
func RegisterAll(registry *packs.Registry, deps Deps) error {
	if deps.Catalog == nil || deps.Policy == nil {
		return errors.New("builtins: catalog and policy are required")
	}
	deps = deps.withDefaults()

	for _, pack := range []*packs.BuiltinPack{
		CatalogPack(deps),
		OrderingPack(deps),
		RequestsPack(deps),
	} {
		if err := registry.RegisterBuiltinPack(pack); err != nil {
			return fmt.Errorf("registering %s: %w", pack.ID, err)
		}
	}
	return nil
}

// resolveUser binds the username argument to the authenticated caller.
// With no caller (auth disabled) the argument is trusted as-is.
func resolveUser(ctx context.Context, catalog store.Catalog, caller, username string) (*store.User, error) {
	name := strings.TrimSpace(username)
	if caller != "" {
		if name == "" {
			name = caller
		} else if !strings.EqualFold(name, caller) {
			return nil, fmt.Errorf("%w: you are signed in as %s and cannot act for %s", ErrUnauthorized, caller, name)
		}
	}
	if name == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	user, err := catalog.GetUser(ctx, name)
	if err != nil {
		return nil, notFound("user", name, err)
	}
	return user, nil
}

func lookupRestaurant(ctx context.Context, catalog store.Catalog, name string) (*store.Restaurant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: restaurant_name is required", ErrInvalidInput)
	}
	r, err := catalog.GetRestaurantByName(ctx, name)
	if err != nil {
		return nil, notFound("restaurant", name, err)
	}
	return r, nil
}

func lookupDish(ctx context.Context, catalog store.Catalog, restaurant *store.Restaurant, name string) (*store.Dish, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: dish_name is required", ErrInvalidInput)
	}
	d, err := catalog.GetDishByName(ctx, restaurant.ID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("dish %q is not on the %s menu: %w", name, restaurant.Name, store.ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

// approverCapable reports whether the policy service lets user approve
// requests on at least one catalog restaurant.
func approverCapable(ctx context.Context, deps Deps, user *store.User) (bool, error) {
	restaurants, err := deps.Catalog.ListRestaurants(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range restaurants {
		ok, err := deps.Policy.CheckAccess(ctx, user.Username, policy.ActionApprove, policy.RestaurantResource(r.ID))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func notFound(kind, name string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %q: %w", kind, name, store.ErrNotFound)
	}
	return err
}
