// ABOUTME: Idempotent catalog initialization and the built-in seed data
// ABOUTME: Initialize ensures the schema and inserts each seed entity exactly once

package store

import (
	"context"
	"fmt"
	"log/slog"
)

// SeedUser is a user row to create on initialization
type SeedUser struct {
	Username string
	Role     Role
}

// SeedDish is a dish row to create on initialization
type SeedDish struct {
	Name       string
	PriceCents int64
}

// SeedRestaurant is a restaurant and its menu
type SeedRestaurant struct {
	Name               string
	AllowedForChildren bool
	Dishes             []SeedDish
}

// Seed is the full set of catalog data written by Initialize
type Seed struct {
	Users       []SeedUser
	Restaurants []SeedRestaurant
}

// DefaultSeed returns the family and restaurant catalog the service ships with
func DefaultSeed() Seed {
	return Seed{
		Users: []SeedUser{
			{Username: "jacob", Role: RoleParent},
			{Username: "jane", Role: RoleParent},
			{Username: "joe", Role: RoleParent},
			{Username: "henry", Role: RoleChild},
			{Username: "rose", Role: RoleChild},
		},
		Restaurants: []SeedRestaurant{
			{
				Name:               "Pizza Palace",
				AllowedForChildren: true,
				Dishes: []SeedDish{
					{Name: "Cheese Pizza", PriceCents: 899},
					{Name: "Pepperoni Pizza", PriceCents: 1099},
					{Name: "Veggie Pizza", PriceCents: 949},
				},
			},
			{
				Name:               "Burger Bonanza",
				AllowedForChildren: true,
				Dishes: []SeedDish{
					{Name: "Classic Burger", PriceCents: 799},
					{Name: "Deluxe Burger", PriceCents: 1299},
					{Name: "Fries", PriceCents: 349},
				},
			},
			{
				Name:               "Fancy French",
				AllowedForChildren: false,
				Dishes: []SeedDish{
					{Name: "Escargot", PriceCents: 1599},
					{Name: "Foie Gras", PriceCents: 1999},
					{Name: "Truffle Pasta", PriceCents: 1849},
				},
			},
			{
				Name:               "Sushi World",
				AllowedForChildren: false,
				Dishes: []SeedDish{
					{Name: "California Roll", PriceCents: 699},
					{Name: "Sushi Platter", PriceCents: 2299},
					{Name: "Tempura", PriceCents: 999},
				},
			},
		},
	}
}

// Initialize creates the schema and writes the seed rows. Running it any
// number of times leaves exactly one row per seed entity.
func Initialize(ctx context.Context, c Catalog, seed Seed) error {
	logger := slog.Default().With("component", "store")

	if err := c.EnsureSchema(ctx); err != nil {
		return err
	}

	for _, u := range seed.Users {
		if u.Username == "" {
			return fmt.Errorf("%w: empty username", ErrInvalidSeed)
		}
		if _, err := c.InsertUser(ctx, u.Username, u.Role); err != nil {
			return fmt.Errorf("seeding user %s: %w", u.Username, err)
		}
	}

	dishes := 0
	for _, r := range seed.Restaurants {
		if r.Name == "" {
			return fmt.Errorf("%w: empty restaurant name", ErrInvalidSeed)
		}
		id, err := c.InsertRestaurant(ctx, r.Name, r.AllowedForChildren)
		if err != nil {
			return fmt.Errorf("seeding restaurant %s: %w", r.Name, err)
		}
		for _, d := range r.Dishes {
			if d.PriceCents < 0 {
				return fmt.Errorf("%w: negative price for %s", ErrInvalidSeed, d.Name)
			}
			if _, err := c.InsertDish(ctx, id, d.Name, d.PriceCents); err != nil {
				return fmt.Errorf("seeding dish %s: %w", d.Name, err)
			}
			dishes++
		}
	}

	logger.Info("catalog initialized",
		"users", len(seed.Users),
		"restaurants", len(seed.Restaurants),
		"dishes", dishes,
	)
	return nil
}
