// ABOUTME: Catalog interface and data types for food-ordering persistence
// ABOUTME: Defines User, Restaurant, Dish and the read-mostly Catalog contract

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrAmbiguous is returned when a name lookup matches more than one entity
var ErrAmbiguous = errors.New("ambiguous name")

// ErrInvalidSeed is returned when seed data violates the data model
var ErrInvalidSeed = errors.New("invalid seed data")

// Role is the family role of a user
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

// User is a family member who can call tools
type User struct {
	ID       int64
	Username string
	Role     Role
}

// Restaurant groups the dishes that can be ordered from it
type Restaurant struct {
	ID                 int64
	Name               string
	AllowedForChildren bool
	Dishes             []Dish
}

// Dish is a menu item. Prices are kept in cents.
type Dish struct {
	ID           int64
	RestaurantID int64
	Name         string
	PriceCents   int64
}

// FormatPrice renders cents as a dollar amount, e.g. 1599 -> "$15.99"
func FormatPrice(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// Catalog is the persistence contract for catalog data.
// Inserts are insert-or-ignore on the natural key so seeding can be repeated.
type Catalog interface {
	EnsureSchema(ctx context.Context) error

	InsertUser(ctx context.Context, username string, role Role) (int64, error)
	InsertRestaurant(ctx context.Context, name string, allowedForChildren bool) (int64, error)
	InsertDish(ctx context.Context, restaurantID int64, name string, priceCents int64) (int64, error)

	GetUser(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	ListRestaurants(ctx context.Context) ([]Restaurant, error)
	GetRestaurant(ctx context.Context, id int64) (*Restaurant, error)
	GetRestaurantByName(ctx context.Context, name string) (*Restaurant, error)
	GetDishByName(ctx context.Context, restaurantID int64, name string) (*Dish, error)
	FindDishByName(ctx context.Context, name string) (*Dish, error)

	Ping(ctx context.Context) error
	Close() error
}

// normalizeName trims surrounding whitespace; lookups compare case-insensitively
func normalizeName(name string) string {
	return strings.TrimSpace(name)
}
