// ABOUTME: Shared test helpers and catalog initialization tests
// ABOUTME: Covers idempotent seeding and seed validation

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a file-backed SQLite store in a temp directory
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// setupSeededStore returns a store populated with DefaultSeed
func setupSeededStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := setupTestStore(t)
	require.NoError(t, Initialize(context.Background(), store, DefaultSeed()))
	return store
}

func TestInitialize_SeedsCatalog(t *testing.T) {
	store := setupSeededStore(t)
	ctx := context.Background()

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 5)

	restaurants, err := store.ListRestaurants(ctx)
	require.NoError(t, err)
	require.Len(t, restaurants, 4)
	for _, r := range restaurants {
		assert.Len(t, r.Dishes, 3, "restaurant %s", r.Name)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, Initialize(ctx, store, DefaultSeed()))
	first, err := store.ListRestaurants(ctx)
	require.NoError(t, err)

	// Second run must not duplicate anything
	require.NoError(t, Initialize(ctx, store, DefaultSeed()))
	second, err := store.ListRestaurants(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 5)
}

func TestInitialize_RejectsInvalidSeed(t *testing.T) {
	tests := []struct {
		name string
		seed Seed
	}{
		{
			name: "unknown role",
			seed: Seed{Users: []SeedUser{{Username: "zed", Role: "grandparent"}}},
		},
		{
			name: "empty username",
			seed: Seed{Users: []SeedUser{{Username: "", Role: RoleParent}}},
		},
		{
			name: "negative price",
			seed: Seed{Restaurants: []SeedRestaurant{{
				Name:   "Broken Bistro",
				Dishes: []SeedDish{{Name: "Refund", PriceCents: -100}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			err := Initialize(context.Background(), store, tt.seed)
			assert.ErrorIs(t, err, ErrInvalidSeed)
		})
	}
}

func TestDefaultSeed_Roles(t *testing.T) {
	seed := DefaultSeed()

	roles := make(map[string]Role)
	for _, u := range seed.Users {
		roles[u.Username] = u.Role
	}

	assert.Equal(t, RoleParent, roles["joe"])
	assert.Equal(t, RoleParent, roles["jane"])
	assert.Equal(t, RoleChild, roles["rose"])
	assert.Equal(t, RoleChild, roles["henry"])
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$15.99", FormatPrice(1599))
	assert.Equal(t, "$10.00", FormatPrice(1000))
	assert.Equal(t, "$3.49", FormatPrice(349))
	assert.Equal(t, "$0.05", FormatPrice(5))
}
