// ABOUTME: Integration tests for the Postgres catalog
// ABOUTME: Skipped unless FOOD_TEST_POSTGRES_DSN points at a disposable database

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("FOOD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FOOD_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)

	_, err = store.pool.Exec(ctx, `TRUNCATE dishes, restaurants, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestPostgresStore_InitializeIdempotent(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, Initialize(ctx, store, DefaultSeed()))
	require.NoError(t, Initialize(ctx, store, DefaultSeed()))

	restaurants, err := store.ListRestaurants(ctx)
	require.NoError(t, err)
	require.Len(t, restaurants, 4)
	for _, r := range restaurants {
		assert.Len(t, r.Dishes, 3)
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 5)
}

func TestPostgresStore_Lookups(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, Initialize(ctx, store, DefaultSeed()))

	u, err := store.GetUser(ctx, "Henry")
	require.NoError(t, err)
	assert.Equal(t, RoleChild, u.Role)

	r, err := store.GetRestaurantByName(ctx, "sushi world")
	require.NoError(t, err)
	assert.False(t, r.AllowedForChildren)

	d, err := store.GetDishByName(ctx, r.ID, "Tempura")
	require.NoError(t, err)
	assert.Equal(t, int64(999), d.PriceCents)

	_, err = store.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
