// ABOUTME: PostgreSQL implementation of the Catalog interface using pgx/v5
// ABOUTME: Mirrors the SQLite schema for deployments that share a database server

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Catalog interface on a pgx connection pool
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to dsn and creates the schema if needed
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store", "driver", "postgres")

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("Postgres store initialized")
	return s, nil
}

// EnsureSchema creates the catalog tables if they don't exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id       BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			role     TEXT NOT NULL CHECK (role IN ('parent', 'child'))
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (LOWER(username))`,
		`CREATE TABLE IF NOT EXISTS restaurants (
			id                   BIGSERIAL PRIMARY KEY,
			name                 TEXT NOT NULL,
			allowed_for_children BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_restaurants_name ON restaurants (LOWER(name))`,
		`CREATE TABLE IF NOT EXISTS dishes (
			id            BIGSERIAL PRIMARY KEY,
			restaurant_id BIGINT NOT NULL REFERENCES restaurants(id),
			name          TEXT NOT NULL,
			price_cents   BIGINT NOT NULL CHECK (price_cents >= 0)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_dishes_restaurant_name ON dishes (restaurant_id, LOWER(name))`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating catalog tables: %w", err)
		}
	}
	return nil
}

// InsertUser adds a user unless one with the same username exists
func (s *PostgresStore) InsertUser(ctx context.Context, username string, role Role) (int64, error) {
	if !role.Valid() {
		return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidSeed, role)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (username, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		normalizeName(username), string(role))
	if err != nil {
		return 0, fmt.Errorf("inserting user: %w", err)
	}
	u, err := s.GetUser(ctx, username)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// InsertRestaurant adds a restaurant unless one with the same name exists
func (s *PostgresStore) InsertRestaurant(ctx context.Context, name string, allowedForChildren bool) (int64, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO restaurants (name, allowed_for_children) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		normalizeName(name), allowedForChildren)
	if err != nil {
		return 0, fmt.Errorf("inserting restaurant: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`SELECT id FROM restaurants WHERE LOWER(name) = LOWER($1)`, normalizeName(name)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reading restaurant id: %w", err)
	}
	return id, nil
}

// InsertDish adds a dish unless the restaurant already lists one with that name
func (s *PostgresStore) InsertDish(ctx context.Context, restaurantID int64, name string, priceCents int64) (int64, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dishes (restaurant_id, name, price_cents) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		restaurantID, normalizeName(name), priceCents)
	if err != nil {
		return 0, fmt.Errorf("inserting dish: %w", err)
	}
	d, err := s.GetDishByName(ctx, restaurantID, name)
	if err != nil {
		return 0, err
	}
	return d.ID, nil
}

// GetUser retrieves a user by username (case-insensitive)
func (s *PostgresStore) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, role FROM users WHERE LOWER(username) = LOWER($1)`,
		normalizeName(username)).Scan(&u.ID, &u.Username, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u.Role = Role(role)
	return &u, nil
}

// ListUsers returns all users ordered by id
func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, role FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &role); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.Role = Role(role)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// ListRestaurants returns every restaurant with its dishes nested, both ordered by id
func (s *PostgresStore) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, allowed_for_children FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}

	restaurants := []Restaurant{}
	index := make(map[int64]int)
	for rows.Next() {
		var r Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.AllowedForChildren); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning restaurant: %w", err)
		}
		r.Dishes = []Dish{}
		index[r.ID] = len(restaurants)
		restaurants = append(restaurants, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating restaurants: %w", err)
	}

	dishes, err := s.queryDishes(ctx,
		`SELECT id, restaurant_id, name, price_cents FROM dishes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	for _, d := range dishes {
		if i, ok := index[d.RestaurantID]; ok {
			restaurants[i].Dishes = append(restaurants[i].Dishes, d)
		}
	}
	return restaurants, nil
}

// GetRestaurant retrieves a restaurant and its dishes by id
func (s *PostgresStore) GetRestaurant(ctx context.Context, id int64) (*Restaurant, error) {
	return s.getRestaurant(ctx, `SELECT id, name, allowed_for_children FROM restaurants WHERE id = $1`, id)
}

// GetRestaurantByName retrieves a restaurant and its dishes by name (case-insensitive)
func (s *PostgresStore) GetRestaurantByName(ctx context.Context, name string) (*Restaurant, error) {
	return s.getRestaurant(ctx,
		`SELECT id, name, allowed_for_children FROM restaurants WHERE LOWER(name) = LOWER($1)`,
		normalizeName(name))
}

func (s *PostgresStore) getRestaurant(ctx context.Context, query string, arg any) (*Restaurant, error) {
	var r Restaurant
	err := s.pool.QueryRow(ctx, query, arg).Scan(&r.ID, &r.Name, &r.AllowedForChildren)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying restaurant: %w", err)
	}

	dishes, err := s.queryDishes(ctx,
		`SELECT id, restaurant_id, name, price_cents FROM dishes WHERE restaurant_id = $1 ORDER BY id`, r.ID)
	if err != nil {
		return nil, err
	}
	r.Dishes = dishes
	return &r, nil
}

// GetDishByName retrieves a dish on a restaurant's menu
func (s *PostgresStore) GetDishByName(ctx context.Context, restaurantID int64, name string) (*Dish, error) {
	var d Dish
	err := s.pool.QueryRow(ctx,
		`SELECT id, restaurant_id, name, price_cents FROM dishes
		 WHERE restaurant_id = $1 AND LOWER(name) = LOWER($2)`,
		restaurantID, normalizeName(name)).Scan(&d.ID, &d.RestaurantID, &d.Name, &d.PriceCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying dish: %w", err)
	}
	return &d, nil
}

// FindDishByName looks a dish up across all restaurants
func (s *PostgresStore) FindDishByName(ctx context.Context, name string) (*Dish, error) {
	dishes, err := s.queryDishes(ctx,
		`SELECT id, restaurant_id, name, price_cents FROM dishes
		 WHERE LOWER(name) = LOWER($1) ORDER BY id LIMIT 2`, normalizeName(name))
	if err != nil {
		return nil, err
	}
	switch len(dishes) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &dishes[0], nil
	default:
		return nil, fmt.Errorf("%w: dish %q", ErrAmbiguous, name)
	}
}

func (s *PostgresStore) queryDishes(ctx context.Context, query string, args ...any) ([]Dish, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dishes: %w", err)
	}
	defer rows.Close()

	dishes := []Dish{}
	for rows.Next() {
		var d Dish
		if err := rows.Scan(&d.ID, &d.RestaurantID, &d.Name, &d.PriceCents); err != nil {
			return nil, fmt.Errorf("scanning dish: %w", err)
		}
		dishes = append(dishes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dishes: %w", err)
	}
	return dishes, nil
}

// Ping verifies the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
