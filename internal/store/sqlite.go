// ABOUTME: SQLite implementation of the Catalog interface using modernc.org/sqlite
// ABOUTME: Provides user/restaurant/dish persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// SQLiteStore implements the Catalog interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store", "driver", "sqlite")

	if path != MemoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate database
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// EnsureSchema creates the catalog tables if they don't exist
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE COLLATE NOCASE,
			role     TEXT NOT NULL,

			CHECK (role IN ('parent', 'child'))
		);

		CREATE TABLE IF NOT EXISTS restaurants (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			name                 TEXT NOT NULL UNIQUE COLLATE NOCASE,
			allowed_for_children INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS dishes (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			restaurant_id INTEGER NOT NULL,
			name          TEXT NOT NULL COLLATE NOCASE,
			price_cents   INTEGER NOT NULL,

			UNIQUE (restaurant_id, name),
			CHECK (price_cents >= 0),
			FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
		);

		CREATE INDEX IF NOT EXISTS idx_dishes_restaurant ON dishes(restaurant_id);
		CREATE INDEX IF NOT EXISTS idx_dishes_name ON dishes(name);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating catalog tables: %w", err)
	}
	return nil
}

// InsertUser adds a user unless one with the same username exists.
// Returns the id of the stored row either way.
func (s *SQLiteStore) InsertUser(ctx context.Context, username string, role Role) (int64, error) {
	if !role.Valid() {
		return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidSeed, role)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, role) VALUES (?, ?)`,
		normalizeName(username), role,
	)
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
func (s *SQLiteStore) InsertRestaurant(ctx context.Context, name string, allowedForChildren bool) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO restaurants (name, allowed_for_children) VALUES (?, ?)`,
		normalizeName(name), allowedForChildren,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting restaurant: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM restaurants WHERE name = ?`, normalizeName(name)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reading restaurant id: %w", err)
	}
	return id, nil
}

// InsertDish adds a dish unless the restaurant already lists one with that name
func (s *SQLiteStore) InsertDish(ctx context.Context, restaurantID int64, name string, priceCents int64) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dishes (restaurant_id, name, price_cents) VALUES (?, ?, ?)`,
		restaurantID, normalizeName(name), priceCents,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting dish: %w", err)
	}

	d, err := s.GetDishByName(ctx, restaurantID, name)
	if err != nil {
		return 0, err
	}
	return d.ID, nil
}

// GetUser retrieves a user by username (case-insensitive).
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, role FROM users WHERE username = ?`,
		normalizeName(username),
	).Scan(&u.ID, &u.Username, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u.Role = Role(role)
	return &u, nil
}

// ListUsers returns all users ordered by id
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, role FROM users ORDER BY id`)
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
func (s *SQLiteStore) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, allowed_for_children FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	defer rows.Close()

	restaurants := []Restaurant{}
	index := make(map[int64]int)
	for rows.Next() {
		var r Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.AllowedForChildren); err != nil {
			return nil, fmt.Errorf("scanning restaurant: %w", err)
		}
		r.Dishes = []Dish{}
		index[r.ID] = len(restaurants)
		restaurants = append(restaurants, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating restaurants: %w", err)
	}

	dishRows, err := s.db.QueryContext(ctx,
		`SELECT id, restaurant_id, name, price_cents FROM dishes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing dishes: %w", err)
	}
	defer dishRows.Close()

	for dishRows.Next() {
		var d Dish
		if err := dishRows.Scan(&d.ID, &d.RestaurantID, &d.Name, &d.PriceCents); err != nil {
			return nil, fmt.Errorf("scanning dish: %w", err)
		}
		if i, ok := index[d.RestaurantID]; ok {
			restaurants[i].Dishes = append(restaurants[i].Dishes, d)
		}
	}
	if err := dishRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dishes: %w", err)
	}

	return restaurants, nil
}

// GetRestaurant retrieves a restaurant and its dishes by id.
// Returns ErrNotFound if the id is unknown.
func (s *SQLiteStore) GetRestaurant(ctx context.Context, id int64) (*Restaurant, error) {
	return s.getRestaurant(ctx, `SELECT id, name, allowed_for_children FROM restaurants WHERE id = ?`, id)
}

// GetRestaurantByName retrieves a restaurant and its dishes by name (case-insensitive).
// Returns ErrNotFound if no restaurant has that name.
func (s *SQLiteStore) GetRestaurantByName(ctx context.Context, name string) (*Restaurant, error) {
	return s.getRestaurant(ctx,
		`SELECT id, name, allowed_for_children FROM restaurants WHERE name = ?`,
		normalizeName(name))
}

func (s *SQLiteStore) getRestaurant(ctx context.Context, query string, arg any) (*Restaurant, error) {
	var r Restaurant
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&r.ID, &r.Name, &r.AllowedForChildren)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying restaurant: %w", err)
	}

	dishes, err := s.queryDishes(ctx,
		`SELECT id, restaurant_id, name, price_cents FROM dishes WHERE restaurant_id = ? ORDER BY id`,
		r.ID)
	if err != nil {
		return nil, err
	}
	r.Dishes = dishes
	return &r, nil
}

// GetDishByName retrieves a dish on a restaurant's menu.
// Returns ErrNotFound if the restaurant has no such dish.
func (s *SQLiteStore) GetDishByName(ctx context.Context, restaurantID int64, name string) (*Dish, error) {
	var d Dish
	err := s.db.QueryRowContext(ctx,
		`SELECT id, restaurant_id, name, price_cents FROM dishes WHERE restaurant_id = ? AND name = ?`,
		restaurantID, normalizeName(name),
	).Scan(&d.ID, &d.RestaurantID, &d.Name, &d.PriceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying dish: %w", err)
	}
	return &d, nil
}

// FindDishByName looks a dish up across all restaurants.
// Returns ErrAmbiguous when more than one restaurant serves a dish with that name.
func (s *SQLiteStore) FindDishByName(ctx context.Context, name string) (*Dish, error) {
	dishes, err := s.queryDishes(ctx,
		`SELECT id, restaurant_id, name, price_cents FROM dishes WHERE name = ? ORDER BY id LIMIT 2`,
		normalizeName(name))
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

func (s *SQLiteStore) queryDishes(ctx context.Context, query string, args ...any) ([]Dish, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
