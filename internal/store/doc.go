// Package store provides the catalog of users, restaurants and dishes.
//
// # Architecture
//
// Callers depend on the Catalog interface. Two implementations exist:
//
//   - SQLiteStore: modernc.org/sqlite, the default for local runs and tests
//   - PostgresStore: jackc/pgx/v5 pool, selected with database.driver=postgres
//
// The catalog is pure data. It holds no authorization state; roles on
// restaurants, access requests and approvals live in the policy service.
//
// # Data Models
//
//   - User: a family member with a parent or child Role
//   - Restaurant: a named menu, flagged when children may be granted access
//   - Dish: a menu item priced in integer cents
//
// # Initialization
//
// Initialize ensures the schema and writes a Seed. Inserts ignore rows that
// already exist, so repeated runs converge on exactly one row per entity:
//
//	if err := store.Initialize(ctx, catalog, store.DefaultSeed()); err != nil {
//		return err
//	}
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Name lookups are case-insensitive (COLLATE NOCASE on SQLite, LOWER() indexes
// on Postgres). ":memory:" databases are pinned to a single connection.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrAmbiguous: a dish name matches more than one restaurant
//   - ErrInvalidSeed: seed data has an unknown role, empty name or negative price
package store
