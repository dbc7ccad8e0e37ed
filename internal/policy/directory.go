// ABOUTME: Pushes catalog users and restaurants into the policy service
// ABOUTME: Parents get the parent role everywhere; children only on kid-friendly menus

package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Tammibriggs/food-ordering/internal/store"
)

// Directory is the write side of the policy service used for provisioning
type Directory interface {
	SyncUser(ctx context.Context, user store.User) error
	EnsureResourceInstance(ctx context.Context, resource Resource) error
	AssignRole(ctx context.Context, user, role string, resource Resource) error
}

// SyncReport counts what Sync pushed
type SyncReport struct {
	Users       int
	Restaurants int
	Assignments int
}

// Sync provisions every catalog user and restaurant in the policy service.
// All calls are idempotent on the remote side, so Sync can be re-run safely.
func Sync(ctx context.Context, dir Directory, catalog store.Catalog) (SyncReport, error) {
	logger := slog.Default().With("component", "policy-sync")
	var report SyncReport

	restaurants, err := catalog.ListRestaurants(ctx)
	if err != nil {
		return report, fmt.Errorf("listing restaurants: %w", err)
	}
	for _, r := range restaurants {
		if err := dir.EnsureResourceInstance(ctx, RestaurantResource(r.ID)); err != nil {
			return report, fmt.Errorf("creating resource instance for %s: %w", r.Name, err)
		}
		report.Restaurants++
	}

	users, err := catalog.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("listing users: %w", err)
	}
	for _, u := range users {
		if err := dir.SyncUser(ctx, u); err != nil {
			return report, fmt.Errorf("syncing user %s: %w", u.Username, err)
		}
		report.Users++

		for _, r := range restaurants {
			role := ""
			switch {
			case u.Role == store.RoleParent:
				role = RoleParent
			case u.Role == store.RoleChild && r.AllowedForChildren:
				role = RoleChildCanOrder
			}
			if role == "" {
				continue
			}
			if err := dir.AssignRole(ctx, u.Username, role, RestaurantResource(r.ID)); err != nil {
				return report, fmt.Errorf("assigning %s to %s on %s: %w", role, u.Username, r.Name, err)
			}
			report.Assignments++
		}
	}

	logger.Info("policy directory synced",
		"users", report.Users,
		"restaurants", report.Restaurants,
		"assignments", report.Assignments,
	)
	return report, nil
}
