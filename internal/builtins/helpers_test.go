// ABOUTME: Shared fixtures for builtin pack tests.
// ABOUTME: Seeded SQLite catalog plus an in-process policy service synced from it.

package builtins

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/Tammibriggs/food-ordering/internal/packs"
	"github.com/Tammibriggs/food-ordering/internal/policy"
	"github.com/Tammibriggs/food-ordering/internal/store"
)

func findHandler(pack *packs.BuiltinPack, name string) packs.ToolHandler {
	for _, tool := range pack.Tools {
		if tool.Definition.Name == name {
			return tool.Handler
		}
	}
	return nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "food.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := store.Initialize(context.Background(), s, store.DefaultSeed()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

// newTestDeps returns deps over a seeded catalog and a Local policy service
// carrying the family role assignments.
func newTestDeps(t *testing.T) (Deps, *policy.Local) {
	t.Helper()
	s := newTestStore(t)
	pdp := policy.NewLocal()
	if _, err := policy.Sync(context.Background(), pdp, s); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return Deps{Catalog: s, Policy: pdp}.withDefaults(), pdp
}

// call invokes handler with args marshaled as JSON and decodes the result into a map.
func call(t *testing.T, h packs.ToolHandler, caller string, args map[string]any) (map[string]any, error) {
	t.Helper()
	input, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	out, err := h(context.Background(), caller, input)
	if err != nil {
		return nil, err
	}
	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return resp, nil
}

func mustHandler(t *testing.T, pack *packs.BuiltinPack, name string) packs.ToolHandler {
	t.Helper()
	h := findHandler(pack, name)
	if h == nil {
		t.Fatalf("%s handler not found", name)
	}
	return h
}
