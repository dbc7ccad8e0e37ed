// ABOUTME: Tests for the tool router including routing, timeout, and error handling.
// ABOUTME: Validates caller propagation and outcome reporting.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordedCall struct {
	tool    string
	outcome string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) ObserveToolCall(tool, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{tool, outcome})
}

// setupRouterTest creates a registry and router for testing.
func setupRouterTest(t *testing.T, timeout time.Duration) (*Registry, *Router, *fakeRecorder) {
	t.Helper()
	registry := NewRegistry(slog.Default())
	rec := &fakeRecorder{}
	router := NewRouter(RouterConfig{
		Registry: registry,
		Logger:   slog.Default(),
		Timeout:  timeout,
		Recorder: rec,
	})
	return registry, router, rec
}

func TestRouterRouteToolCall(t *testing.T) {
	t.Run("dispatches to handler with caller and input", func(t *testing.T) {
		registry, router, rec := setupRouterTest(t, 5*time.Second)

		var gotCaller string
		var gotInput json.RawMessage
		tool := testTool("echo")
		tool.Handler = func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
			gotCaller = caller
			gotInput = input
			return json.RawMessage(`{"echo":true}`), nil
		}
		if err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "test", Tools: []*BuiltinTool{tool}}); err != nil {
			t.Fatalf("register: %v", err)
		}

		resp, err := router.RouteToolCall(context.Background(), "echo", json.RawMessage(`{"a":1}`), "req-123", "rose")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.RequestID != "req-123" {
			t.Errorf("expected request_id 'req-123', got '%s'", resp.RequestID)
		}
		if resp.IsError() {
			t.Errorf("unexpected error result: %s", resp.Error)
		}
		if string(resp.Output) != `{"echo":true}` {
			t.Errorf("unexpected output: %s", resp.Output)
		}
		if gotCaller != "rose" {
			t.Errorf("expected caller rose, got %q", gotCaller)
		}
		if string(gotInput) != `{"a":1}` {
			t.Errorf("unexpected input: %s", gotInput)
		}
		if len(rec.calls) != 1 || rec.calls[0] != (recordedCall{"echo", "ok"}) {
			t.Errorf("unexpected recorded calls: %+v", rec.calls)
		}
	})

	t.Run("empty input becomes empty object", func(t *testing.T) {
		registry, router, _ := setupRouterTest(t, 5*time.Second)

		var gotInput json.RawMessage
		tool := testTool("noargs")
		tool.Handler = func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
			gotInput = input
			return json.RawMessage(`[]`), nil
		}
		mustRegisterTool(t, registry, tool)

		if _, err := router.RouteToolCall(context.Background(), "noargs", nil, "req-1", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(gotInput) != `{}` {
			t.Errorf("expected {}, got %s", gotInput)
		}
	})

	t.Run("handler error becomes error result", func(t *testing.T) {
		registry, router, rec := setupRouterTest(t, 5*time.Second)

		tool := testTool("fails")
		tool.Handler = func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("restaurant not found")
		}
		mustRegisterTool(t, registry, tool)

		resp, err := router.RouteToolCall(context.Background(), "fails", nil, "req-2", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.IsError() || resp.Error != "restaurant not found" {
			t.Errorf("unexpected result: %+v", resp)
		}
		if rec.calls[0].outcome != "error" {
			t.Errorf("expected error outcome, got %s", rec.calls[0].outcome)
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, router, rec := setupRouterTest(t, 5*time.Second)

		_, err := router.RouteToolCall(context.Background(), "nope", nil, "req-3", "")
		if !errors.Is(err, ErrToolNotFound) {
			t.Fatalf("expected ErrToolNotFound, got %v", err)
		}
		if rec.calls[0].outcome != "not_found" {
			t.Errorf("expected not_found outcome, got %s", rec.calls[0].outcome)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		registry, router, rec := setupRouterTest(t, 20*time.Millisecond)

		tool := testTool("slow")
		tool.Handler = func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		mustRegisterTool(t, registry, tool)

		_, err := router.RouteToolCall(context.Background(), "slow", nil, "req-4", "")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if rec.calls[0].outcome != "timeout" {
			t.Errorf("expected timeout outcome, got %s", rec.calls[0].outcome)
		}
	})
}

func TestRouterLookups(t *testing.T) {
	registry, router, _ := setupRouterTest(t, 0)
	mustRegisterTool(t, registry, testTool("order_dish"))

	if !router.HasTool("order_dish") {
		t.Error("expected HasTool true")
	}
	if router.HasTool("missing") {
		t.Error("expected HasTool false")
	}
	if def := router.GetToolDefinition("order_dish"); def == nil || def.Name != "order_dish" {
		t.Errorf("unexpected definition: %+v", def)
	}
	if router.GetToolDefinition("missing") != nil {
		t.Error("expected nil definition")
	}
	if len(router.ListTools()) != 1 {
		t.Error("expected one listed tool")
	}
	if router.timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", router.timeout)
	}
}

func mustRegisterTool(t *testing.T, registry *Registry, tool *BuiltinTool) {
	t.Helper()
	if err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "test", Tools: []*BuiltinTool{tool}}); err != nil {
		t.Fatalf("register: %v", err)
	}
}
