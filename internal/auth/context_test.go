// ABOUTME: Tests for the AuthContext helpers

package auth

import (
	"context"
	"testing"
)

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != nil {
		t.Error("expected nil AuthContext on empty context")
	}
	if Caller(ctx) != "" {
		t.Error("expected anonymous caller on empty context")
	}

	ctx = WithAuth(ctx, &AuthContext{Username: "jane", Role: "parent"})
	got := FromContext(ctx)
	if got == nil || got.Username != "jane" {
		t.Fatalf("FromContext() = %+v", got)
	}
	if !got.IsParent() {
		t.Error("jane should be a parent")
	}
	if Caller(ctx) != "jane" {
		t.Errorf("Caller() = %q, want jane", Caller(ctx))
	}
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), authContextKey{}, "not-an-auth-context")
	if FromContext(ctx) != nil {
		t.Error("expected nil for wrong value type")
	}
}

func TestIsParent(t *testing.T) {
	if (&AuthContext{Username: "henry", Role: "child"}).IsParent() {
		t.Error("henry is a child")
	}
}
