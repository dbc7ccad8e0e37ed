// ABOUTME: User-facing error taxonomy for tool handlers.
// ABOUTME: guard hides internal and transport details behind stable messages.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Tammibriggs/food-ordering/internal/packs"
	"github.com/Tammibriggs/food-ordering/internal/policy"
	"github.com/Tammibriggs/food-ordering/internal/store"
)

var (
	// ErrUnauthorized is returned when the policy service denies the action
	ErrUnauthorized = errors.New("access denied")

	// ErrApprovalRequired is returned when a child orders a dish above the threshold without approval
	ErrApprovalRequired = errors.New("approval required")

	// ErrNotApplicable is returned when a request would have no effect for this user or dish
	ErrNotApplicable = errors.New("request not needed")

	// ErrInvalidInput is returned for malformed or missing arguments
	ErrInvalidInput = errors.New("invalid input")
)

// errServiceUnavailable is what callers see when the policy service cannot be reached
var errServiceUnavailable = errors.New("the authorization service is unavailable, please try again later")

// errInternal is what callers see for unexpected failures
var errInternal = errors.New("internal error, please try again later")

// userFacing lists errors whose message is safe to show as-is
var userFacing = []error{
	ErrUnauthorized,
	ErrApprovalRequired,
	ErrNotApplicable,
	ErrInvalidInput,
	store.ErrNotFound,
	store.ErrAmbiguous,
	policy.ErrRequestExists,
	policy.ErrAlreadyApproved,
	policy.ErrRequestNotFound,
	policy.ErrForbidden,
	context.Canceled,
	context.DeadlineExceeded,
}

// guard wraps a handler so errors reach the caller as one of the stable
// categories. Unavailable policy calls and internal failures are logged.
func guard(logger *slog.Logger, tool string, h packs.ToolHandler) packs.ToolHandler {
	return func(ctx context.Context, caller string, input json.RawMessage) (json.RawMessage, error) {
		out, err := h(ctx, caller, input)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, policy.ErrUnavailable) {
			logger.Error("policy service unavailable", "tool", tool, "error", err)
			return nil, errServiceUnavailable
		}
		for _, known := range userFacing {
			if errors.Is(err, known) {
				return nil, err
			}
		}
		logger.Error("tool failed", "tool", tool, "error", err)
		return nil, errInternal
	}
}
