// Package builtins provides the food-ordering tool packs.
//
// # Overview
//
// Every tool reads the seeded catalog and asks the policy client before it
// acts. No authorization rule is evaluated locally except the child price
// threshold, which decides whether a dish-level approval must be checked.
//
// # Tool Packs
//
// Catalog Pack (builtin:catalog):
//
//   - verify_access: Report whether a user exists and their role
//   - list_restaurants: All restaurants with dishes, optionally annotated with can_order
//   - list_dishes: Dishes of a restaurant the user may read
//
// Ordering Pack (builtin:ordering):
//
//   - order_dish: Place an order
//
// Requests Pack (builtin:requests):
//
//   - request_restaurant_access: Child asks for the child-can-order role
//   - request_dish_order: Child asks to order a dish above the threshold
//   - list_pending_requests: Approver lists requests awaiting review
//   - approve_request: Approver approves a request
//
// # Registration
//
//	builtins.RegisterAll(registry, builtins.Deps{Catalog: c, Policy: p})
//
// # Callers
//
// Handlers receive the authenticated caller. When it is set, the username
// argument may be omitted and must otherwise match it. With auth disabled the
// username argument is required and trusted.
//
// # Errors
//
// Handler errors wrap ErrUnauthorized, ErrApprovalRequired, ErrNotApplicable,
// ErrInvalidInput or one of the store and policy sentinels. Policy service
// outages surface as a generic unavailable message and anything unexpected
// as an internal error.
package builtins
