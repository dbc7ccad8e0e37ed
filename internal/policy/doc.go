// Package policy is the boundary to the external policy decision point (PDP).
//
// The service never decides authorization itself. Every "may this user do
// this" question and every access request or approval goes through Client:
//
//   - CheckAccess: permit/deny for (user, action, resource)
//   - RequestRestaurantAccess: pending request for the child-can-order role
//   - RequestDishOrder: pending approval for one restricted dish
//   - ListPending: requests an approver may review
//   - Approve: pending -> approved
//
// # Implementations
//
// HTTPClient speaks the Permit-style REST API (a /allowed decision endpoint
// plus access_requests and operation_approval collections under the facts
// API). Local is an in-process PDP with the same semantics, used by tests
// and the offline demo mode. Reliable decorates either one with a rate
// limiter, a circuit breaker and opt-in retries; by default a failed call is
// reported to the caller and not retried.
//
// # Roles
//
// Roles are assigned per restaurant instance:
//
//	parent           read, order, approve
//	child-can-order  read, order
//
// Approving an access request assigns child-can-order on the restaurant.
// Approving a dish order request grants order on dishes:<id>.
//
// # Provisioning
//
// Sync pushes catalog users and restaurants through the Directory interface
// so a fresh policy environment matches the seeded catalog.
package policy
