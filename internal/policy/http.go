// ABOUTME: REST client for a Permit-style policy decision point and facts API
// ABOUTME: Maps HTTP status codes onto the policy package's sentinel errors

package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Tammibriggs/food-ordering/internal/dedupe"
	"github.com/Tammibriggs/food-ordering/internal/store"
)

// maxErrorBody bounds how much of an error response is kept for logs
const maxErrorBody = 4096

// DefaultDuplicateWindow is how long a filed request blocks an identical one
const DefaultDuplicateWindow = 5 * time.Minute

// maxRecentRequests bounds the duplicate-submission cache
const maxRecentRequests = 10_000

// HTTPConfig holds the connection settings for the remote policy service
type HTTPConfig struct {
	PDPURL                    string
	APIURL                    string
	APIKey                    string
	ProjectID                 string
	EnvID                     string
	Tenant                    string
	AccessRequestConfigID     string
	OperationApprovalConfigID string
	HTTPClient                *http.Client

	// DuplicateWindow suppresses re-filing the same request for the same
	// user and resource. Zero selects DefaultDuplicateWindow.
	DuplicateWindow time.Duration
}

// Validate checks that all required settings are present
func (c HTTPConfig) Validate() error {
	missing := []string{}
	for name, v := range map[string]string{
		"pdp_url":                      c.PDPURL,
		"api_url":                      c.APIURL,
		"api_key":                      c.APIKey,
		"project_id":                   c.ProjectID,
		"env_id":                       c.EnvID,
		"access_request_config_id":     c.AccessRequestConfigID,
		"operation_approval_config_id": c.OperationApprovalConfigID,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("policy settings missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// HTTPClient talks to the remote policy service. It implements Client and Directory.
type HTTPClient struct {
	cfg    HTTPConfig
	http   *http.Client
	logger *slog.Logger
	recent *dedupe.Cache
}

// NewHTTPClient creates a client for the remote policy service
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Tenant == "" {
		cfg.Tenant = "default"
	}
	cfg.PDPURL = strings.TrimRight(cfg.PDPURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	window := cfg.DuplicateWindow
	if window <= 0 {
		window = DefaultDuplicateWindow
	}

	return &HTTPClient{
		cfg:    cfg,
		http:   hc,
		logger: slog.Default().With("component", "policy", "mode", "permit"),
		recent: dedupe.New(window, maxRecentRequests),
	}, nil
}

// Wire types for the remote API

type checkUser struct {
	Key string `json:"key"`
}

type checkResource struct {
	Type   string `json:"type"`
	Key    string `json:"key"`
	Tenant string `json:"tenant"`
}

type checkRequest struct {
	User     checkUser      `json:"user"`
	Action   string         `json:"action"`
	Resource checkResource  `json:"resource"`
	Context  map[string]any `json:"context"`
}

type checkResponse struct {
	Allow bool `json:"allow"`
}

type requestDetails struct {
	Tenant           string `json:"tenant"`
	Resource         string `json:"resource"`
	ResourceInstance string `json:"resource_instance"`
	Role             string `json:"role,omitempty"`
}

type requestContext struct {
	RestaurantID   string `json:"restaurant_id"`
	RestaurantName string `json:"restaurant_name"`
	DishID         string `json:"dish_id,omitempty"`
	DishName       string `json:"dish_name,omitempty"`
	// RequesterKey is the UserKey that filed the request. The PDP may report
	// the requester by its own id, so duplicate suppression relies on this.
	RequesterKey string `json:"requester_key,omitempty"`
}

type createRequestBody struct {
	Details requestDetails `json:"access_request_details"`
	Context requestContext `json:"context"`
	Reason  string         `json:"reason"`
}

type remoteRequest struct {
	ID               string         `json:"id"`
	Status           string         `json:"status"`
	RequestingUserID string         `json:"requesting_user_id"`
	ReviewerUserID   string         `json:"reviewer_user_id"`
	Details          requestDetails `json:"access_request_details"`
	Context          requestContext `json:"context"`
	Reason           string         `json:"reason"`
	CreatedAt        time.Time      `json:"created_at"`
}

type listRequestsResponse struct {
	Data []remoteRequest `json:"data"`
}

type reviewBody struct {
	ReviewerComment string `json:"reviewer_comment"`
}

// CheckAccess asks the PDP whether user may perform action on resource
func (c *HTTPClient) CheckAccess(ctx context.Context, user string, action Action, resource Resource) (bool, error) {
	body := checkRequest{
		User:   checkUser{Key: UserKey(user)},
		Action: string(action),
		Resource: checkResource{
			Type:   resource.Type,
			Key:    resource.Key,
			Tenant: c.cfg.Tenant,
		},
		Context: map[string]any{},
	}

	var resp checkResponse
	if err := c.do(ctx, "check", http.MethodPost, c.cfg.PDPURL+"/allowed", body, &resp); err != nil {
		return false, err
	}

	c.logger.Debug("access checked", "user", body.User.Key, "action", action, "resource", resource.String(), "allow", resp.Allow)
	return resp.Allow, nil
}

// RequestRestaurantAccess files an access request for the child-can-order role
func (c *HTTPClient) RequestRestaurantAccess(ctx context.Context, user string, restaurant store.Restaurant) (*Request, error) {
	rid := strconv.FormatInt(restaurant.ID, 10)
	body := createRequestBody{
		Details: requestDetails{
			Tenant:           c.cfg.Tenant,
			Resource:         ResourceRestaurants,
			ResourceInstance: rid,
			Role:             RoleChildCanOrder,
		},
		Context: requestContext{RestaurantID: rid, RestaurantName: restaurant.Name, RequesterKey: UserKey(user)},
		Reason:  AccessReason(user, restaurant.Name),
	}

	key := recentKey(KindRestaurantAccess, user, restaurant.ID)
	if !c.recent.Claim(key) {
		return nil, ErrRequestExists
	}

	var resp remoteRequest
	if err := c.do(ctx, "create", http.MethodPost, c.requestsURL(KindRestaurantAccess, user, ""), body, &resp); err != nil {
		c.recent.Release(key)
		return nil, err
	}
	return resp.toRequest(KindRestaurantAccess)
}

// RequestDishOrder files an operation approval for one dish
func (c *HTTPClient) RequestDishOrder(ctx context.Context, user string, restaurant store.Restaurant, dish store.Dish) (*Request, error) {
	did := strconv.FormatInt(dish.ID, 10)
	body := createRequestBody{
		Details: requestDetails{
			Tenant:           c.cfg.Tenant,
			Resource:         ResourceDishes,
			ResourceInstance: did,
		},
		Context: requestContext{
			RestaurantID:   strconv.FormatInt(restaurant.ID, 10),
			RestaurantName: restaurant.Name,
			DishID:         did,
			DishName:       dish.Name,
			RequesterKey:   UserKey(user),
		},
		Reason: DishReason(user, dish.Name),
	}

	key := recentKey(KindDishOrder, user, dish.ID)
	if !c.recent.Claim(key) {
		return nil, ErrRequestExists
	}

	var resp remoteRequest
	if err := c.do(ctx, "create", http.MethodPost, c.requestsURL(KindDishOrder, user, ""), body, &resp); err != nil {
		c.recent.Release(key)
		return nil, err
	}
	return resp.toRequest(KindDishOrder)
}

// ListPending lists requests the approver can review
func (c *HTTPClient) ListPending(ctx context.Context, approver string, kind RequestKind) ([]Request, error) {
	kinds := []RequestKind{KindRestaurantAccess, KindDishOrder}
	if kind != "" {
		kinds = []RequestKind{kind}
	}

	pending := []Request{}
	for _, k := range kinds {
		var resp listRequestsResponse
		endpoint := c.requestsURL(k, approver, "") + "?status=pending"
		if err := c.do(ctx, "list", http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}
		for _, rr := range resp.Data {
			req, err := rr.toRequest(k)
			if err != nil {
				return nil, err
			}
			if req.Status == StatusPending {
				pending = append(pending, *req)
			}
		}
	}
	return pending, nil
}

// Approve approves a request as approver
func (c *HTTPClient) Approve(ctx context.Context, approver string, kind RequestKind, requestID string) (*Request, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: kind is required", ErrRequestNotFound)
	}

	body := reviewBody{ReviewerComment: "Approved by " + approver}
	var resp remoteRequest
	endpoint := c.requestsURL(kind, approver, url.PathEscape(requestID)+"/approve")
	if err := c.do(ctx, "approve", http.MethodPut, endpoint, body, &resp); err != nil {
		return nil, err
	}
	req, err := resp.toRequest(kind)
	if err != nil {
		return nil, err
	}

	resourceID := req.RestaurantID
	if kind == KindDishOrder {
		resourceID = req.DishID
	}
	requester := resp.Context.RequesterKey
	if requester == "" {
		requester = req.Requester
	}
	c.recent.Release(recentKey(kind, requester, resourceID))
	return req, nil
}

// RecentRequests is how many request keys are held for duplicate suppression
func (c *HTTPClient) RecentRequests() int {
	return c.recent.Len()
}

// Close stops background work
func (c *HTTPClient) Close() error {
	c.recent.Close()
	return nil
}

// recentKey identifies a request for duplicate suppression
func recentKey(kind RequestKind, user string, resourceID int64) string {
	return string(kind) + "|" + UserKey(user) + "|" + strconv.FormatInt(resourceID, 10)
}

// SyncUser creates or replaces the user in the policy service
func (c *HTTPClient) SyncUser(ctx context.Context, user store.User) error {
	key := UserKey(user.Username)
	body := map[string]any{
		"key":        key,
		"first_name": user.Username,
		"attributes": map[string]any{"role": string(user.Role)},
	}
	return c.do(ctx, "sync_user", http.MethodPut, c.factsURL("users/"+url.PathEscape(key)), body, nil)
}

// EnsureResourceInstance creates a resource instance; an existing one is not an error
func (c *HTTPClient) EnsureResourceInstance(ctx context.Context, resource Resource) error {
	body := map[string]string{
		"key":      resource.Key,
		"resource": resource.Type,
		"tenant":   c.cfg.Tenant,
	}
	err := c.do(ctx, "create_instance", http.MethodPost, c.factsURL("resource_instances"), body, nil)
	if errors.Is(err, ErrRequestExists) {
		return nil
	}
	return err
}

// AssignRole assigns a role on a resource instance; an existing assignment is not an error
func (c *HTTPClient) AssignRole(ctx context.Context, user, role string, resource Resource) error {
	body := map[string]string{
		"user":              UserKey(user),
		"role":              role,
		"tenant":            c.cfg.Tenant,
		"resource_instance": resource.String(),
	}
	err := c.do(ctx, "assign_role", http.MethodPost, c.factsURL("role_assignments"), body, nil)
	if errors.Is(err, ErrRequestExists) {
		return nil
	}
	return err
}

func (c *HTTPClient) factsURL(suffix string) string {
	return fmt.Sprintf("%s/v2/facts/%s/%s/%s",
		c.cfg.APIURL, url.PathEscape(c.cfg.ProjectID), url.PathEscape(c.cfg.EnvID), suffix)
}

func (c *HTTPClient) requestsURL(kind RequestKind, user, suffix string) string {
	collection := "access_requests/" + url.PathEscape(c.cfg.AccessRequestConfigID)
	if kind == KindDishOrder {
		collection = "operation_approval/" + url.PathEscape(c.cfg.OperationApprovalConfigID)
	}
	path := fmt.Sprintf("%s/user/%s/tenant/%s",
		collection, url.PathEscape(UserKey(user)), url.PathEscape(c.cfg.Tenant))
	if suffix != "" {
		path += "/" + suffix
	}
	return c.factsURL(path)
}

// do sends a JSON request and decodes the JSON response into out (if non-nil)
func (c *HTTPClient) do(ctx context.Context, op, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("policy service rejected call",
			"op", op,
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return statusError(op, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError(ctx, "decoding "+op+" response", err)
	}
	return nil
}

// transportError blames the policy service only when the caller is still
// waiting; a canceled or expired ctx is reported as such.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("policy %s: %w", op, ctxErr)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// statusError maps a non-2xx status to a sentinel error
func statusError(op string, status int) error {
	switch {
	case status == http.StatusConflict && op == "approve":
		return ErrAlreadyApproved
	case status == http.StatusConflict:
		return ErrRequestExists
	case status == http.StatusNotFound:
		return ErrRequestNotFound
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s: credentials rejected", ErrUnavailable, op)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, op, status)
	default:
		return fmt.Errorf("policy %s failed with status %d", op, status)
	}
}

func (rr remoteRequest) toRequest(kind RequestKind) (*Request, error) {
	if rr.ID == "" {
		return nil, fmt.Errorf("%w: response missing request id", ErrUnavailable)
	}

	req := &Request{
		ID:             rr.ID,
		Kind:           kind,
		Requester:      rr.RequestingUserID,
		RestaurantName: rr.Context.RestaurantName,
		DishName:       rr.Context.DishName,
		Role:           rr.Details.Role,
		Reason:         rr.Reason,
		Status:         Status(strings.ToLower(rr.Status)),
		ApprovedBy:     rr.ReviewerUserID,
		CreatedAt:      rr.CreatedAt,
	}
	if rr.Context.RestaurantID != "" {
		req.RestaurantID, _ = strconv.ParseInt(rr.Context.RestaurantID, 10, 64)
	} else if kind == KindRestaurantAccess {
		req.RestaurantID, _ = strconv.ParseInt(rr.Details.ResourceInstance, 10, 64)
	}
	if rr.Context.DishID != "" {
		req.DishID, _ = strconv.ParseInt(rr.Context.DishID, 10, 64)
	}
	return req, nil
}
