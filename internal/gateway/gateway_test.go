// ABOUTME: Tests for the Gateway orchestrator over a temporary SQLite catalog
// ABOUTME: Drives health, metrics and authenticated MCP tool calls through the HTTP handler

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Tammibriggs/food-ordering/internal/auth"
	"github.com/Tammibriggs/food-ordering/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testConfig creates a local-mode config over a temporary database.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Database.Path = filepath.Join(t.TempDir(), "food.db")
	cfg.Policy.Mode = config.PolicyModeLocal
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()
	gw, err := New(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestGatewayNew(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	if gw.catalog == nil || gw.policy == nil || gw.mcpServer == nil {
		t.Fatal("gateway components should be initialized")
	}

	tools := gw.Router().ListTools()
	if len(tools) != 8 {
		t.Errorf("expected 8 tools, got %d", len(tools))
	}

	users, err := gw.catalog.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 5 {
		t.Errorf("expected seeded users, got %d", len(users))
	}
}

func TestGatewayNew_InvalidSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	if _, err := New(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for short JWT secret")
	}
}

func TestHealthEndpoints(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	if rr := get(t, gw.Handler(), "/health"); rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("/health = %d %q", rr.Code, rr.Body.String())
	}

	rr := get(t, gw.Handler(), "/health/ready")
	if rr.Code != http.StatusOK {
		t.Errorf("/health/ready status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "8 tools") {
		t.Errorf("/health/ready body = %q", rr.Body.String())
	}
}

func TestReadyAfterStoreClosed(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	_ = gw.catalog.Close()

	if rr := get(t, gw.Handler(), "/health/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		gw := newTestGateway(t, testConfig(t))
		get(t, gw.Handler(), "/health")

		rr := get(t, gw.Handler(), "/metrics")
		if rr.Code != http.StatusOK {
			t.Fatalf("/metrics status = %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "food_http_requests_total") {
			t.Error("metrics output should include HTTP request counter")
		}
	})

	t.Run("permit mode tracks duplicate suppression", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Policy.Mode = config.PolicyModePermit
		cfg.Policy.APIKey = "permit_key_test"
		cfg.Policy.ProjectID = "food"
		cfg.Policy.EnvID = "dev"
		cfg.Policy.AccessRequestConfigID = "restaurant-requests"
		cfg.Policy.OperationApprovalConfigID = "dish-approvals"
		gw := newTestGateway(t, cfg)

		body := get(t, gw.Handler(), "/metrics").Body.String()
		if !strings.Contains(body, "food_policy_recent_requests 0") {
			t.Errorf("metrics output should include the recent request gauge:\n%s", body)
		}
	})

	t.Run("local mode has no duplicate gauge", func(t *testing.T) {
		body := get(t, newTestGateway(t, testConfig(t)).Handler(), "/metrics").Body.String()
		if strings.Contains(body, "food_policy_recent_requests") {
			t.Error("local policy keeps no recent request set")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Metrics.Enabled = false
		gw := newTestGateway(t, cfg)

		if rr := get(t, gw.Handler(), "/metrics"); rr.Code != http.StatusNotFound {
			t.Errorf("/metrics status = %d, want 404", rr.Code)
		}
	})
}

// mcpClient drives the MCP endpoint with an optional bearer token.
type mcpClient struct {
	t         *testing.T
	handler   http.Handler
	token     string
	sessionID string
}

func (c *mcpClient) post(body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.sessionID != "" {
		req.Header.Set("Mcp-Session-Id", c.sessionID)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return rr
}

func (c *mcpClient) initialize() int {
	c.t.Helper()
	rr := c.post(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`)
	c.sessionID = rr.Header().Get("Mcp-Session-Id")
	return rr.Code
}

// callTool returns the text content and isError flag of a tools/call.
func (c *mcpClient) callTool(name string, args map[string]any) (string, bool) {
	c.t.Helper()
	params, _ := json.Marshal(map[string]any{"name": name, "arguments": args})
	rr := c.post(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":` + string(params) + `}`)

	var resp struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		c.t.Fatalf("decode: %v", err)
	}
	if resp.Error != nil {
		c.t.Fatalf("JSON-RPC error: %s", resp.Error.Message)
	}
	if len(resp.Result.Content) == 0 {
		c.t.Fatal("empty tool result")
	}
	return resp.Result.Content[0].Text, resp.Result.IsError
}

func tokenFor(t *testing.T, username string) string {
	t.Helper()
	v, err := auth.NewJWTVerifier([]byte(testSecret))
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	tok, err := v.Generate(username, time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return tok
}

func TestMCP_Anonymous(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	c := &mcpClient{t: t, handler: gw.Handler()}

	if code := c.initialize(); code != http.StatusOK {
		t.Fatalf("initialize status = %d", code)
	}

	text, isErr := c.callTool("order_dish", map[string]any{
		"username":        "henry",
		"restaurant_name": "Pizza Palace",
		"dish_name":       "Cheese Pizza",
	})
	if isErr {
		t.Fatalf("order failed: %s", text)
	}
	if !strings.Contains(text, "Order successfully placed for Cheese Pizza from Pizza Palace!") {
		t.Errorf("unexpected output: %s", text)
	}

	text, isErr = c.callTool("order_dish", map[string]any{
		"username":        "henry",
		"restaurant_name": "Sushi World",
		"dish_name":       "Tempura",
	})
	if !isErr || !strings.Contains(text, "access denied") {
		t.Errorf("expected access denied, got %q (isError=%v)", text, isErr)
	}
}

func TestMCP_RequiredAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.RequireAuth = true
	gw := newTestGateway(t, cfg)

	anon := &mcpClient{t: t, handler: gw.Handler()}
	if code := anon.initialize(); code != http.StatusUnauthorized {
		t.Fatalf("anonymous initialize status = %d, want 401", code)
	}

	rose := &mcpClient{t: t, handler: gw.Handler(), token: tokenFor(t, "rose")}
	if code := rose.initialize(); code != http.StatusOK {
		t.Fatalf("initialize status = %d", code)
	}

	text, isErr := rose.callTool("verify_access", map[string]any{})
	if isErr || !strings.Contains(text, `"username":"rose"`) {
		t.Errorf("verify_access = %q (isError=%v)", text, isErr)
	}

	text, isErr = rose.callTool("list_pending_requests", map[string]any{"username": "joe"})
	if !isErr || !strings.Contains(text, "access denied") {
		t.Errorf("impersonation should be refused, got %q", text)
	}
}

func TestMCP_OptionalAuthRejectsBadToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = testSecret
	gw := newTestGateway(t, cfg)

	c := &mcpClient{t: t, handler: gw.Handler(), token: "not-a-jwt"}
	if code := c.initialize(); code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", code)
	}

	anon := &mcpClient{t: t, handler: gw.Handler()}
	if code := anon.initialize(); code != http.StatusOK {
		t.Errorf("anonymous status = %d, want 200", code)
	}
}

func TestGatewayRun(t *testing.T) {
	gw, err := New(context.Background(), testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	var addr string
	select {
	case addr = <-gw.listenAddr:
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not start listening")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSyncPolicy_Local(t *testing.T) {
	cfg := testConfig(t)
	catalog, err := OpenCatalog(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	defer catalog.Close()

	report, err := SyncPolicy(context.Background(), cfg, catalog)
	if err != nil {
		t.Fatalf("SyncPolicy: %v", err)
	}
	if report.Users != 5 || report.Restaurants != 4 {
		t.Errorf("unexpected report: %+v", report)
	}
}
