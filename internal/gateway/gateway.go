// ABOUTME: Gateway orchestrator that wires the catalog, policy client, tools and HTTP server
// ABOUTME: Manages the MCP endpoint, health and metrics endpoints and their lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tammibriggs/food-ordering/internal/auth"
	"github.com/Tammibriggs/food-ordering/internal/builtins"
	"github.com/Tammibriggs/food-ordering/internal/config"
	"github.com/Tammibriggs/food-ordering/internal/mcp"
	"github.com/Tammibriggs/food-ordering/internal/metrics"
	"github.com/Tammibriggs/food-ordering/internal/packs"
	"github.com/Tammibriggs/food-ordering/internal/policy"
	"github.com/Tammibriggs/food-ordering/internal/store"
)

// readyTimeout bounds the database ping behind /health/ready
const readyTimeout = 2 * time.Second

// Gateway orchestrates the food-gateway server components.
type Gateway struct {
	config     *config.Config
	catalog    store.Catalog
	policy     *policy.Reliable
	metrics    *metrics.Metrics
	logger     *slog.Logger
	httpServer *http.Server

	// packRegistry holds the food tool packs
	packRegistry *packs.Registry

	// packRouter routes tool calls to packs
	packRouter *packs.Router

	// mcpServer is the MCP-compatible HTTP server
	mcpServer *mcp.Server

	// listenAddr is the bound address once Run has started listening
	listenAddr chan string
}

// policyBackend is a policy service that can also be provisioned
type policyBackend interface {
	policy.Client
	policy.Directory
}

// OpenCatalog opens the configured database and seeds it with the default
// catalog. Seeding is insert-or-ignore, so reopening an existing database is safe.
func OpenCatalog(ctx context.Context, cfg *config.Config) (store.Catalog, error) {
	var (
		c   store.Catalog
		err error
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		c, err = store.NewPostgresStore(ctx, cfg.Database.DSN)
	default:
		c, err = store.NewSQLiteStore(cfg.Database.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	if err := store.Initialize(ctx, c, store.DefaultSeed()); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("seeding catalog: %w", err)
	}
	return c, nil
}

// newPolicyBackend builds the in-process or remote policy service from config
func newPolicyBackend(cfg *config.Config) (policyBackend, error) {
	if cfg.Policy.Mode != config.PolicyModePermit {
		return policy.NewLocal(), nil
	}

	client, err := policy.NewHTTPClient(policy.HTTPConfig{
		PDPURL:                    cfg.Policy.PDPURL,
		APIURL:                    cfg.Policy.APIURL,
		APIKey:                    cfg.Policy.APIKey,
		ProjectID:                 cfg.Policy.ProjectID,
		EnvID:                     cfg.Policy.EnvID,
		Tenant:                    cfg.Policy.Tenant,
		AccessRequestConfigID:     cfg.Policy.AccessRequestConfigID,
		OperationApprovalConfigID: cfg.Policy.OperationApprovalConfigID,
		DuplicateWindow:           cfg.Policy.DuplicateWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("creating policy client: %w", err)
	}
	return client, nil
}

// SyncPolicy provisions the catalog's users and restaurants in the configured
// policy service and reports what was pushed.
func SyncPolicy(ctx context.Context, cfg *config.Config, catalog store.Catalog) (policy.SyncReport, error) {
	backend, err := newPolicyBackend(cfg)
	if err != nil {
		return policy.SyncReport{}, err
	}
	defer closeBackend(backend)
	return policy.Sync(ctx, backend, catalog)
}

func closeBackend(backend policyBackend) {
	if c, ok := backend.(io.Closer); ok {
		_ = c.Close()
	}
}

// reliabilityConfig maps the policy section onto the resilience wrapper settings
func reliabilityConfig(cfg *config.Config) policy.ReliabilityConfig {
	return policy.ReliabilityConfig{
		Name:               "policy-" + cfg.Policy.Mode,
		RateLimit:          cfg.Policy.RateLimit,
		Burst:              cfg.Policy.Burst,
		Attempts:           cfg.Policy.RetryAttempts,
		AttemptTimeout:     cfg.Policy.Timeout,
		BreakerMaxFailures: cfg.Policy.BreakerMaxFailures,
		BreakerTimeout:     cfg.Policy.BreakerTimeout,
	}
}

// initPolicy builds the policy client and provisions it when needed.
// The local service keeps state in memory, so it is always synced.
func initPolicy(ctx context.Context, cfg *config.Config, catalog store.Catalog, m *metrics.Metrics, logger *slog.Logger) (*policy.Reliable, error) {
	backend, err := newPolicyBackend(cfg)
	if err != nil {
		return nil, err
	}

	if client, ok := backend.(*policy.HTTPClient); ok {
		m.TrackRecentRequests(client.RecentRequests)
	}

	if cfg.Policy.Mode != config.PolicyModePermit || cfg.Policy.SyncOnStart {
		report, err := policy.Sync(ctx, backend, catalog)
		if err != nil {
			closeBackend(backend)
			return nil, fmt.Errorf("syncing policy: %w", err)
		}
		logger.Info("policy synced",
			"mode", cfg.Policy.Mode,
			"users", report.Users,
			"restaurants", report.Restaurants,
			"assignments", report.Assignments,
		)
	}

	return policy.NewReliable(backend, reliabilityConfig(cfg), m), nil
}

// New creates a gateway from configuration: it opens and seeds the catalog,
// connects the policy service, registers the food tools and builds the HTTP
// server. Nothing listens until Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := OpenCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New(prometheus.NewRegistry())

	policyClient, err := initPolicy(ctx, cfg, catalog, m, logger.With("component", "policy"))
	if err != nil {
		_ = catalog.Close()
		return nil, err
	}

	gw := &Gateway{
		config:     cfg,
		catalog:    catalog,
		policy:     policyClient,
		metrics:    m,
		logger:     logger.With("component", "gateway"),
		listenAddr: make(chan string, 1),
	}

	gw.packRegistry = packs.NewRegistry(logger.With("component", "pack-registry"))
	gw.packRouter = packs.NewRouter(packs.RouterConfig{
		Registry: gw.packRegistry,
		Logger:   logger.With("component", "pack-router"),
		Recorder: m,
	})
	if err := builtins.RegisterAll(gw.packRegistry, builtins.Deps{
		Catalog:                  catalog,
		Policy:                   policyClient,
		ChildPriceThresholdCents: cfg.Ordering.ChildPriceThresholdCents(),
		Logger:                   logger.With("component", "builtins"),
	}); err != nil {
		_ = gw.Close()
		return nil, err
	}

	gw.mcpServer, err = mcp.NewServer(mcp.Config{
		Router:   gw.packRouter,
		Logger:   logger.With("component", "mcp"),
		Sessions: m,
	})
	if err != nil {
		_ = gw.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	handler, err := gw.routes()
	if err != nil {
		_ = gw.Close()
		return nil, err
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// routes builds the HTTP handler tree
func (g *Gateway) routes() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(g.metrics.Middleware)
	r.Use(requestLogger(g.logger))

	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)

	if g.config.Metrics.Enabled {
		r.Handle(g.config.Metrics.Path, g.metrics.Handler())
	}

	authMiddleware, err := g.mcpAuth()
	if err != nil {
		return nil, err
	}
	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		g.mcpServer.RegisterRoutes(r)
	})

	return r, nil
}

// mcpAuth selects the authentication middleware for /mcp.
// Without a secret the endpoint is open and callers identify themselves by
// the username argument of each tool.
func (g *Gateway) mcpAuth() (func(http.Handler) http.Handler, error) {
	if g.config.Auth.JWTSecret == "" {
		g.logger.Warn("MCP auth disabled - no jwt_secret configured")
		return nil, nil
	}

	verifier, err := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	if g.config.Auth.RequireAuth {
		g.logger.Info("MCP auth required")
		return auth.HTTPAuthMiddleware(g.catalog, verifier), nil
	}
	g.logger.Info("MCP auth optional - anonymous sessions allowed")
	return auth.OptionalAuthMiddleware(g.catalog, verifier), nil
}

// requestLogger logs one line per request at debug level
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Handler returns the gateway's HTTP handler
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Router returns the tool router shared by every transport
func (g *Gateway) Router() *packs.Router {
	return g.packRouter
}

// Catalog returns the seeded catalog store
func (g *Gateway) Catalog() store.Catalog {
	return g.catalog
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	g.listenAddr <- ln.Addr().String()

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with the configured timeout
func (g *Gateway) gracefulShutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.catalog.Close())
	errs = appendCloseError(errs, "policy close", g.policy.Close())
	g.packRegistry.Close()

	return errors.Join(errs...)
}

// Close releases resources for a gateway that was never started
func (g *Gateway) Close() error {
	g.packRegistry.Close()
	return errors.Join(g.catalog.Close(), g.policy.Close())
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the catalog database answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := g.catalog.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d tools)", len(g.packRouter.ListTools()))
}
