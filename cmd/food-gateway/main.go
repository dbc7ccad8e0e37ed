// ABOUTME: Entry point for the food-gateway MCP tool server
// ABOUTME: Serves the family ordering tools over HTTP or stdio and manages the catalog and policy setup

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/Tammibriggs/food-ordering/internal/auth"
	"github.com/Tammibriggs/food-ordering/internal/config"
	"github.com/Tammibriggs/food-ordering/internal/gateway"
	"github.com/Tammibriggs/food-ordering/internal/mcp"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
   __                 _                   _
  / _| ___   ___   __| |       __ _  __ _| |_ _____      ____ _ _   _
 | |_ / _ \ / _ \ / _' |_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 |  _| (_) | (_) | (_| |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |_|  \___/ \___/ \__,_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                              |___/                             |___/
`

func usage() {
	fmt.Println("Usage: food-gateway <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                     Start the HTTP MCP server")
	fmt.Println("  stdio [-user NAME]        Serve MCP over stdin/stdout")
	fmt.Println("  init                      Create a new config file interactively")
	fmt.Println("  seed                      Create and seed the catalog database")
	fmt.Println("  sync                      Push users and restaurants to the policy service")
	fmt.Println("  token -user NAME [-ttl D] Issue a bearer token for a family member")
	fmt.Println("  health                    Check gateway health")
	fmt.Println()
	fmt.Println("Every command accepts -config PATH (default $FOOD_CONFIG or ~/.config/food-ordering/gateway.yaml).")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "stdio":
		err = runStdio(ctx, args)
	case "init":
		err = runInit(args)
	case "seed":
		err = runSeed(ctx, args)
	case "sync":
		err = runSync(ctx, args)
	case "token":
		err = runToken(ctx, args)
	case "health":
		err = runHealth(ctx, args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set carrying the shared -config flag
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	return fs, configPath
}

// loadConfig reads the explicit path when given, else the default location
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func configLabel(path string) string {
	if path != "" {
		return path
	}
	return config.DefaultPath()
}

func runServe(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configLabel(*configPath))
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Policy:    ")
	cyan.Print(cfg.Policy.Mode)
	if cfg.Policy.Mode == config.PolicyModePermit {
		gray.Printf(" (%s)", cfg.Policy.PDPURL)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Auth:      ")
	switch {
	case cfg.Auth.RequireAuth:
		fmt.Println("required")
	case cfg.Auth.JWTSecret != "":
		fmt.Println("optional")
	default:
		yellow.Println("disabled")
	}
	fmt.Println()

	logger.Info("starting food-gateway",
		"http_addr", cfg.Server.HTTPAddr,
		"policy_mode", cfg.Policy.Mode,
		"database", cfg.Database.Driver,
	)

	mcp.Version = version
	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// runStdio serves MCP on stdin/stdout. Logs go to stderr so stdout stays a
// clean protocol channel.
func runStdio(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("stdio")
	user := fs.String("user", "", "serve every call as this family member")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	mcp.Version = version
	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	defer gw.Close()

	caller := ""
	if *user != "" {
		u, err := gw.Catalog().GetUser(ctx, *user)
		if err != nil {
			return fmt.Errorf("looking up %s: %w", *user, err)
		}
		caller = u.Username
	}

	logger.Info("serving MCP over stdio", "caller", caller)
	return mcp.ServeStdio(ctx, mcp.SDKConfig{
		Router: gw.Router(),
		Logger: logger.With("component", "mcp-stdio"),
		Caller: caller,
	})
}

func runSeed(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	catalog, err := gateway.OpenCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	users, err := catalog.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	restaurants, err := catalog.ListRestaurants(ctx)
	if err != nil {
		return fmt.Errorf("listing restaurants: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Catalog ready (%s)\n", cfg.Database.Driver)
	for _, u := range users {
		fmt.Printf("    %-8s %s\n", u.Username, u.Role)
	}
	for _, r := range restaurants {
		kids := ""
		if r.AllowedForChildren {
			kids = " (kid-friendly)"
		}
		fmt.Printf("    %s: %d dishes%s\n", r.Name, len(r.Dishes), kids)
	}
	return nil
}

func runSync(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("sync")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	if cfg.Policy.Mode != config.PolicyModePermit {
		color.New(color.FgYellow).Println("  policy mode is local: role assignments live in the server process and are synced at startup")
		return nil
	}

	catalog, err := gateway.OpenCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	report, err := gateway.SyncPolicy(ctx, cfg, catalog)
	if err != nil {
		return fmt.Errorf("syncing policy: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Synced %d users, %d restaurants, %d role assignments\n",
		report.Users, report.Restaurants, report.Assignments)
	return nil
}

func runToken(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("token")
	user := fs.String("user", "", "family member the token is issued to")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (FOOD_JWT_SECRET) must be configured to issue tokens")
	}

	catalog, err := gateway.OpenCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	u, err := catalog.GetUser(ctx, *user)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", *user, err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(u.Username, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runHealth(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("health")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// Make HTTP request to ready endpoint with context
	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Println(string(body))
	return nil
}
