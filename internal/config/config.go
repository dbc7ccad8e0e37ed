// ABOUTME: Configuration loading and parsing for food-gateway
// ABOUTME: Supports YAML files with environment variable expansion, .env files and env overrides

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Policy modes
const (
	PolicyModeLocal  = "local"
	PolicyModePermit = "permit"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// minJWTSecretLength mirrors auth.MinSecretLength
const minJWTSecretLength = 32

// Config represents the complete food-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Policy   PolicyConfig   `yaml:"policy"`
	Ordering OrderingConfig `yaml:"ordering"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds catalog database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	Path   string `yaml:"path"`   // sqlite file, or ":memory:"
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// PolicyConfig holds policy service configuration
type PolicyConfig struct {
	// Mode is "permit" for the external service or "local" for the in-process one.
	// Empty selects permit when an API key is configured.
	Mode string `yaml:"mode"`

	PDPURL                    string `yaml:"pdp_url"`
	APIURL                    string `yaml:"api_url"`
	APIKey                    string `yaml:"api_key"`
	ProjectID                 string `yaml:"project_id"`
	EnvID                     string `yaml:"env_id"`
	Tenant                    string `yaml:"tenant"`
	AccessRequestConfigID     string `yaml:"access_request_config_id"`
	OperationApprovalConfigID string `yaml:"operation_approval_config_id"`

	// SyncOnStart pushes users, restaurants and role assignments at startup
	SyncOnStart bool `yaml:"sync_on_start"`

	RetryAttempts      uint    `yaml:"retry_attempts"`
	RateLimit          float64 `yaml:"rate_limit"`
	Burst              int     `yaml:"burst"`
	BreakerMaxFailures uint32  `yaml:"breaker_max_failures"`

	Timeout        time.Duration `yaml:"-"`
	BreakerTimeout time.Duration `yaml:"-"`

	// DuplicateWindow blocks re-filing an identical approval request
	DuplicateWindow time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw         string `yaml:"timeout"`
	BreakerTimeoutRaw  string `yaml:"breaker_timeout"`
	DuplicateWindowRaw string `yaml:"duplicate_window"`
}

// OrderingConfig holds ordering rules
type OrderingConfig struct {
	// ChildPriceThreshold is in dollars; dishes above it need approval for children
	ChildPriceThreshold float64 `yaml:"child_price_threshold"`
}

// ChildPriceThresholdCents converts the threshold to whole cents
func (o OrderingConfig) ChildPriceThresholdCents() int64 {
	return int64(math.Round(o.ChildPriceThreshold * 100))
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	RequireAuth bool   `yaml:"require_auth"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:           "127.0.0.1:8080",
			ShutdownTimeoutRaw: "10s",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "food.db",
		},
		Policy: PolicyConfig{
			PDPURL:             "http://localhost:7766",
			APIURL:             "https://api.permit.io",
			Tenant:             "default",
			RetryAttempts:      1,
			RateLimit:          50,
			Burst:              10,
			BreakerMaxFailures: 5,
			TimeoutRaw:         "10s",
			BreakerTimeoutRaw:  "30s",
			DuplicateWindowRaw: "5m",
		},
		Ordering: OrderingConfig{
			ChildPriceThreshold: 10.00,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// DefaultPath returns the config file location: $FOOD_CONFIG or
// ~/.config/food-ordering/gateway.yaml.
func DefaultPath() string {
	if p := os.Getenv("FOOD_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gateway.yaml"
	}
	return filepath.Join(home, ".config", "food-ordering", "gateway.yaml")
}

// LoadDefault loads .env from the working directory, then the file at
// DefaultPath if it exists. A missing file yields Default() plus env overrides.
func LoadDefault() (*Config, error) {
	_ = godotenv.Load()

	path := DefaultPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		return finish(cfg)
	}
	return Load(path)
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded, then the
// well-known variables (PERMIT_API_KEY, FOOD_DB_PATH, ...) override file values.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)

	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = PolicyModeLocal
		if cfg.Policy.APIKey != "" {
			cfg.Policy.Mode = PolicyModePermit
		}
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// envOverrides maps environment variables onto config fields
var envOverrides = []struct {
	name  string
	field func(*Config) *string
}{
	{"PERMIT_API_KEY", func(c *Config) *string { return &c.Policy.APIKey }},
	{"PROJECT_ID", func(c *Config) *string { return &c.Policy.ProjectID }},
	{"ENV_ID", func(c *Config) *string { return &c.Policy.EnvID }},
	{"ELEMENTS_CONFIG_ID", func(c *Config) *string { return &c.Policy.AccessRequestConfigID }},
	{"OPERATION_APPROVAL_CONFIG_ID", func(c *Config) *string { return &c.Policy.OperationApprovalConfigID }},
	{"PERMIT_PDP_URL", func(c *Config) *string { return &c.Policy.PDPURL }},
	{"PERMIT_API_URL", func(c *Config) *string { return &c.Policy.APIURL }},
	{"FOOD_DB_PATH", func(c *Config) *string { return &c.Database.Path }},
	{"FOOD_JWT_SECRET", func(c *Config) *string { return &c.Auth.JWTSecret }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := strings.TrimSpace(os.Getenv(o.name)); v != "" {
			*o.field(cfg) = v
		}
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	switch c.Policy.Mode {
	case PolicyModeLocal:
	case PolicyModePermit:
		var missing []string
		for _, f := range []struct{ name, value string }{
			{"policy.api_key (PERMIT_API_KEY)", c.Policy.APIKey},
			{"policy.project_id (PROJECT_ID)", c.Policy.ProjectID},
			{"policy.env_id (ENV_ID)", c.Policy.EnvID},
			{"policy.access_request_config_id (ELEMENTS_CONFIG_ID)", c.Policy.AccessRequestConfigID},
			{"policy.operation_approval_config_id (OPERATION_APPROVAL_CONFIG_ID)", c.Policy.OperationApprovalConfigID},
			{"policy.pdp_url (PERMIT_PDP_URL)", c.Policy.PDPURL},
			{"policy.api_url (PERMIT_API_URL)", c.Policy.APIURL},
		} {
			if strings.TrimSpace(f.value) == "" {
				missing = append(missing, f.name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("policy mode %q requires %s", PolicyModePermit, strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("policy.mode must be %q or %q, got %q", PolicyModeLocal, PolicyModePermit, c.Policy.Mode)
	}

	if c.Policy.RetryAttempts == 0 {
		return fmt.Errorf("policy.retry_attempts must be at least 1")
	}

	if c.Ordering.ChildPriceThresholdCents() <= 0 {
		return fmt.Errorf("ordering.child_price_threshold must be positive")
	}

	if c.Auth.RequireAuth && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.require_auth is set")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLength)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"policy.timeout", cfg.Policy.TimeoutRaw, &cfg.Policy.Timeout},
		{"policy.breaker_timeout", cfg.Policy.BreakerTimeoutRaw, &cfg.Policy.BreakerTimeout},
		{"policy.duplicate_window", cfg.Policy.DuplicateWindowRaw, &cfg.Policy.DuplicateWindow},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}
	return nil
}
