// ABOUTME: Interactive config file generator for food-gateway
// ABOUTME: Prompts for server, database, policy and auth settings and writes gateway.yaml

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/Tammibriggs/food-ordering/internal/config"
)

func runInit(args []string) error {
	fs, configPath := newFlagSet("init")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("food-gateway configuration setup")
	fmt.Println("================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", configLabel(*configPath))

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "127.0.0.1:8080")

	fmt.Println("\n--- Database Configuration ---")
	driver := prompt(reader, "Driver (sqlite/postgres)", config.DriverSQLite)
	var dbPath, dsn string
	if driver == config.DriverPostgres {
		dsn = prompt(reader, "Postgres DSN", "postgres://localhost:5432/food?sslmode=disable")
	} else {
		dbPath = prompt(reader, "SQLite database path", filepath.Join(filepath.Dir(outputFile), "food.db"))
	}

	fmt.Println("\n--- Policy Configuration ---")
	mode := prompt(reader, "Policy mode (local/permit)", config.PolicyModeLocal)
	permit := mode == config.PolicyModePermit
	var pdpURL string
	if permit {
		pdpURL = prompt(reader, "PDP URL", "http://localhost:7766")
		fmt.Println("  Credentials are read from PERMIT_API_KEY, PROJECT_ID, ENV_ID,")
		fmt.Println("  ELEMENTS_CONFIG_ID and OPERATION_APPROVAL_CONFIG_ID (a .env file works).")
	}

	fmt.Println("\n--- Ordering ---")
	threshold := prompt(reader, "Child price threshold in dollars", "10.00")

	fmt.Println("\n--- Authentication ---")
	requireAuth := yes(prompt(reader, "Require bearer tokens on /mcp?", "no"))
	secret, err := randomSecret()
	if err != nil {
		return err
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# food-gateway configuration\n")
	cfg.WriteString("# Generated by food-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString("  shutdown_timeout: \"10s\"\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  driver: %q\n", driver))
	if dsn != "" {
		cfg.WriteString(fmt.Sprintf("  dsn: %q\n", dsn))
	} else {
		cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	}
	cfg.WriteString("\n")

	cfg.WriteString("policy:\n")
	cfg.WriteString(fmt.Sprintf("  mode: %q\n", mode))
	if permit {
		cfg.WriteString(fmt.Sprintf("  pdp_url: %q\n", pdpURL))
		cfg.WriteString("  api_key: \"${PERMIT_API_KEY}\"\n")
		cfg.WriteString("  sync_on_start: true\n")
	}
	cfg.WriteString("  timeout: \"10s\"\n")
	cfg.WriteString("  retry_attempts: 1\n\n")

	cfg.WriteString("ordering:\n")
	cfg.WriteString(fmt.Sprintf("  child_price_threshold: %s\n\n", threshold))

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", secret))
	cfg.WriteString(fmt.Sprintf("  require_auth: %t\n\n", requireAuth))

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n\n", logFormat))

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file carries the JWT secret
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if _, err := config.Load(outputFile); err != nil {
		color.New(color.FgYellow).Printf("\nWarning: the written config does not validate yet: %v\n", err)
	}

	color.New(color.FgGreen).Printf("\n  ✓ Config written to %s\n", outputFile)
	fmt.Println("\nNext steps:")
	fmt.Println("  food-gateway seed                # create the catalog")
	fmt.Println("  food-gateway token -user jane    # issue a token")
	fmt.Println("  food-gateway serve               # start the server")
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func yes(answer string) bool {
	a := strings.ToLower(answer)
	return a == "yes" || a == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
