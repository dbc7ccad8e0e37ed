// ABOUTME: Interactive chat client for the family food-ordering tools.
// ABOUTME: Connects over MCP to a spawned food-gateway stdio server or a running HTTP gateway.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Tammibriggs/food-ordering/internal/session"
)

var version = "dev"

// getToken returns the JWT from FOOD_TOKEN or ~/.config/food-ordering/token
func getToken() string {
	if token := os.Getenv("FOOD_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "food-ordering", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// bearerTransport adds an Authorization header to every request
type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(req)
}

func main() {
	server := flag.String("server", "", "gateway MCP endpoint, e.g. http://localhost:8080/mcp (default: spawn food-gateway stdio)")
	gatewayBin := flag.String("gateway", "food-gateway", "food-gateway binary used when -server is empty")
	configPath := flag.String("config", "", "config file passed to the spawned gateway")
	user := flag.String("user", "", "family member to sign in as")
	debug := flag.Bool("debug", false, "log tool calls to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *server, *gatewayBin, *configPath, *user); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func transport(server, gatewayBin, configPath string) mcpsdk.Transport {
	if server == "" {
		args := []string{"stdio"}
		if configPath != "" {
			args = append(args, "-config", configPath)
		}
		fmt.Printf("food-chat starting %s %s\n", gatewayBin, strings.Join(args, " "))
		return session.CommandTransport(gatewayBin, args...)
	}

	fmt.Printf("food-chat connected to %s\n", server)
	t := session.HTTPTransport(server).(*mcpsdk.StreamableClientTransport)
	if token := getToken(); token != "" {
		fmt.Println("Auth: JWT token configured (FOOD_TOKEN)")
		t.HTTPClient = &http.Client{Transport: &bearerTransport{token: token, next: http.DefaultTransport}}
	} else {
		fmt.Println("Auth: none (set FOOD_TOKEN for authentication)")
	}
	return t
}

func run(ctx context.Context, server, gatewayBin, configPath, user string) error {
	caller, err := session.Connect(ctx, transport(server, gatewayBin, configPath), version)
	if err != nil {
		return fmt.Errorf("connecting to gateway: %w", err)
	}
	defer caller.Close()

	stdin := bufio.NewReader(os.Stdin)
	if user == "" {
		fmt.Print("Username: ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading username: %w", err)
		}
		user = line
	}

	s, err := session.Login(ctx, caller, user, os.Stdout)
	if err != nil {
		return err
	}
	color.New(color.FgHiBlack).Println("Commands are sent to the food tools; 'help' lists them, 'quit' leaves.")

	return s.Run(ctx, stdin)
}
