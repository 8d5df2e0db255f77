// ABOUTME: Entry point for the mcp-gateway server
// ABOUTME: Provides serve, bootstrap, and health subcommands

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/relayforge/mcp-gateway/internal/auth"
	"github.com/relayforge/mcp-gateway/internal/config"
	"github.com/relayforge/mcp-gateway/internal/gateway"
	"github.com/relayforge/mcp-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the gateway config file.
// Priority: MCP_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/mcp-gateway/config.yaml > ~/.config/mcp-gateway/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MCP_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "mcp-gateway", "config.yaml")
}

// getDataPath returns the path to the gateway data directory.
// Priority: XDG_DATA_HOME/mcp-gateway > ~/.local/share/mcp-gateway
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "mcp-gateway")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mcp-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                              Start the gateway server")
		fmt.Println("  bootstrap --tenant T --email E     Create a server and end user, mint a session token")
		fmt.Println("  health                             Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "bootstrap":
		err = runBootstrap(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	logger.Info("starting mcp-gateway",
		"version", version,
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// setupLogger builds the process logger from the logging config. Attributes
// carrying credentials are dropped before they reach any handler.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	filterAttr := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "token" || a.Key == "secret" || a.Key == "password" {
			return slog.Attr{}
		}
		return a
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: filterAttr,
		})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:       level,
			TimeFormat:  time.Kitchen,
			ReplaceAttr: filterAttr,
		})
	}

	return slog.New(handler)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runBootstrap performs first-time setup:
// 1. Creates a config file with a random session secret (if not exists)
// 2. Creates the database, a server record, and an end user
// 3. Mints a session token for the user
//
// One-command setup: mcp-gateway bootstrap --tenant acme --email you@acme.com
func runBootstrap(ctx context.Context) error {
	// Supports both "--flag value" and "--flag=value" formats
	var tenantID, email, serverName string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--tenant" || arg == "--email" || arg == "--server-name":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a value", arg)
			}
			i++
			switch arg {
			case "--tenant":
				tenantID = args[i]
			case "--email":
				email = args[i]
			case "--server-name":
				serverName = args[i]
			}
		case strings.HasPrefix(arg, "--tenant="):
			tenantID = strings.TrimPrefix(arg, "--tenant=")
		case strings.HasPrefix(arg, "--email="):
			email = strings.TrimPrefix(arg, "--email=")
		case strings.HasPrefix(arg, "--server-name="):
			serverName = strings.TrimPrefix(arg, "--server-name=")
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if tenantID == "" || email == "" {
		return fmt.Errorf("--tenant and --email are required")
	}
	if serverName == "" {
		serverName = "default"
	}

	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "gateway.db")

	cfg, err := ensureConfig(configPath, dbPath)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	server := &store.Server{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Name:     serverName,
		AuthType: store.AuthTypeBase,
		Enabled:  true,
	}
	if err := st.CreateServer(ctx, server); err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	user := &store.EndUser{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Email:    email,
		Enabled:  true,
	}
	if err := st.CreateEndUser(ctx, user); err != nil {
		return fmt.Errorf("creating end user: %w", err)
	}

	token, err := auth.NewHS256Verifier([]byte(cfg.Auth.SessionSecret)).
		Generate(user.ID, tenantID, email, uuid.New().String(), 30*24*time.Hour)
	if err != nil {
		return fmt.Errorf("minting session token: %w", err)
	}

	fmt.Println("Bootstrap complete.")
	fmt.Printf("  Config:    %s\n", configPath)
	fmt.Printf("  Database:  %s\n", cfg.Database.Path)
	fmt.Printf("  Server ID: %s\n", server.ID)
	fmt.Printf("  User:      %s (%s)\n", email, user.ID)
	fmt.Println()
	fmt.Println("Session token (valid 30 days):")
	fmt.Printf("  %s\n", token)
	fmt.Println()
	fmt.Printf("Try it:  curl -H 'Authorization: Bearer <token>' 'http://%s/api/mcp?serverId=%s' -d '{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"ping\"}'\n",
		cfg.Server.HTTPAddr, server.ID)
	return nil
}

// ensureConfig loads the config file, writing a default one with a random
// session secret when none exists yet.
func ensureConfig(configPath, dbPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		return config.Load(configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}
	secret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	content := fmt.Sprintf(`server:
  http_addr: "127.0.0.1:8080"

database:
  path: "%s"

auth:
  session_secret: "%s"
  jwks_fetch_timeout: "10s"

logging:
  level: "info"
  format: "text"

metrics:
  enabled: true
  path: "/metrics"
`, dbPath, secret)

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return nil, fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Created config: %s\n", configPath)
	return config.Load(configPath)
}
