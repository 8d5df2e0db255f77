// ABOUTME: Gateway orchestrator wiring store, cache, auth, and transports
// ABOUTME: Manages the HTTP server lifecycle and health endpoints

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/relayforge/mcp-gateway/internal/auth"
	"github.com/relayforge/mcp-gateway/internal/cache"
	"github.com/relayforge/mcp-gateway/internal/config"
	"github.com/relayforge/mcp-gateway/internal/mcp"
	"github.com/relayforge/mcp-gateway/internal/metrics"
	"github.com/relayforge/mcp-gateway/internal/store"
)

// Gateway orchestrates the mcp-gateway server components. It owns the data
// store, the lookup cache, the authentication chain, and the protocol
// transports, and serves them over a single HTTP listener.
type Gateway struct {
	config     *config.Config
	store      store.Store
	cache      *cache.Cache
	validator  *auth.AccessValidator
	resolver   *auth.Resolver
	mcpServer  *mcp.Server
	collector  *metrics.Collector
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a gateway from configuration, opening the SQLite store at the
// configured path.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return newWithStore(cfg, st, nil, logger)
}

// newWithStore finishes construction with an already-open store. Split out
// so tests can inject an in-memory store and tool source.
func newWithStore(cfg *config.Config, st store.Store, tools mcp.ToolSource, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := cache.New(cacheTTLs(cfg), time.Minute)
	validator := auth.NewAccessValidator(st, c, logger)

	jwksTimeout := cfg.Auth.JWKSFetchTimeout
	if jwksTimeout <= 0 {
		jwksTimeout = auth.DefaultJWKSFetchTimeout
	}
	keys := auth.NewKeySetVerifier(c, jwksTimeout, logger)

	sessionVerifier := auth.NewHS256Verifier([]byte(cfg.Auth.SessionSecret))
	resolver := auth.NewResolver(
		auth.NewBaseStrategy(sessionVerifier, validator, st, logger),
		auth.NewJWTStrategy(st, keys, logger),
	)

	collector := metrics.NewCollector()

	if tools == nil {
		tools = builtinTools()
	}
	mcpServer, err := mcp.NewServer(mcp.Config{
		Tools:             tools,
		Logger:            logger,
		KeepAliveInterval: cfg.Sessions.KeepAliveInterval,
		OnSessionChange:   collector.SessionDelta,
	})
	if err != nil {
		return nil, fmt.Errorf("creating protocol server: %w", err)
	}

	g := &Gateway{
		config:    cfg,
		store:     st,
		cache:     c,
		validator: validator,
		resolver:  resolver,
		mcpServer: mcpServer,
		collector: collector,
		logger:    logger,
	}
	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.buildMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g, nil
}

// cacheTTLs merges configured TTL overrides over the defaults.
func cacheTTLs(cfg *config.Config) map[cache.Category]time.Duration {
	ttls := cache.DefaultTTLs()
	if cfg.Cache.ServerTTL > 0 {
		ttls[cache.CategoryServer] = cfg.Cache.ServerTTL
	}
	if cfg.Cache.ServerAccessTTL > 0 {
		ttls[cache.CategoryServerAccess] = cfg.Cache.ServerAccessTTL
	}
	if cfg.Cache.JWKSTTL > 0 {
		ttls[cache.CategoryJWKS] = cfg.Cache.JWKSTTL
	}
	return ttls
}

// buildMux assembles the HTTP surface: authenticated protocol endpoints,
// health, and metrics.
func (g *Gateway) buildMux() http.Handler {
	deps := auth.Deps{
		Validator: g.validator,
		Resolver:  g.resolver,
		Logger:    g.logger,
		OnResult: func(authType auth.AuthType, success bool) {
			g.collector.RecordAuthentication(string(authType), success)
		},
	}

	protocol := http.NewServeMux()
	g.mcpServer.RegisterRoutes(protocol)
	protected := auth.ResolveServerID(auth.RequireAuth(deps)(protocol))

	mux := http.NewServeMux()
	mux.Handle("/api/mcp", protected)
	mux.Handle("/api/mcp/messages", protected)
	mux.HandleFunc("/healthz", g.handleHealth)

	if g.config.Metrics.Enabled {
		path := g.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, metrics.Handler())
	}

	return g.instrument(mux)
}

// instrument wraps the mux with request counting. The wrapper keeps the
// Flusher contract so streaming connections still flush through it.
func (g *Gateway) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		g.collector.RecordRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
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

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases the cache and store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	g.cache.Close()
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns liveness plus the active streaming session count.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"active_sessions": g.mcpServer.Registry().Len(),
	})
}

// builtinTools is the default tool set served when no tool source is
// injected. Real deployments plug in a source backed by the tool registry.
func builtinTools() mcp.ToolSource {
	return &mcp.StaticToolSource{
		Defs: []mcp.ToolInfo{{
			Name:        "echo",
			Description: "Echo back the provided arguments",
			InputSchema: json.RawMessage(`{"type":"object","additionalProperties":true}`),
		}},
		Handler: func(_ context.Context, _ string, args json.RawMessage) (mcp.CallToolResult, error) {
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			return mcp.TextResult(string(args)), nil
		},
	}
}
