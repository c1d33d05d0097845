// Package mcp exposes the cataloged SDK surface as an MCP tool server.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/toolbridge/sdk-mcp/pkg/auth"
	"github.com/toolbridge/sdk-mcp/pkg/cache"
	"github.com/toolbridge/sdk-mcp/pkg/catalog"
	"github.com/toolbridge/sdk-mcp/pkg/executor"
	"github.com/toolbridge/sdk-mcp/pkg/metrics"
	"github.com/toolbridge/sdk-mcp/pkg/pagination"
	"github.com/toolbridge/sdk-mcp/pkg/policy"
	"github.com/toolbridge/sdk-mcp/pkg/ratelimit"
	"github.com/toolbridge/sdk-mcp/pkg/schema"
)

const (
	mcpEndpoint            = "/mcp"
	healthEndpoint         = "/health"
	metricsEndpoint        = "/metrics"
	serverName             = "sdk-mcp"
	serverVersion          = "1.0.0"
	defaultShutdownTimeout = 10 * time.Second

	serverInstructions = `This server exposes SDK client operations as tools. Tool names are dotted:
the first segment is the SDK family, the rest is the operation path.

Call server_info first to see the available families and limits. Read-style
tools may serve cached results; mutating and destructive tools are only
available when the operator enabled them, possibly in dry-run mode where the
call is validated but never executed.`
)

// Limiter is the admission check the call pipeline consults per tool.
type Limiter interface {
	Allow(tool string) bool
}

// Deps are the assembled pipeline stages the server runs calls through.
type Deps struct {
	Catalog   *catalog.Catalog
	Schemas   map[string]*schema.ToolSchema
	Gate      *policy.Gate
	Resolver  *auth.Resolver
	Engine    *executor.Engine
	Collector *pagination.Collector

	// Cache and Limiter may be nil when disabled.
	Cache   *cache.Cache
	Limiter Limiter
	Metrics *metrics.Metrics

	// RedactSecrets masks secret-looking result fields.
	RedactSecrets bool

	// Environ supplies credential lookups; defaults to os.Getenv.
	Environ auth.Environ
}

// Server is the assembled MCP tool server.
type Server struct {
	mu         sync.RWMutex
	deps       Deps
	mcp        *server.MCPServer
	started    time.Time
	registered int
}

// NewServer registers every policy-visible tool on a fresh MCP server.
// Denied tools are never registered, so clients cannot even list them.
func NewServer(deps Deps) (*Server, error) {
	if deps.Catalog == nil || deps.Gate == nil || deps.Engine == nil || deps.Collector == nil {
		return nil, fmt.Errorf("mcp: catalog, gate, engine and collector are required")
	}
	if deps.Environ == nil {
		deps.Environ = os.Getenv
	}

	s := &Server{
		deps:    deps,
		started: time.Now(),
		mcp: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithLogging(),
			server.WithToolCapabilities(true),
			server.WithInstructions(serverInstructions),
		),
	}

	if err := s.registerTools(); err != nil {
		return nil, err
	}
	s.registerServerInfoTool()
	s.registerCacheClearTool()

	if deps.Metrics != nil {
		perFamily := make(map[string]int)
		for _, d := range deps.Catalog.All() {
			if deps.Gate.Decide(d.Name, d.Class) != policy.Deny {
				perFamily[d.Family]++
			}
		}
		deps.Metrics.SetCatalogSize(perFamily, len(deps.Catalog.Diagnostics()))
	}

	return s, nil
}

func (s *Server) registerTools() error {
	for _, d := range s.deps.Catalog.All() {
		decision := s.deps.Gate.Decide(d.Name, d.Class)
		if decision == policy.Deny {
			slog.Debug("tool hidden by policy", "tool", d.Name)
			if s.deps.Metrics != nil {
				s.deps.Metrics.IncPolicyDenial(d.Name)
			}
			continue
		}

		ts, ok := s.deps.Schemas[d.Name]
		if !ok {
			ts = schema.FromDescriptor(d)
		}
		raw, err := ts.RawJSON()
		if err != nil {
			return err
		}

		description := ts.Description
		if decision == policy.DryRun {
			description += " [dry-run only: the call is validated but never executed]"
		}

		tool := mcp.NewToolWithRawSchema(d.Name, description, raw)
		s.mcp.AddTool(tool, s.handler(d, decision == policy.DryRun))
		s.registered++
	}

	slog.Info("registered tools", "count", s.registered, "cataloged", s.deps.Catalog.Len())
	return nil
}

func (s *Server) registerServerInfoTool() {
	tool := mcp.NewToolWithRawSchema("server_info",
		"Describe this server: SDK families, tool counts, execution stats and limits.",
		[]byte(`{"type":"object","properties":{}}`))

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.mu.RLock()
		cat := s.deps.Catalog
		registered := s.registered
		s.mu.RUnlock()

		info := map[string]any{
			"name":            serverName,
			"version":         serverVersion,
			"families":        cat.Families(),
			"tools_visible":   registered,
			"tools_cataloged": cat.Len(),
			"uptime_seconds":  int(time.Since(s.started).Seconds()),
			"execution":       s.deps.Engine.Stats(),
			"features": map[string]bool{
				"cache":          s.deps.Cache != nil,
				"rate_limit":     s.deps.Limiter != nil,
				"redact_secrets": s.deps.RedactSecrets,
				"dry_run":        s.deps.Gate.DryRunEnabled(),
			},
		}
		if s.deps.Cache != nil {
			info["cache"] = s.deps.Cache.Stats()
		}
		if st, ok := s.deps.Limiter.(interface{ Stats() ratelimit.Stats }); ok {
			info["rate_limit"] = st.Stats()
		}
		if diags := cat.Diagnostics(); len(diags) > 0 {
			info["discovery_diagnostics"] = len(diags)
		}
		return structuredResult(info)
	})
}

func (s *Server) registerCacheClearTool() {
	if s.deps.Cache == nil {
		return
	}
	tool := mcp.NewToolWithRawSchema("cache_clear",
		"Drop every cached tool result.",
		[]byte(`{"type":"object","properties":{}}`))

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dropped := s.deps.Cache.Len()
		s.deps.Cache.Clear()
		slog.Info("result cache cleared", "dropped", dropped)
		return structuredResult(map[string]any{"dropped": dropped})
	})
}

func structuredResult(payload map[string]any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultStructured(payload, string(data)), nil
}

// Reload swaps in a freshly built catalog and its schemas. Old catalog tools
// are dropped and the new set registered; in-flight calls finish against the
// descriptors they started with. Connected clients receive a tool list change
// notification from the underlying server.
func (s *Server) Reload(cat *catalog.Catalog, schemas map[string]*schema.ToolSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var old []string
	for _, d := range s.deps.Catalog.All() {
		if s.deps.Gate.Decide(d.Name, d.Class) != policy.Deny {
			old = append(old, d.Name)
		}
	}
	if len(old) > 0 {
		s.mcp.DeleteTools(old...)
	}

	s.deps.Catalog = cat
	s.deps.Schemas = schemas
	s.registered = 0
	if err := s.registerTools(); err != nil {
		return err
	}

	if s.deps.Metrics != nil {
		perFamily := make(map[string]int)
		for _, d := range cat.All() {
			if s.deps.Gate.Decide(d.Name, d.Class) != policy.Deny {
				perFamily[d.Family]++
			}
		}
		s.deps.Metrics.SetCatalogSize(perFamily, len(cat.Diagnostics()))
	}

	slog.Info("catalog reloaded", "dropped", len(old), "registered", s.registered)
	return nil
}

// MCPServer returns the underlying server, for embedding and tests.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// RegisteredTools returns the number of catalog tools exposed to clients.
func (s *Server) RegisteredTools() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	slog.Info("serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Incoming request", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP runs the streamable HTTP transport on listenAddr until the
// context is cancelled or a termination signal arrives.
func (s *Server) ServeHTTP(ctx context.Context, listenAddr string) error {
	mux := http.NewServeMux()

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: loggingMiddleware(mux),
	}

	streamableHTTPServer := server.NewStreamableHTTPServer(s.mcp,
		server.WithStreamableHTTPServer(httpServer),
		server.WithStateLess(true),
	)
	mux.Handle(mcpEndpoint, streamableHTTPServer)
	mux.Handle("/", streamableHTTPServer)

	mux.HandleFunc(healthEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if s.deps.Metrics != nil {
		mux.Handle(metricsEndpoint, s.deps.Metrics.Handler())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "listen_addr", listenAddr, "mcp_endpoint", mcpEndpoint)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		slog.Warn("Received signal, initiating graceful shutdown", "signal", sig)
		cancel()
	case <-ctx.Done():
		slog.Warn("Context cancelled, initiating graceful shutdown")
	case err := <-serverErr:
		slog.Error("HTTP server error", "error", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer shutdownCancel()

	slog.Info("Shutting down HTTP server gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}

	slog.Info("HTTP server shutdown complete")
	return nil
}
