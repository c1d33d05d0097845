package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/toolbridge/sdk-mcp/pkg/auth"
	"github.com/toolbridge/sdk-mcp/pkg/cache"
	"github.com/toolbridge/sdk-mcp/pkg/catalog"
	"github.com/toolbridge/sdk-mcp/pkg/redact"
	"github.com/toolbridge/sdk-mcp/pkg/result"
)

// handler adapts the call pipeline to one registered tool. dryRun is fixed at
// registration time by the policy decision.
func (s *Server) handler(d *catalog.Descriptor, dryRun bool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		inv := s.call(ctx, d, req.GetArguments(), dryRun)
		s.observe(d, inv)
		return inv.ToMCPResult()
	}
}

// call runs one tool call through the pipeline: cache, rate limit, auth,
// execution with pagination, redaction, cache store. A cache hit costs no
// rate limit token. Dry runs are never cached.
func (s *Server) call(ctx context.Context, d *catalog.Descriptor, args map[string]any, dryRun bool) (inv *result.Invocation) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in call pipeline", "tool", d.Name, "panic", r)
			inv = result.Fail(result.NewFailure(result.KindInternal, result.OriginInternal,
				"internal error handling %s", d.Name))
		}
		if inv != nil && inv.Duration == 0 {
			inv.Duration = time.Since(start)
		}
	}()

	if args == nil {
		args = map[string]any{}
	}

	cacheable := s.deps.Cache != nil && d.Class == catalog.ClassSafe && !dryRun
	var key string
	if cacheable {
		key = cache.Key(d.Name, args)
		if cached, ok := s.deps.Cache.Get(key); ok {
			if s.deps.Metrics != nil {
				s.deps.Metrics.IncCacheHit()
			}
			hit := *cached
			return &hit
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.IncCacheMiss()
		}
	}

	if s.deps.Limiter != nil && !s.deps.Limiter.Allow(d.Name) {
		if s.deps.Metrics != nil {
			s.deps.Metrics.IncRateLimitRejection(d.Name)
		}
		return result.Fail(result.NewFailure(result.KindRateLimited, result.OriginPolicy,
			"rate limit exceeded for %s", d.Name).
			WithHint("wait for the window to refill before retrying"))
	}

	if s.deps.Resolver != nil {
		cred, err := s.deps.Resolver.Resolve(ctx, d.Family, s.deps.Environ)
		if err != nil {
			return result.Fail(result.NewFailure(result.KindAuthentication, result.OriginAuth,
				"credential resolution for %s failed: %v", d.Family, err))
		}
		if cred != nil {
			ctx = auth.WithCredential(ctx, cred)
		}
	}

	var retriesBefore uint64
	if s.deps.Metrics != nil {
		retriesBefore = s.deps.Engine.Stats().Retries
	}

	inv = s.deps.Collector.Collect(ctx, d, args, func(ctx context.Context, args map[string]any) *result.Invocation {
		return s.deps.Engine.Execute(ctx, d, args, dryRun)
	})

	if s.deps.Metrics != nil {
		// Attribution is best-effort under concurrency; the total stays exact.
		if delta := s.deps.Engine.Stats().Retries - retriesBefore; delta > 0 {
			s.deps.Metrics.IncRetries(d.Name, delta)
		}
	}

	if s.deps.RedactSecrets && inv.Value != nil {
		inv.Value = redact.Value(inv.Value)
	}

	if cacheable && inv.OK() && !inv.DryRun {
		stored := *inv
		s.deps.Cache.Set(key, &stored)
	}
	return inv
}

func (s *Server) observe(d *catalog.Descriptor, inv *result.Invocation) {
	outcome := "success"
	if inv.Failure != nil {
		outcome = string(inv.Failure.Kind)
	} else if inv.DryRun {
		outcome = "dry_run"
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveCall(d.Name, outcome, inv.Duration)
		if inv.DryRun {
			s.deps.Metrics.IncDryRun(d.Name)
		}
	}

	logger := slog.Info
	if inv.Failure != nil {
		logger = slog.Warn
	}
	logger("tool call", "tool", d.Name, "outcome", outcome,
		"duration_ms", inv.Duration.Milliseconds(), "pages", inv.PagesFetched)
}
