package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/toolbridge/sdk-mcp/pkg/cache"
	"github.com/toolbridge/sdk-mcp/pkg/catalog"
	"github.com/toolbridge/sdk-mcp/pkg/executor"
	"github.com/toolbridge/sdk-mcp/pkg/metrics"
	"github.com/toolbridge/sdk-mcp/pkg/pagination"
	"github.com/toolbridge/sdk-mcp/pkg/policy"
	"github.com/toolbridge/sdk-mcp/pkg/result"
)

// inventoryAPI is a fake SDK with one tool per risk class.
type inventoryAPI struct {
	listCalls   int
	deleteCalls int
}

func (a *inventoryAPI) ListItems(ctx context.Context, prefix string) ([]map[string]any, error) {
	a.listCalls++
	return []map[string]any{
		{"id": prefix + "-1", "api_key": "sk-live-123"},
		{"id": prefix + "-2", "api_key": "sk-live-456"},
	}, nil
}

func (a *inventoryAPI) DeleteItem(ctx context.Context, id string) error {
	a.deleteCalls++
	return nil
}

// countingLimiter admits the first n calls per tool.
type countingLimiter struct {
	n      int
	checks int
	used   map[string]int
}

func (l *countingLimiter) Allow(tool string) bool {
	l.checks++
	if l.used == nil {
		l.used = map[string]int{}
	}
	if l.used[tool] >= l.n {
		return false
	}
	l.used[tool]++
	return true
}

func newTestServer(t *testing.T, api *inventoryAPI, pol policy.Config, mutate func(*Deps)) (*Server, *catalog.Catalog) {
	t.Helper()
	cat := catalog.New()
	if err := catalog.Build(cat, "inventory", api); err != nil {
		t.Fatalf("Build: %v", err)
	}

	gate, err := policy.NewGate(pol)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	deps := Deps{
		Catalog:       cat,
		Gate:          gate,
		Engine:        executor.New(executor.Options{}),
		Collector:     pagination.New(pagination.Options{MaxItems: 100, AutoCollect: true}),
		Cache:         cache.New(16, time.Minute),
		Metrics:       metrics.New(),
		RedactSecrets: true,
		Environ:       func(string) string { return "" },
	}
	if mutate != nil {
		mutate(&deps)
	}

	s, err := NewServer(deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, cat
}

func get(t *testing.T, cat *catalog.Catalog, name string) *catalog.Descriptor {
	t.Helper()
	d, ok := cat.Get(name)
	if !ok {
		t.Fatalf("descriptor %q not found, have %v", name, cat.Names())
	}
	return d
}

func TestDangerousToolsHiddenByDefault(t *testing.T) {
	api := &inventoryAPI{}
	s, _ := newTestServer(t, api, policy.Config{}, nil)

	// Only ListItems survives the default gate.
	if s.RegisteredTools() != 1 {
		t.Errorf("registered tools = %d, want 1", s.RegisteredTools())
	}
}

func TestDryRunModeExposesDangerousTools(t *testing.T) {
	api := &inventoryAPI{}
	s, cat := newTestServer(t, api, policy.Config{DryRun: true}, nil)

	if s.RegisteredTools() != 2 {
		t.Errorf("registered tools = %d, want 2", s.RegisteredTools())
	}

	inv := s.call(context.Background(), get(t, cat, "inventory.DeleteItem"),
		map[string]any{"arg0": "item-9"}, true)

	if !inv.OK() || !inv.DryRun {
		t.Fatalf("expected dry-run success, got %+v", inv)
	}
	if api.deleteCalls != 0 {
		t.Errorf("delete calls = %d, want 0", api.deleteCalls)
	}
}

func TestSecondCallServedFromCache(t *testing.T) {
	api := &inventoryAPI{}
	s, cat := newTestServer(t, api, policy.Config{}, nil)
	d := get(t, cat, "inventory.ListItems")
	args := map[string]any{"arg0": "pod"}

	first := s.call(context.Background(), d, args, false)
	second := s.call(context.Background(), d, args, false)

	if !first.OK() || !second.OK() {
		t.Fatalf("unexpected failures: %v, %v", first.Failure, second.Failure)
	}
	if api.listCalls != 1 {
		t.Errorf("underlying calls = %d, want 1 (second served from cache)", api.listCalls)
	}

	// Different arguments miss the cache.
	s.call(context.Background(), d, map[string]any{"arg0": "node"}, false)
	if api.listCalls != 2 {
		t.Errorf("underlying calls = %d, want 2", api.listCalls)
	}
}

func TestRateLimitRejectsWithoutInvoking(t *testing.T) {
	api := &inventoryAPI{}
	limiter := &countingLimiter{n: 2}
	s, cat := newTestServer(t, api, policy.Config{}, func(d *Deps) {
		d.Cache = nil
		d.Limiter = limiter
	})
	d := get(t, cat, "inventory.ListItems")

	for i := 0; i < 2; i++ {
		if inv := s.call(context.Background(), d, map[string]any{"arg0": "x"}, false); !inv.OK() {
			t.Fatalf("call %d failed: %v", i, inv.Failure)
		}
	}

	inv := s.call(context.Background(), d, map[string]any{"arg0": "x"}, false)
	if inv.OK() || inv.Failure.Kind != result.KindRateLimited {
		t.Fatalf("expected rate_limited, got %+v", inv)
	}
	if api.listCalls != 2 {
		t.Errorf("underlying calls = %d, want 2", api.listCalls)
	}
}

func TestCacheHitConsumesNoToken(t *testing.T) {
	api := &inventoryAPI{}
	limiter := &countingLimiter{n: 1}
	s, cat := newTestServer(t, api, policy.Config{}, func(d *Deps) {
		d.Limiter = limiter
	})
	d := get(t, cat, "inventory.ListItems")
	args := map[string]any{"arg0": "pod"}

	if inv := s.call(context.Background(), d, args, false); !inv.OK() {
		t.Fatalf("first call failed: %v", inv.Failure)
	}
	if inv := s.call(context.Background(), d, args, false); !inv.OK() {
		t.Fatalf("cached call failed: %v", inv.Failure)
	}
	if limiter.checks != 1 {
		t.Errorf("limiter checks = %d, want 1 (cache hit short-circuits)", limiter.checks)
	}
}

func TestSecretFieldsRedacted(t *testing.T) {
	api := &inventoryAPI{}
	s, cat := newTestServer(t, api, policy.Config{}, nil)

	inv := s.call(context.Background(), get(t, cat, "inventory.ListItems"),
		map[string]any{"arg0": "pod"}, false)

	if !inv.OK() {
		t.Fatalf("unexpected failure: %v", inv.Failure)
	}
	items := inv.Value.([]any)
	for _, item := range items {
		if got := item.(map[string]any)["api_key"]; got != "***" {
			t.Errorf("api_key = %v, want masked", got)
		}
	}
}

func TestInvalidArgumentsSurfaceInResult(t *testing.T) {
	api := &inventoryAPI{}
	s, cat := newTestServer(t, api, policy.Config{}, nil)

	inv := s.call(context.Background(), get(t, cat, "inventory.ListItems"),
		map[string]any{"arg0": 42}, false)

	if inv.OK() || inv.Failure.Kind != result.KindInvalidArgument {
		t.Fatalf("expected invalid_argument, got %+v", inv)
	}
	if api.listCalls != 0 {
		t.Errorf("underlying calls = %d, want 0", api.listCalls)
	}

	res, err := inv.ToMCPResult()
	if err != nil {
		t.Fatalf("ToMCPResult: %v", err)
	}
	if !res.IsError {
		t.Error("MCP result should be marked as an error")
	}
}

func TestFailedCallsNotCached(t *testing.T) {
	api := &inventoryAPI{}
	s, cat := newTestServer(t, api, policy.Config{}, nil)
	d := get(t, cat, "inventory.ListItems")

	// Invalid calls never enter the cache, so a corrected call still runs.
	s.call(context.Background(), d, map[string]any{"arg0": 42}, false)
	inv := s.call(context.Background(), d, map[string]any{"arg0": "pod"}, false)

	if !inv.OK() {
		t.Fatalf("unexpected failure: %v", inv.Failure)
	}
	if api.listCalls != 1 {
		t.Errorf("underlying calls = %d, want 1", api.listCalls)
	}
}

func TestDenyPatternHidesTool(t *testing.T) {
	api := &inventoryAPI{}
	s, _ := newTestServer(t, api, policy.Config{
		DenyPatterns:   []string{"inventory.List*"},
		AllowDangerous: true,
	}, nil)

	// ListItems denied, DeleteItem allowed.
	if s.RegisteredTools() != 1 {
		t.Errorf("registered tools = %d, want 1", s.RegisteredTools())
	}
}

func TestDryRunNeverCached(t *testing.T) {
	api := &inventoryAPI{}
	s, cat := newTestServer(t, api, policy.Config{DryRun: true}, nil)
	d := get(t, cat, "inventory.DeleteItem")
	args := map[string]any{"arg0": "item-9"}

	first := s.call(context.Background(), d, args, true)
	second := s.call(context.Background(), d, args, true)

	if !first.DryRun || !second.DryRun {
		t.Fatal("both calls should be dry runs")
	}
	if s.deps.Cache.Len() != 0 {
		t.Errorf("cache size = %d, want 0", s.deps.Cache.Len())
	}
}

func TestServerInfoToolRegistered(t *testing.T) {
	api := &inventoryAPI{}
	s, _ := newTestServer(t, api, policy.Config{}, nil)

	tools := s.MCPServer()
	if tools == nil {
		t.Fatal("MCP server not initialized")
	}
	// server_info and cache_clear ride alongside the catalog tools.
	if s.RegisteredTools() != 1 {
		t.Errorf("catalog tools = %d, want 1", s.RegisteredTools())
	}
}

func TestPartialPaginationFailureKeepsItems(t *testing.T) {
	// A failure mid-collection surfaces both the items and the error on the
	// wire, so the outer handler must encode it as a non-error payload.
	inv := result.Success([]any{map[string]any{"id": "a"}})
	inv.PagesFetched = 2
	inv.Failure = result.NewFailure(result.KindTransientFailure, result.OriginPagination, "page 2 failed")

	res, err := inv.ToMCPResult()
	if err != nil {
		t.Fatalf("ToMCPResult: %v", err)
	}
	if res.IsError {
		t.Error("partial result must not be a bare error result")
	}
}

type auditAPI struct{}

func (auditAPI) ListEvents(ctx context.Context) ([]string, error) { return nil, nil }
func (auditAPI) GetEvent(ctx context.Context, id string) (string, error) {
	return "", nil
}

func TestReloadSwapsCatalog(t *testing.T) {
	api := &inventoryAPI{}
	s, _ := newTestServer(t, api, policy.Config{}, nil)
	if s.RegisteredTools() != 1 {
		t.Fatalf("registered tools = %d, want 1", s.RegisteredTools())
	}

	next := catalog.New()
	if err := catalog.Build(next, "audit", auditAPI{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := s.Reload(next, nil); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if s.RegisteredTools() != 2 {
		t.Errorf("registered tools after reload = %d, want 2", s.RegisteredTools())
	}
	if got := s.deps.Catalog.Families(); len(got) != 1 || got[0] != "audit" {
		t.Errorf("families after reload = %v, want [audit]", got)
	}
}

func TestToolNamesValid(t *testing.T) {
	api := &inventoryAPI{}
	_, cat := newTestServer(t, api, policy.Config{AllowDangerous: true}, nil)

	for _, name := range cat.Names() {
		if !catalog.ValidName(name) {
			t.Errorf("cataloged name %q is not a valid tool name", name)
		}
		if strings.ContainsAny(name, " /") {
			t.Errorf("name %q contains forbidden characters", name)
		}
	}
}
