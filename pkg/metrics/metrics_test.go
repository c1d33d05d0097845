package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCall(t *testing.T) {
	m := New()
	m.ObserveCall("k8s.ListPods", "success", 50*time.Millisecond)
	m.ObserveCall("k8s.ListPods", "success", 80*time.Millisecond)
	m.ObserveCall("k8s.ListPods", "timeout", time.Second)

	if got := testutil.ToFloat64(m.CallsTotal.WithLabelValues("k8s.ListPods", "success")); got != 2 {
		t.Errorf("success calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CallsTotal.WithLabelValues("k8s.ListPods", "timeout")); got != 1 {
		t.Errorf("timeout calls = %v, want 1", got)
	}
}

func TestCacheCounters(t *testing.T) {
	m := New()
	m.IncCacheHit()
	m.IncCacheHit()
	m.IncCacheMiss()

	if got := testutil.ToFloat64(m.CacheHitsTotal); got != 2 {
		t.Errorf("cache hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheMissesTotal); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
}

func TestPrivateRegistriesIndependent(t *testing.T) {
	a, b := New(), New()
	a.IncPolicyDenial("x.Delete")

	if got := testutil.ToFloat64(b.PolicyDenialsTotal.WithLabelValues("x.Delete")); got != 0 {
		t.Errorf("second registry saw %v denials, want 0", got)
	}
}

func TestSetCatalogSize(t *testing.T) {
	m := New()
	m.SetCatalogSize(map[string]int{"k8s": 12, "github": 7}, 3)

	if got := testutil.ToFloat64(m.CatalogTools.WithLabelValues("k8s")); got != 12 {
		t.Errorf("k8s tools = %v, want 12", got)
	}
	if got := testutil.ToFloat64(m.CatalogDiagnostics); got != 3 {
		t.Errorf("diagnostics = %v, want 3", got)
	}
}
