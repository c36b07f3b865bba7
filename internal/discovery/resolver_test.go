package discovery

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/learitecnico/learion-glass-sub002/internal/config"
)

func testResolver(t *testing.T, healthStatus int) (*Resolver, *httptest.Server) {
	t.Helper()

	health := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(healthStatus)
	}))
	t.Cleanup(health.Close)

	host, portStr, err := net.SplitHostPort(health.Listener.Addr().String())
	if err != nil {
		t.Fatalf("failed to split health server address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	discoveryCfg := *testDiscoveryConfig(freeUDPPort(t))
	discoveryCfg.Timeout = 0.2

	fallbackCfg := config.FallbackConfig{
		Host:         host,
		Port:         3001,
		HealthPort:   port,
		HealthPath:   "/health",
		ProbeTimeout: 1.0,
	}

	client := NewClient(&discoveryCfg, testLogger())
	return NewResolver(client, discoveryCfg, fallbackCfg, testLogger()), health
}

func TestResolveFallbackSuccess(t *testing.T) {
	resolver, _ := testResolver(t, http.StatusOK)

	info, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if info.Port != 3001 {
		t.Errorf("expected fallback companion port 3001, got %d", info.Port)
	}
	if info.Name != "fallback" {
		t.Errorf("expected name 'fallback', got %s", info.Name)
	}

	stats := resolver.GetStats()
	if stats.FallbackHits != 1 {
		t.Errorf("expected 1 fallback hit, got %d", stats.FallbackHits)
	}
	if stats.Discovered != 0 {
		t.Errorf("expected 0 broadcast discoveries, got %d", stats.Discovered)
	}
}

func TestResolveFallbackNonOKStatus(t *testing.T) {
	resolver, _ := testResolver(t, http.StatusServiceUnavailable)

	_, err := resolver.Resolve(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stats := resolver.GetStats()
	if stats.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", stats.Failures)
	}
}

func TestResolveFallbackUnreachable(t *testing.T) {
	resolver, health := testResolver(t, http.StatusOK)
	health.Close()

	_, err := resolver.Resolve(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveCachesEndpoint(t *testing.T) {
	resolver, _ := testResolver(t, http.StatusOK)

	first, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	start := time.Now()
	second, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("cached resolve failed: %v", err)
	}

	if second != first {
		t.Error("expected the cached CompanionInfo to be returned")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("cached resolve should not hit the network, took %v", elapsed)
	}

	stats := resolver.GetStats()
	if stats.CacheHits != 1 {
		t.Errorf("expected 1 cache hit, got %d", stats.CacheHits)
	}
	if stats.Attempts != 1 {
		t.Errorf("expected 1 resolution attempt, got %d", stats.Attempts)
	}
}

func TestInvalidateForcesFreshResolution(t *testing.T) {
	resolver, _ := testResolver(t, http.StatusOK)

	if _, err := resolver.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	resolver.Invalidate()

	if resolver.Cached() != nil {
		t.Error("expected cache to be cleared")
	}

	if _, err := resolver.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve after invalidate failed: %v", err)
	}

	stats := resolver.GetStats()
	if stats.Attempts != 2 {
		t.Errorf("expected 2 resolution attempts, got %d", stats.Attempts)
	}
}
