package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/learitecnico/learion-glass-sub002/internal/config"
)

// Resolver orchestrates broadcast discovery with an active health probe
// against the last-known companion address. The resolved endpoint is cached
// for the process lifetime; a fresh resolution only happens on explicit
// Invalidate.
type Resolver struct {
	client     *Client
	discovery  config.DiscoveryConfig
	fallback   config.FallbackConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	cached *CompanionInfo

	// Counters; hasCached mirrors cached so GetStats does not contend
	// with an in-flight Resolve
	attempts     uint64
	discovered   uint64
	fallbackHits uint64
	failures     uint64
	cacheHits    uint64
	hasCached    bool
	countersMu   sync.RWMutex
}

// ResolverStats represents resolver statistics
type ResolverStats struct {
	Attempts     uint64 `json:"attempts"`
	Discovered   uint64 `json:"discovered"`
	FallbackHits uint64 `json:"fallback_hits"`
	Failures     uint64 `json:"failures"`
	CacheHits    uint64 `json:"cache_hits"`
	Cached       bool   `json:"cached"`
}

// NewResolver creates a resolver over the given discovery client
func NewResolver(client *Client, discoveryCfg config.DiscoveryConfig, fallbackCfg config.FallbackConfig, logger *slog.Logger) *Resolver {
	return &Resolver{
		client:    client,
		discovery: discoveryCfg,
		fallback:  fallbackCfg,
		logger:    logger,
		httpClient: &http.Client{
			Timeout: fallbackCfg.GetProbeTimeoutDuration(),
		},
	}
}

// Resolve returns the companion endpoint, trying broadcast discovery first
// and the fallback health probe second. Retry and backoff policy belong to
// the caller.
func (r *Resolver) Resolve(ctx context.Context) (*CompanionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		r.countersMu.Lock()
		r.cacheHits++
		r.countersMu.Unlock()
		return r.cached, nil
	}

	r.countersMu.Lock()
	r.attempts++
	r.countersMu.Unlock()

	info, err := r.client.Discover(ctx, r.discovery.GetTimeoutDuration())
	if err == nil {
		r.countersMu.Lock()
		r.discovered++
		r.hasCached = true
		r.countersMu.Unlock()

		r.cached = info
		return info, nil
	}

	// ErrInProgress wraps ErrNotFound, so both fail-fast and timeout misses
	// skip the warning
	if !errors.Is(err, ErrNotFound) {
		r.logger.Warn("Broadcast discovery failed", slog.String("error", err.Error()))
	}

	info, probeErr := r.probeFallback(ctx)
	if probeErr == nil {
		r.countersMu.Lock()
		r.fallbackHits++
		r.hasCached = true
		r.countersMu.Unlock()

		r.logger.Info("Companion confirmed via fallback health probe",
			slog.String("host", info.Host),
			slog.Int("port", info.Port),
		)
		r.cached = info
		return info, nil
	}

	r.countersMu.Lock()
	r.failures++
	r.countersMu.Unlock()

	r.logger.Info("Companion resolution failed",
		slog.String("discovery_error", err.Error()),
		slog.String("probe_error", probeErr.Error()),
	)
	return nil, ErrNotFound
}

// probeFallback issues a short-timeout request against the last-known
// address's health endpoint. Only 200 OK counts as confirmation.
func (r *Resolver) probeFallback(ctx context.Context) (*CompanionInfo, error) {
	url := fmt.Sprintf("http://%s:%d%s", r.fallback.Host, r.fallback.HealthPort, r.fallback.HealthPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create health probe request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}

	return &CompanionInfo{
		Host:      r.fallback.Host,
		Port:      r.fallback.Port,
		Name:      "fallback",
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Invalidate clears the cached endpoint, forcing the next Resolve to run a
// fresh discovery session
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		r.logger.Info("Invalidating cached companion endpoint",
			slog.String("host", r.cached.Host),
		)
		r.cached = nil
		r.countersMu.Lock()
		r.hasCached = false
		r.countersMu.Unlock()
	}
}

// Cached returns the cached endpoint, or nil when unresolved
func (r *Resolver) Cached() *CompanionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cached
}

// GetStats returns current resolver statistics
func (r *Resolver) GetStats() ResolverStats {
	r.countersMu.RLock()
	defer r.countersMu.RUnlock()

	return ResolverStats{
		Attempts:     r.attempts,
		Discovered:   r.discovered,
		FallbackHits: r.fallbackHits,
		Failures:     r.failures,
		CacheHits:    r.cacheHits,
		Cached:       r.hasCached,
	}
}
