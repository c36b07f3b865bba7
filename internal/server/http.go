package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/learitecnico/learion-glass-sub002/internal/config"
	"github.com/learitecnico/learion-glass-sub002/internal/discovery"
	"github.com/learitecnico/learion-glass-sub002/internal/metrics"
	"github.com/learitecnico/learion-glass-sub002/internal/recognition"
	"github.com/learitecnico/learion-glass-sub002/internal/transcription"
	"github.com/learitecnico/learion-glass-sub002/internal/transport"
)

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	metrics *metrics.Metrics

	resolver    *discovery.Resolver
	worker      *recognition.Worker
	transport   *transport.Transport
	transcriber *transcription.Client // nil when transcription is disabled

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg *config.Config, logger *slog.Logger, resolver *discovery.Resolver,
	worker *recognition.Worker, tr *transport.Transport, transcriber *transcription.Client,
	m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		config:      cfg,
		metrics:     m,
		resolver:    resolver,
		worker:      worker,
		transport:   tr,
		transcriber: transcriber,
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "companion-link",
			"version": "1.0.0",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resolverStats := h.resolver.GetStats()
	workerStats := h.worker.GetStats()
	transportStats := h.transport.GetStats()

	status := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"components": map[string]interface{}{
			"resolver": map[string]interface{}{
				"cached_endpoint": resolverStats.Cached,
				"discovered":      resolverStats.Discovered,
				"fallback_hits":   resolverStats.FallbackHits,
				"failures":        resolverStats.Failures,
			},
			"worker": map[string]interface{}{
				"state":       workerStats.State,
				"queue_depth": workerStats.QueueDepth,
				"finals":      workerStats.FinalsEmitted,
				"partials":    workerStats.PartialsEmitted,
			},
			"transport": map[string]interface{}{
				"state":    transportStats.State,
				"buffered": transportStats.Buffered,
				"sent":     transportStats.MessagesSent,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"discovery": map[string]interface{}{
			"port":             h.config.Discovery.Port,
			"probe_marker":     h.config.Discovery.ProbeMarker,
			"timeout":          h.config.Discovery.Timeout,
			"receive_interval": h.config.Discovery.ReceiveInterval,
		},
		"fallback": map[string]interface{}{
			"host":        h.config.Fallback.Host,
			"health_port": h.config.Fallback.HealthPort,
			"health_path": h.config.Fallback.HealthPath,
		},
		"audio": map[string]interface{}{
			"sample_rate": h.config.Audio.SampleRate,
			"channels":    h.config.Audio.Channels,
			"bit_depth":   h.config.Audio.BitDepth,
		},
		"recognition": map[string]interface{}{
			"queue_capacity":       h.config.Recognition.QueueCapacity,
			"speech_threshold":     h.config.Recognition.SpeechThreshold,
			"min_speech_duration":  h.config.Recognition.MinSpeechDuration,
			"min_silence_duration": h.config.Recognition.MinSilenceDuration,
			"max_utterance":        h.config.Recognition.MaxUtterance,
			"stoplist_size":        len(h.config.Recognition.Stoplist),
		},
		"transcription": map[string]interface{}{
			"enabled":        h.config.Transcription.Enabled,
			"endpoint":       h.config.Transcription.Endpoint,
			"timeout":        h.config.Transcription.Timeout,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			// Note: API key is intentionally omitted for security
		},
		"transport": map[string]interface{}{
			"send_buffer_capacity": h.config.Transport.SendBufferCapacity,
			"channel_path":         h.config.Transport.ChannelPath,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"resolver":  h.resolver.GetStats(),
		"worker":    h.worker.GetStats(),
		"transport": h.transport.GetStats(),
	}
	if h.transcriber != nil {
		stats["transcription"] = h.transcriber.GetStats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Companion Link Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"GET /health":  "Service health check",
			"GET /status":  "Component status summary",
			"GET /config":  "Get service configuration",
			"GET /stats":   "Get component statistics",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
