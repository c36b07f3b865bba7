package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learitecnico/learion-glass-sub002/internal/config"
	"github.com/learitecnico/learion-glass-sub002/internal/discovery"
	"github.com/learitecnico/learion-glass-sub002/internal/metrics"
	"github.com/learitecnico/learion-glass-sub002/internal/recognition"
	"github.com/learitecnico/learion-glass-sub002/internal/server"
	"github.com/learitecnico/learion-glass-sub002/internal/transcription"
	"github.com/learitecnico/learion-glass-sub002/internal/transport"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "companion-link"
	serviceVersion    = "1.0.0"

	// 100ms of 16kHz mono 16-bit PCM per frame
	frameBytes = 3200

	resolveRetryInterval = 5 * time.Second
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	dumpDir := flag.String("dump-dir", "", "Directory for utterance WAV dumps (disabled when empty)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("discovery_port", cfg.Discovery.Port),
		slog.String("fallback_host", cfg.Fallback.Host),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("queue_capacity", cfg.Recognition.QueueCapacity),
		slog.Int("send_buffer_capacity", cfg.Transport.SendBufferCapacity),
		slog.Bool("transcription_enabled", cfg.Transcription.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize discovery and endpoint resolution
	client := discovery.NewClient(&cfg.Discovery, logger)
	resolver := discovery.NewResolver(client, cfg.Discovery, cfg.Fallback, logger)

	// Initialize the recognition pipeline
	var transcriber *transcription.Client
	var engine recognition.Engine
	if cfg.Transcription.Enabled {
		transcriber, err = transcription.NewClient(&cfg.Transcription)
		if err != nil {
			logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		dump := *dumpDir
		if dump == "" {
			dump = cfg.Audio.DumpDir
		}
		engine = recognition.NewRemoteEngine(ctx, cfg, transcriber, dump, logger)
		logger.Info("Remote recognition engine initialized",
			slog.String("endpoint", cfg.Transcription.Endpoint),
		)
	} else {
		logger.Warn("Transcription disabled, recognition pipeline will stay idle")
	}

	var worker *recognition.Worker
	if engine != nil {
		worker = recognition.NewWorker(engine, &cfg.Recognition, logger)
	} else {
		worker = recognition.NewWorker(nullEngine{}, &cfg.Recognition, logger)
	}

	// Initialize the outbound channel transport
	tr := transport.NewTransport(&cfg.Transport, transport.Handlers{
		OnModelText: func(text string) {
			logger.Info("Companion model text", slog.Int("chars", len(text)))
		},
		OnCaptureSnapshot: func(quality int) {
			logger.Info("Snapshot capture requested, not supported headless",
				slog.Int("quality", quality))
		},
	}, logger)

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg, logger, resolver, worker, tr, transcriber, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Resolve the companion endpoint, retrying until found or interrupted
	info, err := resolveCompanion(ctx, resolver, appMetrics, logger)
	if err == nil {
		logger.Info("Companion resolved",
			slog.String("endpoint", info.Addr()),
			slog.String("name", info.Name),
		)

		url := fmt.Sprintf("ws://%s%s", info.Addr(), cfg.Transport.ChannelPath)
		if _, err := transport.DialWS(ctx, url, tr, logger); err != nil {
			logger.Error("Failed to connect channel", slog.String("error", err.Error()))
		}
	}

	// Start the recognition pipeline and forward results to the companion
	if engine != nil {
		results, err := worker.Start()
		if err != nil {
			logger.Error("Failed to start recognition worker", slog.String("error", err.Error()))
			os.Exit(1)
		}

		go forwardResults(results, tr, appMetrics, logger)
		go readFrames(ctx, os.Stdin, worker, appMetrics, logger)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")
	cancel()

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop the pipeline, then tear the channel down
	worker.Stop()
	tr.Dispose()

	workerStats := worker.GetStats()
	transportStats := tr.GetStats()
	logger.Info("Final statistics",
		slog.Uint64("frames_pushed", workerStats.FramesPushed),
		slog.Uint64("frames_processed", workerStats.FramesProcessed),
		slog.Uint64("finals_emitted", workerStats.FinalsEmitted),
		slog.Uint64("stoplist_dropped", workerStats.StoplistDropped),
		slog.Uint64("messages_sent", transportStats.MessagesSent),
		slog.Uint64("send_failures", transportStats.SendFailures),
	)

	logger.Info("Service stopped")
}

// nullEngine keeps the worker constructible when transcription is disabled.
type nullEngine struct{}

func (nullEngine) AcceptFrame([]byte) (bool, error) { return false, nil }
func (nullEngine) PartialResult() string            { return "" }
func (nullEngine) FinalResult() string              { return "" }
func (nullEngine) Reset()                           {}
func (nullEngine) Close() error                     { return nil }

// resolveCompanion retries endpoint resolution until it succeeds or the
// context is cancelled.
func resolveCompanion(ctx context.Context, resolver *discovery.Resolver, m *metrics.Metrics, logger *slog.Logger) (*discovery.CompanionInfo, error) {
	for {
		m.RecordDiscoveryAttempt()
		info, err := resolver.Resolve(ctx)
		if err == nil {
			m.RecordDiscoverySuccess()
			return info, nil
		}

		logger.Warn("Companion not found, retrying",
			slog.Duration("retry_in", resolveRetryInterval),
			slog.String("error", err.Error()),
		)
		m.RecordDiscoveryTimeout()

		select {
		case <-time.After(resolveRetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// forwardResults drains the recognition stream into the channel transport.
func forwardResults(results *recognition.Results, tr *transport.Transport, m *metrics.Metrics, logger *slog.Logger) {
	for results.Events != nil || results.Errors != nil {
		select {
		case ev, ok := <-results.Events:
			if !ok {
				results.Events = nil
				continue
			}
			m.RecordResult(ev.IsFinal)
			if !ev.IsFinal {
				continue
			}
			if err := tr.Send(transport.NewModelTextMessage(ev.Text)); err != nil {
				m.RecordSendFailure()
				logger.Warn("Failed to forward transcription", slog.String("error", err.Error()))
			} else {
				m.RecordMessageSent()
			}

		case err, ok := <-results.Errors:
			if !ok {
				results.Errors = nil
				continue
			}
			m.RecordEngineError()
			logger.Warn("Recognition error", slog.String("error", err.Error()))
		}
	}
}

// readFrames feeds PCM from the capture stream into the worker. The input
// is raw little-endian 16-bit mono audio, typically piped from arecord.
func readFrames(ctx context.Context, r io.Reader, worker *recognition.Worker, m *metrics.Metrics, logger *slog.Logger) {
	buf := make([]byte, frameBytes)
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if n%2 != 0 {
				n-- // trailing half-sample
			}
			frame := make([]byte, n)
			copy(frame, buf[:n])
			if err := worker.Push(frame); err != nil {
				logger.Info("Frame input stopped", slog.String("reason", err.Error()))
				return
			}
			m.RecordFramePushed()
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				logger.Warn("Capture stream read failed", slog.String("error", err.Error()))
			} else {
				logger.Info("Capture stream ended")
			}
			return
		}
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
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
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
