package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete companion link configuration
type Config struct {
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Fallback      FallbackConfig      `yaml:"fallback"`
	Audio         AudioConfig         `yaml:"audio"`
	Recognition   RecognitionConfig   `yaml:"recognition"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Transport     TransportConfig     `yaml:"transport"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// DiscoveryConfig contains UDP broadcast discovery parameters
type DiscoveryConfig struct {
	Port            int     `yaml:"port"`
	ProbeMarker     string  `yaml:"probe_marker"`
	Timeout         float64 `yaml:"timeout"`          // seconds, total listen window
	ReceiveInterval float64 `yaml:"receive_interval"` // seconds, per-read deadline
}

// FallbackConfig contains the last-known companion address probed when
// broadcast discovery comes up empty
type FallbackConfig struct {
	Host         string  `yaml:"host"`
	Port         int     `yaml:"port"`        // companion channel port
	HealthPort   int     `yaml:"health_port"` // companion health endpoint port
	HealthPath   string  `yaml:"health_path"`
	ProbeTimeout float64 `yaml:"probe_timeout"` // seconds
}

// AudioConfig contains capture format parameters
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	BitDepth   int    `yaml:"bit_depth"`
	DumpDir    string `yaml:"dump_dir"` // optional WAV dump of finalized utterances
}

// RecognitionConfig contains the ingestion pipeline parameters
type RecognitionConfig struct {
	QueueCapacity      int      `yaml:"queue_capacity"`
	StopGrace          float64  `yaml:"stop_grace"`           // seconds
	SpeechThreshold    float64  `yaml:"speech_threshold"`     // normalized RMS energy, 0..1
	MinSpeechDuration  float64  `yaml:"min_speech_duration"`  // seconds
	MinSilenceDuration float64  `yaml:"min_silence_duration"` // seconds
	MaxUtterance       float64  `yaml:"max_utterance"`        // seconds
	Stoplist           []string `yaml:"stoplist"`
}

// TranscriptionConfig contains the remote transcription API configuration
type TranscriptionConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	OutputFormat  string `yaml:"output_format"`
	Language      string `yaml:"language"`
	Model         string `yaml:"model"`
}

// TransportConfig contains the ordered channel parameters
type TransportConfig struct {
	SendBufferCapacity int    `yaml:"send_buffer_capacity"`
	ChannelPath        string `yaml:"channel_path"`
}

// HTTPConfig contains the local status API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration with built-in defaults so the binary can
// run without a config file
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Port:            3002,
			ProbeMarker:     "LEARION_DISCOVER",
			Timeout:         3.0,
			ReceiveInterval: 0.25,
		},
		Fallback: FallbackConfig{
			Host:         "127.0.0.1",
			Port:         3001,
			HealthPort:   3001,
			HealthPath:   "/health",
			ProbeTimeout: 1.5,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
		},
		Recognition: RecognitionConfig{
			QueueCapacity:      64,
			StopGrace:          2.0,
			SpeechThreshold:    0.02,
			MinSpeechDuration:  0.3,
			MinSilenceDuration: 0.6,
			MaxUtterance:       30.0,
			Stoplist:           []string{"the", "a", "it", "uh", "um", "huh"},
		},
		Transcription: TranscriptionConfig{
			Enabled:       false,
			Timeout:       30,
			MaxRetries:    3,
			MaxConcurrent: 4,
			OutputFormat:  "json",
		},
		Transport: TransportConfig{
			SendBufferCapacity: 256,
			ChannelPath:        "/channel",
		},
		HTTP: HTTPConfig{
			Port:    8089,
			Address: "127.0.0.1",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}

	if err := c.Fallback.Validate(); err != nil {
		return fmt.Errorf("fallback config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Recognition.Validate(); err != nil {
		return fmt.Errorf("recognition config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates discovery configuration
func (d *DiscoveryConfig) Validate() error {
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", d.Port)
	}

	if strings.TrimSpace(d.ProbeMarker) == "" {
		return fmt.Errorf("probe_marker cannot be empty")
	}

	if d.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %f", d.Timeout)
	}

	if d.ReceiveInterval <= 0 || d.ReceiveInterval > d.Timeout {
		return fmt.Errorf("receive_interval must be positive and not exceed timeout, got %f", d.ReceiveInterval)
	}

	return nil
}

// Validate validates fallback configuration
func (f *FallbackConfig) Validate() error {
	if f.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if f.Port < 1 || f.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", f.Port)
	}

	if f.HealthPort < 1 || f.HealthPort > 65535 {
		return fmt.Errorf("health_port must be between 1 and 65535, got %d", f.HealthPort)
	}

	if !strings.HasPrefix(f.HealthPath, "/") {
		return fmt.Errorf("health_path must start with '/', got '%s'", f.HealthPath)
	}

	if f.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %f", f.ProbeTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for the recognizer, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	return nil
}

// Validate validates recognition configuration
func (r *RecognitionConfig) Validate() error {
	if r.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", r.QueueCapacity)
	}

	if r.StopGrace <= 0 {
		return fmt.Errorf("stop_grace must be positive, got %f", r.StopGrace)
	}

	if r.SpeechThreshold <= 0 || r.SpeechThreshold >= 1 {
		return fmt.Errorf("speech_threshold must be between 0 and 1 (exclusive), got %f", r.SpeechThreshold)
	}

	if r.MinSpeechDuration <= 0 {
		return fmt.Errorf("min_speech_duration must be positive, got %f", r.MinSpeechDuration)
	}

	if r.MinSilenceDuration <= 0 {
		return fmt.Errorf("min_silence_duration must be positive, got %f", r.MinSilenceDuration)
	}

	if r.MaxUtterance <= r.MinSpeechDuration {
		return fmt.Errorf("max_utterance (%f) must be greater than min_speech_duration (%f)",
			r.MaxUtterance, r.MinSpeechDuration)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if !t.Enabled {
		return nil
	}

	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when transcription is enabled")
	}

	if t.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty when transcription is enabled")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[t.OutputFormat] {
		return fmt.Errorf("output_format must be 'json' or 'text', got '%s'", t.OutputFormat)
	}

	return nil
}

// Validate validates transport configuration
func (t *TransportConfig) Validate() error {
	if t.SendBufferCapacity < 1 {
		return fmt.Errorf("send_buffer_capacity must be at least 1, got %d", t.SendBufferCapacity)
	}

	if !strings.HasPrefix(t.ChannelPath, "/") {
		return fmt.Errorf("channel_path must start with '/', got '%s'", t.ChannelPath)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the discovery listen window as a time.Duration
func (d *DiscoveryConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(d.Timeout * float64(time.Second))
}

// GetReceiveIntervalDuration returns the per-read deadline as a time.Duration
func (d *DiscoveryConfig) GetReceiveIntervalDuration() time.Duration {
	return time.Duration(d.ReceiveInterval * float64(time.Second))
}

// GetProbeTimeoutDuration returns the health probe timeout as a time.Duration
func (f *FallbackConfig) GetProbeTimeoutDuration() time.Duration {
	return time.Duration(f.ProbeTimeout * float64(time.Second))
}

// GetStopGraceDuration returns the worker stop grace period as a time.Duration
func (r *RecognitionConfig) GetStopGraceDuration() time.Duration {
	return time.Duration(r.StopGrace * float64(time.Second))
}

// GetMinSpeechDuration returns the minimum speech duration as a time.Duration
func (r *RecognitionConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(r.MinSpeechDuration * float64(time.Second))
}

// GetMinSilenceDuration returns the minimum silence duration as a time.Duration
func (r *RecognitionConfig) GetMinSilenceDuration() time.Duration {
	return time.Duration(r.MinSilenceDuration * float64(time.Second))
}

// GetMaxUtteranceDuration returns the utterance length cap as a time.Duration
func (r *RecognitionConfig) GetMaxUtteranceDuration() time.Duration {
	return time.Duration(r.MaxUtterance * float64(time.Second))
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
