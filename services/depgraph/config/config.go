// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the depgraph configuration file.
//
// Configuration is read from depgraph.config.yaml at the project root. A
// missing file is not an error: every field has a default, and a project
// that never ships a config file runs on defaults alone. Environment
// variables prefixed ALEUTIAN_DEPGRAPH_ override both defaults and file
// values, so containerized deployments can reconfigure without editing
// files.
//
// # Thread Safety
//
// A loaded Config is immutable by convention; callers must not mutate it
// after handing it to other components.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

var configTracer = otel.Tracer("aleutian.depgraph.config")

// FileName is the config file looked up at the project root.
const FileName = "depgraph.config.yaml"

// MaxConfigFileSize caps the config file at 1 MiB. Anything larger is
// rejected rather than parsed.
const MaxConfigFileSize = 1 << 20

// EnvPrefix is the prefix shared by all override variables.
const EnvPrefix = "ALEUTIAN_DEPGRAPH_"

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the full depgraph configuration.
type Config struct {
	// Server configures the HTTP service started by `depgraph serve`.
	Server ServerConfig `yaml:"server"`

	// Build sets traversal defaults used when a request omits them.
	Build BuildConfig `yaml:"build"`

	// Snapshots configures the badger-backed snapshot store.
	Snapshots SnapshotConfig `yaml:"snapshots"`

	// Telemetry selects trace and metric exporters.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging controls the slog handler.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`

	// Port is the listen port.
	Port int `yaml:"port"`

	// BuildRateLimit is the sustained requests-per-second budget for the
	// graph build endpoints. Builds walk the file tree and are the most
	// expensive operations the service exposes.
	BuildRateLimit float64 `yaml:"build_rate_limit"`

	// BuildRateBurst is the burst allowance on top of BuildRateLimit.
	BuildRateBurst int `yaml:"build_rate_burst"`
}

// BuildConfig sets traversal defaults.
type BuildConfig struct {
	// MaxDepth is the default recursion bound when a request omits one.
	MaxDepth int `yaml:"max_depth"`

	// Direction is the default traversal direction: up, down, or both.
	Direction string `yaml:"direction"`

	// MaxImplementationFiles caps the candidate files scanned during an
	// implementation search.
	MaxImplementationFiles int `yaml:"max_implementation_files"`

	// Excludes lists directory names skipped during workspace scans, in
	// addition to the built-in defaults (.git, node_modules, vendor...).
	Excludes []string `yaml:"excludes"`
}

// SnapshotConfig configures snapshot persistence.
type SnapshotConfig struct {
	// Enabled turns the snapshot store on. When false the service runs
	// without persistence and the snapshot endpoints answer 503.
	Enabled bool `yaml:"enabled"`

	// Dir is the badger database directory, relative to the project root
	// unless absolute.
	Dir string `yaml:"dir"`
}

// TelemetryConfig selects exporters for the OTel bootstrap.
type TelemetryConfig struct {
	// ServiceName identifies this process in traces and metrics.
	ServiceName string `yaml:"service_name"`

	// Environment names the deployment environment.
	Environment string `yaml:"environment"`

	// TraceExporter is one of "otlp", "stdout", or "none".
	TraceExporter string `yaml:"trace_exporter"`

	// MetricExporter is one of "prometheus", "stdout", or "none".
	MetricExporter string `yaml:"metric_exporter"`

	// OTLPEndpoint is the OTLP gRPC receiver for traces.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// LoggingConfig controls the slog handler built at startup.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8180,
			BuildRateLimit: 4,
			BuildRateBurst: 8,
		},
		Build: BuildConfig{
			MaxDepth:               5,
			Direction:              "down",
			MaxImplementationFiles: 20,
		},
		Snapshots: SnapshotConfig{
			Enabled: true,
			Dir:     ".depgraph/snapshots",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "depgraph",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads the config file at projectRoot, applies environment overrides,
// and validates the result.
//
// Description:
//
//	Looks for depgraph.config.yaml under projectRoot. A missing file yields
//	the defaults; a present but malformed file is an error. Environment
//	variables (ALEUTIAN_DEPGRAPH_*) are applied after the file so they win
//	in both cases.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	projectRoot - Directory containing the config file. Empty means the
//	   current working directory.
//
// Outputs:
//
//	*Config - The validated configuration. Never nil on success.
//	error - Non-nil if reading, parsing, or validation failed.
func Load(ctx context.Context, projectRoot string) (*Config, error) {
	if ctx == nil {
		return nil, fmt.Errorf("config.Load: ctx must not be nil")
	}
	_, span := configTracer.Start(ctx, "config.Load")
	defer span.End()

	if projectRoot == "" {
		projectRoot = "."
	}
	path := filepath.Join(projectRoot, FileName)

	cfg := DefaultConfig()
	fromFile := false

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) > MaxConfigFileSize {
			return nil, fmt.Errorf("config.Load: %s exceeds maximum size (%d > %d)", FileName, len(data), MaxConfigFileSize)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parsing %s: %w", path, err)
		}
		fromFile = true
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("config.Load: reading %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("config.from_file", fromFile),
		attribute.Int("config.server_port", cfg.Server.Port),
		attribute.String("config.direction", cfg.Build.Direction),
		attribute.Bool("config.snapshots_enabled", cfg.Snapshots.Enabled),
	)

	return cfg, nil
}

// Parse builds a Config from raw YAML without touching the filesystem or
// environment. Used by tests and by the init wizard preview.
func Parse(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("config.Parse: empty YAML data")
	}
	if len(data) > MaxConfigFileSize {
		return nil, fmt.Errorf("config.Parse: YAML data exceeds maximum size (%d > %d)", len(data), MaxConfigFileSize)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: parsing YAML: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Parse: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// Environment Overrides
// =============================================================================

// applyEnvOverrides applies ALEUTIAN_DEPGRAPH_* variables onto cfg. Unset or
// empty variables leave the existing value alone; unparseable numeric values
// are ignored rather than fatal.
func applyEnvOverrides(cfg *Config) {
	if v := envValue("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := envValue("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := envValue("MAX_DEPTH"); v != "" {
		if depth, err := strconv.Atoi(v); err == nil {
			cfg.Build.MaxDepth = depth
		}
	}
	if v := envValue("DIRECTION"); v != "" {
		cfg.Build.Direction = v
	}
	if v := envValue("SNAPSHOT_DIR"); v != "" {
		cfg.Snapshots.Dir = v
	}
	if v := envValue("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := envValue("TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.TraceExporter = v
	}
	if v := envValue("METRIC_EXPORTER"); v != "" {
		cfg.Telemetry.MetricExporter = v
	}
	if v := envValue("OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

func envValue(suffix string) string {
	return os.Getenv(EnvPrefix + suffix)
}

// normalize lowercases enum-like fields so validation and consumers can
// compare exactly.
func (c *Config) normalize() {
	c.Build.Direction = strings.ToLower(strings.TrimSpace(c.Build.Direction))
	c.Telemetry.TraceExporter = strings.ToLower(strings.TrimSpace(c.Telemetry.TraceExporter))
	c.Telemetry.MetricExporter = strings.ToLower(strings.TrimSpace(c.Telemetry.MetricExporter))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks every field against its allowed range. The returned error
// names the offending field in config-file notation (section.key).
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.BuildRateLimit <= 0 {
		return fmt.Errorf("server.build_rate_limit: must be positive, got %v", c.Server.BuildRateLimit)
	}
	if c.Server.BuildRateBurst < 1 {
		return fmt.Errorf("server.build_rate_burst: must be at least 1, got %d", c.Server.BuildRateBurst)
	}
	if c.Build.MaxDepth < 1 {
		return fmt.Errorf("build.max_depth: must be at least 1, got %d", c.Build.MaxDepth)
	}
	if _, err := graph.ParseDirection(c.Build.Direction); err != nil {
		return fmt.Errorf("build.direction: %q is not up, down, or both", c.Build.Direction)
	}
	if c.Build.MaxImplementationFiles < 1 {
		return fmt.Errorf("build.max_implementation_files: must be at least 1, got %d", c.Build.MaxImplementationFiles)
	}
	if c.Snapshots.Enabled && c.Snapshots.Dir == "" {
		return fmt.Errorf("snapshots.dir: must not be empty when snapshots are enabled")
	}
	switch c.Telemetry.TraceExporter {
	case "otlp", "stdout", "none":
	default:
		return fmt.Errorf("telemetry.trace_exporter: %q is not otlp, stdout, or none", c.Telemetry.TraceExporter)
	}
	switch c.Telemetry.MetricExporter {
	case "prometheus", "stdout", "none":
	default:
		return fmt.Errorf("telemetry.metric_exporter: %q is not prometheus, stdout, or none", c.Telemetry.MetricExporter)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: %q is not debug, info, warn, or error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: %q is not text or json", c.Logging.Format)
	}
	return nil
}

// Direction returns the parsed default traversal direction. Validate
// guarantees this cannot fail on a loaded config.
func (c *Config) Direction() (graph.Direction, error) {
	return graph.ParseDirection(c.Build.Direction)
}

// SnapshotPath resolves the snapshot directory against projectRoot.
func (c *Config) SnapshotPath(projectRoot string) string {
	if c.Snapshots.Dir == "" || filepath.IsAbs(c.Snapshots.Dir) {
		return c.Snapshots.Dir
	}
	return filepath.Join(projectRoot, c.Snapshots.Dir)
}

// Addr formats the server bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Logger builds a slog.Logger per the logging section, writing to w.
func (lc LoggingConfig) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
