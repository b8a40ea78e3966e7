// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the contract service configuration.
package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed defaults.yaml
var defaultsYAML []byte

// MaxConfigSize is the largest configuration file Load accepts.
const MaxConfigSize = 1 << 20

// Environment variables that override the file.
const (
	EnvCatalog  = "CONTRACT_CATALOG"
	EnvAddr     = "CONTRACT_ADDR"
	EnvLogLevel = "CONTRACT_LOG_LEVEL"
)

// DefaultDebounce is used when catalog.debounce is missing or not positive.
const DefaultDebounce = 500 * time.Millisecond

var tracer = otel.Tracer("contract.config")

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the complete service configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// CatalogConfig locates the catalog document.
type CatalogConfig struct {
	// Path is the YAML catalog document. Overridden by CONTRACT_CATALOG.
	Path string `yaml:"path"`

	// MaxTypes bounds the number of declared types.
	MaxTypes int `yaml:"max_types" validate:"min=1"`

	// Watch reloads the catalog when the file changes.
	Watch bool `yaml:"watch"`

	// Debounce is how long a burst of file events must settle before a
	// reload.
	Debounce time.Duration `yaml:"debounce"`
}

// AnalyzerConfig configures analysis.
type AnalyzerConfig struct {
	// Inherit includes interface and base declarations.
	Inherit bool `yaml:"inherit"`

	// DropInapplicable removes misapplied annotations from results and
	// reports them as diagnostics.
	DropInapplicable bool `yaml:"drop_inapplicable"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address. Overridden by CONTRACT_ADDR.
	Addr string `yaml:"addr" validate:"required"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ReloadsPerMinute limits POST /reload. Zero disables the limit.
	ReloadsPerMinute int `yaml:"reloads_per_minute" validate:"min=0"`
}

// StoreConfig configures the persistent report store.
type StoreConfig struct {
	// Path is the BadgerDB directory. Empty disables the store.
	Path string `yaml:"path"`

	// TTL is how long a stored report stays readable.
	TTL time.Duration `yaml:"ttl"`
}

// LogConfig configures slog.
type LogConfig struct {
	// Level is debug, info, warn or error. Overridden by CONTRACT_LOG_LEVEL.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is text, json or auto (text on a terminal, json otherwise).
	Format string `yaml:"format" validate:"oneof=auto text json"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// OTLPEndpoint is the OTLP/gRPC collector address. Empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"omitempty,hostname_port"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`
}

// SlogLevel returns the configured level as a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded defaults with environment overrides applied.
func Default(ctx context.Context) (*Config, error) {
	return Load(ctx, nil)
}

// LoadFile reads path and calls Load.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}
	return Load(ctx, data)
}

// Load builds a Config from the embedded defaults, data and the environment.
//
// Description:
//
//	The embedded defaults are decoded first and data is decoded over them,
//	so data only needs the keys it changes. Unknown keys are rejected.
//	CONTRACT_CATALOG, CONTRACT_ADDR and CONTRACT_LOG_LEVEL then override
//	the result, which is validated.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - YAML overrides. May be empty.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil if parsing or validation fails.
func Load(ctx context.Context, data []byte) (*Config, error) {
	_, span := tracer.Start(ctx, "config.Load")
	defer span.End()

	if len(data) > MaxConfigSize {
		return nil, fmt.Errorf("Load: YAML data exceeds maximum size (%d > %d)", len(data), MaxConfigSize)
	}

	var cfg Config
	if err := decode(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("Load: parsing defaults: %w", err)
	}
	if err := decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("Load: parsing YAML: %w", err)
	}

	applyEnv(&cfg)
	if cfg.Catalog.Debounce <= 0 {
		cfg.Catalog.Debounce = DefaultDebounce
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("Load: validation: %w", err)
	}

	span.SetAttributes(
		attribute.String("catalog.path", cfg.Catalog.Path),
		attribute.Bool("catalog.watch", cfg.Catalog.Watch),
		attribute.String("server.addr", cfg.Server.Addr),
	)
	return &cfg, nil
}

// decode overlays data onto cfg. Empty documents leave cfg unchanged.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvCatalog); ok {
		cfg.Catalog.Path = v
	}
	if v, ok := os.LookupEnv(EnvAddr); ok && v != "" {
		cfg.Server.Addr = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
}
