// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package config handles the interpretation of the exporter configuration
// (with default behaviors) in one place: connection strings, environment
// variables and optional YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by FromEnv. The names are fixed by the
// Application Insights SDK family.
const (
	EnvConnectionString   = "APPLICATIONINSIGHTS_CONNECTION_STRING"
	EnvInstrumentationKey = "APPINSIGHTS_INSTRUMENTATIONKEY"
)

// DefaultIngestionEndpoint is used when the connection string carries no
// IngestionEndpoint field.
const DefaultIngestionEndpoint = "https://dc.services.visualstudio.com"

// DefaultTimeout bounds a single transmission call.
const DefaultTimeout = 10 * time.Second

// ErrMissingInstrumentationKey is returned when the config could not be
// validated due to a missing instrumentation key.
var ErrMissingInstrumentationKey = errors.New("you must specify an instrumentation key, either via a connection string or the " + EnvInstrumentationKey + " env var")

// ExporterConfig holds the resolved configuration of one exporter instance.
type ExporterConfig struct {
	InstrumentationKey string        `yaml:"instrumentation_key"`
	IngestionEndpoint  string        `yaml:"ingestion_endpoint"`
	StorageDir         string        `yaml:"storage_dir"`
	Timeout            time.Duration `yaml:"timeout"`
}

// New returns an ExporterConfig with every default applied and no
// instrumentation key. Callers must fill the key before use.
func New() *ExporterConfig {
	return &ExporterConfig{
		IngestionEndpoint: DefaultIngestionEndpoint,
		StorageDir:        filepath.Join(os.TempDir(), "azuremonitor-telemetry"),
		Timeout:           DefaultTimeout,
	}
}

// Validate returns an error when the config cannot produce a working
// exporter.
func (c *ExporterConfig) Validate() error {
	if c.InstrumentationKey == "" {
		return ErrMissingInstrumentationKey
	}
	return nil
}

// FromEnv builds a config from the process environment. A connection string
// takes precedence over the legacy instrumentation key variable.
func FromEnv() (*ExporterConfig, error) {
	if cs := os.Getenv(EnvConnectionString); cs != "" {
		return ParseConnectionString(cs)
	}
	cfg := New()
	cfg.InstrumentationKey = os.Getenv(EnvInstrumentationKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConnectionString interprets an Application Insights connection string
// of the form "InstrumentationKey=...;IngestionEndpoint=...". Unknown fields
// are ignored. Field names are case-insensitive.
func ParseConnectionString(cs string) (*ExporterConfig, error) {
	cfg := New()
	for _, pair := range strings.Split(cs, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid connection string segment %q", pair)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "instrumentationkey":
			cfg.InstrumentationKey = strings.TrimSpace(value)
		case "ingestionendpoint":
			cfg.IngestionEndpoint = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UnmarshalYAML overlays the decoded fields on top of whatever the receiver
// already holds, so defaults survive fields absent from the document.
// Timeouts are spelled as Go durations ("5s", "1m30s").
func (c *ExporterConfig) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		InstrumentationKey string `yaml:"instrumentation_key"`
		IngestionEndpoint  string `yaml:"ingestion_endpoint"`
		StorageDir         string `yaml:"storage_dir"`
		Timeout            string `yaml:"timeout"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	if raw.InstrumentationKey != "" {
		c.InstrumentationKey = raw.InstrumentationKey
	}
	if raw.IngestionEndpoint != "" {
		c.IngestionEndpoint = strings.TrimRight(raw.IngestionEndpoint, "/")
	}
	if raw.StorageDir != "" {
		c.StorageDir = raw.StorageDir
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", raw.Timeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// LoadFile reads a YAML config file and overlays it on the defaults. Missing
// fields keep their default value; the instrumentation key may still come
// from the environment afterwards, so it is not validated here.
func LoadFile(path string) (*ExporterConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := New()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}
