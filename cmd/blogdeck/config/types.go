// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/blogdeck/pkg/logging"
	"github.com/AleutianAI/blogdeck/services/blog/api"
	"github.com/AleutianAI/blogdeck/services/blog/notify"
	"github.com/AleutianAI/blogdeck/services/blog/telemetry"
	"github.com/AleutianAI/blogdeck/services/devserver"
)

// CurrentConfigVersion is written into new files.
const CurrentConfigVersion = "1"

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type BlogdeckConfig struct {
	Meta MetaConfig `yaml:"meta"`

	// API: where the blog backend lives
	API APIConfig `yaml:"api"`

	// Notifications: how long banners stay up
	Notifications notify.Delays `yaml:"notifications"`

	// Session: where the login survives between runs
	Session SessionConfig `yaml:"session"`

	Telemetry telemetry.Config `yaml:"telemetry"`

	// Server: the local development backend started by `blogdeck serve`
	Server devserver.Config `yaml:"server"`

	Logging LoggingConfig `yaml:"logging"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`        // e.g. http://localhost:8080/api
	Timeout       time.Duration `yaml:"timeout"`         // e.g. 15s
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 disables limiting
	Burst         int           `yaml:"burst"`
}

type SessionConfig struct {
	DataDir string `yaml:"data_dir"`

	// TTL forgets a stored login after this long. 0 keeps it until logout.
	TTL time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// SessionPath is the badger directory inside DataDir.
func (s SessionConfig) SessionPath() string {
	return filepath.Join(s.DataDir, "session")
}

// LoggerConfig converts the logging section for pkg/logging.
func (l LoggingConfig) LoggerConfig(service string) logging.Config {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		level = logging.LevelWarn
	}
	return logging.Config{
		Level:   level,
		LogDir:  l.Dir,
		Service: service,
		JSON:    l.JSON,
	}
}

// APIClientConfig converts the api section for api.NewClient.
func (a APIConfig) APIClientConfig() api.Config {
	return api.Config{
		BaseURL:       a.BaseURL,
		Timeout:       a.Timeout,
		RatePerSecond: a.RatePerSecond,
		Burst:         a.Burst,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".blogdeck"
	}
	return filepath.Join(home, ".blogdeck")
}

func DefaultConfig() BlogdeckConfig {
	tel := telemetry.DefaultConfig()
	return BlogdeckConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		API: APIConfig{
			BaseURL:       api.DefaultBaseURL,
			Timeout:       api.DefaultTimeout,
			RatePerSecond: 10,
			Burst:         5,
		},
		Notifications: notify.DefaultDelays(),
		Session: SessionConfig{
			DataDir: defaultDataDir(),
		},
		Telemetry: tel,
		Server: devserver.Config{
			Addr:            devserver.DefaultAddr,
			MaxConns:        4,
			TokenTTL:        24 * time.Hour,
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: "warn"},
	}
}

// Validate checks the values a run depends on.
func (c BlogdeckConfig) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q is not an absolute url", ErrInvalidConfig, c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("%w: api.timeout must not be negative", ErrInvalidConfig)
	}
	if c.API.RatePerSecond < 0 || c.API.Burst < 0 {
		return fmt.Errorf("%w: api rate limits must not be negative", ErrInvalidConfig)
	}
	if err := c.Notifications.Validate(); err != nil {
		return fmt.Errorf("%w: notifications: %w", ErrInvalidConfig, err)
	}
	if c.Session.DataDir == "" {
		return fmt.Errorf("%w: session.data_dir is required", ErrInvalidConfig)
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("%w: session.ttl must not be negative", ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %w", ErrInvalidConfig, err)
	}
	switch c.Telemetry.TraceExporter {
	case "", telemetry.ExporterNone, telemetry.ExporterOTLP, telemetry.ExporterStdout:
	default:
		return fmt.Errorf("%w: telemetry.trace_exporter %q", ErrInvalidConfig, c.Telemetry.TraceExporter)
	}
	switch c.Telemetry.MetricExporter {
	case "", telemetry.ExporterNone, telemetry.ExporterPrometheus, telemetry.ExporterStdout:
	default:
		return fmt.Errorf("%w: telemetry.metric_exporter %q", ErrInvalidConfig, c.Telemetry.MetricExporter)
	}
	return nil
}
