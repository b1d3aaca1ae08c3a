// Package config loads pdfview settings from a YAML file with PDFVIEW_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/wudi/pdfviewer/observability"
	"github.com/wudi/pdfviewer/parser"
	"github.com/wudi/pdfviewer/recovery"
	"github.com/wudi/pdfviewer/security"
	"github.com/wudi/pdfviewer/source"
	"github.com/wudi/pdfviewer/viewer"
)

const EnvPrefix = "PDFVIEW_"

func DefaultConfig() *Config {
	limits := security.DefaultLimits()
	src := source.DefaultConfig()
	return &Config{
		Viewer: ViewerConfig{
			Width:            800,
			MaxSurfacePixels: limits.MaxSurfacePixels,
			ScriptTimeout:    2 * time.Second,
		},
		Source: SourceConfig{
			Timeout:        src.Timeout,
			MaxBytes:       src.MaxBytes,
			AllowedSchemes: src.AllowedSchemes,
			UserAgent:      src.UserAgent,
		},
		Parser: ParserConfig{
			Recovery:            "lenient",
			MaxDecompressedSize: limits.MaxDecompressedSize,
			MaxXObjectDepth:     limits.MaxXObjectDepth,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			TicketTTL:   15 * time.Minute,
			MaxSessions: 64,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PDFVIEW_SOURCE_TIMEOUT -> source.timeout).
// A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// envKey maps PDFVIEW_SERVER_TICKET_SECRET to server.ticket_secret: the
// first segment is the section.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

var validRecovery = map[string]bool{"strict": true, "lenient": true}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Viewer.Width < 0 {
		return fmt.Errorf("viewer.width must be non-negative")
	}
	if c.Viewer.MaxSurfacePixels <= 0 {
		return fmt.Errorf("viewer.max_surface_pixels must be positive")
	}
	for _, k := range c.Viewer.BlockedKeys {
		if _, err := viewer.ParseKeyCombo(k); err != nil {
			return fmt.Errorf("viewer.blocked_keys: %w", err)
		}
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if c.Source.MaxBytes <= 0 {
		return fmt.Errorf("source.max_bytes must be positive")
	}
	for _, s := range c.Source.AllowedSchemes {
		if s != "http" && s != "https" {
			return fmt.Errorf("source.allowed_schemes: unsupported scheme %q", s)
		}
	}
	if !validRecovery[c.Parser.Recovery] {
		return fmt.Errorf("invalid parser.recovery %q: must be strict or lenient", c.Parser.Recovery)
	}
	if c.Server.TicketSecret != "" && len(c.Server.TicketSecret) < 32 {
		return fmt.Errorf("server.ticket_secret must be at least 32 bytes")
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("server.max_sessions must be non-negative")
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	return nil
}

// SourceOptions converts the source section for source.NewHTTPFetcher.
func (c *Config) SourceOptions(logger observability.Logger) source.Config {
	return source.Config{
		Timeout:        c.Source.Timeout,
		MaxBytes:       c.Source.MaxBytes,
		AllowFiles:     c.Source.AllowFiles,
		AllowedSchemes: c.Source.AllowedSchemes,
		UserAgent:      c.Source.UserAgent,
		Logger:         logger,
	}
}

// ParserOptions converts the parser section. Every call returns a fresh
// recovery strategy.
func (c *Config) ParserOptions() parser.Config {
	limits := security.DefaultLimits()
	if c.Parser.MaxDecompressedSize > 0 {
		limits.MaxDecompressedSize = c.Parser.MaxDecompressedSize
	}
	if c.Parser.MaxXObjectDepth > 0 {
		limits.MaxXObjectDepth = c.Parser.MaxXObjectDepth
	}
	limits.MaxSurfacePixels = c.Viewer.MaxSurfacePixels
	return parser.Config{Recovery: recovery.ForMode(c.Parser.Recovery), Limits: limits}
}

// ViewerOptions converts the viewer section; scripts are wired by the caller.
func (c *Config) ViewerOptions(logger observability.Logger) viewer.Config {
	return viewer.Config{
		Logger:           logger,
		MaxSurfacePixels: c.Viewer.MaxSurfacePixels,
		Guard:            viewer.GuardConfig{BlockedKeys: c.Viewer.BlockedKeys, Logger: logger},
		ScriptTimeout:    c.Viewer.ScriptTimeout,
	}
}

// Logger builds the configured logger writing to stderr.
func (c *Config) Logger() observability.Logger {
	return observability.NewTextLogger(os.Stderr, c.Log.Format, c.Log.Level)
}
