package config

import "time"

// Config is the top-level pdfview configuration, corresponding to pdfview.yml.
type Config struct {
	Viewer ViewerConfig `yaml:"viewer" koanf:"viewer"`
	Source SourceConfig `yaml:"source" koanf:"source"`
	Parser ParserConfig `yaml:"parser" koanf:"parser"`
	Server ServerConfig `yaml:"server" koanf:"server"`
	Log    LogConfig    `yaml:"log" koanf:"log"`
}

type ViewerConfig struct {
	// Width is the container width used by the CLI when none is given.
	Width            int           `yaml:"width" koanf:"width"`
	MaxSurfacePixels int           `yaml:"max_surface_pixels" koanf:"max_surface_pixels"`
	// BlockedKeys replaces viewer.DefaultBlockedKeys when set.
	BlockedKeys      []string      `yaml:"blocked_keys" koanf:"blocked_keys"`
	Scripts          bool          `yaml:"scripts" koanf:"scripts"`
	ScriptTimeout    time.Duration `yaml:"script_timeout" koanf:"script_timeout"`
}

type SourceConfig struct {
	Timeout        time.Duration `yaml:"timeout" koanf:"timeout"`
	MaxBytes       int64         `yaml:"max_bytes" koanf:"max_bytes"`
	AllowFiles     bool          `yaml:"allow_files" koanf:"allow_files"`
	AllowedSchemes []string      `yaml:"allowed_schemes" koanf:"allowed_schemes"`
	UserAgent      string        `yaml:"user_agent" koanf:"user_agent"`
}

type ParserConfig struct {
	// Recovery is "strict" or "lenient".
	Recovery            string `yaml:"recovery" koanf:"recovery"`
	MaxDecompressedSize int64  `yaml:"max_decompressed_size" koanf:"max_decompressed_size"`
	MaxXObjectDepth     int    `yaml:"max_xobject_depth" koanf:"max_xobject_depth"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" koanf:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" koanf:"allowed_origins"`
	TicketSecret   string        `yaml:"ticket_secret" koanf:"ticket_secret"`
	TicketTTL      time.Duration `yaml:"ticket_ttl" koanf:"ticket_ttl"`
	// MaxSessions bounds concurrent remote viewers.
	MaxSessions int `yaml:"max_sessions" koanf:"max_sessions"`
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}
