package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfview.yml")
	yml := `
viewer:
  width: 1024
  blocked_keys: ["Ctrl+P"]
source:
  allow_files: true
parser:
  recovery: strict
server:
  addr: "127.0.0.1:9000"
  allowed_origins: ["https://docs.example.com"]
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PDFVIEW_SOURCE_TIMEOUT", "5s")
	t.Setenv("PDFVIEW_SERVER_TICKET_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PDFVIEW_VIEWER_WIDTH", "640")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Viewer.Width != 640 {
		t.Fatalf("env override lost: width %d", cfg.Viewer.Width)
	}
	if diff := cmp.Diff([]string{"Ctrl+P"}, cfg.Viewer.BlockedKeys); diff != "" {
		t.Fatalf("blocked keys (-want +got):\n%s", diff)
	}
	if !cfg.Source.AllowFiles || cfg.Source.Timeout != 5*time.Second {
		t.Fatalf("source %+v", cfg.Source)
	}
	if cfg.Source.MaxBytes != DefaultConfig().Source.MaxBytes {
		t.Fatalf("unset field lost its default: %d", cfg.Source.MaxBytes)
	}
	if cfg.Parser.Recovery != "strict" || cfg.Server.Addr != "127.0.0.1:9000" || cfg.Log.Level != "debug" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Server.TicketSecret != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("ticket secret %q", cfg.Server.TicketSecret)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"negative width":  func(c *Config) { c.Viewer.Width = -1 },
		"bad key":         func(c *Config) { c.Viewer.BlockedKeys = []string{"Super+P"} },
		"ftp":             func(c *Config) { c.Source.AllowedSchemes = []string{"ftp"} },
		"recovery":        func(c *Config) { c.Parser.Recovery = "optimistic" },
		"short secret":    func(c *Config) { c.Server.TicketSecret = "abc" },
		"log format":      func(c *Config) { c.Log.Format = "xml" },
		"zero timeout":    func(c *Config) { c.Source.Timeout = 0 },
		"negative limits": func(c *Config) { c.Server.MaxSessions = -1 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: accepted", name)
		}
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Parser.MaxXObjectDepth = 4
	pc := cfg.ParserOptions()
	if pc.Limits.MaxXObjectDepth != 4 || pc.Recovery == nil {
		t.Fatalf("parser config %+v", pc)
	}
	vc := cfg.ViewerOptions(nil)
	if vc.MaxSurfacePixels != cfg.Viewer.MaxSurfacePixels || vc.Guard.BlockedKeys != nil {
		t.Fatalf("viewer config %+v", vc)
	}
	if sc := cfg.SourceOptions(nil); sc.Timeout != cfg.Source.Timeout || sc.UserAgent == "" {
		t.Fatalf("source config %+v", sc)
	}
}
