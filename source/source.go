// Package source fetches document bytes by URL.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/wudi/pdfviewer/observability"
)

var (
	ErrNotPDF   = errors.New("source: not a PDF document")
	ErrTooLarge = errors.New("source: document exceeds size limit")
	ErrScheme   = errors.New("source: URL scheme not allowed")
)

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	// AllowFiles enables file:// URLs and plain paths.
	AllowFiles     bool
	AllowedSchemes []string
	UserAgent      string
	Logger         observability.Logger
}

func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		MaxBytes:       256 << 20,
		AllowedSchemes: []string{"http", "https"},
		UserAgent:      "pdfviewer/1.0",
	}
}

// HTTPFetcher reads http(s) URLs and, when allowed, local files.
type HTTPFetcher struct {
	Client *http.Client
	cfg    Config
}

func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if len(cfg.AllowedSchemes) == 0 {
		cfg.AllowedSchemes = def.AllowedSchemes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &HTTPFetcher{Client: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

// Fetch downloads rawURL and checks that the payload looks like a PDF.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("source: parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	var data []byte
	switch {
	case scheme == "file":
		if !f.cfg.AllowFiles {
			return nil, fmt.Errorf("%w: %s", ErrScheme, scheme)
		}
		data, err = f.readFile(u.Path)
	case (scheme == "" || len(scheme) == 1) && f.cfg.AllowFiles:
		// plain path; a one letter scheme is a Windows drive
		data, err = f.readFile(rawURL)
	case slices.Contains(f.cfg.AllowedSchemes, scheme):
		data, err = f.get(ctx, u.String())
	default:
		return nil, fmt.Errorf("%w: %q", ErrScheme, scheme)
	}
	if err != nil {
		return nil, err
	}
	if !LooksLikePDF(data) {
		return nil, ErrNotPDF
	}
	f.cfg.Logger.Debug("source: fetched document",
		observability.String("url", rawURL),
		observability.Int("bytes", len(data)))
	return data, nil
}

func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("source: build request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: GET %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, ErrTooLarge
	}
	return readLimited(resp.Body, f.cfg.MaxBytes)
}

func (f *HTTPFetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	defer file.Close()
	return readLimited(file, f.cfg.MaxBytes)
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("source: read body: %w", err)
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}

// LooksLikePDF reports whether the %PDF- header appears in the first
// kilobyte, where readers tolerate leading junk.
func LooksLikePDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}
