package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestSlogLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, "text", "debug").With(String("url", "http://x/doc.pdf"))
	logger.Warn("page decode failed", Int("page", 3), Error("err", errors.New("bad stream")))

	out := buf.String()
	for _, want := range []string{"level=WARN", "page decode failed", "url=http://x/doc.pdf", "page=3", `err="bad stream"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestSlogLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, "json", "error")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at error level, got %q", buf.String())
	}
	logger.Error("shown")
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Fatalf("expected json record, got %q", buf.String())
	}
}
