package viewer

import (
	"context"

	"github.com/wudi/pdfviewer/observability"
)

// Script is a named document-level script.
type Script struct {
	Name   string
	Source string
}

// ScriptSource is implemented by documents that carry scripts to run after
// they are opened.
type ScriptSource interface {
	Scripts(ctx context.Context) ([]Script, error)
}

// ScriptHost is the view of the viewer that document scripts get. It is
// bound to one document and goes inert once another one is loaded.
type ScriptHost interface {
	CurrentPage() int
	TotalPages() int
	GoTo(n int) bool
	Alert(message string)
	// Blocked handles a print, save or export request and reports whether it
	// was suppressed.
	Blocked(action string) bool
}

// ScriptRunner executes document scripts against a host.
type ScriptRunner interface {
	Run(ctx context.Context, scripts []Script, host ScriptHost) error
}

func (v *Viewer) runScripts(ctx context.Context, doc Document) {
	if v.cfg.Scripts == nil {
		return
	}
	src, ok := doc.(ScriptSource)
	if !ok {
		return
	}
	ctx, span := v.cfg.Tracer.StartSpan(ctx, observability.SpanScript)
	defer span.Finish()
	ctx, cancel := context.WithTimeout(ctx, v.cfg.ScriptTimeout)
	defer cancel()

	scripts, err := src.Scripts(ctx)
	if err != nil {
		span.SetError(err)
		v.cfg.Logger.Warn("viewer: read document scripts", observability.Error("error", err))
		return
	}
	if len(scripts) == 0 {
		return
	}
	span.SetTag("scripts", len(scripts))
	if err := v.cfg.Scripts.Run(ctx, scripts, &scriptHost{v: v, doc: doc}); err != nil {
		span.SetError(err)
		v.cfg.Logger.Warn("viewer: document scripts failed", observability.Error("error", err))
	}
}

type scriptHost struct {
	v   *Viewer
	doc Document
}

func (h *scriptHost) CurrentPage() int {
	h.v.mu.Lock()
	defer h.v.mu.Unlock()
	if h.v.doc != h.doc {
		return 0
	}
	return h.v.current
}

func (h *scriptHost) TotalPages() int {
	h.v.mu.Lock()
	defer h.v.mu.Unlock()
	if h.v.doc != h.doc {
		return 0
	}
	return h.v.total
}

func (h *scriptHost) GoTo(n int) bool {
	h.v.mu.Lock()
	defer h.v.mu.Unlock()
	if h.v.doc != h.doc {
		return false
	}
	return h.v.goToLocked(n)
}

func (h *scriptHost) Alert(message string) {
	h.v.mu.Lock()
	defer h.v.mu.Unlock()
	if h.v.doc != h.doc {
		return
	}
	if a, ok := h.v.container.(Alerter); ok {
		a.ShowAlert(message)
	}
}

func (h *scriptHost) Blocked(action string) bool {
	return h.v.guard.InterceptScript(action)
}
