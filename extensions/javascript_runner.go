package extensions

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfviewer/extensions/dom"
	"github.com/wudi/pdfviewer/observability"
	"github.com/wudi/pdfviewer/scripting"
	"github.com/wudi/pdfviewer/viewer"
)

// JavaScriptRunner executes document-level JavaScript for the viewer. Every
// document gets a fresh engine so scripts of one document cannot see the
// globals of another.
type JavaScriptRunner struct {
	newEngine func() scripting.Engine
	logger    observability.Logger
}

var _ viewer.ScriptRunner = (*JavaScriptRunner)(nil)

// NewJavaScriptRunner returns a runner backed by newEngine, or by the goja
// engine when newEngine is nil.
func NewJavaScriptRunner(newEngine func() scripting.Engine, logger observability.Logger) *JavaScriptRunner {
	if newEngine == nil {
		newEngine = func() scripting.Engine { return scripting.NewEngine() }
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &JavaScriptRunner{newEngine: newEngine, logger: logger}
}

func (r *JavaScriptRunner) Name() string {
	return "JavaScriptRunner"
}

// Run executes scripts in order. A failing script is reported and the rest
// still run; once ctx is done the remaining scripts are skipped.
func (r *JavaScriptRunner) Run(ctx context.Context, scripts []viewer.Script, host viewer.ScriptHost) error {
	if len(scripts) == 0 {
		return nil
	}
	engine := r.newEngine()
	if err := engine.RegisterDOM(dom.New(host)); err != nil {
		return fmt.Errorf("register document object: %w", err)
	}

	var errs []error
	for _, s := range scripts {
		if _, err := engine.Execute(ctx, s.Source); err != nil {
			errs = append(errs, fmt.Errorf("script %q: %w", s.Name, err))
			if ctx.Err() != nil {
				break
			}
			r.logger.Debug("extensions: script failed",
				observability.String("script", s.Name),
				observability.Error("error", err))
		}
	}
	return errors.Join(errs...)
}
