// Package extensions holds optional document add-ons for the viewer: the
// document inspector behind `pdfview info` and the runner that executes
// document JavaScript in a sandbox.
package extensions

import (
	"context"

	"github.com/wudi/pdfviewer/pdfdoc"
	"github.com/wudi/pdfviewer/security"
)

// Inspector is an extension that inspects the document and produces a report.
type Inspector interface {
	Name() string
	Inspect(ctx context.Context, doc *pdfdoc.Document) (*InspectionReport, error)
}

type InspectionReport struct {
	PageCount   int
	FontCount   int
	ImageCount  int
	ScriptCount int
	FileSize    int64
	Version     string
	Encrypted   bool
	Permissions security.Permissions
	Metadata    map[string]string
	Pages       []PageReport
}

// PageReport is the displayed geometry of one page.
type PageReport struct {
	Number        int
	Width, Height float64
	Rotate        int
}
