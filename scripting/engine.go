// Package scripting runs document JavaScript in a sandbox. Scripts see a
// small Acrobat-style object model: the page number, the page count,
// app.alert and the print, save and export calls, which the host is free to
// refuse.
package scripting

import (
	"context"
)

// Engine represents a scripting engine (e.g., JavaScript).
type Engine interface {
	// Execute runs a script. It returns early with ctx's error when ctx is
	// done.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterDOM exposes dom to later scripts.
	RegisterDOM(dom PDFDOM) error
}

// PDFDOM is what scripts may observe and change about the open document.
type PDFDOM interface {
	// PageNum is the 0-based current page.
	PageNum() int
	// SetPageNum moves to the 0-based page n and reports whether it moved.
	SetPageNum(n int) bool
	NumPages() int

	// Alert shows an alert dialog (if supported by the viewer/runner).
	Alert(message string)

	// Request asks for a print, save or export action by name ("print",
	// "saveAs", "exportAsText") and reports whether the host suppressed it.
	Request(action string) bool
}

// Actions scripts can request through Request.
const (
	ActionPrint        = "print"
	ActionSaveAs       = "saveAs"
	ActionExportAsText = "exportAsText"
)

// menuActions maps app.execMenuItem names to actions.
var menuActions = map[string]string{
	"Print":  ActionPrint,
	"Save":   ActionSaveAs,
	"SaveAs": ActionSaveAs,
}
