// Package dom adapts the viewer's script host to the object model scripts
// see.
package dom

import (
	"github.com/wudi/pdfviewer/scripting"
	"github.com/wudi/pdfviewer/viewer"
)

var _ scripting.PDFDOM = (*Adapter)(nil)

type Adapter struct {
	host viewer.ScriptHost
}

func New(host viewer.ScriptHost) *Adapter {
	return &Adapter{host: host}
}

// PageNum converts the viewer's 1-based page to the 0-based numbering
// scripts use.
func (a *Adapter) PageNum() int {
	return max(a.host.CurrentPage()-1, 0)
}

func (a *Adapter) SetPageNum(n int) bool {
	return a.host.GoTo(n + 1)
}

func (a *Adapter) NumPages() int {
	return a.host.TotalPages()
}

func (a *Adapter) Alert(message string) {
	a.host.Alert(message)
}

func (a *Adapter) Request(action string) bool {
	return a.host.Blocked(action)
}
