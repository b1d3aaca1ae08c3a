package server

import "github.com/wudi/pdfviewer/viewer"

// Client message types.
const (
	msgOpen   = "open"
	msgResize = "resize"
	msgNext   = "next"
	msgPrev   = "prev"
	msgGoto   = "goto"
	msgEvent  = "event"
)

// Server message types.
const (
	msgSurface   = "surface"
	msgIndicator = "indicator"
	msgNav       = "nav"
	msgError     = "error"
	msgGuard     = "guard"
	msgGuardKeys = "guard_keys"
	msgAlert     = "alert"
	msgClear     = "clear"
)

// rect is a container rectangle in CSS pixels.
type rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r rect) viewer() viewer.Rect { return viewer.Rect{X: r.X, Y: r.Y, W: r.W, H: r.H} }

// keyCombo is a blocked key combination. Ctrl matches the Cmd key as well.
type keyCombo struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
}

// request is a message from the browser.
type request struct {
	Type   string `json:"type"`
	Ticket string `json:"ticket,omitempty"`
	Width  int    `json:"width,omitempty"`
	Rect   *rect  `json:"rect,omitempty"`
	Page   int    `json:"page,omitempty"`

	// event fields
	Kind  string  `json:"kind,omitempty"`
	Key   string  `json:"key,omitempty"`
	Ctrl  bool    `json:"ctrl,omitempty"`
	Meta  bool    `json:"meta,omitempty"`
	Shift bool    `json:"shift,omitempty"`
	Alt   bool    `json:"alt,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
}

// response is a message to the browser.
type response struct {
	Type     string `json:"type"`
	Page     int    `json:"page,omitempty"`
	Total    int    `json:"total,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	PNG      string `json:"png,omitempty"`
	Text     string `json:"text,omitempty"`
	Message  string `json:"message,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Suppress bool   `json:"suppress,omitempty"`

	Keys []keyCombo `json:"keys,omitempty"`
}
