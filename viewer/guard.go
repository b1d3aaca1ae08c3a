package viewer

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/wudi/pdfviewer/observability"
)

// EventKind classifies input events seen by the Guard.
type EventKind int

const (
	ContextMenu EventKind = iota + 1
	KeyDown
	DragStart
)

func (k EventKind) String() string {
	switch k {
	case ContextMenu:
		return "contextmenu"
	case KeyDown:
		return "keydown"
	case DragStart:
		return "dragstart"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ParseEventKind maps the DOM event names to an EventKind.
func ParseEventKind(s string) (EventKind, bool) {
	switch strings.ToLower(s) {
	case "contextmenu":
		return ContextMenu, true
	case "keydown":
		return KeyDown, true
	case "dragstart":
		return DragStart, true
	}
	return 0, false
}

// Event is an input event in container coordinates. Key uses the DOM key
// names ("p", "PrintScreen").
type Event struct {
	Kind                   EventKind
	Key                    string
	Ctrl, Meta, Shift, Alt bool
	X, Y                   float64
}

// DefaultBlockedKeys are the print, save and export shortcuts. Ctrl also
// matches the Cmd key.
var DefaultBlockedKeys = []string{"Ctrl+P", "Ctrl+S", "Ctrl+Shift+S", "Ctrl+E", "PrintScreen"}

type GuardConfig struct {
	// BlockedKeys lists key combinations such as "Ctrl+Shift+S". Nil means
	// DefaultBlockedKeys.
	BlockedKeys []string
	Logger      observability.Logger
}

// KeyCombo is a key with the modifiers that must be held.
type KeyCombo struct {
	Key              string
	Ctrl, Shift, Alt bool
}

// ParseKeyCombo parses "Ctrl+Shift+S" style combinations. "Cmd" and "Meta"
// are accepted as spellings of Ctrl.
func ParseKeyCombo(s string) (KeyCombo, error) {
	var c KeyCombo
	parts := strings.Split(s, "+")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if i == len(parts)-1 {
			if part == "" {
				return KeyCombo{}, fmt.Errorf("viewer: key combination %q has no key", s)
			}
			c.Key = part
			break
		}
		switch strings.ToLower(part) {
		case "ctrl", "control", "cmd", "meta":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		default:
			return KeyCombo{}, fmt.Errorf("viewer: unknown modifier %q in %q", part, s)
		}
	}
	return c, nil
}

func (c KeyCombo) matches(e Event) bool {
	return strings.EqualFold(c.Key, e.Key) &&
		c.Ctrl == (e.Ctrl || e.Meta) &&
		c.Shift == e.Shift &&
		c.Alt == e.Alt
}

func (c KeyCombo) String() string {
	var b strings.Builder
	if c.Ctrl {
		b.WriteString("Ctrl+")
	}
	if c.Alt {
		b.WriteString("Alt+")
	}
	if c.Shift {
		b.WriteString("Shift+")
	}
	b.WriteString(c.Key)
	return b.String()
}

// Bounder reports a current screen rectangle.
type Bounder interface {
	Bounds() Rect
}

// Guard decides which input events inside the viewer are suppressed: the
// context menu, drag start and the print, save and export shortcuts.
//
// The guard is a deterrent, not a security control. Whoever can see a page
// can capture it: screenshots taken outside the page, browser menus,
// developer tools and the document URL itself are all beyond its reach.
type Guard struct {
	target     Bounder
	combos     []KeyCombo
	logger     observability.Logger
	suppressed atomic.Uint64
}

func NewGuard(target Bounder, cfg GuardConfig) (*Guard, error) {
	keys := cfg.BlockedKeys
	if keys == nil {
		keys = DefaultBlockedKeys
	}
	g := &Guard{target: target, logger: cfg.Logger}
	if g.logger == nil {
		g.logger = observability.NopLogger{}
	}
	for _, k := range keys {
		c, err := ParseKeyCombo(k)
		if err != nil {
			return nil, err
		}
		g.combos = append(g.combos, c)
	}
	return g, nil
}

// BlockedKeys returns the key combinations the guard suppresses.
func (g *Guard) BlockedKeys() []KeyCombo {
	return append([]KeyCombo(nil), g.combos...)
}

// IsWithinViewer reports whether (x, y) lies inside the container's
// rectangle as it is right now.
func (g *Guard) IsWithinViewer(x, y float64) bool {
	return g.target.Bounds().Contains(x, y)
}

// Blocks reports whether e is of a kind the guard suppresses, ignoring where
// it happened.
func (g *Guard) Blocks(e Event) bool {
	switch e.Kind {
	case ContextMenu, DragStart:
		return true
	case KeyDown:
		for _, c := range g.combos {
			if c.matches(e) {
				return true
			}
		}
	}
	return false
}

// Intercept reports whether e must be suppressed: it is a blocked kind and
// it happened inside the viewer.
func (g *Guard) Intercept(e Event) bool {
	if !g.Blocks(e) || !g.IsWithinViewer(e.X, e.Y) {
		return false
	}
	g.suppressed.Add(1)
	g.logger.Debug("viewer: guard suppressed event",
		observability.String("kind", e.Kind.String()),
		observability.String("key", e.Key),
		observability.Uint64(observability.MetricGuardSuppressed, g.suppressed.Load()))
	return true
}

// InterceptScript handles a print, save or export request made by a
// document script. Scripts have no pointer position, so the request is
// always suppressed.
func (g *Guard) InterceptScript(action string) bool {
	g.suppressed.Add(1)
	g.logger.Debug("viewer: guard suppressed script action",
		observability.String("action", action),
		observability.Uint64(observability.MetricGuardSuppressed, g.suppressed.Load()))
	return true
}

// Suppressed returns how many events and script actions were suppressed.
func (g *Guard) Suppressed() uint64 { return g.suppressed.Load() }
