package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wudi/pdfviewer/observability"
	"github.com/wudi/pdfviewer/viewer"
)

const writeWait = 10 * time.Second

// session is one browser connection driving one viewer.
type session struct {
	id     string
	conn   *websocket.Conn
	srv    *Server
	remote *remote
	viewer *viewer.Viewer
	logger observability.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func (s *Server) newSession(ctx context.Context, id string, conn *websocket.Conn) (*session, error) {
	r := newRemote()
	logger := s.cfg.Logger.With(observability.String("session", id))
	vcfg := s.cfg.Viewer
	vcfg.Logger = logger
	vcfg.Guard.Logger = logger
	v, err := viewer.New(r, s.cfg.Loader, vcfg)
	if err != nil {
		return nil, err
	}
	sess := &session{id: id, conn: conn, srv: s, remote: r, viewer: v, logger: logger}
	sess.ctx, sess.cancel = context.WithCancel(ctx)
	return sess, nil
}

// run serves the connection until the browser goes away.
func (s *session) run() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop()
	}()
	s.readLoop()

	s.cancel()
	s.viewer.Close()
	s.remote.close()
	<-done
}

func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("server: websocket read", observability.Error("error", err))
			}
			return
		}
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			s.remote.send(response{Type: msgError, Message: "invalid message format"})
			continue
		}
		s.handle(req)
	}
}

func (s *session) handle(req request) {
	switch req.Type {
	case msgOpen:
		s.open(req)
	case msgResize:
		s.remote.resize(req.Width, req.Rect)
		if req.Width > 0 {
			s.viewer.Rerender()
		}
	case msgNext:
		s.navigate(func(nav viewer.Navigator) bool { return nav.Next() })
	case msgPrev:
		s.navigate(func(nav viewer.Navigator) bool { return nav.Previous() })
	case msgGoto:
		s.navigate(func(nav viewer.Navigator) bool { return nav.GoTo(req.Page) })
	case msgEvent:
		s.event(req)
	default:
		s.remote.send(response{Type: msgError, Message: "unknown message type: " + req.Type})
	}
}

// open verifies the ticket and loads its document in the background so the
// connection keeps serving events while the file is fetched.
func (s *session) open(req request) {
	url, err := s.srv.cfg.Tickets.Verify(req.Ticket)
	if err != nil {
		s.logger.Info("server: rejected ticket", observability.Error("error", err))
		s.remote.send(response{Type: msgError, Message: "invalid ticket"})
		return
	}
	s.remote.resize(req.Width, req.Rect)
	s.sendGuardKeys()
	go func() {
		err := s.viewer.Load(s.ctx, url)
		if errors.Is(err, viewer.ErrSuperseded) || errors.Is(err, viewer.ErrClosed) {
			return
		}
		if err != nil {
			// already reported through ShowError
			return
		}
		s.sendNav()
	}()
}

func (s *session) navigate(move func(viewer.Navigator) bool) {
	nav := s.remote.navigation()
	if nav == nil {
		s.remote.send(response{Type: msgError, Message: "no document"})
		return
	}
	if move(nav) {
		s.sendNav()
	}
}

func (s *session) sendNav() {
	s.remote.send(response{Type: msgNav, Page: s.viewer.CurrentPage(), Total: s.viewer.TotalPages()})
}

// sendGuardKeys tells the browser which shortcuts to cancel. The browser
// must decide before the guard's verdict can arrive.
func (s *session) sendGuardKeys() {
	var keys []keyCombo
	for _, c := range s.viewer.Guard().BlockedKeys() {
		keys = append(keys, keyCombo{Key: c.Key, Ctrl: c.Ctrl, Shift: c.Shift, Alt: c.Alt})
	}
	s.remote.send(response{Type: msgGuardKeys, Keys: keys})
}

// event runs a browser input event through the guard and answers whether the
// browser must cancel it. Unblocked navigation keys turn pages.
func (s *session) event(req request) {
	kind, ok := viewer.ParseEventKind(req.Kind)
	if !ok {
		s.remote.send(response{Type: msgError, Message: "unknown event kind: " + req.Kind})
		return
	}
	if req.Rect != nil {
		s.remote.resize(0, req.Rect)
	}
	ev := viewer.Event{
		Kind: kind, Key: req.Key,
		Ctrl: req.Ctrl, Meta: req.Meta, Shift: req.Shift, Alt: req.Alt,
		X: req.X, Y: req.Y,
	}
	suppress := s.viewer.Guard().Intercept(ev)
	s.remote.send(response{Type: msgGuard, Kind: kind.String(), Suppress: suppress})
	if suppress || kind != viewer.KeyDown || ev.Ctrl || ev.Meta || ev.Alt {
		return
	}
	switch req.Key {
	case "ArrowRight", "PageDown":
		s.navigate(func(nav viewer.Navigator) bool { return nav.Next() })
	case "ArrowLeft", "PageUp":
		s.navigate(func(nav viewer.Navigator) bool { return nav.Previous() })
	case "Home":
		s.navigate(func(nav viewer.Navigator) bool { return nav.GoTo(1) })
	case "End":
		s.navigate(func(nav viewer.Navigator) bool { return nav.GoTo(nav.TotalPages()) })
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.remote.notify:
		}
		for _, m := range s.remote.drain() {
			resp, err := m.encode()
			if err != nil {
				s.logger.Error("server: encode surface", observability.Error("error", err))
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(resp); err != nil {
				s.logger.Warn("server: websocket write", observability.Error("error", err))
				s.cancel()
				s.conn.Close()
				return
			}
		}
	}
}
