package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tradedash/internal/dashboard"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// session is one live dashboard: the browser sends the control values on
// every change and receives the three charts of the latest refresh.
type session struct {
	conn    *websocket.Conn
	binding *dashboard.Binding
	log     *zap.Logger

	closeOnce sync.Once
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isClosing() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	sess := &session{
		conn: conn,
		log:  s.log.With(zap.String("remote", r.RemoteAddr)),
	}

	// Shutdown may have started while the upgrade was in progress.
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server is shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	sess.binding = dashboard.NewBinding(s.app)
	sess.binding.Subscribe(sess.push)
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess)
			s.mu.Unlock()
		}()
		sess.readLoop()
	}()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (sess *session) readLoop() {
	defer sess.close()
	sess.conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var in dashboard.Inputs
		if err := json.Unmarshal(raw, &in); err != nil {
			sess.log.Debug("ignoring malformed inputs message", zap.Error(err))
			continue
		}
		sess.binding.Update(in)
	}
}

// push runs on the binding goroutine, which is the only writer.
func (sess *session) push(figs dashboard.Figures) {
	payload, err := json.Marshal(newChartsResponse(figs))
	if err != nil {
		sess.log.Error("failed to marshal figures", zap.Error(err))
		return
	}
	_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sess.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		sess.log.Debug("websocket write error", zap.Error(err))
		_ = sess.conn.Close()
	}
}

// close must not be called from push: Binding.Close waits for the goroutine
// push runs on. Closing the connection unblocks readLoop.
func (sess *session) close() {
	sess.closeOnce.Do(func() {
		_ = sess.conn.Close()
		sess.binding.Close()
	})
}
