package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/io-manager/internal/status"
)

const (
	liveWriteWait = 5 * time.Second
	livePongWait  = 30 * time.Second
	livePing      = livePongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
	// The page is served from the device itself.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleLive streams the /index.json document over a websocket, once on
// connect and then every liveInterval. Client messages are discarded.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	closed := make(chan struct{})
	go s.liveReader(conn, closed)
	s.liveWriter(conn, closed)
}

// liveReader handles control frames until the peer goes away.
func (s *Server) liveReader(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read", "error", err)
			}
			return
		}
	}
}

func (s *Server) liveWriter(conn *websocket.Conn, closed <-chan struct{}) {
	push := time.NewTicker(s.liveInterval)
	ping := time.NewTicker(livePing)
	defer func() {
		push.Stop()
		ping.Stop()
		conn.Close()
	}()

	send := func() error {
		conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteMessage(websocket.TextMessage, status.FormatJSON(s.tracker.Snapshot()))
	}
	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-s.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(liveWriteWait))
			return
		case <-push.C:
			if err := send(); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
