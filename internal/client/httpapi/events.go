package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// events streams push outcomes as JSON text frames until the client goes
// away or the server shuts down.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	outcomes, stop := s.journal.Events()
	defer stop()

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	ping := time.NewTicker(s.pingPeriod)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case o, ok := <-outcomes:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := conn.WriteJSON(o); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(s.writeWait))
			return
		}
	}
}

// readPump discards client frames; it only exists to process pongs and
// notice the connection closing.
func (s *Server) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
