package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"kaizen/internal/logging"
)

const (
	streamInterval  = 100 * time.Millisecond
	streamWriteWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	// The UI is served from a local file or another port.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handlePlayerStream pushes a player payload every streamInterval until the
// client disconnects. Consecutive identical payloads are still sent so the
// client can treat silence as a dropped connection.
func (s *apiServer) handlePlayerStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	ctx := r.Context()
	view := viewport(r)
	for {
		resp, err := s.daemon.Player(ctx, view)
		if err != nil {
			s.log().Warn("player stream snapshot failed", logging.Error(err))
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
				time.Now().Add(streamWriteWait))
			return
		case <-ticker.C:
		}
	}
}
