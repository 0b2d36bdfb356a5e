package webserver

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/zsprackett/subbridge/internal/hub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream is the live update channel to one browser tab. Each queued
// hub message goes out as one text frame; a quit message ends the
// connection from our side.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.hub.Register()
	defer s.hub.Unregister(sub)

	// Reader goroutine: the frontend never sends anything meaningful, but
	// reading is the only way to notice the tab closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		<-closed
		s.hub.Unregister(sub)
	}()

	for {
		msg, ok := sub.Next()
		if !ok {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			s.logger.Debug("stream write failed", "id", sub.ID, "err", err)
			return
		}
		if msg == hub.QuitMessage {
			return
		}
	}
}
