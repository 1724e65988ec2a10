package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// progressSocket handles GET /ws/progress/:id. The client subscribes before
// submitting its process request (with a self-chosen session id) and receives
// one event per image plus a final completed event, then the socket closes.
func (s *Server) progressSocket(c echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return badRequest(c, "session id required")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("⚠️  WebSocket upgrade for session %s: %v", sessionID, err)
		return nil
	}
	defer conn.Close()

	events, cancel := s.svc.WatchSession(sessionID)
	defer cancel()

	// Reads only detect the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"),
					time.Now().Add(writeTimeout))
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
		case <-clientGone:
			return nil
		}
	}
}
