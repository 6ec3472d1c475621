package hub

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// ServeWS upgrades the request to a websocket and pumps hub broadcasts to
// it until the client disconnects or falls behind.
func ServeWS(h *Hub, log *slog.Logger) http.HandlerFunc {
	upgrader := &websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		sub := h.Subscribe()
		if sub == nil {
			conn.Close()
			return
		}
		go writePump(conn, sub)
		readPump(conn, sub)
	}
}

// writePump forwards hub payloads to the socket and keeps the connection
// alive with pings. It exits when the subscriber's channel closes.
func writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				sub.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				sub.Close()
				return
			}
		}
	}
}

// readPump discards client input; subscribers are receive-only. It detects
// disconnects, including abrupt ones, and deregisters the subscriber.
func readPump(conn *websocket.Conn, sub *Subscriber) {
	defer sub.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
