package realtime

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chat-realtime/pkg/wscode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients.
		return true
	}

	allowedOrigins := []string{
		"http://localhost:3000",
		"https://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if customOrigins := os.Getenv("ALLOWED_ORIGINS"); customOrigins != "" {
		for _, customOrigin := range strings.Split(customOrigins, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(customOrigin))
		}
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	// Allow localhost variations during development.
	return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
}

// ServeWS upgrades the HTTP request, authenticates the token supplied as the
// "token" query parameter, and hands the connection to the hub. An invalid
// token closes the socket with an authentication close code before any
// registry state is touched.
func ServeWS(hub *Hub, verifier TokenVerifier, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	token := r.URL.Query().Get("token")
	userID, err := verifier.Verify(token)
	if err != nil {
		slog.Warn("websocket authentication failed", "error", err)
		closeWith(conn, wscode.AuthenticationFailed, wscode.Message(wscode.AuthenticationFailed))
		return
	}

	client := NewClient(hub, conn, userID)
	slog.Info("websocket connection established", "clientID", client.id, "userID", userID)

	select {
	case hub.register <- client:
	case <-time.After(5 * time.Second):
		slog.Error("timeout registering client", "clientID", client.id, "userID", userID)
		closeWith(conn, wscode.InternalError, wscode.Message(wscode.InternalError))
		return
	case <-hub.ctx.Done():
		closeWith(conn, websocket.CloseGoingAway, "server shutting down")
		return
	}

	go client.writePump()
	go client.readPump()
}

func closeWith(conn Conn, code int, reason string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	conn.Close()
}
