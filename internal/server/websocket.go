package server

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// WebSocketConn is the interface for WebSocket connection operations.
type WebSocketConn interface {
	io.Closer
	WriteJSON(v any) error
	ReadJSON(v any) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// checkOrigin reports whether the WebSocket connection origin is allowed.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Same-origin requests from non-browser clients omit the Origin header
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected WebSocket connection: invalid origin URL", "origin", origin)
		return false
	}

	if !originAllowed(u.Hostname(), r.Host) {
		slog.Warn("rejected WebSocket connection", "origin", origin, "host", r.Host)
		return false
	}
	return true
}

// originAllowed reports whether a page served from originHost may control the
// ducker reached at requestHost. Loopback, private ranges and same-host are allowed.
func originAllowed(originHost, requestHost string) bool {
	if originHost == "" {
		return false
	}
	if originHost == "localhost" {
		return true
	}

	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if originHost == requestHost {
		return true
	}

	ip := net.ParseIP(originHost)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}

// UpgradeConnection upgrades an HTTP connection to WebSocket.
func UpgradeConnection(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}
