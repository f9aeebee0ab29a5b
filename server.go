package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/config"
	"github.com/oszuidwest/zwfm-ducker/internal/ducking"
	"github.com/oszuidwest/zwfm-ducker/internal/server"
	"github.com/oszuidwest/zwfm-ducker/internal/types"
)

// Server is an HTTP server that exposes the ducker control channel.
type Server struct {
	config   *config.Config
	engine   *ducking.Engine
	commands *server.CommandHandler
	version  *VersionChecker
}

// NewServer returns a new Server controlling engine and mixer.
func NewServer(cfg *config.Config, engine *ducking.Engine, mixer *audio.Mixer, version *VersionChecker) *Server {
	return &Server{
		config:   cfg,
		engine:   engine,
		commands: server.NewCommandHandler(cfg, engine, mixer),
		version:  version,
	}
}

// handleWebSocket handles bidirectional WebSocket communication for real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Only the writer goroutine writes to the connection.
	send := make(chan any, 16)
	done := make(chan struct{})
	statusUpdate := make(chan struct{}, 1)

	go s.runWebSocketWriter(conn, send, done)
	go s.runWebSocketReader(conn, send, done, statusUpdate)

	s.runWebSocketEventLoop(send, done, statusUpdate)
}

// runWebSocketWriter writes messages from the send channel to the connection
// until the reader is done. send is never closed; late asynchronous results
// are dropped once its buffer is full.
func (s *Server) runWebSocketWriter(conn server.WebSocketConn, send <-chan any, done <-chan struct{}) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for {
		select {
		case msg := <-send:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(conn server.WebSocketConn, send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send, func() {
			select {
			case statusUpdate <- struct{}{}:
			default:
			}
		})
	}
}

// runWebSocketEventLoop pushes periodic status and session level updates.
func (s *Server) runWebSocketEventLoop(send chan<- any, done, statusUpdate <-chan struct{}) {
	sessionsTicker := time.NewTicker(100 * time.Millisecond) // 10 fps for session meters
	statusTicker := time.NewTicker(3000 * time.Millisecond)  // Status updates every 3s
	defer sessionsTicker.Stop()
	defer statusTicker.Stop()

	// trySend attempts to send a message, returning false if done is closed
	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	if !trySend(s.buildWSStatus()) {
		return
	}

	for {
		var msg any
		select {
		case <-done:
			return
		case <-statusUpdate:
			msg = s.buildWSStatus()
		case <-statusTicker.C:
			msg = s.buildWSStatus()
		case <-sessionsTicker.C:
			msg = types.WSSessionsResponse{Type: "sessions", Stage: s.engine.Stage(), Sessions: s.commands.Sessions()}
		}
		if !trySend(msg) {
			return
		}
	}
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() types.WSStatusResponse {
	cfg := s.config.Snapshot()

	return types.WSStatusResponse{
		Type:     "status",
		Engine:   s.engine.Status(),
		Sessions: s.commands.Sessions(),
		Settings: types.WSSettings{
			SilenceThresholdMs: s.engine.SilenceThreshold().Milliseconds(),
			LowVolumePercent:   int(s.engine.LowVolume()*100 + 0.5),
			EventLogPath:       cfg.EventLogPath,
			Platform:           runtime.GOOS,
		},
		Version: s.version.Info(),
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleAPIStatus)
	mux.HandleFunc("GET /api/sessions", s.handleAPISessions)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// handleAPIStatus returns the engine status and settings.
// GET /api/status
func (s *Server) handleAPIStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.buildWSStatus())
}

// handleAPISessions returns the current sessions.
// GET /api/sessions
func (s *Server) handleAPISessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.commands.Sessions())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// Start begins serving HTTP requests in a background goroutine.
func (s *Server) Start() *http.Server {
	snap := s.config.Snapshot()
	addr := snap.Address()
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
