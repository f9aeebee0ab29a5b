package server

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/config"
	"github.com/oszuidwest/zwfm-ducker/internal/ducking"
	"github.com/oszuidwest/zwfm-ducker/internal/types"
)

// MaxLogEntries is the maximum number of event log entries returned by events/view.
const MaxLogEntries = 100

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	cfg    *config.Config
	engine *ducking.Engine
	mixer  *audio.Mixer
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(cfg *config.Config, engine *ducking.Engine, mixer *audio.Mixer) *CommandHandler {
	return &CommandHandler{
		cfg:    cfg,
		engine: engine,
		mixer:  mixer,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "tracking/set", "sessions/add")
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	namespace, action, _ := strings.Cut(cmd.Type, "/")

	switch namespace {
	case "tracking":
		h.handleTracking(action, cmd, send)
	case "settings":
		h.handleSettings(action, cmd, send)
	case "engine":
		h.handleEngine(action, cmd, send)
	case "sessions":
		h.handleSessions(action, cmd, send)
	case "events":
		h.handleEvents(action, cmd, send)
	case "status":
		h.handleStatus(action, send)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// Sessions returns the mixer sessions with the tracked process marked.
func (h *CommandHandler) Sessions() []types.SessionInfo {
	sessions := h.mixer.Sessions()
	tracked := h.engine.TrackedProcess()
	if tracked == nil {
		return sessions
	}
	for i := range sessions {
		sessions[i].Tracked = sessions[i].ProcessID == *tracked
	}
	return sessions
}

// --- Namespace handlers ---

// handleTracking routes tracking/* commands
func (h *CommandHandler) handleTracking(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "set":
		h.handleTrackingSet(cmd, send)
	default:
		slog.Warn("unknown tracking action", "action", action)
	}
}

// handleSettings routes settings/* commands
func (h *CommandHandler) handleSettings(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		h.handleSettingsUpdate(cmd, send)
	default:
		slog.Warn("unknown settings action", "action", action)
	}
}

// handleEngine routes engine/* commands
func (h *CommandHandler) handleEngine(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "start":
		h.handleEngineStart(cmd, send)
	case "stop":
		h.handleEngineStop(cmd, send)
	default:
		slog.Warn("unknown engine action", "action", action)
	}
}

// handleSessions routes sessions/* commands
func (h *CommandHandler) handleSessions(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		SendSuccess(send, cmd, h.Sessions())
	case "add":
		h.handleSessionAdd(cmd, send)
	case "remove":
		h.handleSessionRemove(cmd, send)
	case "peak":
		h.handleSessionPeak(cmd, send)
	default:
		slog.Warn("unknown sessions action", "action", action)
	}
}

// handleEvents routes events/* commands
func (h *CommandHandler) handleEvents(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "view":
		h.handleEventsView(cmd, send)
	default:
		slog.Warn("unknown events action", "action", action)
	}
}

// handleStatus routes status/* commands
func (h *CommandHandler) handleStatus(action string, send chan<- any) {
	switch action {
	case "get":
		// Status is sent automatically, but explicit get triggers immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		slog.Warn("unknown status action", "action", action)
	}
}
