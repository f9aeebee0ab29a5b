package server

import (
	"fmt"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/events"
)

// --- Mixer session handlers ---

// handleSessionAdd processes a sessions/add command.
func (h *CommandHandler) handleSessionAdd(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *SessionAddRequest) error {
		volume := float32(1)
		if req.Volume != nil {
			volume = *req.Volume
		}
		return h.mixer.Add(req.ID, req.ProcessID, req.Name, volume)
	})
}

// handleSessionRemove processes a sessions/remove command.
func (h *CommandHandler) handleSessionRemove(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *SessionRemoveRequest) error {
		return h.mixer.Remove(req.ID)
	})
}

// handleSessionPeak processes a sessions/peak command.
func (h *CommandHandler) handleSessionPeak(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *SessionPeakRequest) error {
		if req.ID != "" {
			return h.mixer.SetPeak(req.ID, req.Peak)
		}
		if n := h.mixer.SetProcessPeak(*req.ProcessID, req.Peak); n == 0 {
			return fmt.Errorf("%w: no session for process %d", audio.ErrSessionGone, *req.ProcessID)
		}
		return nil
	})
}

// --- Event log handlers ---

// handleEventsView processes an events/view command.
func (h *CommandHandler) handleEventsView(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		snap := h.cfg.Snapshot()
		if !snap.HasEventLog() {
			return []events.StageEvent{}, nil
		}
		return events.ReadLast(snap.EventLogPath, MaxLogEntries)
	})
}
