package server

import (
	"log/slog"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
)

// --- Tracking handlers ---

// handleTrackingSet processes a tracking/set command.
func (h *CommandHandler) handleTrackingSet(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *TrackingSetRequest) error {
		if req.ProcessID == nil {
			slog.Info("tracking/set: clearing tracked process")
		} else {
			slog.Info("tracking/set: tracking process", "process_id", *req.ProcessID)
		}
		h.engine.SetTrackedProcess(req.ProcessID)
		return nil
	})
}

// --- Settings handlers ---

// handleSettingsUpdate processes a settings/update command.
// Changes apply to the running engine only and are not written to the config file.
func (h *CommandHandler) handleSettingsUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *SettingsUpdateRequest) error {
		// Use current values as defaults if not provided
		thresholdMs := h.engine.SilenceThreshold().Milliseconds()
		low := h.engine.LowVolume()

		if req.SilenceThresholdMs != nil {
			thresholdMs = *req.SilenceThresholdMs
		}
		if req.LowVolumePercent != nil {
			low = audio.Clamp01(float32(*req.LowVolumePercent) / 100)
		}

		slog.Info("settings/update: applying settings", "silence_threshold_ms", thresholdMs, "low_volume", low)
		h.engine.SetConfig(thresholdMs, low)
		return nil
	})
}

// --- Engine lifecycle handlers ---

// handleEngineStart processes an engine/start command.
func (h *CommandHandler) handleEngineStart(cmd WSCommand, send chan<- any) {
	if err := h.engine.Start(); err != nil {
		SendError(send, cmd, err)
		return
	}
	SendSuccess(send, cmd, nil)
}

// handleEngineStop processes an engine/stop command. Stopping restores every
// session to full volume, which can take a moment, so it runs asynchronously.
func (h *CommandHandler) handleEngineStop(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		return nil, h.engine.Stop()
	})
}
