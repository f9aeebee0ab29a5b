// Package types provides shared type definitions used across the ducker.
package types

import (
	"time"
)

// EngineState represents the current state of the ducking engine.
type EngineState string

const (
	// StateStopped indicates the decision loop is not running.
	StateStopped EngineState = "stopped"
	// StateRunning indicates the decision loop is polling sessions.
	StateRunning EngineState = "running"
	// StateStopping indicates the engine is restoring volumes and shutting down.
	StateStopping EngineState = "stopping"
)

// Stage is the current ducking decision.
type Stage string

const (
	// StageIdle is the initial stage before the first observation.
	StageIdle Stage = "idle"
	// StageRaise restores sibling sessions to full volume.
	StageRaise Stage = "raise"
	// StageLower attenuates sibling sessions to the low volume fraction.
	StageLower Stage = "lower"
)

// Timing constants for the decision loop and fades.
const (
	// PollInterval is the fixed cadence of the decision loop.
	PollInterval = 300 * time.Millisecond

	// RaiseDuration is the total ramp time when restoring volume.
	RaiseDuration = 240 * time.Millisecond
	// RaiseStep is the interval between volume writes when restoring.
	RaiseStep = 15 * time.Millisecond
	// LowerDuration is the total ramp time when attenuating.
	LowerDuration = 200 * time.Millisecond
	// LowerStep is the interval between volume writes when attenuating.
	LowerStep = 13 * time.Millisecond

	// RestoreTimeout bounds the restore-to-full batch on shutdown.
	RestoreTimeout = 2000 * time.Millisecond
	// ShutdownTimeout bounds how long Stop waits for the decision loop to exit.
	ShutdownTimeout = 3000 * time.Millisecond
)

// Silence threshold bounds and defaults.
const (
	// MinSilenceThresholdMs is the shortest accepted silence threshold.
	MinSilenceThresholdMs = 300
	// MaxSilenceThresholdMs is the longest accepted silence threshold.
	MaxSilenceThresholdMs = 5000
	// DefaultSilenceThresholdMs is the silence threshold used when none is configured.
	DefaultSilenceThresholdMs = 1000
	// DefaultLowVolumePercent is the attenuated volume used when none is configured.
	DefaultLowVolumePercent = 30
)

// SessionInfo describes one audio session for display.
type SessionInfo struct {
	ID        string  `json:"id"`               // Stable session identifier
	ProcessID int     `json:"process_id"`       // Owning process
	Name      string  `json:"name"`             // Display name
	Volume    float32 `json:"volume"`           // Current volume scalar (0-1)
	Peak      float32 `json:"peak"`             // Last reported peak level (0-1)
	Tracked   bool    `json:"tracked,omitzero"` // Session belongs to the tracked process
}

// BatchSummary describes the most recently launched fade batch.
type BatchSummary struct {
	Stage     Stage     `json:"stage"`            // Stage the batch applied
	StartedAt time.Time `json:"started_at"`       // When the batch was launched
	Sessions  int       `json:"sessions"`         // Sessions in the snapshot
	Reason    string    `json:"reason,omitempty"` // Why the batch was launched
}

// EngineStatus contains a summary of the engine's current operational state.
type EngineStatus struct {
	State              EngineState   `json:"state"`                // Lifecycle state
	Stage              Stage         `json:"stage"`                // Last acted-upon stage
	TrackedProcessID   *int          `json:"tracked_process_id"`   // Tracked process, nil when idle
	SilenceMs          int64         `json:"silence_ms"`           // Current silence duration
	SilenceThresholdMs int64         `json:"silence_threshold_ms"` // Configured threshold
	LowVolume          float32       `json:"low_volume"`           // Configured low volume fraction
	BatchCount         int           `json:"batch_count"`          // Batches launched since start
	LastBatch          *BatchSummary `json:"last_batch,omitempty"` // Most recent batch
	Uptime             string        `json:"uptime,omitzero"`      // Time since start
	LastError          string        `json:"last_error,omitzero"`  // Most recent enumeration error
}

// WSStatusResponse is sent to clients with full engine status.
type WSStatusResponse struct {
	Type     string        `json:"type"`     // Message type identifier
	Engine   EngineStatus  `json:"engine"`   // Engine status
	Sessions []SessionInfo `json:"sessions"` // Current sessions
	Settings WSSettings    `json:"settings"` // Current settings
	Version  VersionInfo   `json:"version"`  // Version information
}

// WSSettings contains the settings sub-object in status responses.
type WSSettings struct {
	SilenceThresholdMs int64  `json:"silence_threshold_ms"` // Silence threshold in milliseconds
	LowVolumePercent   int    `json:"low_volume_percent"`   // Low volume in percent
	EventLogPath       string `json:"event_log_path"`       // Event log file path
	Platform           string `json:"platform"`             // Operating system platform
}

// WSSessionsResponse is sent to clients with session level updates.
type WSSessionsResponse struct {
	Type     string        `json:"type"`     // Message type identifier
	Stage    Stage         `json:"stage"`    // Current stage
	Sessions []SessionInfo `json:"sessions"` // Current sessions
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
