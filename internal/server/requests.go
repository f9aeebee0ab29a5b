package server

// Request types for WebSocket commands with validation tags.
// These types define the expected input for each command and use
// go-playground/validator struct tags for automatic validation.

// --- Engine settings ---

// TrackingSetRequest is the request body for tracking/set.
// A missing process_id clears the tracked process.
type TrackingSetRequest struct {
	ProcessID *int `json:"process_id" validate:"omitnil,gte=0"`
}

// SettingsUpdateRequest is the request body for settings/update.
type SettingsUpdateRequest struct {
	SilenceThresholdMs *int64 `json:"silence_threshold_ms" validate:"omitnil,gte=300,lte=5000"`
	LowVolumePercent   *int   `json:"low_volume_percent" validate:"omitnil,gte=0,lte=100"`
}

// --- Mixer sessions ---

// SessionAddRequest is the request body for sessions/add.
type SessionAddRequest struct {
	ID        string   `json:"id" validate:"required,max=128"`
	ProcessID int      `json:"process_id" validate:"gte=0"`
	Name      string   `json:"name" validate:"omitempty,max=256"`
	Volume    *float32 `json:"volume" validate:"omitnil,gte=0,lte=1"`
}

// SessionRemoveRequest is the request body for sessions/remove.
type SessionRemoveRequest struct {
	ID string `json:"id" validate:"required,max=128"`
}

// SessionPeakRequest is the request body for sessions/peak. It targets either
// one session by id or every session of a process.
type SessionPeakRequest struct {
	ID        string  `json:"id" validate:"required_without=ProcessID,max=128"`
	ProcessID *int    `json:"process_id" validate:"omitnil,gte=0"`
	Peak      float32 `json:"peak" validate:"gte=0,lte=1"`
}
