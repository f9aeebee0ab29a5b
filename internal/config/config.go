// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"slices"
	"sync"

	"github.com/oszuidwest/zwfm-ducker/internal/events"
	"github.com/oszuidwest/zwfm-ducker/internal/types"
	"github.com/oszuidwest/zwfm-ducker/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultListen = "127.0.0.1"
	DefaultPort   = 8080
)

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	Listen string `json:"listen"` // Address the control server binds to
	Port   int    `json:"port"`   // HTTP server port
}

// DuckingConfig holds the attenuation engine settings.
type DuckingConfig struct {
	SilenceThresholdMs int64 `json:"silence_threshold_ms"` // Silence before volumes are restored
	LowVolumePercent   *int  `json:"low_volume_percent"`   // Attenuated volume (0-100), nil = default
	TrackedProcessID   *int  `json:"tracked_process_id"`   // Process driving the decision, nil = none
}

// EventsConfig holds event log settings.
type EventsConfig struct {
	LogPath string `json:"log_path"` // JSON lines event log, empty disables it
}

// SessionSeed describes a virtual session registered with the mixer at startup.
type SessionSeed struct {
	ID        string   `json:"id"`
	ProcessID int      `json:"process_id"`
	Name      string   `json:"name"`
	Volume    *float32 `json:"volume"` // Initial volume (0-1), nil = 1
}

// Config holds all application configuration. It is safe for concurrent use.
// The file is only ever read; runtime changes are not written back.
type Config struct {
	System   SystemConfig  `json:"system"`
	Ducking  DuckingConfig `json:"ducking"`
	Events   EventsConfig  `json:"events"`
	Sessions []SessionSeed `json:"sessions"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	c := &Config{filePath: filePath}
	c.applyDefaults()
	return c
}

// Path returns the configuration file path.
func (c *Config) Path() string {
	return c.filePath
}

// Load reads config from file. A missing file leaves the defaults in place.
// An invalid file is rejected and the current values are kept.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return util.WrapError("read config", err)
	}

	var next Config
	if err := json.Unmarshal(data, &next); err != nil {
		return util.WrapError("parse config", err)
	}

	next.applyDefaults()

	if err := next.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.System = next.System
	c.Ducking = next.Ducking
	c.Events = next.Events
	c.Sessions = next.Sessions
	return nil
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	verr := types.NewValidationError()

	if c.System.Port < 1 || c.System.Port > 65535 {
		verr.Add("system.port", "must be between 1 and 65535", c.System.Port)
	}
	if net.ParseIP(c.System.Listen) == nil {
		verr.Add("system.listen", "must be an IP address", c.System.Listen)
	}

	if ms := c.Ducking.SilenceThresholdMs; ms < types.MinSilenceThresholdMs || ms > types.MaxSilenceThresholdMs {
		verr.Add("ducking.silence_threshold_ms",
			fmt.Sprintf("must be between %d and %d", types.MinSilenceThresholdMs, types.MaxSilenceThresholdMs), ms)
	}
	if p := c.Ducking.LowVolumePercent; p != nil && (*p < 0 || *p > 100) {
		verr.Add("ducking.low_volume_percent", "must be between 0 and 100", *p)
	}
	if pid := c.Ducking.TrackedProcessID; pid != nil && *pid < 0 {
		verr.Add("ducking.tracked_process_id", "must not be negative", *pid)
	}

	if c.Events.LogPath != "" {
		if err := events.ValidatePath(c.Events.LogPath); err != nil {
			verr.Add("events.log_path", err.Error(), c.Events.LogPath)
		}
	}

	seen := make(map[string]bool, len(c.Sessions))
	for i, s := range c.Sessions {
		field := fmt.Sprintf("sessions[%d]", i)
		switch {
		case s.ID == "":
			verr.Add(field+".id", "is required", s.ID)
		case seen[s.ID]:
			verr.Add(field+".id", "duplicate session", s.ID)
		}
		seen[s.ID] = true
		if s.ProcessID < 0 {
			verr.Add(field+".process_id", "must not be negative", s.ProcessID)
		}
		if s.Volume != nil && (*s.Volume < 0 || *s.Volume > 1) {
			verr.Add(field+".volume", "must be between 0 and 1", *s.Volume)
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	c.System.Listen = cmp.Or(c.System.Listen, DefaultListen)
	c.System.Port = cmp.Or(c.System.Port, DefaultPort)
	c.Ducking.SilenceThresholdMs = cmp.Or(c.Ducking.SilenceThresholdMs, types.DefaultSilenceThresholdMs)
	if c.Sessions == nil {
		c.Sessions = []SessionSeed{}
	}
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// System
	Listen string
	Port   int

	// Ducking
	SilenceThresholdMs int64
	LowVolumePercent   int
	TrackedProcessID   *int

	// Events
	EventLogPath string

	// Mixer seed
	Sessions []SessionSeed
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Listen:             c.System.Listen,
		Port:               c.System.Port,
		SilenceThresholdMs: c.Ducking.SilenceThresholdMs,
		LowVolumePercent:   types.DefaultLowVolumePercent,
		EventLogPath:       c.Events.LogPath,
		Sessions:           slices.Clone(c.Sessions),
	}
	if c.Ducking.LowVolumePercent != nil {
		s.LowVolumePercent = *c.Ducking.LowVolumePercent
	}
	if c.Ducking.TrackedProcessID != nil {
		pid := *c.Ducking.TrackedProcessID
		s.TrackedProcessID = &pid
	}
	return s
}

// Address returns the host:port the control server listens on.
func (s *Snapshot) Address() string {
	return net.JoinHostPort(s.Listen, fmt.Sprint(s.Port))
}

// LowVolume returns the attenuated volume as a fraction.
func (s *Snapshot) LowVolume() float32 {
	return float32(s.LowVolumePercent) / 100
}

// HasEventLog reports whether an event log path is configured.
func (s *Snapshot) HasEventLog() bool {
	return s.EventLogPath != ""
}

// InitialVolume returns the seed volume, defaulting to full volume.
func (s SessionSeed) InitialVolume() float32 {
	if s.Volume == nil {
		return 1
	}
	return *s.Volume
}
