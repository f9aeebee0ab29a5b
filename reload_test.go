package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/config"
	"github.com/oszuidwest/zwfm-ducker/internal/ducking"
	"github.com/oszuidwest/zwfm-ducker/internal/server"
)

func writeTestConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func loadTestConfig(t *testing.T, body string) (*config.Config, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	writeTestConfig(t, path, body)
	cfg := config.New(path)
	require.NoError(t, cfg.Load())
	return cfg, path
}

func trackOverControlChannel(t *testing.T, h *server.CommandHandler, pid int) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"process_id": pid})
	require.NoError(t, err)

	send := make(chan any, 1)
	h.Handle(server.WSCommand{Type: "tracking/set", Data: data}, send, func() {})
	res, ok := (<-send).(server.WSResult)
	require.True(t, ok)
	require.True(t, res.Success)
}

func TestReloadKeepsRuntimeTracking(t *testing.T) {
	cfg, path := loadTestConfig(t, `{"ducking": {"silence_threshold_ms": 1000, "low_volume_percent": 30}}`)
	mixer := audio.NewMixer()
	engine := ducking.New(mixer, ducking.Settings{SilenceThresholdMs: 1000, LowVolume: 0.3}, nil)
	reload := newReloadApplier(engine, cfg.Snapshot())

	trackOverControlChannel(t, server.NewCommandHandler(cfg, engine, mixer), 100)

	// Only the low volume changes in the file.
	writeTestConfig(t, path, `{"ducking": {"silence_threshold_ms": 1000, "low_volume_percent": 20}}`)
	require.NoError(t, cfg.Load())
	reload.Apply(cfg.Snapshot())

	require.NotNil(t, engine.TrackedProcess())
	assert.Equal(t, 100, *engine.TrackedProcess())
	assert.InDelta(t, 0.2, engine.LowVolume(), 1e-6)
}

func TestReloadKeepsRuntimeSettings(t *testing.T) {
	cfg, path := loadTestConfig(t, `{"ducking": {"silence_threshold_ms": 1000, "tracked_process_id": 100}}`)
	engine := ducking.New(audio.NewMixer(), ducking.Settings{SilenceThresholdMs: 1000, LowVolume: 0.3}, nil)
	reload := newReloadApplier(engine, cfg.Snapshot())

	engine.SetConfig(2500, 0.1)

	writeTestConfig(t, path, `{"ducking": {"silence_threshold_ms": 1000, "tracked_process_id": 200}}`)
	require.NoError(t, cfg.Load())
	reload.Apply(cfg.Snapshot())

	assert.Equal(t, int64(2500), engine.SilenceThreshold().Milliseconds())
	assert.InDelta(t, 0.1, engine.LowVolume(), 1e-6)
	require.NotNil(t, engine.TrackedProcess())
	assert.Equal(t, 200, *engine.TrackedProcess())
}

func TestReloadAppliesClearedTracking(t *testing.T) {
	cfg, path := loadTestConfig(t, `{"ducking": {"tracked_process_id": 100}}`)
	pid := 100
	engine := ducking.New(audio.NewMixer(), ducking.Settings{SilenceThresholdMs: 1000, TrackedProcessID: &pid}, nil)
	reload := newReloadApplier(engine, cfg.Snapshot())

	writeTestConfig(t, path, `{"ducking": {}}`)
	require.NoError(t, cfg.Load())
	reload.Apply(cfg.Snapshot())

	assert.Nil(t, engine.TrackedProcess())
}

func TestSamePID(t *testing.T) {
	a, b, c := 1, 1, 2
	assert.True(t, samePID(nil, nil))
	assert.True(t, samePID(&a, &b))
	assert.False(t, samePID(&a, &c))
	assert.False(t, samePID(&a, nil))
	assert.False(t, samePID(nil, &c))
}
