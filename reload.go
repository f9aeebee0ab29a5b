package main

import (
	"log/slog"

	"github.com/oszuidwest/zwfm-ducker/internal/config"
	"github.com/oszuidwest/zwfm-ducker/internal/ducking"
)

// reloadApplier pushes hot-reloaded ducking settings into the engine. Only the
// values that changed in the file since the previous reload are applied, so a
// process tracked over the control channel survives unrelated edits.
// It is called from the config watcher goroutine only.
type reloadApplier struct {
	engine *ducking.Engine
	last   config.Snapshot
}

func newReloadApplier(engine *ducking.Engine, loaded config.Snapshot) *reloadApplier {
	return &reloadApplier{engine: engine, last: loaded}
}

// Apply applies next and remembers it as the file state.
func (a *reloadApplier) Apply(next config.Snapshot) {
	if next.SilenceThresholdMs != a.last.SilenceThresholdMs || next.LowVolumePercent != a.last.LowVolumePercent {
		slog.Info("applying reloaded ducking settings",
			"silence_threshold_ms", next.SilenceThresholdMs,
			"low_volume_percent", next.LowVolumePercent)
		a.engine.SetConfig(next.SilenceThresholdMs, next.LowVolume())
	}
	if !samePID(next.TrackedProcessID, a.last.TrackedProcessID) {
		pid := ducking.NoProcess
		if next.TrackedProcessID != nil {
			pid = *next.TrackedProcessID
		}
		slog.Info("applying reloaded tracked process", "process_id", pid)
		a.engine.SetTrackedProcess(next.TrackedProcessID)
	}
	a.last = next
}

func samePID(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
