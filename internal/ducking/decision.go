package ducking

import (
	"time"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/types"
)

// Launch reasons reported with a Decision.
const (
	ReasonStageChanged    = "stage_changed"
	ReasonSessionsChanged = "sessions_changed"
	ReasonTrackingCleared = "tracking_cleared"
)

// Observation is what one poll tick learned about the tracked process.
type Observation struct {
	Sessions  audio.SessionSet // every session seen this tick
	HasPeak   bool             // tracked process was present and its peak was readable
	Peak      float32          // tracked process peak, valid when HasPeak
	Threshold time.Duration    // configured silence threshold, read once for this tick
	Now       time.Time
}

// Decision is the outcome of one Observe call.
type Decision struct {
	Stage   types.Stage   // candidate stage for this tick
	Silence time.Duration // silence accumulated so far
	Launch  bool          // a new fade batch must be started
	Reason  string        // why Launch is set
}

// Decider holds the stage state machine of the decision loop. It is owned by a
// single goroutine and is not safe for concurrent use.
type Decider struct {
	silence  *audio.SilenceTimer
	previous types.Stage      // last acted-upon stage
	baseline audio.SessionSet // last acted-upon session set, nil forces a launch
}

// NewDecider returns a Decider in the idle stage.
func NewDecider() *Decider {
	return &Decider{
		silence:  audio.NewSilenceTimer(),
		previous: types.StageIdle,
	}
}

// Stage returns the last acted-upon stage.
func (d *Decider) Stage() types.Stage {
	return d.previous
}

// Silence returns the current silence duration.
func (d *Decider) Silence() time.Duration {
	return d.silence.Elapsed()
}

// Observe feeds one tick into the state machine. A tick without a peak carries
// no stage evidence and never launches a batch.
func (d *Decider) Observe(obs Observation) Decision {
	if !obs.HasPeak {
		return Decision{Stage: d.previous, Silence: d.silence.Elapsed()}
	}

	elapsed := d.silence.Update(obs.Peak, obs.Now)

	candidate := types.StageLower
	if audio.IsSilent(obs.Peak) && elapsed >= obs.Threshold {
		candidate = types.StageRaise
	}

	dec := Decision{Stage: candidate, Silence: elapsed}
	switch {
	case candidate != d.previous:
		dec.Launch = true
		dec.Reason = ReasonStageChanged
	case d.baseline == nil || !obs.Sessions.Equal(d.baseline):
		dec.Launch = true
		dec.Reason = ReasonSessionsChanged
	}

	if dec.Launch {
		d.Commit(candidate, obs.Sessions)
	}
	return dec
}

// Commit records stage and sessions as the acted-upon state.
func (d *Decider) Commit(stage types.Stage, sessions audio.SessionSet) {
	d.previous = stage
	d.baseline = sessions
	if d.baseline == nil {
		d.baseline = audio.SessionSet{}
	}
}

// Retarget resets the silence timer and forgets the acted-upon session set so
// the next tick with evidence launches a batch for the new sibling set.
func (d *Decider) Retarget() {
	d.silence.Reset()
	d.baseline = nil
}
