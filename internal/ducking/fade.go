package ducking

import (
	"context"
	"fmt"
	"time"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/types"
)

// FadeParams describes one linear volume ramp.
type FadeParams struct {
	Target   float32       // volume to end at, clamped to [0,1]
	Duration time.Duration // total ramp time
	Step     time.Duration // time between volume writes
}

// Steps returns the number of volume writes the ramp performs.
func (p FadeParams) Steps() int {
	if p.Step <= 0 || p.Duration <= 0 {
		return 0
	}
	return int(p.Duration / p.Step)
}

// RaiseFade restores a session to full volume.
var RaiseFade = FadeParams{Target: 1.0, Duration: types.RaiseDuration, Step: types.RaiseStep}

// LowerFade attenuates a session to low.
func LowerFade(low float32) FadeParams {
	return FadeParams{Target: low, Duration: types.LowerDuration, Step: types.LowerStep}
}

// FadeTo ramps vol linearly from its live volume to p.Target.
//
// Cancellation is checked before every step. A cancelled fade returns ctx.Err()
// and leaves the volume at the last value written. The final step writes the
// target exactly.
func FadeTo(ctx context.Context, vol audio.VolumeControl, p FadeParams) error {
	target := audio.Clamp01(p.Target)

	if err := ctx.Err(); err != nil {
		return err
	}

	start, err := vol.Volume()
	if err != nil {
		return fmt.Errorf("read start volume: %w", err)
	}

	steps := p.Steps()
	if steps == 0 {
		if err := vol.SetVolume(target); err != nil {
			return fmt.Errorf("set volume: %w", err)
		}
		return nil
	}

	timer := time.NewTimer(p.Step)
	defer timer.Stop()

	diff := target - start
	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		v := target
		if i < steps {
			progress := float32(i) / float32(steps)
			v = audio.Clamp01(start + diff*progress)
		}
		if err := vol.SetVolume(v); err != nil {
			return fmt.Errorf("set volume at step %d/%d: %w", i, steps, err)
		}

		if i == steps {
			break
		}

		timer.Reset(p.Step)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}
