package ducking

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/types"
)

// NoProcess is the process ID meaning "no tracked process".
const NoProcess = -1

// Plan describes one fade batch.
type Plan struct {
	Stage      types.Stage
	Fade       FadeParams
	Sessions   audio.SessionSet // sessions to ramp; nil means every session
	ExcludePID int              // sessions of this process are left alone
	Restore    audio.SessionSet // sessions faded to full regardless of the above
}

// PlanFor returns the plan for stage over sessions, excluding the tracked process.
func PlanFor(stage types.Stage, low float32, sessions audio.SessionSet, trackedPID int) Plan {
	fade := RaiseFade
	if stage == types.StageLower {
		fade = LowerFade(low)
	}
	return Plan{
		Stage:      stage,
		Fade:       fade,
		Sessions:   sessions,
		ExcludePID: trackedPID,
	}
}

// BatchResult summarizes a finished batch.
type BatchResult struct {
	Stage     types.Stage
	Started   int  // fade jobs launched
	Completed int  // jobs that reached their target
	Skipped   int  // sessions without a volume control
	Failed    int  // jobs aborted by a session error
	Cancelled bool // the batch scope was cancelled before all jobs finished
}

// RunBatch fades every session in plan concurrently and returns once all jobs
// have completed or been cancelled. It acquires its own session handles and
// releases them before returning. Session failures are logged and skipped;
// cancellation is reported in the result, not as an error.
func RunBatch(ctx context.Context, source audio.SessionSource, plan Plan) BatchResult {
	res := BatchResult{Stage: plan.Stage}

	enum, err := source.Enumerate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res
		}
		slog.Warn("batch: failed to enumerate sessions", "stage", plan.Stage, "error", err)
		return res
	}
	defer enum.Close()

	var completed, failed atomic.Int32
	var g errgroup.Group

	for i := range enum.Sessions {
		s := &enum.Sessions[i]
		fade := plan.Fade
		if _, ok := plan.Restore[s.ID]; ok {
			fade = RaiseFade
		} else if s.ProcessID == plan.ExcludePID || !plan.Sessions.Contains(s.ID) {
			continue
		}
		if s.Volume == nil {
			slog.Warn("batch: no volume control, skipping session", "session_id", s.ID, "process_id", s.ProcessID)
			res.Skipped++
			continue
		}

		res.Started++
		g.Go(func() error {
			err := FadeTo(ctx, s.Volume, fade)
			switch {
			case err == nil:
				completed.Add(1)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				slog.Debug("batch: fade cancelled", "session_id", s.ID)
			default:
				failed.Add(1)
				slog.Warn("batch: fade failed, skipping session", "session_id", s.ID, "error", err)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // jobs report through counters and never return errors

	res.Completed = int(completed.Load())
	res.Failed = int(failed.Load())
	res.Cancelled = ctx.Err() != nil && res.Completed+res.Failed < res.Started
	return res
}
