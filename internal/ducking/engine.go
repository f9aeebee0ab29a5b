// Package ducking implements the automatic attenuation engine. A decision loop
// watches the peak level of one tracked process and fades every other audio
// session down while it plays and back up once it has been silent long enough.
package ducking

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/events"
	"github.com/oszuidwest/zwfm-ducker/internal/types"
	"github.com/oszuidwest/zwfm-ducker/internal/util"
)

var (
	// ErrAlreadyRunning is returned when Start is called on a running engine.
	ErrAlreadyRunning = errors.New("engine already running")
	// ErrLoopTimeout is returned when the decision loop does not exit in time.
	ErrLoopTimeout = errors.New("decision loop did not stop in time")
	// ErrRestoreTimeout is returned when the restore batch does not finish in time.
	ErrRestoreTimeout = errors.New("volume restore did not finish in time")
)

// EventLogger records engine events. A nil EventLogger disables event logging.
type EventLogger interface {
	Log(event *events.StageEvent) error
}

// Settings holds the initial engine configuration.
type Settings struct {
	SilenceThresholdMs int64   // clamped to the accepted range
	LowVolume          float32 // attenuated volume fraction, clamped to [0,1]
	TrackedProcessID   *int    // nil tracks nothing
}

// Engine owns the decision loop and the fade batches it launches.
// Configuration setters are safe to call from any goroutine while running.
type Engine struct {
	source audio.SessionSource
	events EventLogger

	trackedPID  atomic.Int64
	thresholdMs atomic.Int64
	lowVolume   atomic.Uint32 // float32 bits

	pollInterval    time.Duration
	restoreTimeout  time.Duration
	shutdownTimeout time.Duration

	mu         sync.RWMutex
	state      types.EngineState
	cancel     context.CancelFunc
	done       chan struct{}
	startTime  time.Time
	stage      types.Stage
	silence    time.Duration
	batchCount int
	lastBatch  *types.BatchSummary
	lastError  string
}

// New creates an Engine reading sessions from source. It does not start polling.
func New(source audio.SessionSource, settings Settings, eventLog EventLogger) *Engine {
	e := &Engine{
		source:          source,
		events:          eventLog,
		pollInterval:    types.PollInterval,
		restoreTimeout:  types.RestoreTimeout,
		shutdownTimeout: types.ShutdownTimeout,
		state:           types.StateStopped,
		stage:           types.StageIdle,
	}
	e.SetConfig(settings.SilenceThresholdMs, settings.LowVolume)
	e.SetTrackedProcess(settings.TrackedProcessID)
	return e
}

// SetTrackedProcess sets the process whose audio drives the ducking decision.
// A nil or negative pid tracks nothing. Takes effect on the next tick.
func (e *Engine) SetTrackedProcess(pid *int) {
	if pid == nil || *pid < 0 {
		e.trackedPID.Store(NoProcess)
		return
	}
	e.trackedPID.Store(int64(*pid))
}

// TrackedProcess returns the tracked process ID, or nil when none is tracked.
func (e *Engine) TrackedProcess() *int {
	pid := e.trackedPID.Load()
	if pid == NoProcess {
		return nil
	}
	v := int(pid)
	return &v
}

// SetConfig updates the silence threshold and low volume. The threshold is
// clamped to [MinSilenceThresholdMs, MaxSilenceThresholdMs] and low to [0,1].
func (e *Engine) SetConfig(thresholdMs int64, low float32) {
	e.thresholdMs.Store(min(max(thresholdMs, types.MinSilenceThresholdMs), types.MaxSilenceThresholdMs))
	e.lowVolume.Store(math.Float32bits(audio.Clamp01(low)))
}

// SilenceThreshold returns the configured silence threshold.
func (e *Engine) SilenceThreshold() time.Duration {
	return time.Duration(e.thresholdMs.Load()) * time.Millisecond
}

// LowVolume returns the configured attenuated volume fraction.
func (e *Engine) LowVolume() float32 {
	return math.Float32frombits(e.lowVolume.Load())
}

// Stage returns the last acted-upon stage.
func (e *Engine) Stage() types.Stage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stage
}

// Start launches the decision loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != types.StateStopped {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.state = types.StateRunning
	e.startTime = time.Now()
	e.stage = types.StageIdle
	e.silence = 0
	e.batchCount = 0
	e.lastBatch = nil
	e.lastError = ""

	slog.Info("ducking engine started",
		"poll_interval", e.pollInterval,
		"silence_threshold_ms", e.thresholdMs.Load(),
		"low_volume", e.LowVolume(),
		"tracked_process_id", e.trackedPID.Load())
	e.logEvent(&events.StageEvent{Event: events.EventStarted, TrackedProcessID: int(e.trackedPID.Load())})

	go e.run(ctx, e.done)
	return nil
}

// Stop cancels the decision loop and restores every session to full volume.
// Both phases are bounded so Stop never blocks on a stuck audio backend.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != types.StateRunning {
		e.mu.Unlock()
		return nil
	}
	e.state = types.StateStopping
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()

	var errs []error
	select {
	case <-done:
	case <-time.After(e.shutdownTimeout):
		slog.Warn("decision loop did not exit in time, continuing shutdown", "timeout", e.shutdownTimeout)
		errs = append(errs, ErrLoopTimeout)
	}

	if err := e.restore(); err != nil {
		errs = append(errs, err)
	}

	e.mu.Lock()
	e.state = types.StateStopped
	e.cancel = nil
	e.done = nil
	e.stage = types.StageIdle
	e.silence = 0
	e.mu.Unlock()

	e.logEvent(&events.StageEvent{Event: events.EventStopped})
	slog.Info("ducking engine stopped")
	return errors.Join(errs...)
}

// restore runs a raise batch over every session, bounded by restoreTimeout.
func (e *Engine) restore() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.restoreTimeout)
	defer cancel()

	plan := Plan{Stage: types.StageRaise, Fade: RaiseFade, ExcludePID: NoProcess}
	finished := make(chan BatchResult, 1)
	go func() {
		finished <- RunBatch(ctx, e.source, plan)
	}()

	select {
	case res := <-finished:
		e.logEvent(&events.StageEvent{Event: events.EventRestored, Stage: string(types.StageRaise), Sessions: res.Completed})
		if res.Cancelled {
			slog.Warn("volume restore cut short", "completed", res.Completed, "started", res.Started)
			return ErrRestoreTimeout
		}
		slog.Info("volumes restored", "sessions", res.Completed, "failed", res.Failed, "skipped", res.Skipped)
		return nil
	case <-ctx.Done():
		slog.Warn("volume restore did not finish in time, continuing shutdown", "timeout", e.restoreTimeout)
		return ErrRestoreTimeout
	}
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() types.EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := types.EngineStatus{
		State:              e.state,
		Stage:              e.stage,
		TrackedProcessID:   e.TrackedProcess(),
		SilenceMs:          e.silence.Milliseconds(),
		SilenceThresholdMs: e.thresholdMs.Load(),
		LowVolume:          e.LowVolume(),
		BatchCount:         e.batchCount,
		LastError:          e.lastError,
	}
	if e.lastBatch != nil {
		summary := *e.lastBatch
		status.LastBatch = &summary
	}
	if e.state == types.StateRunning {
		status.Uptime = util.FormatDuration(time.Since(e.startTime))
	}
	return status
}

// loopState is owned by the decision loop goroutine.
type loopState struct {
	decider *Decider
	batches *coordinator
	tracked int64
	// restore holds sessions of a newly tracked process that earlier batches may
	// have lowered. They ride along with the next launched batch, fading back to full.
	restore audio.SessionSet
}

// run is the decision loop. It exits when ctx is cancelled, after cancelling
// the in-flight batch and waiting for it to drain.
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	st := &loopState{
		decider: NewDecider(),
		batches: newCoordinator(ctx),
		tracked: NoProcess,
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("decision loop panic", "panic", r)
		}
		st.batches.Cancel()
		st.batches.Wait()
		close(done)
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		tickStart := time.Now()
		e.tick(ctx, st)
		timer.Reset(max(e.pollInterval-time.Since(tickStart), 0))
	}
}

// tick performs one poll.
func (e *Engine) tick(ctx context.Context, st *loopState) {
	tracked := e.trackedPID.Load()

	enum, err := e.source.Enumerate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("failed to enumerate sessions, retrying next tick", "error", err)
		e.setLastError(err)
		enum = nil
	}
	defer enum.Close()

	if enum != nil {
		for _, serr := range enum.Errs {
			slog.Warn("skipped audio session", "error", serr)
		}
	}
	sessions := enum.Set()
	d := st.decider

	if tracked != st.tracked {
		slog.Info("tracked process changed", "from", st.tracked, "to", tracked)
		e.logEvent(&events.StageEvent{Event: events.EventTracking, TrackedProcessID: int(tracked)})
		st.tracked = tracked
		st.restore = nil
		d.Retarget()

		if tracked == NoProcess {
			d.Commit(types.StageRaise, sessions)
			e.launch(st.batches, Plan{Stage: types.StageRaise, Fade: RaiseFade, ExcludePID: NoProcess}, ReasonTrackingCleared, NoProcess, 0)
			e.publish(d)
			return
		}
		if d.Stage() != types.StageIdle {
			st.restore = processSessions(enum, int(tracked))
		}
	}

	if tracked == NoProcess {
		e.publish(d)
		return
	}

	obs := Observation{
		Sessions:  sessions,
		Threshold: time.Duration(e.thresholdMs.Load()) * time.Millisecond,
		Now:       time.Now(),
	}
	if s, ok := enum.Find(int(tracked)); ok && s.Meter != nil {
		peak, err := s.Meter.Peak()
		if err != nil {
			slog.Warn("failed to read tracked peak, skipping tick", "process_id", tracked, "error", err)
		} else {
			obs.HasPeak = true
			obs.Peak = peak
		}
	}

	dec := d.Observe(obs)
	if dec.Launch {
		plan := PlanFor(dec.Stage, e.LowVolume(), sessions, int(tracked))
		plan.Restore, st.restore = st.restore, nil
		e.launch(st.batches, plan, dec.Reason, int(tracked), dec.Silence)
	}
	e.publish(d)
}

// processSessions returns the IDs of the sessions owned by pid.
func processSessions(enum *audio.Enumeration, pid int) audio.SessionSet {
	if enum == nil {
		return nil
	}
	set := audio.SessionSet{}
	for i := range enum.Sessions {
		if enum.Sessions[i].ProcessID == pid {
			set[enum.Sessions[i].ID] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// launch supersedes the running batch with one executing plan.
func (e *Engine) launch(batches *coordinator, plan Plan, reason string, tracked int, silence time.Duration) {
	seq := batches.Launch(func(ctx context.Context, seq uint64) {
		res := RunBatch(ctx, e.source, plan)
		slog.Debug("batch finished",
			"batch", seq,
			"stage", res.Stage,
			"started", res.Started,
			"completed", res.Completed,
			"failed", res.Failed,
			"skipped", res.Skipped,
			"cancelled", res.Cancelled)
	})

	slog.Info("adjusting volumes", "stage", plan.Stage, "reason", reason, "sessions", len(plan.Sessions), "batch", seq)

	e.mu.Lock()
	e.batchCount++
	e.lastBatch = &types.BatchSummary{
		Stage:     plan.Stage,
		StartedAt: time.Now(),
		Sessions:  len(plan.Sessions),
		Reason:    reason,
	}
	e.mu.Unlock()

	e.logEvent(&events.StageEvent{
		Event:            events.EventBatch,
		Stage:            string(plan.Stage),
		Reason:           reason,
		TrackedProcessID: tracked,
		Sessions:         len(plan.Sessions),
		SilenceMs:        silence.Milliseconds(),
	})
}

func (e *Engine) publish(d *Decider) {
	e.mu.Lock()
	e.stage = d.Stage()
	e.silence = d.Silence()
	e.mu.Unlock()
}

func (e *Engine) setLastError(err error) {
	e.mu.Lock()
	e.lastError = err.Error()
	e.mu.Unlock()
	e.logEvent(&events.StageEvent{Event: events.EventEnumerate, Error: err.Error()})
}

func (e *Engine) logEvent(event *events.StageEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Log(event); err != nil {
		slog.Warn("failed to write event log", "event", event.Event, "error", err)
	}
}
