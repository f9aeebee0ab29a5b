package audio

import (
	"sync"
	"time"
)

// SilenceTimer accumulates how long a peak signal has been continuously silent.
// Any non-silent sample resets it to zero; it is never paused and resumed.
// It is safe for concurrent use.
type SilenceTimer struct {
	mu           sync.Mutex
	silenceStart time.Time // when the current silence period started
	elapsed      time.Duration
}

// NewSilenceTimer creates a new silence timer.
func NewSilenceTimer() *SilenceTimer {
	return &SilenceTimer{}
}

// Update records a peak sample taken at now and returns the current silence duration.
func (t *SilenceTimer) Update(peak float32, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !IsSilent(peak) {
		t.silenceStart = time.Time{}
		t.elapsed = 0
		return 0
	}

	if t.silenceStart.IsZero() {
		t.silenceStart = now
	}

	// Clock steps backwards must not shrink an ongoing silence.
	if d := now.Sub(t.silenceStart); d > t.elapsed {
		t.elapsed = d
	}
	return t.elapsed
}

// Elapsed returns the current silence duration without recording a sample.
func (t *SilenceTimer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Silent reports whether a silence period is in progress.
func (t *SilenceTimer) Silent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.silenceStart.IsZero()
}

// Reset clears the silence state.
func (t *SilenceTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.silenceStart = time.Time{}
	t.elapsed = 0
}
