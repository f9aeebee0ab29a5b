package ducking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-ducker/internal/types"
)

// recordingVolume is a VolumeControl that records every write.
type recordingVolume struct {
	mu      sync.Mutex
	value   float32
	writes  []float32
	readErr error
	failAt  int          // fail the nth write (1-based), 0 never fails
	onWrite func(n int) // called after the nth write
}

func (v *recordingVolume) Volume() (float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.readErr != nil {
		return 0, v.readErr
	}
	return v.value, nil
}

func (v *recordingVolume) SetVolume(x float32) error {
	v.mu.Lock()
	n := len(v.writes) + 1
	if v.failAt == n {
		v.mu.Unlock()
		return errors.New("session lost")
	}
	v.value = x
	v.writes = append(v.writes, x)
	hook := v.onWrite
	v.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (v *recordingVolume) Writes() []float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]float32(nil), v.writes...)
}

func (v *recordingVolume) Value() float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

func TestFadeStepCounts(t *testing.T) {
	assert.Equal(t, 16, RaiseFade.Steps())
	assert.Equal(t, 15, LowerFade(0.3).Steps())
	assert.Equal(t, 0, FadeParams{Target: 1, Duration: 0, Step: types.RaiseStep}.Steps())
	assert.Equal(t, 0, FadeParams{Target: 1, Duration: time.Second, Step: 0}.Steps())
}

func TestFadeToRaise(t *testing.T) {
	vol := &recordingVolume{value: 0.3}

	require.NoError(t, FadeTo(context.Background(), vol, RaiseFade))

	writes := vol.Writes()
	require.Len(t, writes, 16)
	assert.Equal(t, float32(1.0), writes[len(writes)-1])
	for i := 1; i < len(writes); i++ {
		assert.GreaterOrEqual(t, writes[i], writes[i-1], "write %d", i)
	}
	assert.Greater(t, writes[0], float32(0.3))
}

func TestFadeToLowerUsesLiveStartVolume(t *testing.T) {
	vol := &recordingVolume{value: 0.6}

	require.NoError(t, FadeTo(context.Background(), vol, LowerFade(0.2)))

	writes := vol.Writes()
	require.Len(t, writes, 15)
	assert.InDelta(t, 0.6-0.4/15, writes[0], 1e-5)
	assert.Equal(t, float32(0.2), writes[14])
}

func TestFadeToZeroStepsWritesTarget(t *testing.T) {
	vol := &recordingVolume{value: 1}

	require.NoError(t, FadeTo(context.Background(), vol, FadeParams{Target: 0.4}))
	assert.Equal(t, []float32{0.4}, vol.Writes())
}

func TestFadeToClampsTarget(t *testing.T) {
	vol := &recordingVolume{value: 0.5}

	require.NoError(t, FadeTo(context.Background(), vol, FadeParams{Target: 1.7, Duration: 4 * time.Millisecond, Step: time.Millisecond}))

	writes := vol.Writes()
	require.Len(t, writes, 4)
	for _, w := range writes {
		assert.LessOrEqual(t, w, float32(1))
	}
	assert.Equal(t, float32(1), writes[3])
}

func TestFadeToCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vol := &recordingVolume{value: 1}
	vol.onWrite = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	err := FadeTo(ctx, vol, LowerFade(0))
	assert.ErrorIs(t, err, context.Canceled)

	writes := vol.Writes()
	require.Len(t, writes, 3)
	// No rollback: the volume stays at the last value written.
	assert.Equal(t, writes[2], vol.Value())
	assert.Greater(t, vol.Value(), float32(0))
}

func TestFadeToAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vol := &recordingVolume{value: 0.7}
	assert.ErrorIs(t, FadeTo(ctx, vol, RaiseFade), context.Canceled)
	assert.Empty(t, vol.Writes())
	assert.Equal(t, float32(0.7), vol.Value())
}

func TestFadeToReadError(t *testing.T) {
	boom := errors.New("no such session")
	vol := &recordingVolume{readErr: boom}

	err := FadeTo(context.Background(), vol, RaiseFade)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, vol.Writes())
}

func TestFadeToWriteErrorStops(t *testing.T) {
	vol := &recordingVolume{value: 1, failAt: 2}

	err := FadeTo(context.Background(), vol, FadeParams{Target: 0, Duration: 5 * time.Millisecond, Step: time.Millisecond})
	require.Error(t, err)
	assert.Len(t, vol.Writes(), 1)
}
