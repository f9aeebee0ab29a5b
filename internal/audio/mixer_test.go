package audio

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMixer(t *testing.T) *Mixer {
	t.Helper()
	m := NewMixer()
	require.NoError(t, m.Add("player", 100, "Player", 1))
	require.NoError(t, m.Add("browser", 200, "Browser", 0.8))
	require.NoError(t, m.Add("chat", 300, "Chat", 0.5))
	return m
}

func TestMixerAddDuplicate(t *testing.T) {
	m := newTestMixer(t)
	err := m.Add("player", 101, "Other", 1)
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestMixerSessionsInInsertionOrder(t *testing.T) {
	m := newTestMixer(t)
	require.NoError(t, m.SetPeak("browser", 0.4))

	sessions := m.Sessions()
	require.Len(t, sessions, 3)
	assert.Equal(t, "player", sessions[0].ID)
	assert.Equal(t, "browser", sessions[1].ID)
	assert.Equal(t, "chat", sessions[2].ID)
	assert.InDelta(t, 0.4, sessions[1].Peak, 1e-6)
	assert.InDelta(t, 0.8, sessions[1].Volume, 1e-6)
}

func TestMixerClampsVolume(t *testing.T) {
	m := NewMixer()
	require.NoError(t, m.Add("a", 1, "A", 3))

	v, err := m.Volume("a")
	require.NoError(t, err)
	assert.Equal(t, float32(1), v)

	require.NoError(t, m.SetVolume("a", -0.5))
	v, err = m.Volume("a")
	require.NoError(t, err)
	assert.Equal(t, float32(0), v)
}

func TestMixerSetProcessPeak(t *testing.T) {
	m := newTestMixer(t)
	require.NoError(t, m.Add("player-2", 100, "Player (2)", 1))

	assert.Equal(t, 2, m.SetProcessPeak(100, 0.7))
	assert.Equal(t, 0, m.SetProcessPeak(999, 0.7))
}

func TestMixerEnumerateHandles(t *testing.T) {
	m := newTestMixer(t)

	enum, err := m.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, m.OpenHandles())
	assert.Equal(t, NewSessionSet("player", "browser", "chat"), enum.Set())

	s, ok := enum.Find(200)
	require.True(t, ok)
	assert.Equal(t, "browser", s.ID)

	require.NoError(t, s.Volume.SetVolume(0.3))
	v, err := m.Volume("browser")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, v, 1e-6)

	enum.Close()
	enum.Close()
	assert.Equal(t, 0, m.OpenHandles())

	_, err = s.Meter.Peak()
	assert.ErrorIs(t, err, ErrHandleReleased)
	assert.ErrorIs(t, s.Volume.SetVolume(1), ErrHandleReleased)
}

func TestMixerHandleOfRemovedSession(t *testing.T) {
	m := newTestMixer(t)

	enum, err := m.Enumerate(context.Background())
	require.NoError(t, err)
	defer enum.Close()

	require.NoError(t, m.Remove("chat"))
	s, ok := enum.Find(300)
	require.True(t, ok)

	_, err = s.Volume.Volume()
	assert.ErrorIs(t, err, ErrSessionGone)
}

func TestMixerFailNextEnumerate(t *testing.T) {
	m := newTestMixer(t)
	boom := errors.New("device unavailable")
	m.FailNextEnumerate(boom)

	_, err := m.Enumerate(context.Background())
	assert.ErrorIs(t, err, boom)

	enum, err := m.Enumerate(context.Background())
	require.NoError(t, err)
	enum.Close()
}

func TestMixerEnumerateCancelled(t *testing.T) {
	m := newTestMixer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Enumerate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.OpenHandles())
}

func TestSessionSet(t *testing.T) {
	a := NewSessionSet("x", "y")
	assert.True(t, a.Equal(NewSessionSet("y", "x")))
	assert.False(t, a.Equal(NewSessionSet("x")))
	assert.False(t, a.Equal(NewSessionSet("x", "z")))
	assert.Equal(t, []string{"x", "y"}, a.IDs())

	var all SessionSet
	assert.True(t, all.Contains("anything"))
	assert.False(t, SessionSet{}.Contains("anything"))
}

func TestNilEnumeration(t *testing.T) {
	var enum *Enumeration
	enum.Close()
	assert.Empty(t, enum.Set())
	_, ok := enum.Find(1)
	assert.False(t, ok)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, float32(0), Clamp01(-1))
	assert.Equal(t, float32(1), Clamp01(1.5))
	assert.Equal(t, float32(0.25), Clamp01(0.25))
	assert.Equal(t, float32(0), Clamp01(float32(math.NaN())))
}
