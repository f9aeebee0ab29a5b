package ducking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/types"
)

const testThreshold = time.Second

type tickFeeder struct {
	d        *Decider
	now      time.Time
	sessions audio.SessionSet
}

func newTickFeeder() *tickFeeder {
	return &tickFeeder{
		d:        NewDecider(),
		now:      time.Unix(5000, 0),
		sessions: audio.NewSessionSet("player", "browser", "chat"),
	}
}

// tick observes peak and then advances the clock by one poll interval.
func (f *tickFeeder) tick(peak float32) Decision {
	dec := f.d.Observe(Observation{
		Sessions:  f.sessions,
		HasPeak:   true,
		Peak:      peak,
		Threshold: testThreshold,
		Now:       f.now,
	})
	f.now = f.now.Add(types.PollInterval)
	return dec
}

func (f *tickFeeder) absent() Decision {
	dec := f.d.Observe(Observation{Sessions: f.sessions, Threshold: testThreshold, Now: f.now})
	f.now = f.now.Add(types.PollInterval)
	return dec
}

func TestDeciderLowersWhilePlaying(t *testing.T) {
	f := newTickFeeder()

	dec := f.tick(0.5)
	assert.True(t, dec.Launch)
	assert.Equal(t, types.StageLower, dec.Stage)
	assert.Equal(t, ReasonStageChanged, dec.Reason)

	for range 5 {
		dec = f.tick(0.5)
		assert.False(t, dec.Launch)
		assert.Equal(t, types.StageLower, dec.Stage)
	}
	assert.Equal(t, types.StageLower, f.d.Stage())
}

func TestDeciderRaisesAfterThreshold(t *testing.T) {
	f := newTickFeeder()
	f.tick(0.5)

	// Silence starts at the first silent sample; 0, 300, 600 and 900 ms stay lowered.
	for range 4 {
		dec := f.tick(0)
		assert.False(t, dec.Launch)
		assert.Equal(t, types.StageLower, dec.Stage)
	}

	dec := f.tick(0)
	assert.True(t, dec.Launch)
	assert.Equal(t, types.StageRaise, dec.Stage)
	assert.Equal(t, 1200*time.Millisecond, dec.Silence)

	dec = f.tick(0)
	assert.False(t, dec.Launch)
	assert.Equal(t, types.StageRaise, dec.Stage)
}

func TestDeciderSoundDuringSilenceKeepsLowered(t *testing.T) {
	f := newTickFeeder()
	f.tick(0.5)
	f.tick(0)
	f.tick(0)
	f.tick(0)

	dec := f.tick(0.2)
	assert.False(t, dec.Launch)
	assert.Equal(t, time.Duration(0), dec.Silence)

	for range 4 {
		assert.False(t, f.tick(0).Launch)
	}
	assert.True(t, f.tick(0).Launch)
}

func TestDeciderLowersAgainWhenSoundReturns(t *testing.T) {
	f := newTickFeeder()
	f.tick(0.5)
	for range 5 {
		f.tick(0)
	}
	assert.Equal(t, types.StageRaise, f.d.Stage())

	dec := f.tick(0.3)
	assert.True(t, dec.Launch)
	assert.Equal(t, types.StageLower, dec.Stage)
	assert.Equal(t, ReasonStageChanged, dec.Reason)
}

func TestDeciderInitiallySilentLowersFirst(t *testing.T) {
	f := newTickFeeder()

	dec := f.tick(0)
	assert.True(t, dec.Launch)
	assert.Equal(t, types.StageLower, dec.Stage)
}

func TestDeciderSessionSetChange(t *testing.T) {
	f := newTickFeeder()
	f.tick(0.5)

	f.sessions = audio.NewSessionSet("player", "browser", "chat", "radio")
	dec := f.tick(0.5)
	assert.True(t, dec.Launch)
	assert.Equal(t, types.StageLower, dec.Stage)
	assert.Equal(t, ReasonSessionsChanged, dec.Reason)

	assert.False(t, f.tick(0.5).Launch)

	f.sessions = audio.NewSessionSet("player", "radio")
	dec = f.tick(0.5)
	assert.True(t, dec.Launch)
	assert.Equal(t, ReasonSessionsChanged, dec.Reason)
}

func TestDeciderAbsentTrackedHoldsStage(t *testing.T) {
	f := newTickFeeder()
	f.tick(0.5)
	f.tick(0)

	f.sessions = audio.NewSessionSet("browser")
	for range 10 {
		dec := f.absent()
		assert.False(t, dec.Launch)
		assert.Equal(t, types.StageLower, dec.Stage)
	}
	assert.Equal(t, types.StageLower, f.d.Stage())
}

func TestDeciderIdleWithoutEvidence(t *testing.T) {
	f := newTickFeeder()

	dec := f.absent()
	assert.False(t, dec.Launch)
	assert.Equal(t, types.StageIdle, dec.Stage)
}

func TestDeciderRetarget(t *testing.T) {
	f := newTickFeeder()
	f.tick(0.5)
	f.tick(0)
	f.tick(0)
	assert.Equal(t, 300*time.Millisecond, f.d.Silence())

	f.d.Retarget()
	assert.Equal(t, time.Duration(0), f.d.Silence())

	dec := f.tick(0.5)
	assert.True(t, dec.Launch)
	assert.Equal(t, types.StageLower, dec.Stage)
	assert.Equal(t, ReasonSessionsChanged, dec.Reason)
}

func TestDeciderCommit(t *testing.T) {
	f := newTickFeeder()
	f.d.Commit(types.StageRaise, nil)

	dec := f.tick(0.5)
	assert.True(t, dec.Launch)
	assert.Equal(t, types.StageLower, dec.Stage)
}
