// Package audio defines the audio session boundary the ducking engine consumes,
// silence tracking, and an in-memory session source.
package audio

import (
	"context"
	"errors"
	"maps"
	"slices"
)

// SilenceFloor is the peak level below which a session is considered silent.
const SilenceFloor float32 = 0.001

// ErrSessionGone is returned when a session disappeared after it was enumerated.
var ErrSessionGone = errors.New("audio session no longer exists")

// PeakMeter reads the instantaneous peak level of a session on a 0.0-1.0 scale.
type PeakMeter interface {
	Peak() (float32, error)
}

// VolumeControl reads and writes the volume scalar of a session.
type VolumeControl interface {
	Volume() (float32, error)
	SetVolume(v float32) error
}

// Session is the set of capabilities a source hands out for one session.
// Meter and Volume are nil when the capability could not be acquired.
// A Session is only valid until the Enumeration that produced it is closed.
type Session struct {
	ID        string
	ProcessID int
	Name      string
	Meter     PeakMeter
	Volume    VolumeControl
}

// Enumeration is the result of one pass over the active sessions.
// Errs holds per-session failures the source skipped while enumerating.
type Enumeration struct {
	Sessions []Session
	Errs     []error

	release func()
}

// NewEnumeration returns an Enumeration whose handles are freed by release.
func NewEnumeration(sessions []Session, errs []error, release func()) *Enumeration {
	return &Enumeration{Sessions: sessions, Errs: errs, release: release}
}

// Close releases every handle acquired for this enumeration. It is safe to
// call more than once and on a nil Enumeration.
func (e *Enumeration) Close() {
	if e == nil || e.release == nil {
		return
	}
	release := e.release
	e.release = nil
	release()
}

// Set returns the identifiers of all enumerated sessions.
func (e *Enumeration) Set() SessionSet {
	if e == nil {
		return SessionSet{}
	}
	set := make(SessionSet, len(e.Sessions))
	for i := range e.Sessions {
		set[e.Sessions[i].ID] = struct{}{}
	}
	return set
}

// Find returns the first session owned by processID.
func (e *Enumeration) Find(processID int) (*Session, bool) {
	if e == nil {
		return nil, false
	}
	for i := range e.Sessions {
		if e.Sessions[i].ProcessID == processID {
			return &e.Sessions[i], true
		}
	}
	return nil, false
}

// SessionSource enumerates the active audio sessions on the default output device.
// Each call must query the device afresh; nothing is cached across calls.
type SessionSource interface {
	Enumerate(ctx context.Context) (*Enumeration, error)
}

// SessionSet is a set of stable session identifiers.
type SessionSet map[string]struct{}

// NewSessionSet returns a set holding ids.
func NewSessionSet(ids ...string) SessionSet {
	set := make(SessionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is in the set. A nil set contains every id.
func (s SessionSet) Contains(id string) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

// Equal reports whether both sets hold exactly the same identifiers.
func (s SessionSet) Equal(other SessionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// IDs returns the identifiers in sorted order.
func (s SessionSet) IDs() []string {
	return slices.Sorted(maps.Keys(s))
}

// IsSilent reports whether peak is below SilenceFloor.
func IsSilent(peak float32) bool {
	return peak < SilenceFloor
}

// Clamp01 limits v to the [0,1] range. NaN maps to 0.
func Clamp01(v float32) float32 {
	if v != v {
		return 0
	}
	return min(max(v, 0), 1)
}
