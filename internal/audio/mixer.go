package audio

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/oszuidwest/zwfm-ducker/internal/types"
)

// Sentinel errors for mixer operations.
var (
	ErrSessionExists  = errors.New("audio session already exists")
	ErrHandleReleased = errors.New("session handle used after release")
)

// virtualSession is a session owned by a Mixer.
type virtualSession struct {
	id     string
	pid    int
	name   string
	volume float32
	peak   float32
	seq    uint64 // insertion order
}

// Mixer is an in-memory SessionSource of virtual sessions. Sessions are added,
// removed and metered by the surrounding application; the engine reads peaks and
// writes volumes through the handles returned by Enumerate.
// It is safe for concurrent use.
type Mixer struct {
	mu       sync.RWMutex
	sessions map[string]*virtualSession
	nextSeq  uint64
	failNext error // returned by the next Enumerate, then cleared

	openHandles atomic.Int64
}

// NewMixer creates an empty mixer.
func NewMixer() *Mixer {
	return &Mixer{sessions: make(map[string]*virtualSession)}
}

// Add registers a new session with the given initial volume.
func (m *Mixer) Add(id string, processID int, name string, volume float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	m.nextSeq++
	m.sessions[id] = &virtualSession{
		id:     id,
		pid:    processID,
		name:   name,
		volume: Clamp01(volume),
		seq:    m.nextSeq,
	}
	return nil
}

// Remove unregisters a session. Outstanding handles to it start failing with ErrSessionGone.
func (m *Mixer) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionGone, id)
	}
	delete(m.sessions, id)
	return nil
}

// SetPeak sets the peak level the session reports.
func (m *Mixer) SetPeak(id string, peak float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionGone, id)
	}
	s.peak = Clamp01(peak)
	return nil
}

// SetProcessPeak sets the peak level of every session owned by processID.
func (m *Mixer) SetProcessPeak(processID int, peak float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.sessions {
		if s.pid == processID {
			s.peak = Clamp01(peak)
			n++
		}
	}
	return n
}

// Volume returns the current volume of a session.
func (m *Mixer) Volume(id string) (float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSessionGone, id)
	}
	return s.volume, nil
}

// SetVolume sets the volume of a session directly.
func (m *Mixer) SetVolume(id string, v float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionGone, id)
	}
	s.volume = Clamp01(v)
	return nil
}

// Sessions returns a snapshot of all sessions in insertion order.
func (m *Mixer) Sessions() []types.SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*virtualSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	slices.SortFunc(list, func(a, b *virtualSession) int {
		return cmp.Compare(a.seq, b.seq)
	})

	infos := make([]types.SessionInfo, len(list))
	for i, s := range list {
		infos[i] = types.SessionInfo{
			ID:        s.id,
			ProcessID: s.pid,
			Name:      s.name,
			Volume:    s.volume,
			Peak:      s.peak,
		}
	}
	return infos
}

// OpenHandles returns the number of session handles not yet released.
func (m *Mixer) OpenHandles() int {
	return int(m.openHandles.Load())
}

// FailNextEnumerate makes the next Enumerate call return err.
func (m *Mixer) FailNextEnumerate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Enumerate returns handles for every registered session.
func (m *Mixer) Enumerate(ctx context.Context) (*Enumeration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		m.mu.Unlock()
		return nil, err
	}
	infos := make([]*virtualSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s)
	}
	m.mu.Unlock()

	slices.SortFunc(infos, func(a, b *virtualSession) int {
		return cmp.Compare(a.seq, b.seq)
	})

	handles := make([]*mixerHandle, len(infos))
	sessions := make([]Session, len(infos))
	for i, s := range infos {
		h := &mixerHandle{mixer: m, id: s.id}
		handles[i] = h
		sessions[i] = Session{
			ID:        s.id,
			ProcessID: s.pid,
			Name:      s.name,
			Meter:     h,
			Volume:    h,
		}
	}
	m.openHandles.Add(int64(len(handles)))

	return NewEnumeration(sessions, nil, func() {
		for _, h := range handles {
			h.released.Store(true)
		}
		m.openHandles.Add(-int64(len(handles)))
	}), nil
}

// mixerHandle is the meter and volume capability for one virtual session.
type mixerHandle struct {
	mixer    *Mixer
	id       string
	released atomic.Bool
}

func (h *mixerHandle) Peak() (float32, error) {
	if h.released.Load() {
		return 0, ErrHandleReleased
	}
	h.mixer.mu.RLock()
	defer h.mixer.mu.RUnlock()

	s, ok := h.mixer.sessions[h.id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSessionGone, h.id)
	}
	return s.peak, nil
}

func (h *mixerHandle) Volume() (float32, error) {
	if h.released.Load() {
		return 0, ErrHandleReleased
	}
	return h.mixer.Volume(h.id)
}

func (h *mixerHandle) SetVolume(v float32) error {
	if h.released.Load() {
		return ErrHandleReleased
	}
	return h.mixer.SetVolume(h.id, v)
}
