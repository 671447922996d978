// Package session holds the console's explicit application state: the
// manual-control flag, the once-only polling guard, the connection phase and
// the last operator slider positions. One State is shared by the sync engine,
// the command handlers and the connection gate.
package session

import (
	"sync"

	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

// Phase is the connection gate's state.
type Phase string

const (
	Disconnected Phase = "disconnected"
	Connecting   Phase = "connecting"
	Connected    Phase = "connected"
)

// State holds the current session state
type State struct {
	mu             sync.RWMutex
	manualEnabled  bool
	pollingStarted bool
	phase          Phase
	axes           core.Axes
	targetMission  int64
}

// New creates a State with manual control enabled and no connection.
func New() *State {
	return &State{
		manualEnabled: true,
		phase:         Disconnected,
	}
}

// ManualEnabled reports whether manual control input may reach the vehicle.
func (s *State) ManualEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manualEnabled
}

// SetManualEnabled toggles manual control. It returns true when the value changed.
func (s *State) SetManualEnabled(enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.manualEnabled != enabled
	s.manualEnabled = enabled
	return changed
}

// MarkPollingStarted flips the polling guard. It returns false when polling
// had already been started, in which case the caller must not install loops.
func (s *State) MarkPollingStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollingStarted {
		return false
	}
	s.pollingStarted = true
	return true
}

// PollingStarted reports whether the sync engine has been started.
func (s *State) PollingStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pollingStarted
}

// Phase returns the connection phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// BeginConnect moves disconnected -> connecting. It returns false if a
// connect is already in flight or the session is connected.
func (s *State) BeginConnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Disconnected {
		return false
	}
	s.phase = Connecting
	return true
}

// FinishConnect records the outcome of a connect attempt.
func (s *State) FinishConnect(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.phase = Connected
	} else {
		s.phase = Disconnected
	}
}

// Axes returns the last slider positions.
func (s *State) Axes() core.Axes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.axes
}

// SetAxes stores slider positions.
func (s *State) SetAxes(a core.Axes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.axes = a
}

// TargetMission is the mission id new target uploads are attached to (0 = none).
func (s *State) TargetMission() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.targetMission
}

// SetTargetMission sets the upload mission id.
func (s *State) SetTargetMission(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetMission = id
}
