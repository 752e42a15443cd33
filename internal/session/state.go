package session

import (
	"sync"
	"time"

	"github.com/kvasnica/wspydrone/internal/domain"
)

// State is shared by the controller, the dispatcher and the broadcaster.
type State struct {
	mu             sync.RWMutex
	running        bool
	samplingPeriod time.Duration
	initialPeriod  time.Duration
}

// NewState creates a closed state whose sampling period starts, and resets
// to, initial. Out-of-range values are clamped.
func NewState(initial time.Duration) *State {
	initial = clampPeriod(initial)
	return &State{samplingPeriod: initial, initialPeriod: initial}
}

func (s *State) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

// Close clears the running flag. It is the only signal that stops the
// broadcaster from rescheduling.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *State) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *State) SamplingPeriod() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samplingPeriod
}

func (s *State) SetSamplingPeriod(period time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplingPeriod = clampPeriod(period)
}

// Reset restores the initial values.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.samplingPeriod = s.initialPeriod
}

func clampPeriod(p time.Duration) time.Duration {
	return min(max(p, domain.MinSamplingPeriod), domain.MaxSamplingPeriod)
}
