package engine

import (
	"sync"

	"confluence-trading-bot/internal/types"
)

// State is the engine's only memory across cycles: the last decision emitted
// per instrument, keyed to the closed bar it was derived from. It exists so a
// decision already handed to the broker (placed or rejected) is not re-emitted
// while the same bar is still the latest one.
type State struct {
	mu   sync.Mutex
	last map[string]lastDecision
}

type lastDecision struct {
	direction types.Direction
	barTime   int64 // unix ms of the bar the decision came from
}

func NewState() *State {
	return &State{last: make(map[string]lastDecision)}
}

// Duplicate reports whether a decision with this direction was already emitted
// for the instrument from the same closed bar.
func (s *State) Duplicate(instrument string, dir types.Direction, barTime int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.last[instrument]
	return ok && prev.direction == dir && prev.barTime == barTime
}

// Record remembers the decision just handed to the broker. An opposite
// direction or a newer bar overwrites the entry.
func (s *State) Record(instrument string, dir types.Direction, barTime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[instrument] = lastDecision{direction: dir, barTime: barTime}
}
