package risk

import (
	"sync"
	"time"
)

// Registry owns the ticket -> PositionRiskState map. The risk cycle is the
// single writer; other tasks only read snapshots through the narrow API.
type Registry struct {
	mu     sync.RWMutex
	states map[int64]*PositionRiskState
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[int64]*PositionRiskState)}
}

// Obtain returns the state for a ticket, creating it on first sight of a
// profitable position.
func (r *Registry) Obtain(ticket int64) *PositionRiskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[ticket]
	if !ok {
		st = &PositionRiskState{
			Ticket:    ticket,
			Mode:      Conservative,
			FirstSeen: time.Now(),
		}
		r.states[ticket] = st
	}
	return st
}

// Snapshot returns a copy of the state for a ticket, for reporters.
func (r *Registry) Snapshot(ticket int64) (PositionRiskState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[ticket]
	if !ok {
		return PositionRiskState{}, false
	}
	return *st, true
}

// Len returns the number of tracked tickets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// Prune drops state for tickets no longer present in the broker snapshot
// (closed or never seen again) and returns the removed tickets.
func (r *Registry) Prune(open map[int64]struct{}) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []int64
	for ticket := range r.states {
		if _, ok := open[ticket]; ok {
			continue
		}
		removed = append(removed, ticket)
		delete(r.states, ticket)
	}
	return removed
}
