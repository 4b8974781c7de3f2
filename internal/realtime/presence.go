package realtime

import (
	"sync"
	"time"
)

// Status is a user's presence status.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
)

// IsValid checks if the Status is one of the accepted values.
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	default:
		return false
	}
}

// PresenceState is a user's current status and last-seen time.
type PresenceState struct {
	UserID   uint
	Status   Status
	LastSeen time.Time
}

// PresenceTracker owns the presence map. It only mutates state; announcing
// transitions is the hub's job so that validation failures never broadcast.
type PresenceTracker struct {
	mu     sync.RWMutex
	states map[uint]PresenceState
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		states: make(map[uint]PresenceState),
	}
}

// SetStatus records a user-requested status. Invalid statuses are rejected
// with a validation error returned to the caller only.
func (p *PresenceTracker) SetStatus(userID uint, status Status) (PresenceState, error) {
	if !status.IsValid() {
		return PresenceState{}, newValidationError("INVALID_STATUS", "status must be one of online, offline, away, busy")
	}
	return p.force(userID, status), nil
}

// ForceOnline applies the unconditional connect transition.
func (p *PresenceTracker) ForceOnline(userID uint) PresenceState {
	return p.force(userID, StatusOnline)
}

// ForceOffline applies the unconditional disconnect transition, overriding
// whatever the client last requested.
func (p *PresenceTracker) ForceOffline(userID uint) PresenceState {
	return p.force(userID, StatusOffline)
}

func (p *PresenceTracker) force(userID uint, status Status) PresenceState {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := PresenceState{
		UserID:   userID,
		Status:   status,
		LastSeen: time.Now(),
	}
	p.states[userID] = state
	return state
}

// Get returns the tracked state for userID.
func (p *PresenceTracker) Get(userID uint) (PresenceState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state, ok := p.states[userID]
	return state, ok
}
