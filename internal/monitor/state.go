package monitor

import (
	"sync/atomic"

	"github.com/moodmate/moodmate-backend/internal/models"
)

// AlertBoard holds the latest alert snapshot. Readers always see a whole snapshot.
type AlertBoard struct {
	state atomic.Pointer[models.AlertState]
}

// NewAlertBoard creates a board with an inactive, never-checked state
func NewAlertBoard() *AlertBoard {
	b := &AlertBoard{}
	b.state.Store(&models.AlertState{})
	return b
}

// Snapshot returns a copy of the current state
func (b *AlertBoard) Snapshot() models.AlertState {
	return *b.state.Load()
}

// Publish replaces the whole state
func (b *AlertBoard) Publish(state models.AlertState) {
	b.state.Store(&state)
}

// Deactivate clears the active flag and keeps every other field
func (b *AlertBoard) Deactivate() {
	for {
		current := b.state.Load()
		next := *current
		next.Active = false
		if b.state.CompareAndSwap(current, &next) {
			return
		}
	}
}
