package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/soaringjerry/Vox/internal/onboarding"
)

// StateRelay hands controller state changes to the program. Publish never
// blocks, and a slow program only ever sees the latest state.
type StateRelay struct {
	mu      sync.Mutex
	latest  onboarding.State
	pending bool
	notify  chan struct{}
}

func NewStateRelay() *StateRelay {
	return &StateRelay{notify: make(chan struct{}, 1)}
}

// Publish records s. It is safe to call with the controller locked.
func (r *StateRelay) Publish(s onboarding.State) {
	r.mu.Lock()
	r.latest = s
	r.pending = true
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Run sends a StateMsg for each published state until ctx is done.
func (r *StateRelay) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.notify:
			r.mu.Lock()
			s, ok := r.latest, r.pending
			r.pending = false
			r.mu.Unlock()
			if ok {
				send(StateMsg{State: s})
			}
		}
	}
}
