package application

import "voice-orb/internal/domain"

// StateObserver renders the controller state. Calls are made on the
// controller's event loop and must not block.
type StateObserver interface {
	StateChanged(state domain.State)
}

type StateObserverFunc func(state domain.State)

func (f StateObserverFunc) StateChanged(state domain.State) {
	f(state)
}
