package job

import (
	"context"
	"fmt"
	"sync"
)

// State tracks an in-flight or finished conversion for the status and
// cancel endpoints.
type State int

const (
	StateProcessing State = iota
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

var (
	states  = make(map[string]State)
	cancels = make(map[string]context.CancelFunc)
	mu      sync.RWMutex
)

// Track registers a conversion as processing. Returns an error when the
// same id is already in flight; identical concurrent requests would fight
// over one workspace id otherwise.
func Track(id string, cancel context.CancelFunc) error {
	mu.Lock()
	defer mu.Unlock()
	if states[id] == StateProcessing && cancels[id] != nil {
		return fmt.Errorf("conversion %s is already in progress", id)
	}
	states[id] = StateProcessing
	cancels[id] = cancel
	return nil
}

// Finish records the terminal state and drops the cancel func.
func Finish(id string, state State) {
	mu.Lock()
	defer mu.Unlock()
	states[id] = state
	delete(cancels, id)
}

// GetState returns the current state of a conversion.
func GetState(id string) (State, bool) {
	mu.RLock()
	defer mu.RUnlock()
	state, exists := states[id]
	return state, exists
}

// Cancel aborts an in-flight conversion. The cancellation propagates to
// whichever child operation is outstanding: an open download or a running
// ffmpeg process, which gets killed.
func Cancel(id string) error {
	mu.Lock()
	defer mu.Unlock()

	state, exists := states[id]
	if !exists {
		return fmt.Errorf("conversion %s not found", id)
	}
	if state != StateProcessing {
		return fmt.Errorf("conversion %s is already %s", id, state)
	}
	cancel, ok := cancels[id]
	if !ok {
		return fmt.Errorf("conversion %s has no active handle", id)
	}
	cancel()
	delete(cancels, id)
	states[id] = StateCancelled
	return nil
}
