package platform

import (
	"sync"
)

// LifecycleState is the host application's visibility state.
type LifecycleState string

const (
	// LifecycleStateResumed indicates the app is visible and receiving input.
	LifecycleStateResumed LifecycleState = "resumed"

	// LifecycleStatePaused indicates the app is not visible but still alive.
	LifecycleStatePaused LifecycleState = "paused"

	// LifecycleStateDetached indicates the host view is gone; nothing renders
	// until a new host session starts.
	LifecycleStateDetached LifecycleState = "detached"
)

// LifecycleHandler is called when the lifecycle state changes.
type LifecycleHandler func(state LifecycleState)

// LifecycleService tracks the host lifecycle state and notifies handlers.
type LifecycleService struct {
	mu       sync.RWMutex
	state    LifecycleState
	handlers map[int]LifecycleHandler
	nextID   int
}

// NewLifecycleService returns a service in the paused state; hosts report
// resumed once their first activity is visible.
func NewLifecycleService() *LifecycleService {
	return &LifecycleService{
		state:    LifecycleStatePaused,
		handlers: make(map[int]LifecycleHandler),
	}
}

// State returns the current lifecycle state.
func (l *LifecycleService) State() LifecycleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// AddHandler registers a handler to be called on lifecycle changes.
// Returns a function that removes the handler.
func (l *LifecycleService) AddHandler(handler LifecycleHandler) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.handlers[id] = handler
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.handlers, id)
		l.mu.Unlock()
	}
}

// IsResumed returns true if the app is in the resumed state.
func (l *LifecycleService) IsResumed() bool {
	return l.State() == LifecycleStateResumed
}

// IsPaused returns true if the app is paused.
func (l *LifecycleService) IsPaused() bool {
	return l.State() == LifecycleStatePaused
}

// update sets the state and notifies handlers outside the lock. It reports
// whether the state changed.
func (l *LifecycleService) update(newState LifecycleState) bool {
	l.mu.Lock()
	if l.state == newState {
		l.mu.Unlock()
		return false
	}
	l.state = newState
	handlers := make([]LifecycleHandler, 0, len(l.handlers))
	for _, h := range l.handlers {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()

	for _, h := range handlers {
		h(newState)
	}
	return true
}
