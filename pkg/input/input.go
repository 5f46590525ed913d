// Package input holds the latest pointer sample shared between the control
// thread and the render goroutine.
//
// Writers and readers never block each other: the position and the touch
// counter are independent atomics, so a reader may observe a position from
// one event and a counter from the next. That staleness is tolerated.
package input

import (
	"math"
	"sync/atomic"
)

// Action is a masked pointer action code, numbered like Android's
// MotionEvent actions.
type Action int

const (
	ActionDown        Action = 0
	ActionUp          Action = 1
	ActionMove        Action = 2
	ActionCancel      Action = 3
	ActionOutside     Action = 4
	ActionPointerDown Action = 5
	ActionPointerUp   Action = 6
)

func (a Action) String() string {
	switch a {
	case ActionDown:
		return "down"
	case ActionUp:
		return "up"
	case ActionMove:
		return "move"
	case ActionCancel:
		return "cancel"
	case ActionOutside:
		return "outside"
	case ActionPointerDown:
		return "pointerDown"
	case ActionPointerUp:
		return "pointerUp"
	default:
		return "unknown"
	}
}

// NewContact reports whether the action puts a new pointer on the surface.
func (a Action) NewContact() bool {
	return a == ActionDown || a == ActionPointerDown
}

// Sample is a point-in-time read of State.
type Sample struct {
	Touches int32   `json:"touches"`
	X       float32 `json:"x"`
	Y       float32 `json:"y"`
}

// State is the lock-free pointer state. The zero value is ready to use.
type State struct {
	touches atomic.Int32
	x       atomic.Uint32
	y       atomic.Uint32
}

// Touch records one pointer event. Only primary events change the state;
// new contacts also bump the touch counter.
func (s *State) Touch(action Action, pointerID int, x, y float32, primary bool) {
	if !primary {
		return
	}
	s.x.Store(math.Float32bits(x))
	s.y.Store(math.Float32bits(y))
	if action.NewContact() {
		s.touches.Add(1)
	}
}

// Load returns the current sample.
func (s *State) Load() Sample {
	return Sample{
		Touches: s.touches.Load(),
		X:       math.Float32frombits(s.x.Load()),
		Y:       math.Float32frombits(s.y.Load()),
	}
}

// Reset zeroes the counter and position.
func (s *State) Reset() {
	s.touches.Store(0)
	s.x.Store(0)
	s.y.Store(0)
}

// PrimaryAction reports whether an event with the given masked action and
// action index concerns the primary pointer: down, up and cancel always do,
// anything else only when it targets index 0.
func PrimaryAction(action Action, actionIndex int) bool {
	switch action {
	case ActionDown, ActionUp, ActionCancel:
		return true
	default:
		return actionIndex == 0
	}
}
