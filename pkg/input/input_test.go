package input

import (
	"sync"
	"testing"
)

func TestTouchPrimary(t *testing.T) {
	var s State

	s.Touch(ActionDown, 0, 10, 20, true)
	got := s.Load()
	if got.Touches != 1 || got.X != 10 || got.Y != 20 {
		t.Errorf("after down: %+v, want {1 10 20}", got)
	}

	s.Touch(ActionMove, 0, 11, 21, true)
	got = s.Load()
	if got.Touches != 1 || got.X != 11 || got.Y != 21 {
		t.Errorf("after move: %+v, want {1 11 21}", got)
	}

	s.Touch(ActionPointerDown, 1, 50, 60, true)
	s.Touch(ActionUp, 0, 5, 6, true)
	got = s.Load()
	if got.Touches != 2 || got.X != 5 || got.Y != 6 {
		t.Errorf("after pointer down + up: %+v, want {2 5 6}", got)
	}
}

func TestTouchNonPrimaryIgnored(t *testing.T) {
	var s State
	s.Touch(ActionPointerDown, 1, 99, 99, false)
	if got := s.Load(); got != (Sample{}) {
		t.Errorf("non-primary event changed state: %+v", got)
	}
}

func TestReset(t *testing.T) {
	var s State
	s.Touch(ActionDown, 0, 1, 2, true)
	s.Reset()
	if got := s.Load(); got != (Sample{}) {
		t.Errorf("after Reset: %+v, want zero", got)
	}
}

func TestNewContact(t *testing.T) {
	tests := []struct {
		a    Action
		want bool
	}{
		{ActionDown, true},
		{ActionPointerDown, true},
		{ActionUp, false},
		{ActionMove, false},
		{ActionCancel, false},
		{ActionPointerUp, false},
	}
	for _, tt := range tests {
		if got := tt.a.NewContact(); got != tt.want {
			t.Errorf("%v.NewContact() = %v, want %v", tt.a, got, tt.want)
		}
	}
}

func TestPrimaryAction(t *testing.T) {
	tests := []struct {
		action Action
		index  int
		want   bool
	}{
		{ActionDown, 3, true},
		{ActionUp, 2, true},
		{ActionCancel, 1, true},
		{ActionMove, 0, true},
		{ActionMove, 1, false},
		{ActionPointerDown, 0, true},
		{ActionPointerDown, 1, false},
		{ActionPointerUp, 2, false},
	}
	for _, tt := range tests {
		if got := PrimaryAction(tt.action, tt.index); got != tt.want {
			t.Errorf("PrimaryAction(%v, %d) = %v, want %v", tt.action, tt.index, got, tt.want)
		}
	}
}

func TestActionString(t *testing.T) {
	if ActionPointerDown.String() != "pointerDown" {
		t.Errorf("ActionPointerDown.String() = %q", ActionPointerDown.String())
	}
	if Action(42).String() != "unknown" {
		t.Errorf("Action(42).String() = %q", Action(42).String())
	}
}

func TestConcurrentTouchCounting(t *testing.T) {
	var s State
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 125; j++ {
				s.Touch(ActionDown, 0, float32(j), float32(j), true)
				_ = s.Load()
			}
		}()
	}
	wg.Wait()
	if got := s.Load().Touches; got != 1000 {
		t.Errorf("Touches = %d, want 1000", got)
	}
}
