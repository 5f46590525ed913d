package surface

import "sync"

// State holds the current surface handle and its pixel dimensions.
//
// The control thread writes it; the render goroutine reads it through
// Snapshot. The lock is held only for the duration of each call.
type State struct {
	mu     sync.Mutex
	handle *Handle
	width  int
	height int
}

// Snapshot is a copy of State taken under its lock. A usable snapshot owns
// its own handle reference, so it stays valid after the State is cleared;
// call Release when done with it.
type Snapshot struct {
	Handle *Handle
	Width  int
	Height int
}

// Usable reports whether the snapshot carries a handle with positive
// dimensions.
func (s Snapshot) Usable() bool {
	return s.Handle != nil && s.Width > 0 && s.Height > 0
}

// Release drops the snapshot's handle reference.
func (s Snapshot) Release() {
	if s.Handle != nil {
		s.Handle.Release()
	}
}

// Set wraps win in a new handle and stores it with the given dimensions,
// releasing any previous handle. It returns the stored handle.
func (s *State) Set(win Window, width, height int) *Handle {
	h := NewHandle(win)
	s.mu.Lock()
	prev := s.handle
	s.handle = h
	s.width, s.height = width, height
	s.mu.Unlock()

	if prev != nil {
		prev.Release()
	}
	return h
}

// Resize updates the dimensions. It reports false and changes nothing when
// no handle is held.
func (s *State) Resize(width, height int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return false
	}
	s.width, s.height = width, height
	return true
}

// Clear releases the handle and zeroes the dimensions.
func (s *State) Clear() {
	s.mu.Lock()
	prev := s.handle
	s.handle = nil
	s.width, s.height = 0, 0
	s.mu.Unlock()

	if prev != nil {
		prev.Release()
	}
}

// Snapshot returns the current handle and dimensions. When the state is
// usable the returned handle carries an extra reference; otherwise the
// snapshot holds no handle.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Handle: s.handle, Width: s.width, Height: s.height}
	if !snap.Usable() || !snap.Handle.Acquire() {
		snap.Handle = nil
	}
	return snap
}

// Present reports whether a handle is held.
func (s *State) Present() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// Size returns the current dimensions.
func (s *State) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}
