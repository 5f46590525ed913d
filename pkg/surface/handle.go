package surface

import (
	"fmt"
	"sync/atomic"
)

var nextHandleID atomic.Uint64

// Handle is a reference-counted Window. It starts with one reference owned
// by whoever created it. Once the count reaches zero the window has been
// released to the platform and the handle can no longer be acquired.
type Handle struct {
	win  Window
	id   uint64
	refs atomic.Int32
}

// NewHandle wraps win with a single owning reference.
func NewHandle(win Window) *Handle {
	h := &Handle{win: win, id: nextHandleID.Add(1)}
	h.refs.Store(1)
	return h
}

// ID returns a process-unique id for the handle.
func (h *Handle) ID() uint64 { return h.id }

// Refs returns the current reference count.
func (h *Handle) Refs() int { return int(h.refs.Load()) }

// Acquire takes an extra reference. It fails once the handle is released.
func (h *Handle) Acquire() bool {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return false
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference, releasing the window on the last one.
func (h *Handle) Release() {
	n := h.refs.Add(-1)
	switch {
	case n == 0:
		h.win.Release()
	case n < 0:
		panic(fmt.Sprintf("surface: handle %d over-released", h.id))
	}
}

// SetBuffersGeometry forwards to the window.
func (h *Handle) SetBuffersGeometry(width, height int, format Format) error {
	if h.refs.Load() <= 0 {
		return ErrReleased
	}
	return h.win.SetBuffersGeometry(width, height, format)
}

// Lock locks the window's pixel buffer.
func (h *Handle) Lock() (*Buffer, error) {
	if h.refs.Load() <= 0 {
		return nil, ErrReleased
	}
	return h.win.Lock()
}

// UnlockAndPost submits the locked buffer.
func (h *Handle) UnlockAndPost() error {
	if h.refs.Load() <= 0 {
		return ErrReleased
	}
	return h.win.UnlockAndPost()
}
