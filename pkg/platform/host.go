// Package platform adapts host application callbacks to a bridge.Bridge.
//
// Host covers two kinds of host: an embedding activity that calls the
// On* methods directly, and a golang.org/x/mobile app loop whose events
// are fed to HandleEvent.
package platform

import (
	"io/fs"
	"sync/atomic"

	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/size"
	"golang.org/x/mobile/event/touch"

	"github.com/fonline/droidbridge/pkg/bridge"
	"github.com/fonline/droidbridge/pkg/input"
	"github.com/fonline/droidbridge/pkg/logging"
)

var log = logging.MustGetLogger("platform")

// SurfaceFactory returns the native surface to hand to SurfaceCreated when a
// lifecycle event makes the app visible. ok false means the event carries
// no drawable surface.
type SurfaceFactory func(e lifecycle.Event) (native any, ok bool)

// Host maps host lifecycle, surface and touch callbacks onto a Bridge.
//
// HandleEvent and the On* methods are expected on the host's event
// goroutine; they must not be called concurrently with each other.
type Host struct {
	bridge    *bridge.Bridge
	lifecycle *LifecycleService
	surfaces  SurfaceFactory
	inited    atomic.Bool

	// active touch sequences, oldest first
	pointers []touch.Sequence
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithSurfaceFactory lets lifecycle events create and destroy surfaces.
func WithSurfaceFactory(f SurfaceFactory) HostOption {
	return func(h *Host) { h.surfaces = f }
}

// NewHost returns a host bound to b.
func NewHost(b *bridge.Bridge, opts ...HostOption) *Host {
	h := &Host{bridge: b, lifecycle: NewLifecycleService()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Lifecycle returns the host's lifecycle service.
func (h *Host) Lifecycle() *LifecycleService {
	return h.lifecycle
}

// Bridge returns the bridge the host drives.
func (h *Host) Bridge() *bridge.Bridge {
	return h.bridge
}

// EnsureInit registers the asset source and storage directory the first
// time it is called; later calls are ignored. It reports whether this call
// performed the init.
func (h *Host) EnsureInit(assets fs.FS, storagePath string) bool {
	if !h.inited.CompareAndSwap(false, true) {
		return false
	}
	h.bridge.Init(assets, storagePath)
	return true
}

// OnResume marks the app resumed and restarts rendering if it can.
func (h *Host) OnResume() {
	h.lifecycle.update(LifecycleStateResumed)
	h.bridge.Resume()
}

// OnPause marks the app paused and stops rendering.
func (h *Host) OnPause() {
	h.lifecycle.update(LifecycleStatePaused)
	h.bridge.Pause()
}

// OnDestroy detaches the host and shuts the bridge down.
func (h *Host) OnDestroy() {
	h.lifecycle.update(LifecycleStateDetached)
	h.pointers = h.pointers[:0]
	h.bridge.Shutdown()
}

// HandleEvent dispatches one x/mobile event. It reports whether the event
// was recognized.
func (h *Host) HandleEvent(e any) bool {
	switch e := e.(type) {
	case lifecycle.Event:
		h.handleLifecycle(e)
	case size.Event:
		h.bridge.SurfaceChanged(e.WidthPx, e.HeightPx)
	case touch.Event:
		h.handleTouch(e)
	default:
		return false
	}
	return true
}

func (h *Host) handleLifecycle(e lifecycle.Event) {
	log.Debugf("lifecycle %v -> %v", e.From, e.To)
	switch e.Crosses(lifecycle.StageVisible) {
	case lifecycle.CrossOn:
		if h.surfaces != nil {
			if native, ok := h.surfaces(e); ok {
				h.bridge.SurfaceCreated(native)
			}
		}
		h.OnResume()
	case lifecycle.CrossOff:
		h.OnPause()
		if h.surfaces != nil {
			h.bridge.SurfaceDestroyed()
		}
	}
	if e.To == lifecycle.StageDead {
		h.OnDestroy()
	}
}

// handleTouch converts a per-sequence touch event into a masked action and
// the pointer's index among active pointers, the way the host view reports
// motion events.
func (h *Host) handleTouch(e touch.Event) {
	var action input.Action
	index := h.pointerIndex(e.Sequence)

	switch e.Type {
	case touch.TypeBegin:
		if index < 0 {
			h.pointers = append(h.pointers, e.Sequence)
			index = len(h.pointers) - 1
		}
		action = input.ActionPointerDown
		if len(h.pointers) == 1 {
			action = input.ActionDown
		}
	case touch.TypeMove:
		action = input.ActionMove
	case touch.TypeEnd:
		action = input.ActionPointerUp
		if len(h.pointers) <= 1 {
			action = input.ActionUp
		}
		if index >= 0 {
			h.pointers = append(h.pointers[:index], h.pointers[index+1:]...)
		}
	default:
		return
	}
	if index < 0 {
		// Move or end for a sequence we never saw begin.
		index = 0
	}

	h.bridge.OnTouch(action, int(e.Sequence), e.X, e.Y, input.PrimaryAction(action, index))
}

func (h *Host) pointerIndex(seq touch.Sequence) int {
	for i, s := range h.pointers {
		if s == seq {
			return i
		}
	}
	return -1
}
