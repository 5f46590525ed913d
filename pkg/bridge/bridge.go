// Package bridge is the control-thread face of the renderer: one Bridge per
// host session owns the shared surface state, the pointer state, the engine
// gate and the render controller, and exposes the host lifecycle callbacks.
package bridge

import (
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/fonline/droidbridge/pkg/engine"
	"github.com/fonline/droidbridge/pkg/errors"
	"github.com/fonline/droidbridge/pkg/input"
	"github.com/fonline/droidbridge/pkg/logging"
	"github.com/fonline/droidbridge/pkg/render"
	"github.com/fonline/droidbridge/pkg/surface"
)

var log = logging.MustGetLogger("bridge")

// Options configures a Bridge.
type Options struct {
	// Provider turns host surface objects into windows. Required.
	Provider surface.Provider
	// Driver is the linked engine; nil means engine.NopDriver.
	Driver engine.Driver
	// FrameInterval paces the render loop; zero means render.DefaultFrameInterval.
	FrameInterval time.Duration
	// Trace receives per-frame samples; nil allocates a default-sized buffer.
	Trace *render.FrameTraceBuffer
}

// Bridge serializes the host callbacks on a control mutex. The mutex is
// never taken by the render goroutine, and the touch path and Status do not
// take it at all.
type Bridge struct {
	mu       sync.Mutex
	provider surface.Provider
	driver   engine.Driver

	state    surface.State
	input    input.State
	gate     engine.Gate
	trace    *render.FrameTraceBuffer
	producer *render.Producer
	ctl      *render.Controller

	envMu sync.RWMutex
	env   engine.Env
}

// New returns an idle bridge with no surface and a pending engine gate.
func New(opts Options) *Bridge {
	if opts.Driver == nil {
		opts.Driver = engine.NopDriver{}
	}
	if opts.Trace == nil {
		opts.Trace = render.NewFrameTraceBuffer(0, 0)
	}
	b := &Bridge{
		provider: opts.Provider,
		driver:   opts.Driver,
		trace:    opts.Trace,
	}
	b.producer = render.NewProducer(b.driver, &b.gate, &b.input, b.trace)
	b.ctl = render.NewController(render.Config{
		State:         &b.state,
		Gate:          &b.gate,
		Driver:        b.driver,
		Producer:      b.producer,
		FrameInterval: opts.FrameInterval,
	})
	return b
}

// Init records the asset source and writable storage directory handed to
// the engine at its first init. Calling it again replaces both.
func (b *Bridge) Init(assets fs.FS, storagePath string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.envMu.Lock()
	b.env = engine.Env{Assets: assets, StoragePath: storagePath}
	b.envMu.Unlock()
	log.Infof("Init OK. storage=%s assets=%t", storagePath, assets != nil)
}

// SurfaceCreated stops any loop, drops the previous surface and adopts the
// new one with unknown (zero) dimensions, then starts rendering. The loop
// waits for SurfaceChanged before it draws.
func (b *Bridge) SurfaceCreated(native any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ctl.Stop()
	b.state.Clear()

	if b.provider == nil {
		b.reportSurface(fmt.Errorf("no surface provider: %w", surface.ErrNoSurface))
		return
	}
	win, err := b.provider.FromSurface(native)
	if err == nil && win == nil {
		err = surface.ErrNoSurface
	}
	if err != nil {
		b.reportSurface(err)
		return
	}
	if err := win.SetBuffersGeometry(0, 0, surface.FormatRGBA8888); err != nil {
		log.WithError(err).Warn("set buffers geometry")
	}
	h := b.state.Set(win, 0, 0)
	log.Infof("Surface created. window=%d", h.ID())

	b.ctl.Start(b.Env())
}

func (b *Bridge) reportSurface(err error) {
	errors.Report(&errors.BridgeError{
		Op:   "bridge.SurfaceCreated",
		Kind: errors.KindSurface,
		Err:  err,
	})
}

// SurfaceChanged records new pixel dimensions. The running loop picks them
// up on its next pass. It has no effect when no surface is held.
func (b *Bridge) SurfaceChanged(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.state.Resize(width, height) {
		log.Warnf("Surface changed to %dx%d without a surface; ignored", width, height)
		return
	}
	log.Infof("Surface changed: %dx%d", width, height)
}

// SurfaceDestroyed stops rendering and releases the surface. It returns
// only after the render goroutine has exited.
func (b *Bridge) SurfaceDestroyed() {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.Info("Surface destroyed")
	b.ctl.Stop()
	b.state.Clear()
}

// Resume restarts rendering if a surface is held and no loop is running.
func (b *Bridge) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.Info("OnResume")
	if b.state.Present() && !b.ctl.Running() {
		b.ctl.Start(b.Env())
	}
}

// Pause stops rendering and keeps the surface.
func (b *Bridge) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.Info("OnPause")
	b.ctl.Stop()
}

// Shutdown stops rendering, releases the surface, shuts the engine down if
// it was initialized and forgets the asset and storage references. The
// engine is not initialized again by this Bridge.
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.Info("Shutdown")
	b.ctl.Stop()
	b.state.Clear()
	b.gate.Shutdown(b.driver)

	b.envMu.Lock()
	b.env = engine.Env{}
	b.envMu.Unlock()
}

// OnTouch records one pointer event. It never blocks and may be called from
// any goroutine.
func (b *Bridge) OnTouch(action input.Action, pointerID int, x, y float32, primary bool) {
	b.input.Touch(action, pointerID, x, y, primary)
}

// Env returns the engine environment registered by Init.
func (b *Bridge) Env() engine.Env {
	b.envMu.RLock()
	defer b.envMu.RUnlock()
	return b.env
}

// Assets returns the asset source registered by Init, or nil.
func (b *Bridge) Assets() fs.FS { return b.Env().Assets }

// StoragePath returns the storage directory registered by Init.
func (b *Bridge) StoragePath() string { return b.Env().StoragePath }

// Running reports whether the render goroutine is alive.
func (b *Bridge) Running() bool { return b.ctl.Running() }

// Trace returns the frame trace buffer.
func (b *Bridge) Trace() *render.FrameTraceBuffer { return b.trace }

// Status is a point-in-time view of the bridge for diagnostics.
type Status struct {
	Running      bool         `json:"running"`
	Session      string       `json:"session,omitempty"`
	Surface      bool         `json:"surface"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	Engine       string       `json:"engine"`
	Input        input.Sample `json:"input"`
	Posted       int64        `json:"posted"`
	LockFailures int64        `json:"lockFailures"`
	EngineFrames int64        `json:"engineFrames"`
}

// Status collects the current state without taking the control mutex, so
// it can be polled while a callback is blocked in Stop.
func (b *Bridge) Status() Status {
	w, h := b.state.Size()
	stats := b.producer.Stats()
	return Status{
		Running:      b.ctl.Running(),
		Session:      b.ctl.Session(),
		Surface:      b.state.Present(),
		Width:        w,
		Height:       h,
		Engine:       b.gate.State().String(),
		Input:        b.input.Load(),
		Posted:       stats.Posted,
		LockFailures: stats.LockFailures,
		EngineFrames: stats.EngineFrames,
	}
}
