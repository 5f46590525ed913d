package render

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fonline/droidbridge/pkg/engine"
	"github.com/fonline/droidbridge/pkg/errors"
	"github.com/fonline/droidbridge/pkg/surface"
)

// Controller owns at most one render goroutine.
//
// Start and Stop are meant for the control thread; they are also safe to
// call concurrently, because both serialize on the controller's mutex. The
// render goroutine never takes that mutex, so Stop can wait for it while
// holding it.
type Controller struct {
	state    *surface.State
	gate     *engine.Gate
	driver   engine.Driver
	producer *Producer
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{}
	running atomic.Bool
	session atomic.Value // string
}

// Config wires a Controller to its collaborators.
type Config struct {
	State    *surface.State
	Gate     *engine.Gate
	Driver   engine.Driver
	Producer *Producer
	// FrameInterval paces the loop; zero means DefaultFrameInterval.
	FrameInterval time.Duration
}

// NewController returns a stopped controller.
func NewController(cfg Config) *Controller {
	if cfg.Driver == nil {
		cfg.Driver = engine.NopDriver{}
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	c := &Controller{
		state:    cfg.State,
		gate:     cfg.Gate,
		driver:   cfg.Driver,
		producer: cfg.Producer,
		interval: cfg.FrameInterval,
	}
	c.session.Store("")
	return c
}

// Running reports whether a render goroutine is alive.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// Session returns the id of the current render loop, or "" when stopped.
func (c *Controller) Session() string {
	return c.session.Load().(string)
}

// Interval returns the frame pacing interval.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// Stop clears the running flag and waits for the render goroutine to exit.
// It is a no-op when nothing is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	c.running.Store(false)
	if c.done == nil {
		return
	}
	<-c.done
	c.done = nil
	c.session.Store("")
}

// Start stops any running loop, then, if a surface is present, runs the
// one-shot engine init and spawns a new loop. It reports whether a loop
// was started.
func (c *Controller) Start(env engine.Env) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if !c.state.Present() {
		return false
	}
	c.gate.EnsureInit(c.driver, env)

	session := uuid.NewString()
	done := make(chan struct{})
	c.done = done
	c.session.Store(session)
	c.running.Store(true)
	go c.loop(session, done)
	return true
}

func (c *Controller) loop(session string, done chan struct{}) {
	defer close(done)
	defer errors.RecoverWithCallback("render.loop", func(any) {
		c.running.Store(false)
	})

	llog := log.WithField("session", session)
	llog.Info("render loop started")
	defer llog.Info("render loop stopped")

	frame := 0
	for c.running.Load() {
		start := time.Now()
		if c.iterate(frame, session) {
			frame++
		}
		if d := c.interval - time.Since(start); d > 0 {
			time.Sleep(d)
		}
	}
}

// iterate runs one loop pass and reports whether a frame was attempted.
func (c *Controller) iterate(frame int, session string) bool {
	snap := c.state.Snapshot()
	if !snap.Usable() {
		return false
	}
	defer snap.Release()
	c.producer.Produce(frame, snap, session)
	return true
}
