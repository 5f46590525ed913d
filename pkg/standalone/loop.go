// Package standalone runs the renderer without host lifecycle callbacks: it
// owns a window's event loop, renders one frame per paint event and quits
// when the window dies, Escape is pressed or the engine asks to stop.
package standalone

import (
	stderrors "errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"golang.org/x/exp/shiny/screen"
	"golang.org/x/image/draw"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"
	"golang.org/x/mobile/event/touch"

	"github.com/fonline/droidbridge/pkg/engine"
	"github.com/fonline/droidbridge/pkg/input"
	"github.com/fonline/droidbridge/pkg/logging"
	"github.com/fonline/droidbridge/pkg/render"
	"github.com/fonline/droidbridge/pkg/surface"
)

var log = logging.MustGetLogger("standalone")

// ErrEngineInit is returned by Run when the engine fails to initialize.
var ErrEngineInit = stderrors.New("standalone: engine init failed")

// Window is the part of screen.Window the loop needs.
type Window interface {
	NextEvent() any
	Send(event any)
	Upload(dp image.Point, src screen.Buffer, sr image.Rectangle)
	Publish() screen.PublishResult
}

// BufferFactory allocates upload buffers; screen.Screen satisfies it.
type BufferFactory interface {
	NewBuffer(size image.Point) (screen.Buffer, error)
}

// Config configures a Loop.
type Config struct {
	Driver        engine.Driver
	Env           engine.Env
	FrameInterval time.Duration
	Trace         *render.FrameTraceBuffer
}

// Loop drives one window. It is not safe for concurrent use; Run owns it.
type Loop struct {
	screen   BufferFactory
	win      Window
	driver   engine.Driver
	env      engine.Env
	interval time.Duration

	gate     engine.Gate
	input    input.State
	state    surface.State
	producer *render.Producer

	buf       screen.Buffer
	target    *surface.MemoryWindow
	frame     int
	dragging  bool
	scheduled atomic.Bool
}

// New returns a loop that renders into win, allocating buffers from s.
func New(s BufferFactory, win Window, cfg Config) *Loop {
	if cfg.Driver == nil {
		cfg.Driver = engine.NopDriver{}
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = render.DefaultFrameInterval
	}
	l := &Loop{
		screen:   s,
		win:      win,
		driver:   cfg.Driver,
		env:      cfg.Env,
		interval: cfg.FrameInterval,
	}
	l.producer = render.NewProducer(l.driver, &l.gate, &l.input, cfg.Trace)
	return l
}

// Frames returns the number of frames rendered so far.
func (l *Loop) Frames() int { return l.frame }

// Stats returns the producer counters.
func (l *Loop) Stats() render.Stats { return l.producer.Stats() }

// Run initializes the engine and processes window events until the loop
// ends. The engine is shut down on return if it was initialized.
func (l *Loop) Run() error {
	if !l.gate.EnsureInit(l.driver, l.env) {
		return ErrEngineInit
	}
	defer l.release()
	defer func() {
		log.Info("Shutdown requested")
		l.gate.Shutdown(l.driver)
	}()

	for {
		switch e := l.win.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				log.Info("Received quit event")
				return nil
			}
		case key.Event:
			if e.Code == key.CodeEscape && e.Direction == key.DirPress {
				log.Info("Escape pressed")
				return nil
			}
		case size.Event:
			if err := l.resize(e.Size()); err != nil {
				return err
			}
		case mouse.Event:
			l.handleMouse(e)
		case touch.Event:
			l.handleTouch(e)
		case paint.Event:
			if !l.paint() {
				log.Info("engine requested stop")
				return nil
			}
		case error:
			log.WithError(e).Error("window event")
		}
	}
}

func (l *Loop) resize(sz image.Point) error {
	if l.buf != nil && l.buf.Size() == sz {
		return nil
	}
	if l.buf != nil {
		l.buf.Release()
		l.buf = nil
	}
	if sz.X <= 0 || sz.Y <= 0 {
		l.state.Clear()
		l.target = nil
		return nil
	}
	buf, err := l.screen.NewBuffer(sz)
	if err != nil {
		return fmt.Errorf("standalone: new %v buffer: %w", sz, err)
	}
	l.buf = buf
	l.target = surface.NewMemoryWindow(sz.X, sz.Y)
	l.target.OnPost = l.upload
	l.state.Set(l.target, sz.X, sz.Y)
	log.Infof("window resized: %dx%d", sz.X, sz.Y)
	return nil
}

// paint renders one frame and schedules the next. It reports false when
// the engine asks to stop.
func (l *Loop) paint() bool {
	start := time.Now()
	snap := l.state.Snapshot()
	if snap.Usable() {
		res := l.producer.Produce(l.frame, snap, "")
		snap.Release()
		l.frame++
		if !res.Continue {
			return false
		}
		if res.Posted {
			l.win.Publish()
		}
	}
	l.schedule(l.interval - time.Since(start))
	return true
}

// upload copies a posted frame into the window's upload buffer.
func (l *Loop) upload(frame *surface.Buffer) {
	if l.buf == nil {
		return
	}
	dst := l.buf.RGBA()
	src := frame.RGBA()
	draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Src)
	l.win.Upload(image.Point{}, l.buf, l.buf.Bounds())
}

// schedule sends one paint event after d; at most one is pending.
func (l *Loop) schedule(d time.Duration) {
	if !l.scheduled.CompareAndSwap(false, true) {
		return
	}
	if d < 0 {
		d = 0
	}
	time.AfterFunc(d, func() {
		l.scheduled.Store(false)
		l.win.Send(paint.Event{})
	})
}

func (l *Loop) handleMouse(e mouse.Event) {
	if e.Button != mouse.ButtonLeft && !(e.Button == mouse.ButtonNone && l.dragging) {
		return
	}
	switch e.Direction {
	case mouse.DirPress:
		l.dragging = true
		l.input.Touch(input.ActionDown, 0, e.X, e.Y, true)
	case mouse.DirRelease:
		l.dragging = false
		l.input.Touch(input.ActionUp, 0, e.X, e.Y, true)
	case mouse.DirNone:
		if l.dragging {
			l.input.Touch(input.ActionMove, 0, e.X, e.Y, true)
		}
	}
}

func (l *Loop) handleTouch(e touch.Event) {
	var action input.Action
	switch e.Type {
	case touch.TypeBegin:
		action = input.ActionDown
	case touch.TypeMove:
		action = input.ActionMove
	case touch.TypeEnd:
		action = input.ActionUp
	default:
		return
	}
	l.input.Touch(action, int(e.Sequence), e.X, e.Y, true)
}

func (l *Loop) release() {
	l.state.Clear()
	if l.buf != nil {
		l.buf.Release()
		l.buf = nil
	}
}
