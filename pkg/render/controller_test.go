package render

import (
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fonline/droidbridge/pkg/engine"
	"github.com/fonline/droidbridge/pkg/errors"
	"github.com/fonline/droidbridge/pkg/input"
	"github.com/fonline/droidbridge/pkg/surface"
)

const testInterval = 2 * time.Millisecond

// strictWindow fails the test if it is locked after release or released
// while a frame is in flight.
type strictWindow struct {
	*surface.MemoryWindow
	t *testing.T

	mu        sync.Mutex
	released  bool
	inFlight  bool
	lateLocks int
}

func newStrictWindow(t *testing.T, w, h int) *strictWindow {
	return &strictWindow{MemoryWindow: surface.NewMemoryWindow(w, h), t: t}
}

func (w *strictWindow) Lock() (*surface.Buffer, error) {
	w.mu.Lock()
	if w.released {
		w.lateLocks++
		w.mu.Unlock()
		w.t.Error("Lock called after Release")
		return nil, surface.ErrReleased
	}
	w.inFlight = true
	w.mu.Unlock()
	return w.MemoryWindow.Lock()
}

func (w *strictWindow) UnlockAndPost() error {
	err := w.MemoryWindow.UnlockAndPost()
	w.mu.Lock()
	w.inFlight = false
	w.mu.Unlock()
	return err
}

func (w *strictWindow) Release() {
	w.mu.Lock()
	if w.inFlight {
		w.t.Error("Release called while a frame was in flight")
	}
	w.released = true
	w.mu.Unlock()
	w.MemoryWindow.Release()
}

type fixture struct {
	state    surface.State
	gate     engine.Gate
	in       input.State
	trace    *FrameTraceBuffer
	producer *Producer
	ctl      *Controller
}

func newFixture(driver engine.Driver) *fixture {
	f := &fixture{trace: NewFrameTraceBuffer(64, 0)}
	f.producer = NewProducer(driver, &f.gate, &f.in, f.trace)
	f.ctl = NewController(Config{
		State:         &f.state,
		Gate:          &f.gate,
		Driver:        driver,
		Producer:      f.producer,
		FrameInterval: testInterval,
	})
	return f
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met after %v", timeout)
}

func silenceErrors(t *testing.T) *recorder {
	t.Helper()
	r := &recorder{}
	errors.SetHandler(r)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return r
}

type recorder struct {
	mu     sync.Mutex
	errs   []*errors.BridgeError
	panics []*errors.PanicError
}

func (r *recorder) HandleError(err *errors.BridgeError) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) HandlePanic(err *errors.PanicError) {
	r.mu.Lock()
	r.panics = append(r.panics, err)
	r.mu.Unlock()
}

func (r *recorder) count(kind errors.ErrorKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.errs {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestStartWithoutSurface(t *testing.T) {
	f := newFixture(nil)
	if f.ctl.Start(engine.Env{}) {
		t.Fatal("Start without a surface should not spawn a loop")
	}
	if f.ctl.Running() {
		t.Error("Running() should be false")
	}
	if f.gate.State() != engine.GatePending {
		t.Errorf("gate = %v; init must wait for a surface", f.gate.State())
	}
}

func TestStopIdempotent(t *testing.T) {
	f := newFixture(nil)
	f.ctl.Stop()
	f.ctl.Stop()

	w := surface.NewMemoryWindow(8, 8)
	f.state.Set(w, 8, 8)
	if !f.ctl.Start(engine.Env{}) {
		t.Fatal("Start should spawn a loop")
	}
	f.ctl.Stop()
	f.ctl.Stop()
	if f.ctl.Running() {
		t.Error("Running() after Stop")
	}
	if f.ctl.Session() != "" {
		t.Errorf("Session() after Stop = %q", f.ctl.Session())
	}
}

func TestLoopProducesFrames(t *testing.T) {
	f := newFixture(nil)
	w := surface.NewMemoryWindow(16, 16)
	f.state.Set(w, 16, 16)

	f.ctl.Start(engine.Env{})
	if f.ctl.Session() == "" {
		t.Error("running loop should have a session id")
	}
	waitFor(t, time.Second, func() bool { return w.Posts() >= 3 })
	f.ctl.Stop()

	if f.gate.State() != engine.GateReady {
		t.Errorf("gate = %v, want ready", f.gate.State())
	}
	stats := f.producer.Stats()
	if stats.Posted < 3 || stats.EngineFrames < 3 {
		t.Errorf("stats = %+v, want at least 3 posted engine frames", stats)
	}
	if got := len(f.trace.Snapshot().Samples); got < 3 {
		t.Errorf("trace samples = %d, want >= 3", got)
	}
}

func TestLoopWaitsForDimensions(t *testing.T) {
	f := newFixture(nil)
	w := surface.NewMemoryWindow(16, 16)
	f.state.Set(w, 0, 0)

	f.ctl.Start(engine.Env{})
	defer f.ctl.Stop()

	time.Sleep(10 * testInterval)
	if w.Posts() != 0 {
		t.Fatalf("posted %d frames without dimensions", w.Posts())
	}

	f.state.Resize(16, 16)
	waitFor(t, time.Second, func() bool { return len(f.trace.Snapshot().Samples) > 0 })

	// Waiting passes do not advance the frame counter.
	if first := f.trace.Snapshot().Samples[0]; first.Frame != 0 {
		t.Errorf("first frame index = %d, want 0", first.Frame)
	}
}

func TestAtMostOneLoop(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	driver := engine.Funcs{FrameFunc: func() bool {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(200 * time.Microsecond)
		inFlight.Add(-1)
		return true
	}}
	f := newFixture(driver)
	f.state.Set(surface.NewMemoryWindow(4, 4), 4, 4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if (i+j)%3 == 0 {
					f.ctl.Stop()
				} else {
					f.ctl.Start(engine.Env{})
				}
				time.Sleep(100 * time.Microsecond)
			}
		}(i)
	}
	wg.Wait()
	f.ctl.Stop()

	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("observed %d concurrent frames, want at most 1", got)
	}
}

func TestStopWaitsForSlowFrame(t *testing.T) {
	entered := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool
	driver := engine.Funcs{FrameFunc: func() bool {
		once.Do(func() {
			close(entered)
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
		})
		return true
	}}
	f := newFixture(driver)
	f.state.Set(surface.NewMemoryWindow(4, 4), 4, 4)
	f.ctl.Start(engine.Env{})

	<-entered
	f.ctl.Stop()
	if !finished.Load() {
		t.Fatal("Stop returned before the in-flight frame completed")
	}
	if f.ctl.Running() {
		t.Error("Running() after Stop")
	}
}

func TestNoUseAfterRelease(t *testing.T) {
	f := newFixture(nil)
	w := newStrictWindow(t, 8, 8)
	f.state.Set(w, 8, 8)
	f.ctl.Start(engine.Env{})
	waitFor(t, time.Second, func() bool { return w.Posts() > 0 })

	// Revoke the surface under a running loop: the loop's borrowed
	// reference keeps the window alive until its frame completes.
	f.state.Clear()
	waitFor(t, time.Second, w.Released)
	posts := w.Posts()
	time.Sleep(10 * testInterval)
	f.ctl.Stop()

	if w.Posts() != posts {
		t.Errorf("frames posted after release: %d -> %d", posts, w.Posts())
	}
	if w.lateLocks != 0 {
		t.Errorf("%d locks after release", w.lateLocks)
	}
}

func TestLockFailureIsNotFatal(t *testing.T) {
	rec := silenceErrors(t)
	f := newFixture(nil)
	w := surface.NewMemoryWindow(8, 8)
	w.FailLocks(stderrors.New("resizing"))
	f.state.Set(w, 8, 8)
	f.ctl.Start(engine.Env{})
	defer f.ctl.Stop()

	waitFor(t, time.Second, func() bool { return f.producer.Stats().LockFailures >= 2 })
	if !f.ctl.Running() {
		t.Fatal("loop should keep running after lock failures")
	}
	if w.Posts() != 0 {
		t.Errorf("posted %d frames despite lock failures", w.Posts())
	}
	if rec.count(errors.KindBufferLock) < 2 {
		t.Error("lock failures should be reported")
	}

	w.FailLocks(nil)
	waitFor(t, time.Second, func() bool { return w.Posts() > 0 })
}

func TestEngineInitFailureRendersPatternOnly(t *testing.T) {
	rec := silenceErrors(t)
	var frames atomic.Int32
	driver := engine.Funcs{
		InitFunc:  func(engine.Env) bool { return false },
		FrameFunc: func() bool { frames.Add(1); return true },
	}
	f := newFixture(driver)
	w := surface.NewMemoryWindow(4, 4)
	f.state.Set(w, 4, 4)

	f.ctl.Start(engine.Env{})
	waitFor(t, time.Second, func() bool { return w.Posts() >= 2 })
	f.ctl.Stop()
	f.ctl.Start(engine.Env{})
	waitFor(t, time.Second, func() bool { return w.Posts() >= 4 })
	f.ctl.Stop()

	if frames.Load() != 0 {
		t.Errorf("driver Frame called %d times with a failed init", frames.Load())
	}
	if rec.count(errors.KindInit) != 1 {
		t.Errorf("init failures reported = %d, want 1 (no retry)", rec.count(errors.KindInit))
	}
}

func TestPanicInFrameEndsLoop(t *testing.T) {
	rec := silenceErrors(t)
	driver := engine.Funcs{FrameFunc: func() bool { panic("engine bug") }}
	f := newFixture(driver)
	w := surface.NewMemoryWindow(4, 4)
	f.state.Set(w, 4, 4)

	f.ctl.Start(engine.Env{})
	waitFor(t, time.Second, func() bool { return !f.ctl.Running() })
	f.ctl.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.panics) != 1 || rec.panics[0].Op != "render.loop" {
		t.Errorf("panics = %v, want one render.loop panic", rec.panics)
	}
	h := f.state.Snapshot()
	if !h.Usable() {
		t.Fatal("state should still hold the surface")
	}
	defer h.Release()
	if h.Handle.Refs() != 2 {
		t.Errorf("refs = %d; the panicking frame leaked its reference", h.Handle.Refs())
	}
}

func TestFrameCounterRestartsPerLoop(t *testing.T) {
	f := newFixture(nil)
	w := surface.NewMemoryWindow(8, 8)
	f.state.Set(w, 8, 8)

	for i := 0; i < 2; i++ {
		f.ctl.Start(engine.Env{})
		waitFor(t, time.Second, func() bool { return len(f.trace.Snapshot().Samples) > 0 })
		f.ctl.Stop()

		samples := f.trace.Snapshot().Samples
		first := samples[0]
		if first.Frame != 0 {
			t.Errorf("loop %d first frame = %d, want 0", i, first.Frame)
		}
		f.trace = NewFrameTraceBuffer(64, 0)
		f.producer.trace = f.trace
	}
}
