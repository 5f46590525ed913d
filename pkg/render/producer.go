// Package render produces frames into a platform surface from a single
// background goroutine whose lifetime follows the surface.
package render

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fonline/droidbridge/pkg/engine"
	"github.com/fonline/droidbridge/pkg/errors"
	"github.com/fonline/droidbridge/pkg/input"
	"github.com/fonline/droidbridge/pkg/logging"
	"github.com/fonline/droidbridge/pkg/surface"
)

var log = logging.MustGetLogger("render")

// Producer renders one frame at a time. It is shared by the bridge render
// loop and the standalone event loop.
type Producer struct {
	driver engine.Driver
	gate   *engine.Gate
	input  *input.State
	trace  *FrameTraceBuffer

	posted       atomic.Int64
	lockFailures atomic.Int64
	engineFrames atomic.Int64
}

// NewProducer returns a producer. trace may be nil.
func NewProducer(driver engine.Driver, gate *engine.Gate, in *input.State, trace *FrameTraceBuffer) *Producer {
	if driver == nil {
		driver = engine.NopDriver{}
	}
	return &Producer{driver: driver, gate: gate, input: in, trace: trace}
}

// Result describes one Produce call.
type Result struct {
	// EngineCalled is true if the driver's Frame ran.
	EngineCalled bool
	// Continue is the driver's verdict; true when the engine was not called.
	Continue bool
	// Posted is true if a frame reached the display.
	Posted bool
	// LockErr is the pixel-buffer lock failure, if any.
	LockErr error
}

// Stats are cumulative producer counters.
type Stats struct {
	Posted       int64 `json:"posted"`
	LockFailures int64 `json:"lockFailures"`
	EngineFrames int64 `json:"engineFrames"`
}

// Stats returns the cumulative counters.
func (p *Producer) Stats() Stats {
	return Stats{
		Posted:       p.posted.Load(),
		LockFailures: p.lockFailures.Load(),
		EngineFrames: p.engineFrames.Load(),
	}
}

// Produce drives the engine (if ready), then locks, draws and posts one
// frame into snap's window. The snapshot must be usable; releasing it is
// left to the caller. Lock failures are reported and skip the draw.
func (p *Producer) Produce(frame int, snap surface.Snapshot, session string) Result {
	start := time.Now()
	res := Result{Continue: true}
	flog := log.WithField("frame", frame)
	if session != "" {
		flog = flog.WithField("session", session)
	}

	if p.gate != nil && p.gate.Ready() {
		flog.Debugf("BeginFrame %d", frame)
		res.EngineCalled = true
		res.Continue = p.driver.Frame()
		p.engineFrames.Add(1)
	}

	buf, err := snap.Handle.Lock()
	if err != nil {
		res.LockErr = err
		p.lockFailures.Add(1)
		errors.Report(&errors.BridgeError{
			Op:      "render.lockBuffer",
			Kind:    errors.KindBufferLock,
			Session: session,
			Err:     fmt.Errorf("lock %dx%d window: %w", snap.Width, snap.Height, err),
		})
	} else {
		DrawFrame(buf, frame, p.input.Load())
		if err := snap.Handle.UnlockAndPost(); err != nil {
			errors.Report(&errors.BridgeError{
				Op:      "render.post",
				Kind:    errors.KindRender,
				Session: session,
				Err:     err,
			})
		} else {
			res.Posted = true
			p.posted.Add(1)
		}
	}

	if res.EngineCalled {
		flog.Debugf("EndFrame %d", frame)
	}

	if p.trace != nil {
		elapsed := time.Since(start)
		p.trace.Add(FrameSample{
			Timestamp:    start.UnixMilli(),
			Session:      session,
			Frame:        frame,
			FrameMs:      durationToMillis(elapsed),
			EngineCalled: res.EngineCalled,
			Posted:       res.Posted,
			LockFailed:   res.LockErr != nil,
		}, elapsed)
	}
	return res
}
