package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/fonline/droidbridge/pkg/errors"
	"github.com/fonline/droidbridge/pkg/logging"
)

var log = logging.MustGetLogger("engine")

// GateState is the engine readiness state.
type GateState int32

const (
	// GatePending means init has not been attempted.
	GatePending GateState = iota
	// GateReady means init succeeded and the driver is called per frame.
	GateReady
	// GateDisabled means init failed or the engine was shut down. A disabled
	// gate never re-runs init.
	GateDisabled
)

func (s GateState) String() string {
	switch s {
	case GatePending:
		return "pending"
	case GateReady:
		return "ready"
	case GateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Gate is a one-shot readiness flag guarding driver calls. Ready is safe to
// call from any goroutine; EnsureInit and Shutdown belong to the control
// thread.
type Gate struct {
	state atomic.Int32
}

// State returns the current state.
func (g *Gate) State() GateState {
	return GateState(g.state.Load())
}

// Ready reports whether driver calls are allowed.
func (g *Gate) Ready() bool {
	return g.State() == GateReady
}

// EnsureInit runs d.Init the first time it is called and records the result.
// A failed (or panicking) init disables the gate for good. It reports
// whether the gate is ready.
func (g *Gate) EnsureInit(d Driver, env Env) bool {
	if !g.state.CompareAndSwap(int32(GatePending), int32(GateDisabled)) {
		return g.Ready()
	}

	log.Info("InitApp: starting engine init")
	ok := false
	func() {
		defer errors.Recover("engine.Init")
		ok = d.Init(env)
	}()
	log.Infof("InitApp result: %t", ok)

	if !ok {
		errors.Report(&errors.BridgeError{
			Op:   "engine.Init",
			Kind: errors.KindInit,
			Err:  fmt.Errorf("engine init failed; rendering pattern only"),
		})
		return false
	}
	g.state.Store(int32(GateReady))
	return true
}

// Shutdown calls d.Shutdown exactly once if the gate is ready and disables
// the gate. It reports whether Shutdown was called.
func (g *Gate) Shutdown(d Driver) bool {
	if !g.state.CompareAndSwap(int32(GateReady), int32(GateDisabled)) {
		return false
	}
	log.Info("Shutting down engine")
	defer errors.Recover("engine.Shutdown")
	d.Shutdown()
	return true
}
