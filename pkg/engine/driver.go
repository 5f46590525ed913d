// Package engine defines the engine driver capability the render loop calls
// into, and the gate that decides whether it is called at all.
package engine

import (
	"io/fs"
	"sync/atomic"
)

// Env is what a driver receives at init: the asset source and a writable
// storage directory registered by the host.
type Env struct {
	Assets      fs.FS
	StoragePath string
}

// Driver runs the simulated world. Init is called once from the control
// thread; Frame is called from the render goroutine once per frame and
// returns false when the engine wants rendering to stop; Shutdown is called
// once, from the control thread, after the render goroutine has exited.
type Driver interface {
	Init(env Env) bool
	Frame() bool
	Shutdown()
}

// NopDriver is the driver used when no engine is linked in. It initializes
// successfully and never asks to stop.
type NopDriver struct{}

func (NopDriver) Init(Env) bool { return true }
func (NopDriver) Frame() bool   { return true }
func (NopDriver) Shutdown()     {}

// Funcs adapts plain functions to the Driver interface. Nil fields behave
// like NopDriver.
type Funcs struct {
	InitFunc     func(env Env) bool
	FrameFunc    func() bool
	ShutdownFunc func()
}

func (f Funcs) Init(env Env) bool {
	if f.InitFunc == nil {
		return true
	}
	return f.InitFunc(env)
}

func (f Funcs) Frame() bool {
	if f.FrameFunc == nil {
		return true
	}
	return f.FrameFunc()
}

func (f Funcs) Shutdown() {
	if f.ShutdownFunc != nil {
		f.ShutdownFunc()
	}
}

// Limit wraps d so that Frame reports false once n frames have run.
// A non-positive n returns d unchanged.
func Limit(d Driver, n int) Driver {
	if n <= 0 {
		return d
	}
	return &limited{Driver: d, left: int64(n)}
}

type limited struct {
	Driver
	left int64
}

func (l *limited) Frame() bool {
	more := l.Driver.Frame()
	if atomic.AddInt64(&l.left, -1) <= 0 {
		return false
	}
	return more
}

// Disabled is a driver whose init always fails, leaving the gate disabled
// so only the test pattern renders.
type Disabled struct{}

func (Disabled) Init(Env) bool { return false }
func (Disabled) Frame() bool   { return false }
func (Disabled) Shutdown()     {}
