// Package errors provides structured error reporting for the surface bridge.
//
// Nothing in the bridge returns errors across the control/render boundary.
// Conditions that need a diagnostic are reported to the global ErrorHandler
// instead, and the caller recovers by changing state.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindSurface indicates the platform returned no usable surface.
	KindSurface
	// KindBufferLock indicates a transient pixel-buffer lock failure.
	KindBufferLock
	// KindInit indicates an engine initialization failure.
	KindInit
	// KindRender indicates a failure while posting a frame.
	KindRender
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindSurface:
		return "surface"
	case KindBufferLock:
		return "bufferLock"
	case KindInit:
		return "init"
	case KindRender:
		return "render"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// BridgeError represents a structured error raised by the bridge.
type BridgeError struct {
	// Op is the operation that failed (e.g., "render.lockBuffer").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Session is the render session id, if the error came from a render loop.
	Session string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BridgeError) Error() string {
	if e.Session != "" {
		return fmt.Sprintf("%s [%s] session=%s: %v", e.Op, e.Kind, e.Session, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "render.loop").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorHandler receives errors reported by the bridge.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *BridgeError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
