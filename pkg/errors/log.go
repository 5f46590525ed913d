package errors

import (
	"github.com/sirupsen/logrus"

	"github.com/fonline/droidbridge/pkg/logging"
)

var log = logging.MustGetLogger("errors")

// LogHandler is an ErrorHandler that writes errors to the bridge log.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
}

// HandleError logs a BridgeError at error level.
func (h *LogHandler) HandleError(err *BridgeError) {
	if err == nil {
		return
	}
	fields := logrus.Fields{"op": err.Op, "kind": err.Kind.String()}
	if err.Session != "" {
		fields["session"] = err.Session
	}
	if h.Verbose && err.StackTrace != "" {
		fields["stack"] = err.StackTrace
	}
	log.WithFields(fields).Error(err.Err)
}

// HandlePanic logs a PanicError at error level.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	entry := log.WithField("kind", KindPanic.String())
	if err.Op != "" {
		entry = entry.WithField("op", err.Op)
	}
	if h.Verbose && err.StackTrace != "" {
		entry = entry.WithField("stack", err.StackTrace)
	}
	entry.Errorf("recovered panic: %v", err.Value)
}
