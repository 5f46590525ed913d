// Package logging provides module-scoped loggers that share one master
// logrus logger.
//
//	var log = logging.MustGetLogger("render")
//	log.WithField("frame", n).Debug("BeginFrame")
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var master = newMaster()

func newMaster() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// MustGetLogger returns a logger tagged with the given module name.
func MustGetLogger(module string) *logrus.Entry {
	return Master().WithField("module", module)
}

// Master returns the shared logger backing every module logger.
func Master() *logrus.Logger {
	return master
}

// SetLevel sets the level of the master logger.
func SetLevel(level logrus.Level) {
	Master().SetLevel(level)
}

// SetOutput redirects the master logger.
func SetOutput(w io.Writer) {
	Master().SetOutput(w)
}

// SetFormatter replaces the master formatter.
func SetFormatter(f logrus.Formatter) {
	Master().SetFormatter(f)
}

// ParseLevel parses a level name; the empty string means info.
func ParseLevel(name string) (logrus.Level, error) {
	if name == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(name)
}
