package replica

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the structured diagnostic interface plug-ins and the
// kernel log through. Modelled on the teacher's types.Logger
// (pkg/mcast/definition/default_logger.go): Info/Warn/Error/Debug
// levels and the same Debug/ToggleDebug split, but each method takes a
// fields map instead of format arguments, there are no formatted or
// Fatal/Panic variants, and it is backed by logrus instead of stdlib
// log so fields (run index, replica id, tick) attach structurally
// instead of being string-formatted in by hand.
type Logger interface {
	Info(fields map[string]interface{}, msg string)
	Warn(fields map[string]interface{}, msg string)
	Error(fields map[string]interface{}, msg string)
	Debug(fields map[string]interface{}, msg string)
	ToggleDebug(on bool)
	// WithFields returns a derived logger that always includes the
	// given fields, e.g. the run controller attaches {run_index: i}
	// once per run instead of on every call site.
	WithFields(fields map[string]interface{}) Logger
}

// LogrusLogger is the default Logger implementation.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds a default logger writing to out (stderr if
// nil). When logToFile is true the caller is expected to have already
// pointed out at the per-run file (spec §6.1 log_to_file).
func NewLogrusLogger(out io.Writer) *LogrusLogger {
	if out == nil {
		out = os.Stderr
	}
	base := logrus.New()
	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.InfoLevel)
	return &LogrusLogger{entry: logrus.NewEntry(base)}
}

func (l *LogrusLogger) Info(fields map[string]interface{}, msg string) {
	l.entry.WithFields(fields).Info(msg)
}

func (l *LogrusLogger) Warn(fields map[string]interface{}, msg string) {
	l.entry.WithFields(fields).Warn(msg)
}

func (l *LogrusLogger) Error(fields map[string]interface{}, msg string) {
	l.entry.WithFields(fields).Error(msg)
}

func (l *LogrusLogger) Debug(fields map[string]interface{}, msg string) {
	l.entry.WithFields(fields).Debug(msg)
}

func (l *LogrusLogger) ToggleDebug(on bool) {
	if on {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
}

func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(fields)}
}

// AsLogFunc adapts a Logger to the flat LogFunc signature the kernel
// passes to plug-ins (spec §4.4 callable #4).
func AsLogFunc(l Logger) LogFunc {
	return func(level string, fields map[string]interface{}, msg string) {
		switch level {
		case "debug":
			l.Debug(fields, msg)
		case "warn":
			l.Warn(fields, msg)
		case "error":
			l.Error(fields, msg)
		default:
			l.Info(fields, msg)
		}
	}
}
