package logger

import (
	"io"
	"log"
	"os"
)

// Log flags
const (
	LstdFlags     = log.LstdFlags
	Lmicroseconds = log.Lmicroseconds
)

// Logger wraps the standard log.Logger with a verbose level for the
// per-dispatch chatter of the search loop.
type Logger struct {
	*log.Logger
	verbose bool
}

// New creates a new logger writing to stdout.
func New() *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// NewWriter creates a new logger that writes to the provided writer.
func NewWriter(w io.Writer) *Logger {
	return &Logger{
		Logger: log.New(w, "", log.LstdFlags),
	}
}

// SetVerbose enables or disables Debugf output.
func (l *Logger) SetVerbose(v bool) {
	l.verbose = v
}

// Debugf logs only when verbose output is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	if l.verbose {
		l.Printf(format, args...)
	}
}

// SetOutput sets the output destination for the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.Logger.SetOutput(w)
}

// SetFlags sets the output flags for the logger.
func (l *Logger) SetFlags(flag int) {
	l.Logger.SetFlags(flag)
}
