// Package logging routes leveled messages through glog and maps the
// COREG_LOG_LEVEL / log_level setting onto glog's flags.
package logging

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// debugVerbosity is the glog -v level that enables Debugf.
const debugVerbosity = 1

// Level is a logging verbosity level.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel parses a level name, ignoring case. Unknown names give LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARNING"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Configure sets glog's flags for level. Debug raises -v to at least 1; a
// higher -v given on the command line is kept. Without -log_dir everything
// goes to stderr; with it, glog writes its files and level sets
// -stderrthreshold.
func Configure(level Level) error {
	if level >= LevelDebug && !glog.V(debugVerbosity) {
		if err := flag.Set("v", strconv.Itoa(debugVerbosity)); err != nil {
			return fmt.Errorf("set glog verbosity: %w", err)
		}
	}

	if dir := flag.Lookup("log_dir"); dir != nil && dir.Value.String() != "" {
		threshold := level.String()
		if level >= LevelInfo {
			threshold = "INFO"
		}
		if err := flag.Set("stderrthreshold", threshold); err != nil {
			return fmt.Errorf("set glog stderr threshold: %w", err)
		}
		return nil
	}
	return flag.Set("logtostderr", "true")
}

// ConfigureFromEnv applies COREG_LOG_LEVEL.
func ConfigureFromEnv() error {
	return Configure(ParseLevel(os.Getenv("COREG_LOG_LEVEL")))
}

// Logger is a handle on glog. The zero value is ready to use.
type Logger struct{}

// New returns a Logger.
func New() *Logger {
	return &Logger{}
}

// Errorf logs at error severity.
func (l *Logger) Errorf(format string, args ...any) {
	glog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

// Warnf logs at warning severity.
func (l *Logger) Warnf(format string, args ...any) {
	glog.WarningDepth(1, fmt.Sprintf(format, args...))
}

// Infof logs at info severity.
func (l *Logger) Infof(format string, args ...any) {
	glog.InfoDepth(1, fmt.Sprintf(format, args...))
}

// Debugf logs at info severity when glog runs with -v=1 or higher.
func (l *Logger) Debugf(format string, args ...any) {
	if glog.V(debugVerbosity) {
		glog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

// Printf logs at info severity. The estimator calls it only for traces
// requested with Options.Debug.
func (l *Logger) Printf(format string, args ...any) {
	glog.InfoDepth(1, fmt.Sprintf(format, args...))
}

// Flush writes buffered log entries.
func Flush() {
	glog.Flush()
}
