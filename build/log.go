package build

import (
	"fmt"
	"io"
	"sort"
	"strings"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
)

// LogWriter forwards log lines to the log rotator. Console output is handled
// by a separate handler, see NewDefaultLoggers.
type LogWriter struct {
	// RotatorPipe is the write-end pipe for writing to the log rotator.
	RotatorPipe *io.PipeWriter
}

// Write writes the data in b to the rotator pipe, if one is attached.
func (w *LogWriter) Write(b []byte) (int, error) {
	if w.RotatorPipe != nil {
		return w.RotatorPipe.Write(b)
	}

	return len(b), nil
}

// NewSubLogger constructs a new subsystem log from the current LogWriter
// implementation. This is primarily intended for use with stdlog, as the actual
// writer is shared amongst all instantiations.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger == nil {
		return btclog.Disabled
	}

	return genSubLogger(subsystem)
}

// SubLoggers is a map of subsystem tag to the logger in use for it.
type SubLoggers map[string]btclog.Logger

// SubLoggerManager hands out one logger per subsystem, all backed by the same
// set of handlers, and allows their levels to be adjusted together.
type SubLoggerManager struct {
	root    btclog.Logger
	loggers SubLoggers
}

// NewSubLoggerManager creates a manager whose loggers write to the combined
// handler passed in.
func NewSubLoggerManager(handler btclog.Handler) *SubLoggerManager {
	return &SubLoggerManager{
		root:    btclog.NewSLogger(handler),
		loggers: make(SubLoggers),
	}
}

// GenSubLogger creates (or returns the existing) logger for the subsystem.
// It has the signature expected by NewSubLogger.
func (m *SubLoggerManager) GenSubLogger(subsystem string) btclog.Logger {
	if l, ok := m.loggers[subsystem]; ok {
		return l
	}

	l := m.root.SubSystem(subsystem)
	m.loggers[subsystem] = l

	return l
}

// SupportedSubsystems returns the sorted list of registered subsystems.
func (m *SubLoggerManager) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(m.loggers))
	for s := range m.loggers {
		subsystems = append(subsystems, s)
	}
	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevels parses a debug level string of the form
// "<global>" or "<subsystem>=<level>,<subsystem2>=<level>,..." and applies it
// to the registered loggers.
func (m *SubLoggerManager) SetLogLevels(debugLevel string) error {
	// A single level applies to every subsystem.
	if !strings.Contains(debugLevel, "=") {
		level, ok := btclogv1.LevelFromString(debugLevel)
		if !ok {
			return fmt.Errorf("invalid debug level %q", debugLevel)
		}
		for _, l := range m.loggers {
			l.SetLevel(level)
		}

		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("malformed debug level pair %q", pair)
		}

		subsystem, levelStr := fields[0], fields[1]
		l, ok := m.loggers[subsystem]
		if !ok {
			return fmt.Errorf("unknown subsystem %q, supported "+
				"subsystems: %v", subsystem,
				m.SupportedSubsystems())
		}

		level, ok := btclogv1.LevelFromString(levelStr)
		if !ok {
			return fmt.Errorf("invalid debug level %q for "+
				"subsystem %s", levelStr, subsystem)
		}
		l.SetLevel(level)
	}

	return nil
}
