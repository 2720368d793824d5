package build

import (
	"io"
	"os"

	"github.com/btcsuite/btclog/v2"
)

// NewDefaultLoggers returns the standard console logger and rotating log
// writer loggers that we generally want to use. It also applies the various
// config options to the loggers. A nil rotator, or a disabled logger, results
// in a handler that discards everything it is given.
func NewDefaultLoggers(cfg *LogConfig, rotator *RotatingLogWriter) (
	btclog.Handler, btclog.Handler) {

	var (
		consoleOpts []btclog.HandlerOption
		fileOpts    []btclog.HandlerOption
	)
	if cfg.File.NoTimestamps {
		fileOpts = append(fileOpts, btclog.WithNoTimestamp())
	}
	if cfg.Console.NoTimestamps {
		consoleOpts = append(consoleOpts, btclog.WithNoTimestamp())
	}

	var consoleOut io.Writer = os.Stdout
	if cfg.Console.Disable {
		consoleOut = io.Discard
	}

	var fileOut io.Writer = io.Discard
	if rotator != nil && !cfg.File.Disable {
		fileOut = rotator
	}

	consoleLogHandler := btclog.NewDefaultHandler(consoleOut, consoleOpts...)
	logFileHandler := btclog.NewDefaultHandler(fileOut, fileOpts...)

	return consoleLogHandler, logFileHandler
}
