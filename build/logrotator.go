package build

import (
	"fmt"
	"io"
	"os"

	"github.com/jrick/logrotate/rotator"
)

// RotatingLogWriter writes log lines to the log file of a LogConfig and rolls
// it once it reaches the configured size.
type RotatingLogWriter struct {
	logWriter *LogWriter

	rotator *rotator.Rotator
}

// NewRotatingLogWriter creates the log directory of cfg and starts rotating
// its log file. If the file logger is disabled, the returned writer drops
// everything. Close must be called on shutdown.
func NewRotatingLogWriter(cfg *LogConfig) (*RotatingLogWriter, error) {
	r := &RotatingLogWriter{logWriter: &LogWriter{}}
	if cfg.File.Disable {
		return r, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// The rotator threshold is given in KB.
	rot, err := rotator.New(
		cfg.LogFile(), int64(cfg.MaxFileSize*1024), false, cfg.MaxFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w", err)
	}
	r.rotator = rot

	// Errors of the rotator, such as a full disk, are reported on stderr
	// as there is no log left to write them to.
	pr, pw := io.Pipe()
	go func() {
		if err := rot.Run(pr); err != nil {
			_, _ = fmt.Fprintf(os.Stderr,
				"failed to run file rotator: %v\n", err)
		}
	}()

	r.logWriter.RotatorPipe = pw

	return r, nil
}

// Write writes the byte slice to the log file, if one is open.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	return r.logWriter.Write(b)
}

// Close closes the log file, if one is open.
func (r *RotatingLogWriter) Close() error {
	if r.rotator == nil {
		return nil
	}

	return r.rotator.Close()
}
