package build

import (
	"fmt"
	"path/filepath"
)

const (
	// DefaultLogFilename is the name of the daemon log file within the log
	// directory.
	DefaultLogFilename = "lngossipd.log"

	// DefaultMaxLogFiles is the default number of rolled log files kept.
	DefaultMaxLogFiles = 3

	// DefaultMaxLogFileSize is the default size in MB at which the log
	// file is rolled.
	DefaultMaxLogFileSize = 10
)

// LogConfig holds the options of the console logger and the rotating log
// file.
//
//nolint:lll
type LogConfig struct {
	Dir         string `long:"dir" description:"Directory to write the log file to."`
	MaxFiles    int    `long:"max-files" description:"Maximum number of rolled log files to keep (0 for no rotation)."`
	MaxFileSize int    `long:"max-file-size" description:"Size in MB at which the log file is rolled."`

	Console *LoggerConfig `group:"console" namespace:"console" description:"The logger writing to stdout."`
	File    *LoggerConfig `group:"file" namespace:"file" description:"The logger writing to the rotating log file."`
}

// LoggerConfig holds options for a particular logger.
//
//nolint:lll
type LoggerConfig struct {
	Disable      bool `long:"disable" description:"Disable this logger."`
	NoTimestamps bool `long:"no-timestamps" description:"Omit timestamps from log lines."`
}

// DefaultLogConfig returns the default logging config, writing the log file
// to logDir.
func DefaultLogConfig(logDir string) *LogConfig {
	return &LogConfig{
		Dir:         logDir,
		MaxFiles:    DefaultMaxLogFiles,
		MaxFileSize: DefaultMaxLogFileSize,
		Console:     &LoggerConfig{},
		File:        &LoggerConfig{},
	}
}

// LogFile returns the path of the log file.
func (c *LogConfig) LogFile() string {
	return filepath.Join(c.Dir, DefaultLogFilename)
}

// Validate checks the log file options unless the file logger is disabled.
func (c *LogConfig) Validate() error {
	if c.File.Disable {
		return nil
	}

	if c.Dir == "" {
		return fmt.Errorf("logging.dir must be set")
	}

	if c.MaxFiles < 0 {
		return fmt.Errorf("logging.max-files must not be negative, "+
			"got %d", c.MaxFiles)
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("logging.max-file-size must be positive, "+
			"got %d", c.MaxFileSize)
	}

	return nil
}
