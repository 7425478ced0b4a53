// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// ErrFileOnlyWithoutFile is returned when FileOnly is set but File is empty.
var ErrFileOnlyWithoutFile = errors.New("file-only logging requires a log file")

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File, when set, receives a JSON copy of every log line (opened in append mode).
	File string

	// FileOnly suppresses Output so that logs go to File only.
	FileOnly bool
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

var (
	fileMu   sync.Mutex
	openFile *os.File
)

// Setup configures the global zerolog logger.
func Setup(cfg Config) (zerolog.Logger, error) {
	if cfg.FileOnly && cfg.File == "" {
		return zerolog.Nop(), ErrFileOnlyWithoutFile
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if !cfg.FileOnly {
		var console io.Writer = cfg.Output
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{Out: cfg.Output}
		}
		writers = append(writers, console)
	}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("open log file: %w", err)
		}
		replaceFile(f)
		writers = append(writers, f)
	}

	// Create logger with timestamp
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger, nil
}

// Close closes the log file opened by the last Setup, if any.
func Close() error {
	return replaceFile(nil)
}

func replaceFile(f *os.File) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	var err error
	if openFile != nil {
		err = openFile.Close()
	}
	openFile = f
	return err
}

// ParseLevel converts a level name to LogLevel, accepting any case.
func ParseLevel(s string) LogLevel {
	return LogLevel(strings.ToLower(strings.TrimSpace(s)))
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Worker start/stop and per-worker task counts
//   - Shared QPS waits
//   - SQL statements with arguments
//   - Result store reads and writes
//
// Info: Normal operation events
//   - Dispatch start and completion summaries
//   - Runner startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Synchronous dispatch mode selected
//   - Retry attempts
//   - Throttle or store errors (task continues)
//
// Error: Error conditions requiring attention
//   - Callback panics
//   - Requests failed after retries
//   - Configuration errors
//
// Context Fields:
//   - run_id: Dispatch run identifier
//   - worker_id: Worker index within a run
//   - tasks: Task count
//   - concurrency: Configured worker count
//   - qps_limit: Configured total QPS ceiling
//   - url: Target of an HTTP task
//   - error_class: Error classification (client, server, rate_limit, network)
//   - duration: Elapsed time
