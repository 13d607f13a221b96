package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the logging level
type Level int

const (
	// DEBUG level for detailed debugging information
	DEBUG Level = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level, defaulting to INFO
func ParseLevel(name string) Level {
	switch name {
	case "DEBUG", "debug":
		return DEBUG
	case "WARN", "warn":
		return WARN
	case "ERROR", "error":
		return ERROR
	default:
		return INFO
	}
}

// LogFileName is the name of the active log file inside LogDir
const LogFileName = "ezrecorder.log"

// Logger writes levelled messages to a size-rotated file.
// A nil *Logger discards everything.
type Logger struct {
	mu       sync.RWMutex
	level    Level
	out      io.WriteCloser
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
	debugLog *log.Logger
}

// Config holds logger configuration
type Config struct {
	LogDir        string
	Level         Level
	RetentionDays int
	MaxSizeMB     int
	Console       bool
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	logDir := filepath.Join(homeDir, "Library", "Application Support", "EzRecorder", "logs")

	return Config{
		LogDir:        logDir,
		Level:         INFO,
		RetentionDays: 7,
		MaxSizeMB:     10,
	}
}

// New creates a new logger
func New(config Config) (*Logger, error) {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	maxSize := config.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}

	rotator := &lumberjack.Logger{
		Filename:  filepath.Join(config.LogDir, LogFileName),
		MaxSize:   maxSize,
		MaxAge:    config.RetentionDays,
		LocalTime: true,
		Compress:  true,
	}

	// Open eagerly so permission problems surface here
	if _, err := rotator.Write(nil); err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var w io.Writer = rotator
	if config.Console {
		w = io.MultiWriter(rotator, os.Stderr)
	}

	return &Logger{
		level:    config.Level,
		out:      rotator,
		infoLog:  log.New(w, "[INFO] ", log.LstdFlags),
		warnLog:  log.New(w, "[WARN] ", log.LstdFlags),
		errorLog: log.New(w, "[ERROR] ", log.LstdFlags),
		debugLog: log.New(w, "[DEBUG] ", log.LstdFlags),
	}, nil
}

func (l *Logger) logAt(level Level, format string, v ...interface{}) {
	if l == nil {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.level > level || l.out == nil {
		return
	}

	var target *log.Logger
	switch level {
	case DEBUG:
		target = l.debugLog
	case INFO:
		target = l.infoLog
	case WARN:
		target = l.warnLog
	default:
		target = l.errorLog
	}
	target.Printf(format, v...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.logAt(DEBUG, format, v...)
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	l.logAt(INFO, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.logAt(WARN, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.logAt(ERROR, format, v...)
}

// Close closes the log file
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return nil
	}
	err := l.out.Close()
	l.out = nil
	return err
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	if l == nil {
		return ERROR + 1
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.level
}
