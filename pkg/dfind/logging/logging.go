// Package logging provides component loggers with file rotation for dfind.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("scanner")
//	logger.Info("scan started", "root", "/home/user")
//
// Loggers may be obtained before Init (for example as package-level
// variables); they are silent until Init is called and pick up the active
// configuration on every call.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components maps component names to level overrides.
	Components map[string]string

	// ConsoleLevel enables console output at the given level.
	// Empty disables console output.
	ConsoleLevel string

	// Console is where console output goes. Nil means os.Stderr.
	Console io.Writer
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}

// DefaultLogPath returns $XDG_STATE_HOME/dfind/dfind.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "dfind", "dfind.log")
}

// sinks are the charm loggers serving one component.
type sinks struct {
	file    *log.Logger
	console *log.Logger
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       Level
	components  map[string]Level
	console     io.Writer
	consoleLvl  Level
	sinks       map[string]*sinks
}

var global = &state{
	components: make(map[string]Level),
	sinks:      make(map[string]*sinks),
}

// Init configures logging. It may be called again to reconfigure; the
// previous log file is closed first.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	var console io.Writer
	consoleLvl := LevelInfo
	if cfg.ConsoleLevel != "" {
		if consoleLvl, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		console = cfg.Console
		if console == nil {
			console = os.Stderr
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.writer != nil {
		_ = global.writer.Close()
	}
	global.writer = writer
	global.level = level
	global.components = components
	global.console = console
	global.consoleLvl = consoleLvl
	global.sinks = make(map[string]*sinks)
	global.initialized = true
	return nil
}

// Close flushes and closes the log file. Loggers become silent again.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}
	global.initialized = false
	global.console = nil
	global.sinks = make(map[string]*sinks)
	global.components = make(map[string]Level)

	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// sinksFor returns the charm loggers for component, building them on first
// use. It returns nil before Init.
func (s *state) sinksFor(component string) *sinks {
	s.mu.RLock()
	if !s.initialized {
		s.mu.RUnlock()
		return nil
	}
	if sk, ok := s.sinks[component]; ok {
		s.mu.RUnlock()
		return sk
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	if sk, ok := s.sinks[component]; ok {
		return sk
	}

	level := s.level
	if lvl, ok := s.components[component]; ok {
		level = lvl
	}

	sk := &sinks{
		file: log.NewWithOptions(s.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
	}
	if s.console != nil {
		sk.console = log.NewWithOptions(s.console, log.Options{
			Level:           s.consoleLvl.charm(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}
	s.sinks[component] = sk
	return sk
}

// Logger is a component logger. The zero value is not usable; call Get.
type Logger struct {
	component string
	fields    []interface{}
}

var (
	loggersMu sync.Mutex
	loggers   = make(map[string]*Logger)
)

// Get returns the logger for component.
func Get(component string) *Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[component]; ok {
		return l
	}
	l := &Logger{component: component}
	loggers[component] = l
	return l
}

// With returns a logger that adds the given key/value pairs to every entry.
func (l *Logger) With(args ...interface{}) *Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(args))
	fields = append(fields, l.fields...)
	fields = append(fields, args...)
	return &Logger{component: l.component, fields: fields}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) { l.log(LevelInfo, msg, args) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) { l.log(LevelWarn, msg, args) }

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }

func (l *Logger) log(level Level, msg string, args []interface{}) {
	sk := global.sinksFor(l.component)
	if sk == nil {
		return
	}
	if len(l.fields) > 0 {
		args = append(append([]interface{}{}, l.fields...), args...)
	}

	emit(sk.file, level, msg, args)
	if sk.console != nil {
		emit(sk.console, level, msg, args)
	}
}

func emit(logger *log.Logger, level Level, msg string, args []interface{}) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelInfo:
		logger.Info(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	}
}
