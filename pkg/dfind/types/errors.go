package types

import (
	"errors"
	"fmt"
)

// Fatal error classes. Use errors.Is to test which class an error belongs to.
var (
	// ErrFatalConfig marks invalid or unparseable configuration.
	ErrFatalConfig = errors.New("invalid configuration")

	// ErrFatalPath marks a scan root that cannot be scanned.
	ErrFatalPath = errors.New("invalid scan root")

	// ErrNotExist is wrapped by a PathError when the root does not exist.
	ErrNotExist = errors.New("path does not exist")

	// ErrNotDir is wrapped by a PathError when the root is not a directory.
	ErrNotDir = errors.New("path is not a directory")
)

// ConfigError reports a configuration value that could not be used.
// Scanning never starts when one is returned.
type ConfigError struct {
	Key   string
	Value string
	Err   error
}

// Error implements error.
func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("config %s=%q: %v", e.Key, e.Value, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error { return e.Err }

// Is reports ErrFatalConfig as a match.
func (e *ConfigError) Is(target error) bool { return target == ErrFatalConfig }

// NewConfigError wraps err as a ConfigError for key.
func NewConfigError(key, value string, err error) *ConfigError {
	return &ConfigError{Key: key, Value: value, Err: err}
}

// PathError reports a scan root that is missing or not a directory.
type PathError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *PathError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

// Unwrap returns the underlying cause.
func (e *PathError) Unwrap() error { return e.Err }

// Is reports ErrFatalPath as a match.
func (e *PathError) Is(target error) bool { return target == ErrFatalPath }

// WarningKind classifies a recoverable problem.
type WarningKind int

const (
	// WarnIO is a file or directory that could not be listed, stat'ed or opened.
	WarnIO WarningKind = iota
	// WarnHash is a read failure while a file was being hashed.
	WarnHash
)

// String returns the string representation of the kind.
func (k WarningKind) String() string {
	switch k {
	case WarnIO:
		return "io"
	case WarnHash:
		return "hash"
	default:
		return "unknown"
	}
}

// ScanWarning records a file or directory that was excluded from the run.
// Warnings are collected and reported; they never stop a scan.
type ScanWarning struct {
	// Path is the file or directory path where the problem occurred.
	Path string `json:"path"`

	// Kind classifies the warning.
	Kind WarningKind `json:"kind"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements error so warnings can be logged and wrapped directly.
func (w ScanWarning) Error() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// Message returns the underlying error text.
func (w ScanWarning) Message() string {
	if w.Err == nil {
		return ""
	}
	return w.Err.Error()
}
