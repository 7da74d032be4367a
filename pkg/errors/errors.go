// Package errors provides structured error handling for driftx.
//
// Programmer errors (contract violations, type mismatches, missing
// factories) are raised as panics carrying one of the typed errors below.
// Runtime failures that must not be swallowed, such as a shared instance
// failing to dispose, are returned to the caller and also sent to the
// global ErrorHandler via Report.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindContract indicates a violated usage contract (programmer error).
	KindContract
	// KindCleanup indicates a shared instance failed to dispose.
	KindCleanup
	// KindConfig indicates a configuration loading or validation error.
	KindConfig
	// KindLifecycle indicates a lifecycle observer returned an error.
	KindLifecycle
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindCleanup:
		return "cleanup"
	case KindConfig:
		return "config"
	case KindLifecycle:
		return "lifecycle"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// DriftError represents a structured error reported by driftx.
type DriftError struct {
	// Op is the operation that failed (e.g., "shared.Release").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Key is the cache key involved, if applicable.
	Key string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *DriftError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s [%s] key=%s: %v", e.Op, e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *DriftError) Unwrap() error {
	return e.Err
}

// ContractError is the panic value used when a caller breaks the usage
// contract of a driftx API.
type ContractError struct {
	// Op is the operation that detected the violation.
	Op string
	// Key is the cache key involved, if any.
	Key string
	// Reason describes the violation.
	Reason string
}

func (e *ContractError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: contract violation for key %s: %s", e.Op, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: contract violation: %s", e.Op, e.Reason)
}

// TypeMismatchError is the panic value used when a cached instance does not
// have the type requested for its key.
type TypeMismatchError struct {
	Key      string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for key %s: expected %s, got %s", e.Key, e.Expected, e.Actual)
}

// CleanupError wraps a failure returned by an instance's Dispose method.
// The instance has already been evicted when this error is produced.
type CleanupError struct {
	// Key is the cache key the instance was stored under.
	Key string
	// Instance is the dynamic type of the instance.
	Instance string
	// Err is the error returned by Dispose.
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("dispose %s (key %s): %v", e.Instance, e.Key, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "mainthread.Loop").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorHandler receives errors reported by driftx.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *DriftError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
