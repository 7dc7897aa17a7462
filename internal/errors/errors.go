package errors

import (
	stderrors "errors"
	"fmt"
)

// SynapseError is the structured error type for synapse.
// It provides context for error handling, logging, and user presentation.
type SynapseError struct {
	// Code is the unique error code (e.g., "ERR_401_NODE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Index, Graph, Search).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *SynapseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SynapseError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SynapseError.
func (e *SynapseError) Is(target error) bool {
	if t, ok := target.(*SynapseError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SynapseError) WithDetail(key, value string) *SynapseError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SynapseError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *SynapseError {
	return &SynapseError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a SynapseError from an existing error.
// Returns nil if err is nil.
func Wrap(code string, err error) *SynapseError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ParseFailure reports a single-file extraction failure.
// Non-fatal: the pass skips the file and continues.
func ParseFailure(path string, cause error) *SynapseError {
	return New(ErrCodeParseFailure, fmt.Sprintf("failed to parse %s", path), cause).
		WithDetail("path", path)
}

// NotFound reports an operation on a path absent from the graph.
func NotFound(path string) *SynapseError {
	return New(ErrCodeNodeNotFound, fmt.Sprintf("node not found: %s", path), nil).
		WithDetail("path", path)
}

// PersistenceFailure reports a disk write error on graph or fingerprint save.
// Fatal to the pass; in-memory state is not rolled back.
func PersistenceFailure(what string, cause error) *SynapseError {
	return New(ErrCodePersistence, fmt.Sprintf("failed to persist %s", what), cause).
		WithDetail("target", what)
}

// BackendFailure reports an embedding-index query error.
// The retriever surfaces this as an empty result set with a warning.
func BackendFailure(cause error) *SynapseError {
	return New(ErrCodeSearchBackend, "embedding index query failed", cause)
}

// IsFatal reports whether the error should abort the current pass.
func IsFatal(err error) bool {
	if se, ok := err.(*SynapseError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// HasCode reports whether err or any error it wraps carries the code.
func HasCode(err error, code string) bool {
	for err != nil {
		if se, ok := err.(*SynapseError); ok && se.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
