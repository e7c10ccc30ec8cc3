package intray

import (
	"errors"
	"fmt"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Sentinel errors, for use with errors.Is
var (
	// ErrInvalidConfig is returned at construction for a bad chunk size,
	// retry limit or pool size
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInit is returned when the start phase is rejected or unreachable
	ErrInit = errors.New("upload start failed")

	// ErrChunk is matched by every *ChunkError
	ErrChunk = errors.New("chunk upload failed")

	// ErrFinish is returned when the finish phase is rejected or unreachable
	ErrFinish = errors.New("upload finish failed")

	// ErrTransport is matched by every *TransportError
	ErrTransport = errors.New("transport error")

	// ErrRejected is returned when the remote answers with ok=false
	ErrRejected = errors.New("rejected by remote")

	// ErrStopped is returned when work is submitted to a stopped engine
	ErrStopped = errors.New("engine stopped")
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ChunkError is returned when a single chunk exhausted its retry budget. Err
// is the cause of the last attempt.
type ChunkError struct {
	Index int
	Err   error
}

// TransportError wraps a network or protocol failure of operation Op
type TransportError struct {
	Op  string
	Err error
}

// RemoteError is a semantic rejection returned by the remote, carrying its
// error message
type RemoteError struct {
	Message string
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// InitError wraps the cause of a failed start phase
func InitError(cause error) error {
	return fmt.Errorf("%w: %w", ErrInit, cause)
}

// FinishError wraps the cause of a failed finish phase
func FinishError(cause error) error {
	return fmt.Errorf("%w: %w", ErrFinish, cause)
}

// InvalidConfig returns an error which matches ErrInvalidConfig
func InvalidConfig(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, a...))
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

func (e *ChunkError) Is(target error) bool {
	return target == ErrChunk
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return ErrRejected.Error()
	}
	return ErrRejected.Error() + ": " + e.Message
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRejected
}
