package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceGone marks a capture device that will not come back
	ErrDeviceGone = errors.New("capture device gone")
	// ErrDispatchTimeout is recorded for channels still sending when the grace period ends
	ErrDispatchTimeout = errors.New("timeout")
)

// ConfigError is a fatal startup configuration problem
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CaptureError is a failed frame acquisition. Permanent errors end the process.
type CaptureError struct {
	Source    string
	Permanent bool
	Err       error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Source, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// StorageError aborts the alert cycle that produced it
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TransportError is a failed send on a single notification channel
type TransportError struct {
	Channel string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Channel, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsPermanentCapture reports whether err should stop the acquisition loop
func IsPermanentCapture(err error) bool {
	if errors.Is(err, ErrDeviceGone) {
		return true
	}
	var ce *CaptureError
	return errors.As(err, &ce) && ce.Permanent
}
