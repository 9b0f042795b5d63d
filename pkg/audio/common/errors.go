package common

import (
	"errors"
	"fmt"
)

// Error codes carried by the audio error types
const (
	ErrCodeDecodeOpen   = "DECODE_OPEN"
	ErrCodeDecodeFormat = "DECODE_FORMAT"
	ErrCodeDecodeEmpty  = "DECODE_EMPTY"

	ErrCodeTooShort  = "PROCESSING_TOO_SHORT"
	ErrCodeTransform = "PROCESSING_TRANSFORM"
	ErrCodeInvalid   = "PROCESSING_INVALID"

	ErrCodeNoDevice = "PLAYBACK_NO_DEVICE"
	ErrCodeStream   = "PLAYBACK_STREAM"

	ErrCodeOverlap      = "TIMELINE_OVERLAP"
	ErrCodeGap          = "TIMELINE_GAP"
	ErrCodeUncovered    = "TIMELINE_UNCOVERED"
	ErrCodeInvalidEntry = "TIMELINE_INVALID_ENTRY"
)

// DecodeError is returned when an audio file cannot be read or decoded
type DecodeError struct {
	Path    string `json:"path"`
	Format  string `json:"format,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode failed for %s: %s", e.Path, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// NewDecodeError creates a new decode error
func NewDecodeError(path, format, code, message string, cause error) *DecodeError {
	return &DecodeError{
		Path:    path,
		Format:  format,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ProcessingError is returned when a feature extraction stage fails
type ProcessingError struct {
	Path    string `json:"path"`
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *ProcessingError) Error() string {
	path := e.Path
	if path == "" {
		path = "<buffer>"
	}
	msg := fmt.Sprintf("processing failed for %s at stage %s: %s", path, e.Stage, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// NewProcessingError creates a new processing error
func NewProcessingError(path, stage, code, message string, cause error) *ProcessingError {
	return &ProcessingError{
		Path:    path,
		Stage:   stage,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// PlaybackDeviceError means audio could not be sent to an output device.
// Callers degrade to silent visualization instead of aborting.
type PlaybackDeviceError struct {
	Device  string `json:"device,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *PlaybackDeviceError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PlaybackDeviceError) Unwrap() error {
	return e.Cause
}

// NewPlaybackDeviceError creates a new playback device error
func NewPlaybackDeviceError(device, code, message string, cause error) *PlaybackDeviceError {
	return &PlaybackDeviceError{
		Device:  device,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ConfigurationWarning flags a timeline problem that is logged but never fatal
type ConfigurationWarning struct {
	Code    string  `json:"code" yaml:"code"`
	Index   int     `json:"index" yaml:"index"` // entry index, -1 when the warning is not about one entry
	Start   float64 `json:"start" yaml:"start"`
	End     float64 `json:"end" yaml:"end"`
	Message string  `json:"message" yaml:"message"`
}

func (w ConfigurationWarning) Error() string {
	return w.Message
}

// Stage returns the failing stage name for fatal startup errors, or "" if
// err is not one of the startup error types.
func Stage(err error) string {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return "decode"
	}
	var processingErr *ProcessingError
	if errors.As(err, &processingErr) {
		return "processing"
	}
	return ""
}

// IsPlaybackDeviceError reports whether err is a degraded-playback error
func IsPlaybackDeviceError(err error) bool {
	var deviceErr *PlaybackDeviceError
	return errors.As(err, &deviceErr)
}
