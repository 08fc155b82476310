// Package types holds the error taxonomy shared by the cache, filter and host adapter.
package types

import (
	"errors"
)

var (
	// ErrInvalidArgument covers bad option names, unknown fields and wrong argument counts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrResourceExhausted is returned when an entry or set cannot be allocated.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrUnsupported marks input forms that are recognised but not implemented.
	ErrUnsupported = errors.New("unsupported")
	// ErrNotInitialized is returned when the cache is used outside its load/unload window.
	ErrNotInitialized = errors.New("not initialized")
)

// ErrorCode is the status reported back to the host for a single call.
type ErrorCode int

const (
	CodeSuccess ErrorCode = iota
	CodeInvalidArgument
	CodeResourceExhausted
	CodeUnsupported
	CodeNotInitialized
	CodeUnknown
)

// String returns the label used in logs and metrics.
func (c ErrorCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeResourceExhausted:
		return "resource_exhausted"
	case CodeUnsupported:
		return "unsupported"
	case CodeNotInitialized:
		return "not_initialized"
	default:
		return "unknown"
	}
}

// Code maps an error to the host status code. A nil error is CodeSuccess.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrResourceExhausted):
		return CodeResourceExhausted
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, ErrNotInitialized):
		return CodeNotInitialized
	default:
		return CodeUnknown
	}
}
