// Package imgerr defines the error taxonomy shared by the rendering packages.
//
// Validation errors (SizeError, UnsupportedStyleError, RangeError, ErrClosed)
// are returned synchronously to the caller. DecodeError is produced by image
// sources and is normally turned into a faulty render result by background
// workers. ProtocolError marks a broken invariant while building control data
// and is never retried.
package imgerr

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed image or iterator.
var ErrClosed = errors.New("use of closed image resource")

// DecodeError reports an unreadable or corrupt image source.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode image: %v", e.Err)
	}
	return fmt.Sprintf("decode image %q: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedStyleError reports a style the active terminal cannot display,
// or an unknown style name.
type UnsupportedStyleError struct {
	Style  string
	Reason string
}

func (e *UnsupportedStyleError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("style %q is not supported", e.Style)
	}
	return fmt.Sprintf("style %q is not supported: %s", e.Style, e.Reason)
}

// SizeError reports a render size that resolves to an unusable geometry.
type SizeError struct {
	Cols   int
	Rows   int
	Reason string
}

func (e *SizeError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "too small to render"
	}
	return fmt.Sprintf("invalid render size %dx%d: %s", e.Cols, e.Rows, reason)
}

// ProtocolError reports an invalid key or value while building graphics
// protocol control data.
type ProtocolError struct {
	Key    string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("control data key %q: %s", e.Key, e.Reason)
}

// RangeError reports an out-of-range frame index.
type RangeError struct {
	Index int
	Len   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("frame index %d out of range [0, %d)", e.Index, e.Len)
}

// ArgError reports an invalid style argument.
type ArgError struct {
	Style string
	Arg   string
	Value string
	Err   error
}

func (e *ArgError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid %s=%q: %v", e.Style, e.Arg, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: invalid %s=%q", e.Style, e.Arg, e.Value)
}

func (e *ArgError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a caller mistake rather than a
// per-image runtime failure.
func IsValidation(err error) bool {
	var (
		sizeErr  *SizeError
		styleErr *UnsupportedStyleError
		argErr   *ArgError
		rangeErr *RangeError
	)
	return errors.As(err, &sizeErr) ||
		errors.As(err, &styleErr) ||
		errors.As(err, &argErr) ||
		errors.As(err, &rangeErr) ||
		errors.Is(err, ErrClosed)
}
