// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import (
	"errors"
	"fmt"
	"io/fs"
)

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Image sources
	OpImageOpen   Op = "open image"
	OpImageDecode Op = "decode image"

	// Rendering
	OpRender    Op = "render image"
	OpAnimate   Op = "animate image"
	OpStyle     Op = "select style"
	OpStyleArgs Op = "parse style arguments"

	// Terminal
	OpOutput Op = "write to terminal"

	// Grid browsing
	OpGridLoad Op = "load directory"

	// Initialization
	OpConfigLoad Op = "load configuration"
	OpInitialize Op = "initialize application"
)

// OpenOp returns the operation an image source error belongs to: opening
// when the file could not be read, decoding otherwise.
func OpenOp(err error) Op {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return OpImageOpen
	}
	return OpImageDecode
}

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
