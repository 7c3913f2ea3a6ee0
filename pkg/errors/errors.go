// Package errors provides the unified error type and factory functions for
// regioflow.  Every layer of the pipeline (domain, application,
// infrastructure, interfaces) uses AppError as the single carrier for
// structured error information, so a caller can always recover the error
// code and decide whether a failure is a recoverable data gap, a structural
// problem that skips one commodity, or a fatal invariant violation.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames
// above the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		// Trim standard-library noise to keep traces readable.
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// AppError is the single structured error type used throughout regioflow.
// It satisfies the standard error interface and supports Go 1.13+ error
// wrapping so that errors.Is / errors.As / errors.Unwrap work transparently
// across all layers.
//
// Usage:
//
//	return errors.New(errors.CodeNoTemplate, "no template process for commodity 2709")
//	return errors.Wrap(storeErr, errors.CodeDatabaseError, "failed to load trade flows")
//	return errors.DataGap("missing export ratio").WithDetail("commodity=" + code)
type AppError struct {
	// Code is the typed error code that uniquely identifies the failure
	// category.
	Code ErrorCode

	// Message is the primary human-readable description of the error.
	Message string

	// Detail carries supplementary context (commodity codes, country tags,
	// node ids) that aids debugging.
	Detail string

	// Cause is the underlying error that triggered this AppError, enabling
	// errors.Is / errors.As traversal of the full error chain.
	Cause error

	// Stack contains the formatted call-stack captured at the point of
	// error creation.  It is intentionally not included in Error() output;
	// the structured logger attaches it as a field when needed.
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>"; the detail segment is omitted
// when Detail is empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error, enabling errors.Is and
// errors.As to traverse the full error chain.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// Severity returns the taxonomy class of the receiver's code.
func (e *AppError) Severity() Severity {
	return SeverityForCode(e.Code)
}

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf constructs a fresh AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error.  If err is nil,
// Wrap returns nil so it can be used inline on a call result.
//
// When err is already an *AppError and code is CodeUnknown the original code
// is preserved, preventing loss of the original classification during
// cross-layer propagation.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the ErrorCode from the first *AppError found in err's
// chain.  If no *AppError is present, CodeUnknown is returned.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// GetSeverity extracts the Severity of the first *AppError in err's chain.
// Unclassified errors are treated as fatal so that an unexpected failure is
// never silently recovered.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityNone
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return SeverityForCode(ae.Code)
	}
	return SeverityFatal
}

// IsRecoverable reports whether err is a data-gap class error that the
// pipeline may absorb with a documented default.
func IsRecoverable(err error) bool {
	return GetSeverity(err) == SeverityRecoverable
}

// IsStructural reports whether err should cause the current commodity to be
// skipped and reported, without aborting the run.
func IsStructural(err error) bool {
	return GetSeverity(err) == SeverityStructural
}

// DataGap constructs a CodeDataGap AppError.  Data gaps are always
// recoverable: the caller applies a documented default and records the gap
// in the run report.
func DataGap(message string) *AppError {
	return &AppError{
		Code:    CodeDataGap,
		Message: message,
		Stack:   captureStack(1),
	}
}

// NoTemplate constructs a CodeNoTemplate AppError, raised when no template
// process exists anywhere for a mapped commodity.
func NoTemplate(message string) *AppError {
	return &AppError{
		Code:    CodeNoTemplate,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Invariant constructs a CodeInvariantViolation AppError, fatal to the
// commodity being processed.
func Invariant(message string) *AppError {
	return &AppError{
		Code:    CodeInvariantViolation,
		Message: message,
		Stack:   captureStack(1),
	}
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidParam,
		Message: message,
		Stack:   captureStack(1),
	}
}

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Internal constructs a CodeInternal AppError.  Use this for unexpected
// failures where no more specific code applies.
func Internal(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Stack:   captureStack(1),
	}
}
