package lower

import (
	"errors"
	"fmt"
)

// RewriteError represents a failure while applying a rule.
type RewriteError struct {
	// Code identifies the error category.
	Code RewriteErrorCode

	// Rule names the rule that failed.
	Rule string

	// Function is the function being lowered.
	Function string

	// Op is the mnemonic of the op being rewritten.
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// RewriteErrorCode categorizes rewrite errors.
type RewriteErrorCode string

const (
	// ErrCodeUnknownSymbol indicates a runtime symbol missing from the
	// catalog.
	ErrCodeUnknownSymbol RewriteErrorCode = "UNKNOWN_SYMBOL"

	// ErrCodeMalformedOp indicates an op the rule cannot rewrite, such as a
	// terminator missing a successor.
	ErrCodeMalformedOp RewriteErrorCode = "MALFORMED_OP"

	// ErrCodeRedeclaration indicates a runtime symbol already present with a
	// different signature.
	ErrCodeRedeclaration RewriteErrorCode = "REDECLARATION"

	// ErrCodeDanglingValue indicates a live op using a value defined in a
	// block that lowering made unreachable.
	ErrCodeDanglingValue RewriteErrorCode = "DANGLING_VALUE"
)

// Error implements the error interface.
func (e *RewriteError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %s (rule=%s, function=%s, op=%s)", e.Code, msg, e.Rule, e.Function, e.Op)
}

// Unwrap returns the underlying cause.
func (e *RewriteError) Unwrap() error { return e.Err }

// IsRewriteError returns true if err is or wraps a RewriteError.
// Uses errors.As to handle wrapped errors.
func IsRewriteError(err error) bool {
	var re *RewriteError
	return errors.As(err, &re)
}

// QuotaExceededError is returned when rules keep rewriting past the sweep
// limit.
type QuotaExceededError struct {
	Module string // The module being lowered
	Sweeps int    // Sweeps performed
	Limit  int    // Maximum allowed sweeps
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("module %s did not reach a fixed point: %d sweeps > %d limit",
		e.Module, e.Sweeps, e.Limit)
}

// IsQuotaError returns true if the error is a QuotaExceededError.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
