package builder

import (
	"errors"
	"fmt"

	"github.com/roach88/eir/internal/ir"
)

// BuildError represents a compiler-internal fault detected while building
// IR: a malformed request from the front end, never a source-program error.
//
// The first BuildError poisons the builder. Every later call returns it, and
// FinishFunction and Finish refuse to complete.
type BuildError struct {
	// Code identifies the error category.
	Code BuildErrorCode

	// Op names the builder operation that failed, e.g. "build_tuple".
	Op string

	// Loc is the source location supplied with the failing call.
	Loc ir.Location

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// BuildErrorCode categorizes build errors.
type BuildErrorCode string

const (
	// ErrCodeBadArity indicates an argument count that does not match.
	ErrCodeBadArity BuildErrorCode = "BAD_ARITY"

	// ErrCodeIndexOutOfRange indicates a tuple or environment index outside
	// the described bounds.
	ErrCodeIndexOutOfRange BuildErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeIncompatibleRedeclaration indicates a symbol redeclared with a
	// different signature.
	ErrCodeIncompatibleRedeclaration BuildErrorCode = "INCOMPATIBLE_REDECLARATION"

	// ErrCodeDuplicateDefinition indicates a function defined twice.
	ErrCodeDuplicateDefinition BuildErrorCode = "DUPLICATE_DEFINITION"

	// ErrCodeNoInsertionPoint indicates an op emitted with no current block.
	ErrCodeNoInsertionPoint BuildErrorCode = "NO_INSERTION_POINT"

	// ErrCodeBlockTerminated indicates an op emitted after a terminator.
	ErrCodeBlockTerminated BuildErrorCode = "BLOCK_TERMINATED"

	// ErrCodeTypeMismatch indicates a value of the wrong type.
	ErrCodeTypeMismatch BuildErrorCode = "TYPE_MISMATCH"

	// ErrCodeInvalidType indicates a type constructor rejected its input.
	ErrCodeInvalidType BuildErrorCode = "INVALID_TYPE"

	// ErrCodeModuleFrozen indicates a mutation after Finish.
	ErrCodeModuleFrozen BuildErrorCode = "MODULE_FROZEN"

	// ErrCodeUndescribedEnv indicates an environment access on a value whose
	// closure environment was never described.
	ErrCodeUndescribedEnv BuildErrorCode = "UNDESCRIBED_ENV"

	// ErrCodeForeignValue indicates a value or block from another function.
	ErrCodeForeignValue BuildErrorCode = "FOREIGN_VALUE"

	// ErrCodeFunctionOpen indicates a new function started before the
	// current one was finished.
	ErrCodeFunctionOpen BuildErrorCode = "FUNCTION_OPEN"

	// ErrCodeMissingContinuation indicates a call outside tail position
	// without an ok continuation, or a closure call without err.
	ErrCodeMissingContinuation BuildErrorCode = "MISSING_CONTINUATION"

	// ErrCodeInvalidFunction indicates the finished function failed
	// verification.
	ErrCodeInvalidFunction BuildErrorCode = "INVALID_FUNCTION"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Loc.IsKnown() {
		return fmt.Sprintf("%s: %s: %s (at %s)", e.Code, e.Op, msg, e.Loc)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
}

// Unwrap returns the underlying cause.
func (e *BuildError) Unwrap() error { return e.Err }

// IsBuildError returns true if err is or wraps a BuildError.
// Uses errors.As to handle wrapped errors.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

// HasCode returns true if err is a BuildError with the given code.
func HasCode(err error, code BuildErrorCode) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// codeForSymbolError maps module-level symbol failures onto build codes.
func codeForSymbolError(err error) BuildErrorCode {
	var se *ir.SymbolError
	if errors.As(err, &se) {
		switch se.Code {
		case ir.CodeIncompatibleRedeclaration:
			return ErrCodeIncompatibleRedeclaration
		case ir.CodeDuplicateDefinition:
			return ErrCodeDuplicateDefinition
		case ir.CodeModuleFrozen:
			return ErrCodeModuleFrozen
		}
	}
	return ErrCodeInvalidType
}
