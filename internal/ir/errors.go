package ir

import (
	"errors"
	"fmt"
)

// Error codes reported by TypeError.
const (
	CodeInvalidElementType = "INVALID_ELEMENT_TYPE"
	CodeInvalidInnerType   = "INVALID_INNER_TYPE"
	CodeInvalidWidth       = "INVALID_WIDTH"
	CodeInvalidArity       = "INVALID_ARITY"
	CodeNotSingleton       = "NOT_SINGLETON"
	CodeAtomConflict       = "ATOM_CONFLICT"
)

// TypeError is returned when a type constructor rejects its parameters.
// Index is the offending tuple element, or -1 when not applicable.
type TypeError struct {
	Code    string
	Kind    Kind
	Index   int
	Message string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("[%s] %s element %d: %s", e.Code, e.Kind, e.Index, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Kind, e.Message)
}

// IsTypeError returns true if err is or wraps a TypeError.
func IsTypeError(err error) bool {
	var te *TypeError
	return errors.As(err, &te)
}

// ParseError is returned by ParseType and ParseAttr. Line and Col are
// 1-based positions in the input text.
type ParseError struct {
	Line    int
	Col     int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

// IsParseError returns true if err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Error codes reported by SymbolError.
const (
	CodeIncompatibleRedeclaration = "INCOMPATIBLE_REDECLARATION"
	CodeDuplicateDefinition       = "DUPLICATE_DEFINITION"
	CodeModuleFrozen              = "MODULE_FROZEN"
)

// SymbolError is returned when a module-level symbol cannot be declared or
// defined.
type SymbolError struct {
	Code     string
	Symbol   string
	Existing Signature
	Wanted   Signature
}

// Error implements the error interface.
func (e *SymbolError) Error() string {
	switch e.Code {
	case CodeIncompatibleRedeclaration:
		return fmt.Sprintf("[%s] %s: declared as %s, requested %s",
			e.Code, e.Symbol, e.Existing, e.Wanted)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Symbol)
	}
}

// IsSymbolError returns true if err is or wraps a SymbolError.
func IsSymbolError(err error) bool {
	var se *SymbolError
	return errors.As(err, &se)
}
