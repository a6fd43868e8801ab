// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Input errors
	ErrMalformedRecord = &Error{Code: "MALFORMED_RECORD", Message: "malformed transaction record"}
	ErrNoTransactions  = &Error{Code: "NO_TRANSACTIONS", Message: "no usable transactions"}

	// Price errors
	ErrNoPriceData        = &Error{Code: "NO_PRICE_DATA", Message: "no price data available"}
	ErrSourceUnavailable  = &Error{Code: "SOURCE_UNAVAILABLE", Message: "price source unavailable"}
	ErrUnresolvedPriceGap = &Error{Code: "UNRESOLVED_PRICE_GAP", Message: "no price for held quantity"}

	// Analysis errors
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
