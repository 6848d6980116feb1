package services

import (
	"errors"
	"fmt"

	"lumio/internal/models"
)

// ErrorCode is a machine-readable failure kind returned to callers.
type ErrorCode string

const (
	ErrCodeValidation           ErrorCode = "VALIDATION"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeInvalidState         ErrorCode = "INVALID_STATE"
	ErrCodeWalletNotInitialized ErrorCode = "WALLET_NOT_INITIALIZED"
	ErrCodeAssetNotConfigured   ErrorCode = "ASSET_NOT_CONFIGURED"
	ErrCodeInsufficientSupply   ErrorCode = "INSUFFICIENT_SUPPLY"
	ErrCodeNoTokensIssued       ErrorCode = "NO_TOKENS_ISSUED"
	ErrCodeNoHolders            ErrorCode = "NO_HOLDERS"
	ErrCodeNothingToDistribute  ErrorCode = "NOTHING_TO_DISTRIBUTE"
)

// Error is a tagged domain error. Recoverable reports whether retrying the
// same call can ever succeed without a change in underlying data.
type Error struct {
	Code        ErrorCode
	Message     string
	Recoverable bool
}

func (e *Error) Error() string {
	return e.Message
}

// CodeOf extracts the domain error code, if err carries one.
func CodeOf(err error) (ErrorCode, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

func validationErr(format string, args ...interface{}) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...), Recoverable: true}
}

func notFoundErr(what string, id interface{}) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found: %v", what, id)}
}

func invalidStateErr(got models.EventStatus, want string) *Error {
	return &Error{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("event must be %s, current status: %s", want, got),
	}
}
