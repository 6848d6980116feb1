package stellar

import "fmt"

// Error codes surfaced by the gateway.
const (
	CodeNetworkMismatch = "NETWORK_MISMATCH"
	CodeNetworkError    = "NETWORK_ERROR"
	CodeFriendbotError  = "FRIENDBOT_ERROR"
	CodeTxFailed        = "TX_FAILED"
)

// ResultCodes carries Horizon's transaction/operation result codes so
// callers can tell a bad sequence from an underfunded account or a
// malformed operation.
type ResultCodes struct {
	Transaction string   `json:"transaction"`
	Operations  []string `json:"operations"`
}

// Error is a structured ledger error. Recoverable signals whether the
// caller may retry after fixing the root cause.
type Error struct {
	Code        string
	Message     string
	Recoverable bool
	ResultCodes *ResultCodes
}

func (e *Error) Error() string {
	if e.ResultCodes != nil && e.ResultCodes.Transaction != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.ResultCodes.Transaction)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// BadSequence reports whether the submission was rejected for a stale
// sequence number.
func (e *Error) BadSequence() bool {
	return e.ResultCodes != nil && e.ResultCodes.Transaction == "tx_bad_seq"
}

// Underfunded reports whether the submission failed on insufficient balance
// or reserve.
func (e *Error) Underfunded() bool {
	if e.ResultCodes == nil {
		return false
	}
	if e.ResultCodes.Transaction == "tx_insufficient_balance" {
		return true
	}
	for _, op := range e.ResultCodes.Operations {
		if op == "op_underfunded" || op == "op_low_reserve" {
			return true
		}
	}
	return false
}

// MalformedOperation reports whether any operation in the transaction was
// rejected as malformed.
func (e *Error) MalformedOperation() bool {
	if e.ResultCodes == nil {
		return false
	}
	for _, op := range e.ResultCodes.Operations {
		if op == "op_malformed" || op == "op_no_destination" || op == "op_no_trust" {
			return true
		}
	}
	return false
}

// NewError builds a structured ledger error.
func NewError(code, message string, recoverable bool) *Error {
	return &Error{Code: code, Message: message, Recoverable: recoverable}
}
