package agentkit

import (
	"errors"
	"fmt"
	"strings"
)

// WalletError represents a wallet-operation-specific error
type WalletError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeConfiguration          = "configuration_fault"
	ErrCodeUnsupportedChain       = "unsupported_chain"
	ErrCodeTransport              = "transport_failure"
	ErrCodeRecoverableSponsorship = "recoverable_sponsorship_failure"
	ErrCodeSigning                = "signing_fault"
	ErrCodeBalanceQuery           = "balance_query_failed"
	ErrCodeHashSigning            = "hash_signing_failed"
	ErrCodeMessageSigning         = "message_signing_failed"
	ErrCodeTypedDataSigning       = "typed_data_signing_failed"
	ErrCodeTransactionSigning     = "transaction_signing_failed"
	ErrCodeSendTransaction        = "send_transaction_failed"
	ErrCodeNativeTransfer         = "native_transfer_failed"
)

// NewWalletError creates a new wallet error
func NewWalletError(code, message string, details map[string]interface{}) *WalletError {
	return &WalletError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// HTTPStatus returns the upstream HTTP status carried in Details, or 0 when
// the error did not originate from an HTTP response.
func (e *WalletError) HTTPStatus() int {
	if e.Details == nil {
		return 0
	}
	switch v := e.Details["httpStatus"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// IsRecoverableSponsorship reports whether err is a sponsorship failure that
// warrants exactly one unsponsored retry: an upstream 401/403, or an error
// message indicating missing or invalid authorization signatures. Anything
// else must surface to the caller untouched.
func IsRecoverableSponsorship(err error) bool {
	if err == nil {
		return false
	}

	var walletErr *WalletError
	if errors.As(err, &walletErr) {
		if walletErr.Code == ErrCodeRecoverableSponsorship {
			return true
		}
		if status := walletErr.HTTPStatus(); status == 401 || status == 403 {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "missing authorization signature") ||
		strings.Contains(msg, "invalid authorization signature")
}
