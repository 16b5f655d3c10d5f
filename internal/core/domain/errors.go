package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSecret is returned when the secret phrase is not a valid
	// BIP-39 mnemonic.
	ErrInvalidSecret = errors.New("invalid mnemonic phrase")
	// ErrNoAccounts is returned by eth_requestAccounts when the wallet has not
	// derived any account yet.
	ErrNoAccounts = errors.New(
		"no accounts available, please setup the wallet and load your mnemonic",
	)
	// ErrInvalidAccountIndex is returned when the account index does not refer
	// to any of the derived accounts.
	ErrInvalidAccountIndex = errors.New("invalid account index, please reset your wallet")
	// ErrNotConfigured is returned when a signing method is invoked before the
	// secret phrase is set.
	ErrNotConfigured = errors.New("wallet not configured, please setup your wallet")
	// ErrUserRejectedConnection ...
	ErrUserRejectedConnection = errors.New("user rejected connection")
	// ErrConnectionTimeout ...
	ErrConnectionTimeout = errors.New("user connection timeout")
	// ErrUserRejectedApproval ...
	ErrUserRejectedApproval = errors.New("user rejected the request")
	// ErrApprovalTimeout ...
	ErrApprovalTimeout = errors.New("user approval timeout after 2 minutes")
	// ErrSignerMismatch is returned when the typed data signer is not the
	// active account.
	ErrSignerMismatch = errors.New("signer address does not match current account")
	// ErrInvalidChainId ...
	ErrInvalidChainId = errors.New("invalid chainId")
	// ErrNetwork is the kind matched by every NetworkError.
	ErrNetwork = errors.New("network error")
	// ErrMethodNotImplemented ...
	ErrMethodNotImplemented = errors.New("method not implemented")
	// ErrInvalidParams is returned when the params of an RPC call cannot be
	// decoded for the requested method.
	ErrInvalidParams = errors.New("invalid params")
	// ErrRateLimited is returned when an origin exceeds its request budget.
	ErrRateLimited = errors.New("too many requests, try again later")
	// ErrWalletClosed is delivered to pending requests when the orchestrator
	// shuts down.
	ErrWalletClosed = errors.New("wallet is shutting down")
	// ErrSurfaceUnavailable is returned when no approval window could be
	// opened for a pending request.
	ErrSurfaceUnavailable = errors.New("failed to open confirmation window")
)

// NetworkError wraps a failure of the chain RPC collaborator with the
// endpoint that was contacted.
type NetworkError struct {
	Endpoint string
	Err      error
}

func NewNetworkError(endpoint string, err error) *NetworkError {
	return &NetworkError{endpoint, err}
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrNetwork, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// RejectionError is the error a caller sees when the approval surface
// explicitly declined its request. Reason is the text reported by the
// surface, if any.
type RejectionError struct {
	Kind   error
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Reason
}

func (e *RejectionError) Unwrap() error {
	return e.Kind
}
