package oidc

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an OIDC failure. The set is closed: handlers map each
// kind to an HTTP status and callers are not expected to branch on
// anything finer than the kind.
type Kind string

const (
	// KindConfig covers missing or invalid settings, unreachable or
	// malformed discovery metadata, and issuer mismatches.
	KindConfig Kind = "config"
	// KindExchange covers token-endpoint failures during code exchange.
	KindExchange Kind = "exchange"
	// KindValidation covers signature, decode and claim failures on the
	// returned ID token.
	KindValidation Kind = "validation"
	// KindGroupGate covers a missing or unsatisfied group claim.
	KindGroupGate Kind = "group_gate"
	// KindIdentityMismatch means the token was cryptographically valid
	// but names a different identity than the one bound to the account.
	KindIdentityMismatch Kind = "identity_mismatch"
	// KindTransaction covers unknown or expired state values. Unknown and
	// expired are deliberately indistinguishable to the caller.
	KindTransaction Kind = "transaction"
)

// Error is the single error type returned across the package boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// remote marks config errors detected after a network round trip to
	// the IdP; those surface as 503 instead of 500.
	remote bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oidc %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("oidc %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to the status the route layer returns.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindTransaction:
		return http.StatusBadRequest
	case KindValidation:
		return http.StatusUnauthorized
	case KindGroupGate, KindIdentityMismatch:
		return http.StatusForbidden
	case KindExchange:
		return http.StatusServiceUnavailable
	case KindConfig:
		if e.remote {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsKind checks whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus extracts the status for any error coming out of this
// package. Unclassified errors map to 500.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

func configErrf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

func configRemoteErrf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...), remote: true}
}

func configRemoteWrap(err error, message string) *Error {
	return &Error{Kind: KindConfig, Message: message, Err: err, remote: true}
}

func exchangeErr(message string) *Error {
	return &Error{Kind: KindExchange, Message: message}
}

func exchangeWrap(err error, message string) *Error {
	return &Error{Kind: KindExchange, Message: message, Err: err}
}

func validationErrf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func validationWrap(err error, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

func groupGateErrf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindGroupGate, Message: fmt.Sprintf(format, args...)}
}

func identityMismatchErr(message string) *Error {
	return &Error{Kind: KindIdentityMismatch, Message: message}
}

func transactionErr(message string) *Error {
	return &Error{Kind: KindTransaction, Message: message}
}
