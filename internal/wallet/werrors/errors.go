// Package werrors defines the error taxonomy shared by every wallet engine component.
// Each failure carries a Kind and a human readable reason so callers can decide whether
// to retry at a higher level (e.g. re-fetch a fresh nonce and rebuild).
package werrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a wallet engine failure.
type Kind string

const (
	KindUnknown               Kind = "UNKNOWN"
	KindInvalidMnemonic       Kind = "INVALID_MNEMONIC"
	KindDerivationPath        Kind = "DERIVATION_PATH_ERROR"
	KindUnsupportedDerivation Kind = "UNSUPPORTED_DERIVATION"
	KindUnsupportedChain      Kind = "UNSUPPORTED_CHAIN"
	KindInvalidAddress        Kind = "INVALID_ADDRESS"
	KindInsufficientFunds     Kind = "INSUFFICIENT_FUNDS"
	KindSigning               Kind = "SIGNING_ERROR"
	KindProviderUnavailable   Kind = "PROVIDER_UNAVAILABLE"
	KindBroadcastRejected     Kind = "BROADCAST_REJECTED"
	KindTimeout               Kind = "TIMEOUT"
	KindInvalidRequest        Kind = "INVALID_REQUEST"
	KindInvalidState          Kind = "INVALID_STATE"
)

// Retryable reports whether failures of this kind may succeed when repeated unchanged.
func (k Kind) Retryable() bool {
	switch k {
	case KindProviderUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is the structured error returned across component boundaries.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind.
func New(kind Kind, reason string) error {
	return &Error{Kind: kind, Reason: reason}
}

// Newf returns an error of the given kind with a formatted reason.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and reason to err. A nil err yields nil.
func Wrap(kind Kind, err error, reason string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Wrapf is Wrap with a formatted reason.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err).Retryable()
}

// Reason returns the human message of the outermost *Error, falling back to err.Error().
func Reason(err error) string {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
