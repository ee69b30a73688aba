// Package chachaerr annotates the sentinel errors exposed by chacha20,
// poly1305, and chacha20poly1305 with call-site context using
// github.com/samber/oops, without losing errors.Is/errors.As comparability
// against the underlying sentinel. The algorithmic core never imports this
// package; it exists purely so a caller that wants richer diagnostics than
// a bare sentinel error can opt in at the boundary.
package chachaerr

import (
	"github.com/samber/oops"
)

// Domain tags the error codes this module annotates with, so a caller
// filtering oops errors by domain can isolate cryptographic-core failures
// from the rest of an application's error stream.
const Domain = "chacha20poly1305"

// Wrap annotates err with domain/code context and returns it unchanged if
// err is nil. The wrapped error still satisfies errors.Is(wrapped, err).
func Wrap(err error, code string) error {
	if err == nil {
		return nil
	}
	return oops.
		In(Domain).
		Code(code).
		Wrap(err)
}

// Wrapf is Wrap with an additional formatted message attached as context.
func Wrapf(err error, code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.
		In(Domain).
		Code(code).
		Wrapf(err, format, args...)
}

// Error codes for Wrap/Wrapf, one per error kind of this module. Inside
// the module only CodeNonceReused has a call site (sentinel.Observe).
const (
	CodeInvalidKey      = "invalid_key"
	CodeInvalidNonce    = "invalid_nonce"
	CodeInvalidEnvelope = "invalid_envelope"
	CodeMessageTooLong  = "message_too_long"
	CodeAuthFailed      = "auth_failed"
	CodeInvalidMACKey   = "invalid_mac_key"
	CodeNonceReused     = "nonce_reused"
)
