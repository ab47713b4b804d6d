// Package nineerr defines the error kinds shared across every 9S namespace
// implementation. Namespaces return these sentinels (wrapped with context via
// fmt.Errorf("%w: ...")) rather than ad-hoc error strings, so callers can
// branch on kind with errors.Is regardless of which backend produced the
// failure.
package nineerr

import "errors"

var (
	// ErrNotFound means a path or anchor is absent where presence was required.
	ErrNotFound = errors.New("nine_s: not found")
	// ErrInvalidPath means the path failed the §4.2 grammar.
	ErrInvalidPath = errors.New("nine_s: invalid path")
	// ErrInvalidData means the payload was malformed or out of bounds.
	ErrInvalidData = errors.New("nine_s: invalid data")
	// ErrPermission is reserved for a future extension; never raised today.
	ErrPermission = errors.New("nine_s: permission denied")
	// ErrClosed means the operation targeted a closed namespace.
	ErrClosed = errors.New("nine_s: namespace closed")
	// ErrTimeout is only ever synthesized by callers wrapping the core.
	ErrTimeout = errors.New("nine_s: timeout")
	// ErrConnection means the external wallet backend is unreachable.
	ErrConnection = errors.New("nine_s: connection unavailable")
	// ErrUnavailable means a capacity limit was hit, the wallet is
	// disconnected, or a feature is unimplemented.
	ErrUnavailable = errors.New("nine_s: unavailable")
	// ErrInternal covers I/O, serialization, or crypto failure.
	ErrInternal = errors.New("nine_s: internal error")

	// ErrAlreadyInitialized is raised by a second vault initialize.
	ErrAlreadyInitialized = errors.New("vault: already initialized")
	// ErrInvalidPassphrase is raised by a vault unlock with the wrong credential.
	ErrInvalidPassphrase = errors.New("vault: invalid passphrase")
	// ErrRateLimited is raised while a vault lockout is in effect.
	ErrRateLimited = errors.New("vault: rate limited")
	// ErrCryptoError covers AEAD/KDF/PHC failures.
	ErrCryptoError = errors.New("crypto: operation failed")

	// ErrPathNotFound is a patch-apply failure: the JSON pointer has no target.
	ErrPathNotFound = errors.New("patch: path not found")
	// ErrTypeMismatch is a patch-apply failure: op expects a different JSON type.
	ErrTypeMismatch = errors.New("patch: type mismatch")
	// ErrTestFailed is a patch-apply failure: a `test` op did not match.
	ErrTestFailed = errors.New("patch: test operation failed")
	// ErrInvalidPointer is a patch-apply failure: malformed RFC 6901 pointer.
	ErrInvalidPointer = errors.New("patch: invalid json pointer")
)
