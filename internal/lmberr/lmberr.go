// Package lmberr defines the stable, cross-language error-kind taxonomy
// that every evaluation-boundary error carries, per CONTRACT_ERRORS.md.
package lmberr

import (
	"errors"
	"fmt"
)

// Kind is a stable error-kind tag. Kinds never change spelling across
// releases; hosts (CLI, HTTP server) and Lua scripts both switch on them.
type Kind string

// Error kinds per CONTRACT_ERRORS.md.
const (
	KindSyntax                Kind = "syntax"
	KindRuntime               Kind = "runtime"
	KindTimeout               Kind = "timeout"
	KindExpectCallableReturn  Kind = "expect_callable_return"
	KindModuleNotFound        Kind = "module_not_found"
	KindValueCodec            Kind = "value_codec"
	KindStoreBackend          Kind = "store_backend"
	KindReentrantUpdate       Kind = "reentrant_update"
	KindHTTPRequestFailed     Kind = "http_request_failed"
	KindHTTPDecodeFailed      Kind = "http_decode_failed"
	KindCryptoParam           Kind = "crypto_param"
	KindFSIO                  Kind = "fs_io"
	KindClosedFile            Kind = "closed_file"
	KindWrongMode             Kind = "wrong_mode"
	KindBadSeek               Kind = "bad_seek"
	KindBadWriteArg           Kind = "bad_write_arg"
	KindShutdown              Kind = "shutdown"
)

// Error is the error type that crosses every evaluation boundary: VM to
// host, store to host, HTTP client to host. It always carries a stable
// Kind so callers (CLI renderer, HTTP 500 mapper, Lua pcall) can switch on
// taxonomy rather than parsing messages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error tagging an underlying cause with a kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, lmberr.New(lmberr.KindTimeout, "")) style kind checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise returns KindRuntime as the catch-all for uncategorized
// failures crossing the evaluation boundary.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRuntime
}

// AsError coerces any error into an *Error: an *Error (or one wrapped
// inside err) is returned as-is, preserving its Kind; anything else is
// wrapped as KindRuntime.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindRuntime, "unclassified error", err)
}
