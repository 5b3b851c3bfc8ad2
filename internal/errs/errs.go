// Package errs gives the store's four error classes (spec §7: Validation,
// NotFound, IO, Internal) stable codes, structured context, and a Retryable
// flag, the same shape agilira/balios uses for its cache error codes.
package errs

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for store operations, grouped by class.
const (
	// Validation
	CodeEmptyKey     errors.ErrorCode = "KVSTORE_EMPTY_KEY"
	CodeInvalidValue errors.ErrorCode = "KVSTORE_INVALID_VALUE"
	CodeInvalidTTL   errors.ErrorCode = "KVSTORE_INVALID_TTL"

	// NotFound
	CodeNotFound errors.ErrorCode = "KVSTORE_NOT_FOUND"

	// IO
	CodeWALAppend   errors.ErrorCode = "KVSTORE_WAL_APPEND_FAILED"
	CodeWALRecover  errors.ErrorCode = "KVSTORE_WAL_RECOVER_FAILED"
	CodeWALCompact  errors.ErrorCode = "KVSTORE_WAL_COMPACT_FAILED"

	// Internal
	CodeInternal errors.ErrorCode = "KVSTORE_INTERNAL"
)

// NewEmptyKey reports a validation failure: the request carried no key.
func NewEmptyKey(operation string) error {
	return errors.NewWithField(CodeEmptyKey, "key must not be empty", "operation", operation)
}

// NewInvalidValue reports a validation failure: the value was not a string.
func NewInvalidValue(key string) error {
	return errors.NewWithField(CodeInvalidValue, "value must be a string", "key", key)
}

// NewInvalidTTL reports a validation failure: ttl was zero or negative.
func NewInvalidTTL(key string, ttl int64) error {
	return errors.NewWithContext(CodeInvalidTTL, "ttl must be a positive integer number of seconds", map[string]interface{}{
		"key": key,
		"ttl": ttl,
	})
}

// NewNotFound reports that a qualified key was absent or expired.
func NewNotFound(namespace, key string) error {
	return errors.NewWithContext(CodeNotFound, "key not found", map[string]interface{}{
		"namespace": namespace,
		"key":       key,
	})
}

// NewWALAppend wraps a WAL append failure. IO errors of this class are
// retryable: the in-memory state is untouched, so the caller may retry the
// same operation.
func NewWALAppend(cause error) error {
	return errors.Wrap(cause, CodeWALAppend, "failed to append WAL record").AsRetryable()
}

// NewWALRecover wraps a WAL recovery failure encountered at startup.
func NewWALRecover(cause error) error {
	return errors.Wrap(cause, CodeWALRecover, "failed to recover from WAL")
}

// NewWALCompact wraps a WAL compaction failure. The live log is untouched
// when this occurs (§4.2), so it is retryable.
func NewWALCompact(cause error) error {
	return errors.Wrap(cause, CodeWALCompact, "failed to compact WAL").AsRetryable()
}

// NewInternal reports an invariant violation that must not occur; the
// process continues in a degraded state (§7).
func NewInternal(operation string, cause error) error {
	if cause != nil {
		return errors.Wrap(cause, CodeInternal, "internal store error").
			WithContext("operation", operation).
			WithSeverity("critical")
	}
	return errors.NewWithField(CodeInternal, "internal store error", "operation", operation).
		WithSeverity("critical")
}

// IsNotFound reports whether err is a NotFound-class error.
func IsNotFound(err error) bool {
	return errors.HasCode(err, CodeNotFound)
}

// IsValidation reports whether err is a Validation-class error.
func IsValidation(err error) bool {
	return errors.HasCode(err, CodeEmptyKey) ||
		errors.HasCode(err, CodeInvalidValue) ||
		errors.HasCode(err, CodeInvalidTTL)
}

// IsIO reports whether err is an IO-class error (WAL append/recover/compact).
func IsIO(err error) bool {
	return errors.HasCode(err, CodeWALAppend) ||
		errors.HasCode(err, CodeWALRecover) ||
		errors.HasCode(err, CodeWALCompact)
}

// IsRetryable reports whether err carries the Retryable flag.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable errors.Retryable
	if goerrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// Code extracts the stable error code from err, or "" if err does not carry
// one.
func Code(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}
