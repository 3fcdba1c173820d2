// Package apperr provides the engine's unified error taxonomy.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies which branch of the taxonomy an error belongs to.
type Kind string

const (
	KindStore               Kind = "store"
	KindStoreConnection     Kind = "store_connection"
	KindContentVerification Kind = "content_verification"
	KindProfileNotFound     Kind = "profile_not_found"
	KindInvalidQuestion     Kind = "invalid_question"
	KindUpdateFailed        Kind = "update_failed"
	KindSecurity            Kind = "security"
	KindQuizEngine          Kind = "quiz_engine"
	KindContentManagement   Kind = "content_management"
	KindSerialisation       Kind = "serialisation"
	KindIO                  Kind = "io"
	KindInvalidInput        Kind = "invalid_input"
	KindAuthentication      Kind = "authentication"
	KindNotFound            Kind = "not_found"
	KindPermissionDenied    Kind = "permission_denied"
	KindInternal            Kind = "internal"
)

// recoverable marks which kinds spec.md §7 classifies as retryable.
var recoverable = map[Kind]bool{
	KindUpdateFailed:      true,
	KindQuizEngine:        true,
	KindContentManagement: true,
	KindIO:                true,
}

// AppError is the engine's structured error type: a taxonomy kind, a
// human-readable reason, an optional wrapped cause, and any details the
// caller needs (e.g. a missing profile's id).
type AppError struct {
	Kind    Kind
	Reason  string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying error, if any.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a detail key/value and returns the same error for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Category returns a short tag for logging and metrics, per spec.md §7.
func (e *AppError) Category() string {
	return string(e.Kind)
}

// IsRecoverable reports whether the caller may retry the operation that
// produced this error.
func (e *AppError) IsRecoverable() bool {
	return recoverable[e.Kind]
}

// New creates an AppError with no wrapped cause.
func New(kind Kind, reason string) *AppError {
	return &AppError{Kind: kind, Reason: reason}
}

// Wrap creates an AppError that wraps an existing error.
func Wrap(kind Kind, reason string, err error) *AppError {
	return &AppError{Kind: kind, Reason: reason, Err: err}
}

// As extracts an *AppError from an error chain, if present.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsRecoverable reports whether err (or an *AppError in its chain) is
// recoverable. Errors outside the taxonomy are treated as non-recoverable.
func IsRecoverable(err error) bool {
	if ae, ok := As(err); ok {
		return ae.IsRecoverable()
	}
	return false
}

// Store reports a failure from the embedded store engine itself.
func Store(err error) *AppError {
	return Wrap(KindStore, "store operation failed", err)
}

// StoreConnection reports a pool acquisition/connection-lifecycle failure.
func StoreConnection(reason string, err error) *AppError {
	return Wrap(KindStoreConnection, reason, err)
}

// Timeout is the transient flavour of StoreConnection used when pool
// acquisition exceeds its budget.
func Timeout(reason string) *AppError {
	return New(KindStoreConnection, reason).WithDetail("transient", true)
}

// ContentVerification reports a signature/checksum mismatch on a package.
func ContentVerification(reason string) *AppError {
	return New(KindContentVerification, reason)
}

// ProfileNotFound reports a missing profile.
func ProfileNotFound(id string) *AppError {
	return New(KindProfileNotFound, "profile not found").WithDetail("id", id)
}

// InvalidQuestion reports a shape, difficulty, or feasibility violation.
func InvalidQuestion(reason string) *AppError {
	return New(KindInvalidQuestion, reason)
}

// UpdateFailed reports a network, checksum, install, or rollback problem.
func UpdateFailed(reason string, err error) *AppError {
	return Wrap(KindUpdateFailed, reason, err)
}

// Security reports a cryptographic primitive failure or malformed token.
func Security(reason string) *AppError {
	return New(KindSecurity, reason)
}

// QuizEngine reports a state-machine violation.
func QuizEngine(reason string) *AppError {
	return New(KindQuizEngine, reason)
}

// ContentManagement reports a pack parse or bulk-install problem outside
// the signature-verification path.
func ContentManagement(reason string, err error) *AppError {
	return Wrap(KindContentManagement, reason, err)
}

// Serialisation reports a JSON encode/decode failure.
func Serialisation(reason string, err error) *AppError {
	return Wrap(KindSerialisation, reason, err)
}

// IO reports a filesystem/network transport failure.
func IO(reason string, err error) *AppError {
	return Wrap(KindIO, reason, err)
}

// InvalidInput reports a caller-supplied value that fails validation.
func InvalidInput(reason string) *AppError {
	return New(KindInvalidInput, reason)
}

// Authentication reports a failed authentication attempt.
func Authentication(reason string) *AppError {
	return New(KindAuthentication, reason)
}

// NotFound reports a missing resource that isn't a Profile.
func NotFound(what string) *AppError {
	return New(KindNotFound, "not found").WithDetail("what", what)
}

// PermissionDenied reports an authorisation failure.
func PermissionDenied(reason string) *AppError {
	return New(KindPermissionDenied, reason)
}

// Internal reports a bug or an invariant violation.
func Internal(reason string, err error) *AppError {
	return Wrap(KindInternal, reason, err)
}
