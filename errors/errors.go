package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// ErrValidation is the parent of every rejection made before a write.
	ErrValidation      = fmt.Errorf("validation failed")
	ErrEmptyContent    = fmt.Errorf("%w: content is required", ErrValidation)
	ErrMissingReceiver = fmt.Errorf("%w: receiver is required", ErrValidation)
	ErrSenderMismatch  = fmt.Errorf("%w: sender does not match the authenticated user", ErrValidation)
	ErrContentTooLong  = fmt.Errorf("%w: content is too long", ErrValidation)
	ErrMalformedEvent  = fmt.Errorf("%w: malformed event", ErrValidation)
	ErrUnknownEvent    = fmt.Errorf("%w: unknown event", ErrValidation)

	// ErrPersistence wraps any failure of the message store.
	ErrPersistence = fmt.Errorf("message store unavailable")

	ErrSessionClosed    = fmt.Errorf("session closed")
	ErrSessionNotActive = fmt.Errorf("session not active")
	ErrSendBufferFull   = fmt.Errorf("send buffer full")

	ErrUnauthenticated = fmt.Errorf("unauthenticated")
)

const (
	CodeValidation     = "validation"
	CodePersistence    = "persistence"
	CodeUnauthorized   = "unauthorized"
	CodeInternal       = "internal"
	CodeSessionExpired = "session"
)

func IsValidation(err error) bool { return stderrors.Is(err, ErrValidation) }

func IsPersistence(err error) bool { return stderrors.Is(err, ErrPersistence) }

func IsTransport(err error) bool {
	return stderrors.Is(err, ErrSendBufferFull) ||
		stderrors.Is(err, ErrSessionClosed) ||
		stderrors.Is(err, ErrSessionNotActive)
}

// Persistence tags a raw storage error so callers can tell durable failures apart.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// Code maps an error to the code carried by an outbound error event.
func Code(err error) string {
	switch {
	case IsValidation(err):
		return CodeValidation
	case IsPersistence(err):
		return CodePersistence
	case stderrors.Is(err, ErrUnauthenticated):
		return CodeUnauthorized
	case IsTransport(err):
		return CodeSessionExpired
	default:
		return CodeInternal
	}
}

// HTTPStatus maps an error to the status returned by the REST layer.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case IsPersistence(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
