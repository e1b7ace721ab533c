package errors

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// Error is a typed application error carrying a stable code and the HTTP
// status it maps to. It serialises directly into the response envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the cause so errors.Is and errors.As see through wrapping.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a standalone Error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap builds an Error around a cause. The cause is logged and unwrappable
// but never serialised to clients.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Sentinel errors shared across handlers and services.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// Scheduling and booking errors.
	ErrScheduleConflict = New("SCHEDULE_CONFLICT", http.StatusConflict, "schedule conflicts with an existing class")
	ErrSlotFull         = New("SLOT_FULL", http.StatusConflict, "detention slot is full")
	ErrSlotInUse        = New("SLOT_IN_USE", http.StatusConflict, "detention slot has active bookings")
	ErrCurrentTerm      = New("CURRENT_TERM", http.StatusConflict, "the current term cannot be deleted")
	ErrStoreUnavailable = New("STORE_UNAVAILABLE", http.StatusServiceUnavailable, "storage temporarily unavailable")
)

// ErrCacheMiss signals an absent cache entry; callers fall through to the store.
var ErrCacheMiss = errors.New("cache miss")

// FromError normalises any error into an *Error. Connectivity-class store
// failures map to StoreUnavailable so clients know the request is safe to
// retry; other unknown errors become an internal error so raw messages
// never reach clients.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == ErrInternal.Code && transientStore(e) {
			return Wrap(e, ErrStoreUnavailable.Code, ErrStoreUnavailable.Status, ErrStoreUnavailable.Message)
		}
		return e
	}
	if transientStore(err) {
		return Wrap(err, ErrStoreUnavailable.Code, ErrStoreUnavailable.Status, ErrStoreUnavailable.Message)
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// transientStore reports whether the cause chain contains a connectivity
// failure: a bad driver connection, a network error, or a refused, reset
// or broken connection.
func transientStore(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// Clone copies a sentinel with an overridden message, keeping code and
// status. An empty message keeps the original text.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
