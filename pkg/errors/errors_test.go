package errors

import (
	"database/sql/driver"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	err := Clone(ErrNotFound, "term not found")

	got := FromError(err)
	require.Equal(t, ErrNotFound.Code, got.Code)
	require.Equal(t, "term not found", got.Message)
}

func TestFromErrorUnknownBecomesInternal(t *testing.T) {
	got := FromError(fmt.Errorf("sql: no such column"))
	require.Equal(t, ErrInternal.Code, got.Code)
	// The raw cause must never leak into the client-facing message.
	require.Equal(t, ErrInternal.Message, got.Message)
}

func TestFromErrorBadConnBecomesStoreUnavailable(t *testing.T) {
	cause := fmt.Errorf("list users: %w", driver.ErrBadConn)
	wrapped := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to list users")

	got := FromError(wrapped)
	require.Equal(t, ErrStoreUnavailable.Code, got.Code)
	require.Equal(t, ErrStoreUnavailable.Status, got.Status)
}

func TestFromErrorNetErrorBecomesStoreUnavailable(t *testing.T) {
	cause := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	wrapped := Wrap(fmt.Errorf("ping postgres: %w", cause), ErrInternal.Code, ErrInternal.Status, "failed to load term")

	got := FromError(wrapped)
	require.Equal(t, ErrStoreUnavailable.Code, got.Code)
}

func TestFromErrorQueryErrorStaysInternal(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("pq: duplicate key"), ErrInternal.Code, ErrInternal.Status, "failed to create user")

	got := FromError(wrapped)
	require.Equal(t, ErrInternal.Code, got.Code)
}

func TestFromErrorNil(t *testing.T) {
	require.Nil(t, FromError(nil))
}
