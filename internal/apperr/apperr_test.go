package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestPredicatesMatchKind(t *testing.T) {
	require.True(t, IsNotFound(NotFound("gone")))
	require.True(t, IsPreconditionFailed(PreconditionFailed("bad state")))
	require.True(t, IsForbidden(Forbidden("not yours")))
	require.True(t, IsTransient(Transient(errors.New("conn reset"))))

	require.False(t, IsNotFound(PreconditionFailed("bad state")))
	require.False(t, IsPreconditionFailed(errors.New("untyped")))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := errors.Wrap(NotFound("attempt not found"), "lookup")
	require.True(t, IsNotFound(wrapped))
	require.Equal(t, "attempt not found", Reason(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("x")))
	require.Equal(t, http.StatusConflict, HTTPStatus(PreconditionFailed("x")))
	require.Equal(t, http.StatusForbidden, HTTPStatus(Forbidden("x")))
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatus(Transient(errors.New("x"))))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}

func TestReasonHidesUntypedErrors(t *testing.T) {
	require.Equal(t, "internal error", Reason(errors.New("pq: connection refused")))
	require.Equal(t, "internal error", Reason(Internal(errors.New("boom"))))
}
