package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := New(CodeSelfDependency, "a task cannot depend on itself").WithDetail("abc")
	require.Equal(t, "SELF_DEPENDENCY: a task cannot depend on itself (abc)", err.Error())
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapping: %w", New(CodeCircularDependency, "cycle"))
	require.True(t, errors.Is(err, New(CodeCircularDependency, "anything")))
	require.False(t, errors.Is(err, New(CodeSelfDependency, "anything")))
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, CodeNotAMember, CodeOf(New(CodeNotAMember, "nope")))
	require.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestHTTPStatusMapping(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, HTTPStatus(CodeUnscopedSession))
	require.Equal(t, http.StatusForbidden, HTTPStatus(CodeForbidden))
	require.Equal(t, http.StatusForbidden, HTTPStatus(CodeNotAMember))
	// out-of-tenant presents as 404 so existence is not leaked
	require.Equal(t, http.StatusNotFound, HTTPStatus(CodeResourceOutOfTenant))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(CodeSelfDependency))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(CodeCircularDependency))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidReference))
	require.Equal(t, http.StatusConflict, HTTPStatus(CodeConflict))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeInternal))
}
