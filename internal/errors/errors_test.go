package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad input"), http.StatusBadRequest},
		{NotFoundError("missing"), http.StatusNotFound},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{ExternalError("upstream", nil), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := InternalError("wrapper", cause)

	assert.ErrorIs(t, err, cause)
}

func TestAsStructuredError_PassesThroughStructured(t *testing.T) {
	original := NotFoundError("gone")
	assert.Same(t, original, AsStructuredError(original))
}

func TestAsStructuredError_WrapsPlainError(t *testing.T) {
	err := AsStructuredError(errors.New("plain"))
	require.NotNil(t, err)
	assert.Equal(t, TypeInternal, err.Type)
}

func TestMiddleware_RendersStructuredError(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/missing", func(echo.Context) error {
		return NotFoundError("question not found").WithField("question_id", 42)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "question not found")
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestMiddleware_WrapsPlainErrorAsInternal(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/boom", func(echo.Context) error {
		return errors.New("database exploded")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Raw cause must not leak to the client.
	assert.NotContains(t, rec.Body.String(), "database exploded")
}
