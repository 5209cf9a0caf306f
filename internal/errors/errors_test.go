package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageFormat(t *testing.T) {
	err := ValidationError("page must be >= 1")
	assert.Equal(t, "validation: page must be >= 1", err.Error())

	wrapped := ExternalError("provider request failed", fmt.Errorf("connection refused"))
	assert.Equal(t, "external: provider request failed: connection refused", wrapped.Error())
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ValidationError("x").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFoundError("x").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, InternalError("x", nil).HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, ExternalError("x", nil).HTTPStatus())
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := InternalError("wrapper", cause)

	assert.ErrorIs(t, err, cause)
}

func TestWithContext(t *testing.T) {
	err := ExternalError("provider returned status 502", nil).
		WithContext("endpoint", "listings").
		WithContext("status", 502)

	assert.Equal(t, "listings", err.Context["endpoint"])
	assert.Equal(t, 502, err.Context["status"])
}

func TestToResponse(t *testing.T) {
	err := ValidationError("ids is required").WithContext("param", "ids")

	resp := err.ToResponse()
	assert.Equal(t, "ids is required", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "ids", resp.Context["param"])
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := NotFoundError("asset 7 not found")
	assert.Same(t, original, AsStructuredError(original))

	wrapped := fmt.Errorf("handler: %w", original)
	assert.Same(t, original, AsStructuredError(wrapped))

	plain := fmt.Errorf("boom")
	converted := AsStructuredError(plain)
	require.NotNil(t, converted)
	assert.Equal(t, TypeInternal, converted.Type)
	assert.ErrorIs(t, converted, plain)
}
