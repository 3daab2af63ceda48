package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorPreservesSentinel(t *testing.T) {
	err := WrapError(ErrUnknownModel, ErrorTypeRegistry, CodeUnknownModel, "model pancreas not registered")

	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Contains(t, err.Error(), "pancreas")

	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, ErrorTypeRegistry, appErr.Type)
	assert.Equal(t, CodeUnknownModel, appErr.Code)
}

func TestDefaultHTTPStatusByType(t *testing.T) {
	cases := map[ErrorType]int{
		ErrorTypeValidation:    http.StatusBadRequest,
		ErrorTypeRegistry:      http.StatusNotFound,
		ErrorTypeLoading:       http.StatusNotFound,
		ErrorTypeInference:     http.StatusInternalServerError,
		ErrorTypeInternal:      http.StatusInternalServerError,
		ErrorTypeConfiguration: http.StatusServiceUnavailable,
		ErrorTypeMonitoring:    http.StatusServiceUnavailable,
	}
	for errType, want := range cases {
		appErr := NewAppError(errType, "CODE", "message")
		assert.Equal(t, want, appErr.HTTPStatus, string(errType))
	}
}

func TestAppErrorIsMatchesTypeAndCode(t *testing.T) {
	a := NewRegistryError(CodeVersionNotFound, "v9 missing")
	b := NewRegistryError(CodeVersionNotFound, "different message")
	c := NewRegistryError(CodeUnknownModel, "other code")

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestWithContextAndDetails(t *testing.T) {
	err := NewLoadingError(CodeModelLoadFailed, "decode failed").
		WithContext("model", "heart").
		WithDetails("artifact truncated")

	assert.Equal(t, "heart", err.Context["model"])
	assert.Contains(t, err.Error(), "artifact truncated")
}

func TestWrapNonAppError(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := WrapError(cause, ErrorTypeInternal, CodeInternalError, "read failed")

	assert.ErrorIs(t, err, cause)

	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
}
