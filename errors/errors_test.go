package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", fmt.Errorf("%w: name is required", ErrValidation), http.StatusUnprocessableEntity},
		{"unknown sender", ErrUnknownSender, http.StatusUnprocessableEntity},
		{"conflict", ErrConflict, http.StatusConflict},
		{"not found", fmt.Errorf("%w: message 42", ErrNotFound), http.StatusNotFound},
		{"forbidden", ErrForbidden, http.StatusUnauthorized},
		{"store", fmt.Errorf("%w: disk full", ErrStore), http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsExpected(t *testing.T) {
	req := require.New(t)
	req.True(IsExpected(ErrUnknownSender))
	req.True(IsExpected(ErrConflict))
	req.False(IsExpected(ErrStore))
	req.False(IsExpected(ErrWorkerPanic))
}
