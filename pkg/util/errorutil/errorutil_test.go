package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"not found", NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound},
		{"permission", NewPermissionDenied("ticket not assigned to caller", cause), CodePermissionDenied, http.StatusForbidden},
		{"wrapped create", fmt.Errorf("handler: %w", NewCreateFailed(cause)), CodeCreateFailed, http.StatusServiceUnavailable},
		{"plain error", cause, CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
			assert.True(t, IsCode(tt.err, tt.code))
		})
	}
}

func TestDomainError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("bucket quota")
	err := NewUploadFailed(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to upload asset: bucket quota", err.Error())
	assert.Nil(t, ToDomainError(nil))
	assert.Empty(t, CodeOf(cause))
}
