package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusThroughWrapping(t *testing.T) {
	err := fmt.Errorf("events.Create: %w", Validation("Event date must be in the future"))

	assert.Equal(t, http.StatusBadRequest, Status(err))
	assert.Equal(t, "Event date must be in the future", Message(err))
	assert.True(t, Is(err, KindValidation))
	assert.False(t, Is(err, KindNotFound))
}

func TestStatusByKind(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Conflict("Email already in use"), http.StatusBadRequest},
		{Auth("Invalid credentials"), http.StatusBadRequest},
		{Unauthorized("No token"), http.StatusUnauthorized},
		{Forbidden("Forbidden"), http.StatusForbidden},
		{NotFound("Event not found"), http.StatusNotFound},
		{Unavailable("Flow access node unavailable", errors.New("dial")), http.StatusBadGateway},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), tt.err.Error())
	}
}

func TestMessageHidesInternalCause(t *testing.T) {
	err := Internal(errors.New("connection refused 10.0.0.3:27017"))

	assert.Equal(t, "Internal server error", Message(err))
	assert.Equal(t, "Internal server error", Message(errors.New("raw")))
	assert.ErrorContains(t, err, "connection refused")
}
