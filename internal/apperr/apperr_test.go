package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{Validation("invalid_stars", "x"), http.StatusBadRequest},
		{Forbidden("not_allowed", "x"), http.StatusForbidden},
		{TooMany("x"), http.StatusTooManyRequests},
		{Conflict("x"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("x")), http.StatusNotFound},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestCodeAndMessage(t *testing.T) {
	err := fmt.Errorf("rate: %w", Validation("note_required", "Dôvod je povinný."))
	assert.Equal(t, "note_required", CodeOf(err))
	assert.Equal(t, "Dôvod je povinný.", MessageOf(err, "fallback"))
	assert.Equal(t, "internal", CodeOf(errors.New("x")))
	assert.Equal(t, "fallback", MessageOf(errors.New("x"), "fallback"))

	inner := errors.New("disk full")
	wrapped := Internal("save failed", inner)
	assert.ErrorIs(t, wrapped, inner)
	assert.Equal(t, KindInternal, KindOf(wrapped))
}
