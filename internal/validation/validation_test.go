package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muzikuj/internal/apperr"
)

type sample struct {
	Email string `validate:"required,email" msg:"Zadaj platný e-mail."`
	From  string `validate:"omitempty,clock" msg:"Čas musí byť v tvare HH:MM."`
	Video string `validate:"omitempty,youtube"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name string
		in   sample
		code string
		msg  string
	}{
		{name: "ok", in: sample{Email: "a@b.sk", From: "09:30"}},
		{name: "missing email", in: sample{}, code: "invalid_email", msg: "Zadaj platný e-mail."},
		{name: "bad clock", in: sample{Email: "a@b.sk", From: "25:00"}, code: "invalid_from", msg: "Čas musí byť v tvare HH:MM."},
		{name: "fallback message", in: sample{Email: "a@b.sk", Video: "https://example.com"}, code: "invalid_video", msg: "Pole Video je neplatné."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.in)
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tt.code, apperr.CodeOf(err))
			assert.Equal(t, tt.msg, apperr.MessageOf(err, ""))
		})
	}
}

func TestYouTubeID(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ", YouTubeID("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.Equal(t, "dQw4w9WgXcQ", YouTubeID("https://youtu.be/dQw4w9WgXcQ"))
	assert.Equal(t, "", YouTubeID("https://vimeo.com/1"))
}
