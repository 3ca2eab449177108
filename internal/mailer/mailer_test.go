package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muzikuj/internal/config"
)

func configured() config.SMTPConfig {
	return config.SMTPConfig{Host: "smtp.test", Port: 587, Username: "u", Password: "p", Sender: "noreply@muzikuj.sk"}
}

func TestSendSkipsWhenUnconfigured(t *testing.T) {
	m := New(config.SMTPConfig{Host: "smtp.test", Port: 587})
	called := false
	m.send = func(context.Context, config.SMTPConfig, string, []byte) error { called = true; return nil }

	err := m.Send(t.Context(), "a@b.sk", "x", "y")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, called)

	m = New(configured())
	m.send = func(context.Context, config.SMTPConfig, string, []byte) error { called = true; return nil }
	assert.ErrorIs(t, m.Send(t.Context(), "  ", "x", "y"), ErrNotConfigured)
	assert.False(t, called)
}

func TestSendBuildsMessage(t *testing.T) {
	m := New(configured())
	var gotTo string
	var gotMsg []byte
	m.send = func(_ context.Context, _ config.SMTPConfig, to string, msg []byte) error {
		gotTo, gotMsg = to, msg
		return nil
	}
	require.NoError(t, m.Send(t.Context(), "jano@test.sk", "Správa z Muzikuj.sk", "riadok 1\nriadok 2"))
	assert.Equal(t, "jano@test.sk", gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "From: noreply@muzikuj.sk\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nriadok 1\r\nriadok 2"))
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	m := New(configured())
	calls := 0
	m.send = func(context.Context, config.SMTPConfig, string, []byte) error {
		calls++
		return errors.New("connection refused")
	}
	for i := 0; i < 3; i++ {
		assert.Error(t, m.Send(t.Context(), "a@b.sk", "s", "b"))
	}
	err := m.Send(t.Context(), "a@b.sk", "s", "b")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, calls, "open breaker does not dial")
}

func TestRejectedRecipientsDoNotTripBreaker(t *testing.T) {
	m := New(configured())
	calls := 0
	m.send = func(context.Context, config.SMTPConfig, string, []byte) error {
		calls++
		return fmt.Errorf("%w: %w", ErrRecipientRejected, &textproto.Error{Code: 550, Msg: "no such user"})
	}
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, m.Send(t.Context(), "nikto@b.sk", "s", "b"), ErrRecipientRejected)
	}
	assert.Equal(t, 5, calls)

	m.send = func(context.Context, config.SMTPConfig, string, []byte) error { calls++; return nil }
	assert.NoError(t, m.Send(t.Context(), "jano@test.sk", "s", "b"))
	assert.Equal(t, gobreaker.StateClosed, m.cb.State())
}
