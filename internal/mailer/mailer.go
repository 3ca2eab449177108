// Package mailer sends plain text notification emails over SMTP with STARTTLS.
// Sends go through a circuit breaker so a dead mail server does not stall
// every request that tries to notify someone.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"muzikuj/internal/config"
	"muzikuj/internal/logging"
	"muzikuj/internal/metrics"
)

// ErrNotConfigured is returned when SMTP settings are incomplete; the email is skipped.
var ErrNotConfigured = errors.New("smtp not configured")

// ErrRecipientRejected wraps a permanent 5xx reply to RCPT TO. It says nothing
// about the health of the server, so the breaker does not count it.
var ErrRecipientRejected = errors.New("smtp recipient rejected")

// Sender is what handlers need from the mailer.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type transport func(ctx context.Context, cfg config.SMTPConfig, to string, msg []byte) error

type Mailer struct {
	cfg  config.SMTPConfig
	cb   *gobreaker.CircuitBreaker[any]
	send transport
}

func New(cfg config.SMTPConfig) *Mailer {
	settings := gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRecipientRejected)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
	return &Mailer{cfg: cfg, cb: gobreaker.NewCircuitBreaker[any](settings), send: sendSMTP}
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if !m.cfg.Configured() || to == "" {
		metrics.EmailsSent.WithLabelValues("skipped").Inc()
		logging.Ctx(ctx).Warn().Msg("SMTP not configured properly; skipping email send")
		return ErrNotConfigured
	}
	msg := buildMessage(m.cfg.Sender, to, subject, body)
	_, err := m.cb.Execute(func() (any, error) {
		return nil, m.send(ctx, m.cfg, to, msg)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EmailsSent.WithLabelValues("open_circuit").Inc()
	case errors.Is(err, ErrRecipientRejected):
		metrics.EmailsSent.WithLabelValues("rejected").Inc()
	case err != nil:
		metrics.EmailsSent.WithLabelValues("failed").Inc()
	default:
		metrics.EmailsSent.WithLabelValues("sent").Inc()
	}
	return err
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

func sendSMTP(ctx context.Context, cfg config.SMTPConfig, to string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	dialer := &net.Dialer{Timeout: 15 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to smtp server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := client.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(cfg.Sender); err != nil {
		return fmt.Errorf("smtp sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		var reply *textproto.Error
		if errors.As(err, &reply) && reply.Code >= 500 && reply.Code < 600 {
			return fmt.Errorf("%w: %w", ErrRecipientRejected, err)
		}
		return fmt.Errorf("smtp recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	_ = client.Quit()
	return nil
}
