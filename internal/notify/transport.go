// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
)

// Message is a rendered email ready for a transport.
type Message struct {
	ID       string
	From     mail.Address
	To       mail.Address
	Subject  string
	HTML     string
	Text     string
	Template Name
}

// Transport delivers one message.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}

// NewTransport picks the SMTP transport behind a circuit breaker when email
// is enabled and the log transport otherwise.
func NewTransport(cfg *config.EmailConfig) Transport {
	if !cfg.Enabled {
		return LogTransport{}
	}
	return NewBreakerTransport(NewSMTPTransport(cfg), DefaultBreakerSettings())
}

// =============================================================================
// SMTP
// =============================================================================

// SMTPTransport sends through one SMTP relay using STARTTLS and PLAIN auth.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	startTLS bool
	timeout  time.Duration
}

func NewSMTPTransport(cfg *config.EmailConfig) *SMTPTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPTransport{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		startTLS: cfg.StartTLS,
		timeout:  timeout,
	}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &SendError{Op: "connect", Err: err, Transient: true}
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // best effort cleanup
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // the dial already succeeded
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		return &SendError{Op: "handshake", Err: err, Transient: true}
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // best effort cleanup

	if t.startTLS {
		if err := client.StartTLS(&tls.Config{ServerName: t.host, MinVersion: tls.VersionTLS12}); err != nil {
			return &SendError{Op: "starttls", Err: err, Transient: true}
		}
	}

	if t.username != "" && t.password != "" {
		if err := client.Auth(smtp.PlainAuth("", t.username, t.password, t.host)); err != nil {
			return &SendError{Op: "auth", Err: err}
		}
	}

	if err := client.Mail(msg.From.Address); err != nil {
		return &SendError{Op: "mail from", Err: err, Transient: isTransientReply(err)}
	}
	if err := client.Rcpt(msg.To.Address); err != nil {
		return &SendError{Op: "rcpt to", Err: err, Transient: isTransientReply(err)}
	}

	w, err := client.Data()
	if err != nil {
		return &SendError{Op: "data", Err: err, Transient: isTransientReply(err)}
	}
	if _, err := w.Write(buildMessage(msg, time.Now())); err != nil {
		return &SendError{Op: "write", Err: err, Transient: true}
	}
	if err := w.Close(); err != nil {
		return &SendError{Op: "data", Err: err, Transient: isTransientReply(err)}
	}

	// The message is accepted once DATA closes; a failed QUIT is harmless.
	_ = client.Quit() //nolint:errcheck // message already delivered
	return nil
}

// SendError describes a failed SMTP exchange.
type SendError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *SendError) Error() string { return "smtp " + e.Op + ": " + e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }

// isTransientReply reports whether the server answered with a 4xx code.
func isTransientReply(err error) bool {
	s := err.Error()
	return len(s) >= 3 && s[0] == '4' && s[1] >= '0' && s[1] <= '9'
}

// IsTransient reports whether a send failure may succeed on retry.
func IsTransient(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Transient
	}
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, context.DeadlineExceeded)
}

// buildMessage renders an RFC 5322 message with text and HTML alternatives.
func buildMessage(msg *Message, now time.Time) []byte {
	var b strings.Builder

	writeHeader := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	writeHeader("From", msg.From.String())
	writeHeader("To", msg.To.String())
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("Date", now.Format(time.RFC1123Z))
	writeHeader("Message-ID", msg.ID)
	writeHeader("MIME-Version", "1.0")
	if msg.Template != "" {
		writeHeader("X-Merkato-Template", string(msg.Template))
	}

	switch {
	case msg.HTML != "" && msg.Text != "":
		boundary := "merkato_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		writeHeader("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
		b.WriteString("\r\n")

		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
		b.WriteString(crlf(msg.Text))
		b.WriteString("\r\n")

		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
		b.WriteString(crlf(msg.HTML))
		b.WriteString("\r\n")

		b.WriteString("--" + boundary + "--\r\n")
	case msg.HTML != "":
		writeHeader("Content-Type", "text/html; charset=UTF-8")
		b.WriteString("\r\n")
		b.WriteString(crlf(msg.HTML))
	default:
		writeHeader("Content-Type", "text/plain; charset=UTF-8")
		b.WriteString("\r\n")
		b.WriteString(crlf(msg.Text))
	}
	return []byte(b.String())
}

func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// =============================================================================
// Circuit breaker
// =============================================================================

// BreakerSettings tunes the breaker wrapped around a transport.
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:             "smtp",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerTransport stops calling a failing relay until it recovers.
// Permanent failures such as a rejected recipient do not trip it.
type BreakerTransport struct {
	next Transport
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerTransport(next Transport, s BreakerSettings) *BreakerTransport {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerState(name, int(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Email circuit breaker changed state")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
	metrics.RecordCircuitBreakerState(s.Name, int(gobreaker.StateClosed))
	return &BreakerTransport{next: next, cb: cb}
}

func (t *BreakerTransport) Name() string { return t.next.Name() }

// State exposes the breaker state for health reporting.
func (t *BreakerTransport) State() gobreaker.State { return t.cb.State() }

func (t *BreakerTransport) Send(ctx context.Context, msg *Message) error {
	_, err := t.cb.Execute(func() (struct{}, error) {
		return struct{}{}, t.next.Send(ctx, msg)
	})
	switch {
	case err == nil:
		metrics.RecordCircuitBreakerRequest(t.cb.Name(), "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(t.cb.Name(), "rejected")
	default:
		metrics.RecordCircuitBreakerRequest(t.cb.Name(), "failure")
	}
	return err
}

// =============================================================================
// Log
// =============================================================================

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct{}

func (LogTransport) Name() string { return "log" }

func (LogTransport) Send(ctx context.Context, msg *Message) error {
	logging.Ctx(ctx).Info().
		Str("message_id", msg.ID).
		Str("template", string(msg.Template)).
		Str("to", msg.To.Address).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTML)).
		Msg("Email delivery disabled, message logged")
	return nil
}
