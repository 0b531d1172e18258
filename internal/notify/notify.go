// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/logging"
	"github.com/tomtom215/merkato/internal/metrics"
)

// DefaultBulkDelay is the pause between recipients of a bulk send.
const DefaultBulkDelay = 100 * time.Millisecond

// asyncTimeout bounds a fire-and-forget send started by Dispatch.
const asyncTimeout = time.Minute

// ErrMailerClosed is reported for sends attempted after Close.
var ErrMailerClosed = errors.New("mailer closed")

// Email is a request to send one templated message.
type Email struct {
	To       string
	ToName   string
	Template Name
	Data     any
}

// Result is the outcome of one send. Error is empty on success.
type Result struct {
	Success   bool   `json:"success"`
	To        string `json:"to"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BulkResult summarises a bulk send.
type BulkResult struct {
	Total     int      `json:"total"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Cancelled bool     `json:"cancelled"`
	Results   []Result `json:"results"`
}

// Mailer renders templates and hands them to a transport.
type Mailer struct {
	renderer  *Renderer
	transport Transport
	from      mail.Address
	domain    string
	bulkDelay time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	// stopBulk aborts background bulk sends that outlive Close's deadline.
	bulkCtx  context.Context
	stopBulk context.CancelFunc
}

// NewMailer builds a mailer. A nil transport selects one from cfg.
func NewMailer(cfg *config.EmailConfig, site Site, transport Transport) (*Mailer, error) {
	if site.SupportAddress == "" {
		site.SupportAddress = cfg.SupportAddress
	}
	if site.Name == "" {
		site.Name = cfg.FromName
	}
	renderer, err := NewRenderer(site)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		transport = NewTransport(cfg)
	}

	from := cfg.FromAddress
	if from == "" {
		from = "no-reply@merkato.local"
	}
	domain := "merkato.local"
	if at := strings.LastIndexByte(from, '@'); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}

	delay := cfg.BulkDelay
	if delay <= 0 {
		delay = DefaultBulkDelay
	}

	bulkCtx, stopBulk := context.WithCancel(context.Background())
	return &Mailer{
		renderer:  renderer,
		transport: transport,
		from:      mail.Address{Name: cfg.FromName, Address: from},
		domain:    domain,
		bulkDelay: delay,
		bulkCtx:   bulkCtx,
		stopBulk:  stopBulk,
	}, nil
}

// Transport returns the transport in use.
func (m *Mailer) Transport() Transport { return m.transport }

// SendEmail renders and sends one message. It never returns an error or
// panics: every failure is described by the Result.
func (m *Mailer) SendEmail(ctx context.Context, e Email) Result {
	if m.isClosed() {
		metrics.RecordEmail(string(e.Template), false)
		return Result{To: e.To, Error: ErrMailerClosed.Error()}
	}
	return m.send(ctx, e)
}

func (m *Mailer) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// send delivers e without consulting the closed flag. Work accepted before
// Close (Dispatch, DispatchBulk) goes through here so it is drained.
func (m *Mailer) send(ctx context.Context, e Email) (res Result) {
	res.To = e.To
	defer func() {
		if r := recover(); r != nil {
			res = Result{To: e.To, Error: fmt.Sprintf("panic while sending email: %v", r)}
		}
		metrics.RecordEmail(string(e.Template), res.Success)
		ev := logging.Ctx(ctx).Debug()
		if !res.Success {
			ev = logging.Ctx(ctx).Warn().Str("error", res.Error)
		}
		ev.Str("template", string(e.Template)).
			Str("to", e.To).
			Str("message_id", res.MessageID).
			Str("transport", m.transport.Name()).
			Msg("Email send finished")
	}()

	to, err := mail.ParseAddress(e.To)
	if err != nil {
		res.Error = fmt.Sprintf("invalid recipient %q: %v", e.To, err)
		return res
	}
	if e.ToName != "" {
		to.Name = e.ToName
	}

	rendered, err := m.renderer.Render(e.Template, Recipient{Email: to.Address, Name: to.Name}, e.Data)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	msg := &Message{
		ID:       "<" + uuid.NewString() + "@" + m.domain + ">",
		From:     m.from,
		To:       *to,
		Subject:  rendered.Subject,
		HTML:     rendered.HTML,
		Text:     rendered.Text,
		Template: e.Template,
	}
	if err := m.transport.Send(ctx, msg); err != nil {
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.MessageID = msg.ID
	return res
}

// SendBulk sends the same template to every recipient in order, pausing
// between sends. A failed recipient does not stop the loop; cancelling ctx
// does, and recipients not yet attempted are left out of Results.
func (m *Mailer) SendBulk(ctx context.Context, recipients []Recipient, name Name, data any) BulkResult {
	return m.bulk(ctx, recipients, name, data, m.SendEmail)
}

// DispatchBulk runs SendBulk in the background and hands the outcome to
// done. Close waits for it like any dispatched send; if Close gives up, the
// remaining recipients are skipped and the result is marked cancelled.
func (m *Mailer) DispatchBulk(ctx context.Context, recipients []Recipient, name Name, data any, done func(BulkResult)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailerClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		bulkCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(m.bulkCtx, cancel)
		defer stop()

		res := m.bulk(bulkCtx, recipients, name, data, m.send)
		if done != nil {
			done(res)
		}
	}()
	return nil
}

func (m *Mailer) bulk(ctx context.Context, recipients []Recipient, name Name, data any, send func(context.Context, Email) Result) BulkResult {
	out := BulkResult{Total: len(recipients), Results: make([]Result, 0, len(recipients))}

	for i, r := range recipients {
		if i > 0 {
			if err := sleep(ctx, m.bulkDelay); err != nil {
				out.Cancelled = true
				break
			}
		} else if ctx.Err() != nil {
			out.Cancelled = true
			break
		}

		res := send(ctx, Email{To: r.Email, ToName: r.Name, Template: name, Data: data})
		if res.Success {
			out.Sent++
		} else {
			out.Failed++
		}
		out.Results = append(out.Results, res)
	}

	logging.Ctx(ctx).Info().
		Str("template", string(name)).
		Int("total", out.Total).
		Int("sent", out.Sent).
		Int("failed", out.Failed).
		Bool("cancelled", out.Cancelled).
		Msg("Bulk email finished")
	return out
}

// Dispatch sends in the background so request handlers do not wait on SMTP.
// The send outlives ctx's cancellation but keeps its values for logging.
func (m *Mailer) Dispatch(ctx context.Context, e Email) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		logging.Ctx(ctx).Warn().Str("template", string(e.Template)).Msg("Email dropped, mailer closed")
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), asyncTimeout)
		defer cancel()
		m.send(sendCtx, e)
	}()
}

// Close rejects new sends and waits for dispatched ones until ctx expires.
func (m *Mailer) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.stopBulk()
		return nil
	case <-ctx.Done():
		m.stopBulk()
		return fmt.Errorf("waiting for pending emails: %w", ctx.Err())
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
