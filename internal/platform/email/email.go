// Package email sends HTML e-mail through an SMTP relay and renders the
// message templates used by reminder delivery.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
)

// ErrNotConfigured is returned by a provider that has no relay to talk to.
// Callers treat it as an expected condition, not a failure.
var ErrNotConfigured = errors.New("email provider not configured")

// Provider delivers one HTML message.
type Provider interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type disabled struct{}

// Disabled returns a Provider whose Send always fails with ErrNotConfigured.
func Disabled() Provider { return disabled{} }

func (disabled) Send(context.Context, string, string, string) error { return ErrNotConfigured }

// SMTPConfig holds relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// SMTPProvider sends mail over SMTP with STARTTLS when the server offers it.
type SMTPProvider struct {
	cfg SMTPConfig
}

// NewSMTPProvider returns Disabled() when no host is configured.
func NewSMTPProvider(cfg SMTPConfig) Provider {
	if cfg.Host == "" {
		return Disabled()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPProvider{cfg: cfg}
}

// Send composes and delivers the message. The whole SMTP exchange is bounded
// by the configured timeout or the context deadline, whichever comes first.
func (p *SMTPProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return errors.New("email: recipient is required")
	}
	msg, err := Compose(p.cfg.FromName, p.cfg.From, to, subject, htmlBody)
	if err != nil {
		return fmt.Errorf("composing message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing SMTP: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: p.cfg.Host}); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}
	if p.cfg.Username != "" {
		auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := client.Mail(p.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return client.Quit()
}

// Compose builds an RFC 5322 message with a single text/html part.
func Compose(fromName, from, to, subject, htmlBody string) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: fromName, Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SentEmail records a single call to MockProvider.Send.
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// MockProvider is a test double for Provider.
type MockProvider struct {
	mu    sync.Mutex
	calls []SentEmail
	Err   error
}

func (m *MockProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SentEmail{To: to, Subject: subject, Body: htmlBody})
	return m.Err
}

// Calls returns a copy of the recorded sends.
func (m *MockProvider) Calls() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentEmail, len(m.calls))
	copy(out, m.calls)
	return out
}
