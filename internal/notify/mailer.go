package notify

import (
	"context"
	"fmt"
	"time"

	"collabdocs/internal/document/model"

	mail "gopkg.in/mail.v2"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// SMTPMailer sends rendered notifications over SMTP.
type SMTPMailer struct {
	dialer   *mail.Dialer
	from     string
	fromName string
	renderer Renderer
}

func NewSMTPMailer(cfg SMTPConfig, renderer Renderer) *SMTPMailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	fromName := cfg.FromName
	if fromName == "" {
		fromName = "Document Collaboration"
	}
	return &SMTPMailer{dialer: d, from: cfg.From, fromName: fromName, renderer: renderer}
}

func (m *SMTPMailer) Send(ctx context.Context, recipient string, event model.NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body, err := m.renderer.Render(event)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", recipient, err)
	}
	return nil
}

// LogMailer only logs; used when no SMTP host is configured.
type LogMailer struct {
	Renderer Renderer
	Logf     func(format string, args ...interface{})
}

func (m LogMailer) Send(_ context.Context, recipient string, event model.NotificationEvent) error {
	subject, _, err := m.Renderer.Render(event)
	if err != nil {
		return err
	}
	if m.Logf != nil {
		m.Logf("Mail to %s: %s", recipient, subject)
	}
	return nil
}
