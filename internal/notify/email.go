// Package notify delivers notifications outside the app: email and mobile push.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"

	"github.com/resend/resend-go/v2"

	"github.com/HammerMeetNail/campussafe/internal/config"
	"github.com/HammerMeetNail/campussafe/internal/logging"
)

// Email represents an email to be sent
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailProvider is the interface for sending emails
type EmailProvider interface {
	Send(ctx context.Context, email *Email) error
}

// NewEmailProvider picks the provider named in cfg. Unknown names fall back
// to the console provider.
func NewEmailProvider(cfg *config.EmailConfig) EmailProvider {
	from := fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	switch cfg.Provider {
	case "resend":
		return NewResendProvider(cfg.ResendAPIKey, from)
	case "smtp":
		return NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.FromAddress, from)
	default:
		return NewConsoleProvider()
	}
}

// resendSender is the slice of the Resend client used here.
type resendSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendProvider sends emails using the Resend API
type ResendProvider struct {
	emails resendSender
	from   string
}

func NewResendProvider(apiKey, from string) *ResendProvider {
	client := resend.NewClient(apiKey)
	return &ResendProvider{emails: client.Emails, from: from}
}

func (p *ResendProvider) Send(ctx context.Context, email *Email) error {
	params := &resend.SendEmailRequest{
		From:    p.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}

	if _, err := p.emails.Send(params); err != nil {
		return fmt.Errorf("sending email via Resend: %w", err)
	}

	logging.Info("Email sent via Resend", map[string]interface{}{"to": email.To, "subject": email.Subject})
	return nil
}

// SMTPProvider sends emails via SMTP (for Mailpit in local dev)
type SMTPProvider struct {
	host     string
	port     int
	envelope string
	from     string
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPProvider(host string, port int, envelope, from string) *SMTPProvider {
	return &SMTPProvider{host: host, port: port, envelope: envelope, from: from, sendMail: smtp.SendMail}
}

func (p *SMTPProvider) Send(ctx context.Context, email *Email) error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", p.from)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", email.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTML)

	if err := p.sendMail(addr, nil, p.envelope, []string{email.To}, buf.Bytes()); err != nil {
		return fmt.Errorf("sending email via SMTP: %w", err)
	}

	logging.Info("Email sent via SMTP", map[string]interface{}{"to": email.To, "subject": email.Subject})
	return nil
}

// ConsoleProvider logs emails instead of sending them (for development)
type ConsoleProvider struct{}

func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

func (p *ConsoleProvider) Send(ctx context.Context, email *Email) error {
	logging.Info("Email (console provider)", map[string]interface{}{
		"to":      email.To,
		"subject": email.Subject,
		"text":    email.Text,
	})
	return nil
}
