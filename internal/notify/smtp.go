package notify

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// SMTPSender delivers alerts over SMTP.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // sender address
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Compile-time interface check.
var _ Sender = (*SMTPSender)(nil)

// SendAlert sends one alert email. The context is consulted before dialing;
// the SMTP exchange itself is bounded by the dialer's own timeouts.
func (s *SMTPSender) SendAlert(ctx context.Context, to string, alert *Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, SenderName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", AlertSubject)
	m.SetBody("text/html", renderBody(alert))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send alert to %s: %w", to, err)
	}
	return nil
}
