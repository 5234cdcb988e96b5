package utils

import (
	"fmt"
	"strconv"

	"gopkg.in/gomail.v2"
)

// Email is one outbound message with a single recipient.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers rendered messages. Send must be safe for concurrent use.
type Mailer interface {
	Send(email Email) error
}

// SMTPConfig holds the transport settings read from the environment.
type SMTPConfig struct {
	Host      string
	Port      string
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// SMTPMailer sends through an SMTP relay, dialing once per message.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %v", err)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST is required")
	}

	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}

	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:   from,
	}, nil
}

func (m *SMTPMailer) Send(email Email) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/html", email.HTML)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	return nil
}
