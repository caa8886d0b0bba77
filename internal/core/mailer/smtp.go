package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds SMTP connection settings
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

// SMTPProvider sends mail over SMTP using gomail
type SMTPProvider struct {
	cfg SMTPConfig
}

// NewSMTPProvider creates a new SMTP mail provider
func NewSMTPProvider(cfg SMTPConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) GetProviderName() string {
	return "smtp"
}

// Send builds and delivers one message. CC/BCC and the plain-text alternative
// are only set when present.
func (p *SMTPProvider) Send(msg Message) error {
	fromName := msg.FromName
	fromEmail := msg.FromEmail
	if fromEmail == "" {
		fromName = p.cfg.FromName
		fromEmail = p.cfg.FromEmail
	}
	if fromEmail == "" {
		return fmt.Errorf("no sender address configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", fromName, fromEmail))
	m.SetHeader("To", msg.To)
	if len(msg.CC) > 0 {
		m.SetHeader("Cc", msg.CC...)
	}
	if len(msg.BCC) > 0 {
		m.SetHeader("Bcc", msg.BCC...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)
	if msg.PlainBody != "" {
		m.AddAlternative("text/plain", msg.PlainBody)
	}

	d := gomail.NewDialer(p.cfg.Host, p.cfg.Port, p.cfg.Username, p.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}

	return nil
}
