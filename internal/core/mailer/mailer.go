package mailer

import "fmt"

// Message is one outgoing email
type Message struct {
	To        string
	CC        []string
	BCC       []string
	Subject   string
	HTMLBody  string
	PlainBody string
	FromName  string
	FromEmail string
}

// Provider defines the interface for mail transports
type Provider interface {
	Send(msg Message) error
	GetProviderName() string
}

// Service wraps the mail provider
type Service struct {
	provider Provider
}

// NewService creates a new mail service with the specified provider
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// Send delivers a message through the configured provider
func (s *Service) Send(msg Message) error {
	if s.provider == nil {
		return fmt.Errorf("no mail provider configured")
	}
	if msg.To == "" {
		return fmt.Errorf("message has no recipient")
	}
	return s.provider.Send(msg)
}

// GetProviderName returns the name of the current provider
func (s *Service) GetProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.GetProviderName()
}

// SelectProvider picks a transport by name. Unknown or empty names fall
// back to SMTP.
func SelectProvider(name, apiKey string, smtp SMTPConfig) Provider {
	switch name {
	case "brevo":
		return NewBrevoProvider(apiKey, smtp.FromName, smtp.FromEmail)
	case "resend":
		return NewResendProvider(apiKey, smtp.FromName, smtp.FromEmail)
	default:
		return NewSMTPProvider(smtp)
	}
}
