package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// BrevoProvider sends mail through the Brevo (formerly Sendinblue) API
type BrevoProvider struct {
	apiKey     string
	fromName   string
	fromEmail  string
	httpClient *http.Client
}

// NewBrevoProvider creates a new Brevo mail provider
func NewBrevoProvider(apiKey, fromName, fromEmail string) *BrevoProvider {
	return &BrevoProvider{
		apiKey:     apiKey,
		fromName:   fromName,
		fromEmail:  fromEmail,
		httpClient: &http.Client{},
	}
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	CC          []brevoContact `json:"cc,omitempty"`
	BCC         []brevoContact `json:"bcc,omitempty"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent,omitempty"`
	TextContent string         `json:"textContent,omitempty"`
}

func (p *BrevoProvider) GetProviderName() string {
	return "brevo"
}

// Send delivers one message via the Brevo transactional endpoint
func (p *BrevoProvider) Send(msg Message) error {
	sender := brevoContact{Email: msg.FromEmail, Name: msg.FromName}
	if sender.Email == "" {
		sender = brevoContact{Email: p.fromEmail, Name: p.fromName}
	}
	if sender.Email == "" {
		return fmt.Errorf("no sender address configured")
	}

	reqBody := brevoSendRequest{
		Sender:      sender,
		To:          []brevoContact{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTMLBody,
		TextContent: msg.PlainBody,
	}
	for _, cc := range msg.CC {
		reqBody.CC = append(reqBody.CC, brevoContact{Email: cc})
	}
	for _, bcc := range msg.BCC {
		reqBody.BCC = append(reqBody.BCC, brevoContact{Email: bcc})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.brevo.com/v3/smtp/email", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
