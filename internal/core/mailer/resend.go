package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ResendProvider sends mail through the Resend API
type ResendProvider struct {
	apiKey     string
	fromName   string
	fromEmail  string
	httpClient *http.Client
}

// NewResendProvider creates a new Resend mail provider
func NewResendProvider(apiKey, fromName, fromEmail string) *ResendProvider {
	return &ResendProvider{
		apiKey:     apiKey,
		fromName:   fromName,
		fromEmail:  fromEmail,
		httpClient: &http.Client{},
	}
}

type resendSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

func (p *ResendProvider) GetProviderName() string {
	return "resend"
}

// Send delivers one message via the Resend API
func (p *ResendProvider) Send(msg Message) error {
	fromName := msg.FromName
	fromEmail := msg.FromEmail
	if fromEmail == "" {
		fromName = p.fromName
		fromEmail = p.fromEmail
	}
	if fromEmail == "" {
		return fmt.Errorf("no sender address configured")
	}

	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}

	reqBody := resendSendRequest{
		From:    from,
		To:      []string{msg.To},
		CC:      msg.CC,
		BCC:     msg.BCC,
		Subject: msg.Subject,
		HTML:    msg.HTMLBody,
		Text:    msg.PlainBody,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
