package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookRequest is the JSON body posted to the mail relay.
type WebhookRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html"`
	TextBody string `json:"text,omitempty"`
}

// WebhookMailer hands messages to an HTTP mail relay.
// The URL is injected from config so tests can point to a local server.
type WebhookMailer struct {
	url        string
	from       string
	httpClient *http.Client
}

func NewWebhookMailer(url, from string, timeout time.Duration) *WebhookMailer {
	return &WebhookMailer{
		url:  url,
		from: from,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *WebhookMailer) Name() string { return "webhook" }

// Send posts the message and treats any 2xx response as accepted.
func (p *WebhookMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(WebhookRequest{
		From:     p.from,
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected relay status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookMailer implements Mailer
var _ Mailer = (*WebhookMailer)(nil)
