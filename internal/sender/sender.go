// Package sender wraps the outbound message providers. Both senders
// are fire-and-forget: they return a provider message id or an error,
// and expose IsConfigured so executors can skip instead of fail in
// environments without live credentials.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type EmailSender interface {
	IsConfigured() bool
	SendEmail(ctx context.Context, to, subject, html string) (string, error)
}

type SMSSender interface {
	IsConfigured() bool
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// HTTPEmailSender posts to a generic REST email gateway.
type HTTPEmailSender struct {
	BaseURL string
	APIKey  string
	From    string
	Client  *http.Client
}

func NewHTTPEmailSender(baseURL, apiKey, from string) *HTTPEmailSender {
	return &HTTPEmailSender{
		BaseURL: baseURL,
		APIKey:  apiKey,
		From:    from,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPEmailSender) IsConfigured() bool {
	return s.BaseURL != "" && s.APIKey != ""
}

func (s *HTTPEmailSender) SendEmail(ctx context.Context, to, subject, html string) (string, error) {
	payload := map[string]string{
		"from":    s.From,
		"to":      to,
		"subject": subject,
		"html":    html,
	}
	return postJSON(ctx, s.Client, s.BaseURL+"/v1/messages", s.APIKey, payload)
}

// HTTPSMSSender posts to a generic REST SMS gateway.
type HTTPSMSSender struct {
	BaseURL string
	APIKey  string
	From    string
	Client  *http.Client
}

func NewHTTPSMSSender(baseURL, apiKey, from string) *HTTPSMSSender {
	return &HTTPSMSSender{
		BaseURL: baseURL,
		APIKey:  apiKey,
		From:    from,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPSMSSender) IsConfigured() bool {
	return s.BaseURL != "" && s.APIKey != ""
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	payload := map[string]string{
		"from": s.From,
		"to":   to,
		"body": body,
	}
	return postJSON(ctx, s.Client, s.BaseURL+"/v1/sms", s.APIKey, payload)
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("provider returned %s: %s", resp.Status, string(body))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	return out.ID, nil
}
