package sender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookCaller performs the outbound HTTP call for call_webhook steps.
type WebhookCaller interface {
	Call(ctx context.Context, method, url string, headers map[string]string, payload []byte) (int, error)
}

type HTTPWebhookCaller struct {
	Client *http.Client
}

func NewHTTPWebhookCaller() *HTTPWebhookCaller {
	return &HTTPWebhookCaller{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Call sends the request and treats any non-2xx response as an error
// carrying the status text. The response body is discarded.
func (c *HTTPWebhookCaller) Call(ctx context.Context, method, url string, headers map[string]string, payload []byte) (int, error) {
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned %s", resp.Status)
	}
	return resp.StatusCode, nil
}
