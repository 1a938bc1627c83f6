package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrGatewayUnavailable marks transport-level SMS failures. Callers may retry
// these against a fallback gateway; rejections are not wrapped with it.
var ErrGatewayUnavailable = errors.New("sms gateway unavailable")

// SMSResult is the outcome reported by an SMS gateway.
type SMSResult struct {
	Success   bool   `json:"success"`
	Provider  string `json:"provider"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SMSSender sends one text message. A non-nil error means the message may not
// have reached the provider at all.
type SMSSender interface {
	Name() string
	SendSMS(ctx context.Context, to, message string) (SMSResult, error)
}

// HTTPGateway talks to a JSON SMS gateway:
//
//	POST {url}  {"to": "...", "message": "...", "sender": "..."}
//	200 {"message_id": "..."}
type HTTPGateway struct {
	name   string
	url    string
	apiKey string
	sender string
	http   *http.Client
}

// NewHTTPGateway builds a gateway client. Timeouts come from the caller's context.
func NewHTTPGateway(name, url, apiKey, sender string) *HTTPGateway {
	if name == "" {
		name = "sms-gateway"
	}
	return &HTTPGateway{
		name:   name,
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
		sender: sender,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Name identifies the gateway in delivery outcomes.
func (g *HTTPGateway) Name() string { return g.name }

// SendSMS posts a message to the gateway.
func (g *HTTPGateway) SendSMS(ctx context.Context, to, message string) (SMSResult, error) {
	result := SMSResult{Provider: g.name}
	if g.url == "" {
		return result, fmt.Errorf("%w: %s has no url configured", ErrGatewayUnavailable, g.name)
	}

	body, _ := json.Marshal(map[string]string{"to": to, "message": message, "sender": g.sender})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("%w: build request: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, g.name, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	}
	_ = json.Unmarshal(raw, &payload)

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return result, fmt.Errorf("%w: %s returned %d", ErrGatewayUnavailable, g.name, resp.StatusCode)
	case resp.StatusCode >= 400:
		result.Error = payload.Error
		if result.Error == "" {
			result.Error = fmt.Sprintf("rejected with status %d", resp.StatusCode)
		}
		return result, nil
	}

	result.Success = true
	result.MessageID = payload.MessageID
	return result, nil
}
