// Package notify delivers the messages owed to reporters and responders:
// confirmation texts, confirmation call-backs and escalation emails.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/logging"
)

// SMSSender sends a text message and returns the provider's reference for it
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// VoiceCaller places an outbound call whose script is fetched from callbackURL
type VoiceCaller interface {
	PlaceCall(ctx context.Context, to, callbackURL string) (string, error)
}

// HTTPGateway posts JSON to an SMS or voice provider. The same shape serves
// both: {"to", "message"} for texts and {"to", "url"} for calls.
type HTTPGateway struct {
	URL    string
	Key    string
	Client *retryablehttp.Client
}

type gatewayRequest struct {
	To      string `json:"to"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
}

type gatewayResponse struct {
	ID  string `json:"id"`
	SID string `json:"sid"`
}

// NewHTTPGateway returns a gateway client with three retries
func NewHTTPGateway(url, key, component string) *HTTPGateway {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 10 * time.Second
	c.Logger = logging.NewLeveled(component)
	return &HTTPGateway{URL: url, Key: key, Client: c}
}

// SendSMS implements SMSSender
func (g *HTTPGateway) SendSMS(ctx context.Context, to, body string) (string, error) {
	return g.post(ctx, gatewayRequest{To: to, Message: body})
}

// PlaceCall implements VoiceCaller
func (g *HTTPGateway) PlaceCall(ctx context.Context, to, callbackURL string) (string, error) {
	return g.post(ctx, gatewayRequest{To: to, URL: callbackURL})
}

func (g *HTTPGateway) post(ctx context.Context, payload gatewayRequest) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.Key != "" {
		req.Header.Set("Authorization", "Bearer "+g.Key)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var body gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if body.ID != "" {
		return body.ID, nil
	}
	return body.SID, nil
}

// LogGateway stands in for a provider when none is configured. Messages are
// written to the log and reported as sent.
type LogGateway struct{}

// SendSMS implements SMSSender
func (LogGateway) SendSMS(_ context.Context, to, body string) (string, error) {
	ref := "log-" + uuid.NewString()
	zap.S().Infow("sms not sent, no gateway configured", "to", location.MaskPhone(to), "ref", ref, "body", body)
	return ref, nil
}

// PlaceCall implements VoiceCaller
func (LogGateway) PlaceCall(_ context.Context, to, callbackURL string) (string, error) {
	ref := "log-" + uuid.NewString()
	zap.S().Infow("call not placed, no gateway configured", "to", location.MaskPhone(to), "ref", ref, "callback_url", callbackURL)
	return ref, nil
}
