package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMSGatewayConfig configures an Africa's Talking style messaging endpoint.
type SMSGatewayConfig struct {
	BaseURL  string
	Username string
	APIKey   string
	SenderID string
}

// SMSGateway posts messages to an HTTP SMS gateway.
type SMSGateway struct {
	cfg    SMSGatewayConfig
	client *http.Client
}

// NewSMSGateway builds a gateway sender. A nil client uses a 10 second timeout.
func NewSMSGateway(cfg SMSGatewayConfig, client *http.Client) *SMSGateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SMSGateway{cfg: cfg, client: client}
}

// Send posts one message.
func (g *SMSGateway) Send(ctx context.Context, message Message) error {
	form := url.Values{}
	form.Set("username", g.cfg.Username)
	form.Set("to", message.Destination)
	form.Set("message", message.Body)
	if g.cfg.SenderID != "" {
		form.Set("from", g.cfg.SenderID)
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/version1/messaging"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("apiKey", g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
