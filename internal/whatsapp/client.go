// Package whatsapp wraps the messaging platform's Cloud-API-style HTTP
// surface: outbound text sends and the inbound webhook envelope. The webhook
// contract is unusual and drives the handler design: the platform expects an
// immediate 200 regardless of processing outcome, otherwise it retries and
// the user receives duplicate replies.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/younesbotola/mdr-chatbot-server/internal/upstream"
)

const maxErrorBody = 2048

// Client sends messages through the platform's REST API.
type Client struct {
	BaseURL     string // e.g. "https://graph.facebook.com/v19.0"
	PhoneID     string // the business phone number id
	AccessToken string
	HTTP        *http.Client
}

// New constructs a Client with the given credentials.
func New(baseURL, phoneID, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		PhoneID:     phoneID,
		AccessToken: accessToken,
		HTTP:        &http.Client{Timeout: timeout},
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.AccessToken != "" && c.PhoneID != ""
}

// SendText delivers one plain-text message to the given phone number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	})
	if err != nil {
		return &upstream.Error{Service: "whatsapp", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/"+c.PhoneID+"/messages", bytes.NewReader(payload))
	if err != nil {
		return &upstream.Error{Service: "whatsapp", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &upstream.Error{Service: "whatsapp", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &upstream.Error{Service: "whatsapp", Status: resp.StatusCode, Body: string(b)}
	}
	return nil
}
