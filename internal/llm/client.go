// Package llm is the completion gateway: a thin adapter around an
// OpenAI-compatible chat completion endpoint. It sends one system instruction
// plus a trimmed conversation and returns generated text.
//
// Cost controls are built into the call shape, not bolted on:
//   - history is truncated to the last MaxTurns turns before sending,
//   - output length is capped via MaxTokens,
//   - temperature is fixed low for factual recipe answers,
//   - there are no automatic retries; a flaky upstream must not multiply
//     spend, so retrying is deliberately left to callers that can afford it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
	"github.com/younesbotola/mdr-chatbot-server/internal/upstream"
)

const maxErrorBody = 2048

// Client calls the external completion API. Safe for concurrent use.
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxTurns    int // history turns kept per request; <=0 keeps everything

	HTTP *http.Client
}

// New constructs a Client with the given credentials and bounds.
func New(baseURL, apiKey, model string, maxTokens, maxTurns int, temperature float64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		MaxTurns:    maxTurns,
		HTTP:        &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has credentials to call the API.
func (c *Client) Configured() bool { return c.APIKey != "" && c.BaseURL != "" }

// wire shapes for the chat completion endpoint
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends system + the most recent history turns and returns the
// generated reply text. Non-success responses become *upstream.Error; an
// empty choice list is also treated as an upstream failure.
func (c *Client) Complete(ctx context.Context, system string, history []domain.Message) (string, error) {
	tr := otel.Tracer("llm/Client")
	ctx, span := tr.Start(ctx, "Complete",
		trace.WithAttributes(
			attribute.String("llm.model", c.Model),
			attribute.Int("llm.history_len", len(history)),
		),
	)
	defer span.End()

	history = TrimHistory(history, c.MaxTurns)

	msgs := make([]wireMessage, 0, len(history)+1)
	msgs = append(msgs, wireMessage{Role: domain.RoleSystem, Content: system})
	for _, m := range history {
		msgs = append(msgs, wireMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    msgs,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", &upstream.Error{Service: "llm", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &upstream.Error{Service: "llm", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &upstream.Error{Service: "llm", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &upstream.Error{Service: "llm", Status: resp.StatusCode, Body: string(b)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &upstream.Error{Service: "llm", Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &upstream.Error{Service: "llm", Status: resp.StatusCode, Body: "no choices in response"}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// TrimHistory keeps the last maxTurns entries in arrival order. maxTurns <= 0
// disables trimming.
func TrimHistory(history []domain.Message, maxTurns int) []domain.Message {
	if maxTurns > 0 && len(history) > maxTurns {
		return history[len(history)-maxTurns:]
	}
	return history
}
