// Package tts adapts the speech-synthesis providers behind one small
// interface. The /voice endpoint picks a provider per request; an
// unconfigured provider is a caller error (400), an upstream failure is a
// classified *upstream.Error (500).
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/younesbotola/mdr-chatbot-server/internal/upstream"
)

const maxErrorBody = 2048

// Provider synthesizes speech for a piece of text in a given language and
// returns MPEG audio bytes.
type Provider interface {
	// Synthesize returns encoded MPEG audio for text.
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
	// Configured reports whether credentials are present.
	Configured() bool
}

// ElevenLabs calls the ElevenLabs HTTP text-to-speech endpoint.
type ElevenLabs struct {
	APIKey  string
	VoiceID string
	BaseURL string
	ModelID string
	HTTP    *http.Client
}

// NewElevenLabs constructs an ElevenLabs provider with sane defaults.
func NewElevenLabs(apiKey, voiceID string, timeout time.Duration) *ElevenLabs {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ElevenLabs{
		APIKey:  apiKey,
		VoiceID: voiceID,
		BaseURL: "https://api.elevenlabs.io",
		ModelID: "eleven_multilingual_v2",
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the API key and voice are set.
func (p *ElevenLabs) Configured() bool { return p != nil && p.APIKey != "" && p.VoiceID != "" }

// Synthesize posts text to the stream endpoint and returns the MPEG bytes.
func (p *ElevenLabs) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	u := strings.TrimRight(p.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(p.VoiceID)

	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": p.ModelID,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, &upstream.Error{Service: "tts", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, &upstream.Error{Service: "tts", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", p.APIKey)

	return doAudio(p.HTTP, req)
}

// OpenAI calls an OpenAI-compatible /audio/speech endpoint.
type OpenAI struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	HTTP    *http.Client
}

// NewOpenAI constructs an OpenAI speech provider with sane defaults.
func NewOpenAI(apiKey, baseURL string, timeout time.Duration) *OpenAI {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAI{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   "tts-1",
		Voice:   "alloy",
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the API key is set.
func (p *OpenAI) Configured() bool { return p != nil && p.APIKey != "" }

// Synthesize posts text to /audio/speech and returns the MPEG bytes.
func (p *OpenAI) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"model":           p.Model,
		"voice":           p.Voice,
		"input":           text,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, &upstream.Error{Service: "tts", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, &upstream.Error{Service: "tts", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	return doAudio(p.HTTP, req)
}

// Registry maps provider names to configured providers.
type Registry struct {
	providers map[string]Provider
	def       string
}

// NewRegistry builds a registry; def names the provider used when a request
// does not specify one.
func NewRegistry(def string) *Registry {
	return &Registry{providers: make(map[string]Provider), def: def}
}

// Register adds a provider under name.
func (r *Registry) Register(name string, p Provider) { r.providers[strings.ToLower(name)] = p }

// Configured reports whether at least one registered provider has
// credentials, i.e. whether /voice can work at all.
func (r *Registry) Configured() bool {
	for _, p := range r.providers {
		if p.Configured() {
			return true
		}
	}
	return false
}

// Lookup resolves name (empty selects the default). It returns an error when
// the provider is unknown or unconfigured, which callers map to 400.
func (r *Registry) Lookup(name string) (Provider, error) {
	if name == "" {
		name = r.def
	}
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown tts provider %q", name)
	}
	if !p.Configured() {
		return nil, fmt.Errorf("tts provider %q is not configured", name)
	}
	return p, nil
}

// doAudio executes the request and returns the raw audio body, converting
// non-success statuses into *upstream.Error.
func doAudio(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &upstream.Error{Service: "tts", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &upstream.Error{Service: "tts", Status: resp.StatusCode, Body: string(b)}
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &upstream.Error{Service: "tts", Err: err}
	}
	return audio, nil
}
