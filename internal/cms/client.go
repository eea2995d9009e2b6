// Package cms implements the REST client for the recipe website's content
// management system. It is the single source of truth for recipes, products,
// and branding metadata; the cache package wraps these fetchers with TTL
// read-through semantics so the CMS is only hit when data goes stale.
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
	"github.com/younesbotola/mdr-chatbot-server/internal/upstream"
)

// maxErrorBody bounds how much of an error response body is retained for logs.
const maxErrorBody = 2048

// Client talks to the CMS REST endpoints. The zero value is not usable;
// construct with New.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client for the given base URL (e.g.
// "https://cms.example.com/wp-json/mdr/v1"). timeout bounds every request.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// recipePayload is the CMS wire shape for one recipe.
type recipePayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Excerpt     string `json:"excerpt"`
	PublishedAt string `json:"published_at"` // RFC 3339
}

// FetchRecipes returns the full published recipe list, newest first as
// served by the CMS. Entries missing a title or URL are dropped: a recipe
// the model cannot link to verbatim must never enter the prompt.
func (c *Client) FetchRecipes(ctx context.Context) ([]domain.Recipe, error) {
	var payload []recipePayload
	if err := c.getJSON(ctx, "/recipes", &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Recipe, 0, len(payload))
	for _, p := range payload {
		if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.URL) == "" {
			continue
		}
		r := domain.Recipe{
			ID:      p.ID,
			Title:   strings.TrimSpace(p.Title),
			URL:     strings.TrimSpace(p.URL),
			Excerpt: strings.TrimSpace(p.Excerpt),
		}
		if ts, err := time.Parse(time.RFC3339, p.PublishedAt); err == nil {
			r.PublishedAt = ts
		}
		out = append(out, r)
	}
	return out, nil
}

// FetchProducts returns the affiliate product list. Products without an
// internal review URL are dropped so the composer can never point the model
// at an external marketplace.
func (c *Client) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	var payload []domain.Product
	if err := c.getJSON(ctx, "/products", &payload); err != nil {
		return nil, err
	}
	out := payload[:0]
	for _, p := range payload {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.ReviewURL) == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// FetchBranding returns site identity metadata. The cache layer stores it as
// a one-element collection so the same staleness rules apply.
func (c *Client) FetchBranding(ctx context.Context) ([]domain.Branding, error) {
	var payload domain.Branding
	if err := c.getJSON(ctx, "/branding", &payload); err != nil {
		return nil, err
	}
	return []domain.Branding{payload}, nil
}

// getJSON performs a GET against path and decodes the JSON response into out.
// Non-2xx statuses and malformed payloads are reported as *upstream.Error.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &upstream.Error{Service: "cms", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &upstream.Error{Service: "cms", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &upstream.Error{Service: "cms", Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &upstream.Error{Service: "cms", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return nil
}
