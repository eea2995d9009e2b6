// Package domain defines the core data types exchanged between the content
// cache, the prompt composer, the conversation stores, and the delivery
// channels. Everything here is plain in-memory data: the server deliberately
// keeps no durable state, so these types carry no persistence concerns.
package domain

import (
	"strings"
	"time"
)

// Message roles, mirroring the completion API's turn format.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Channel names used for usage accounting and per-channel behavior.
const (
	ChannelWeb      = "web"
	ChannelWhatsApp = "whatsapp"
	ChannelVoice    = "voice"
)

// Recipe is one published recipe as served by the content source. Title and
// URL must be surfaced verbatim wherever they reach the model: the composer
// never lets the model cite a URL that is not present in the cached set.
//
// Fields:
//   - ID: source-of-truth identifier from the CMS.
//   - Title: display title, used for case-insensitive page-context lookup.
//   - URL: canonical recipe page URL, quoted exactly as cached.
//   - Excerpt: bounded-length summary for prompt injection.
//   - PublishedAt: publication time, used for most-recent-first selection.
type Recipe struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Excerpt     string    `json:"excerpt"`
	PublishedAt time.Time `json:"published_at"`
}

// Product is an affiliate product recommendation. ReviewURL always points at
// an internal review page, never at an external marketplace.
type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ReviewURL string `json:"review_url"`
	Summary   string `json:"summary"`
}

// Branding carries site identity metadata injected into every prompt.
type Branding struct {
	SiteName string `json:"site_name"`
	SiteURL  string `json:"site_url"`
	Tagline  string `json:"tagline"`
	BotName  string `json:"bot_name"`
}

// Message is one turn in a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Subscriber is one broadcast recipient as supplied in the /broadcast payload.
type Subscriber struct {
	Phone    string `json:"phone"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

// NormalizePhone strips spaces, dashes, and a leading "+" so that phone
// numbers compare equal regardless of formatting. The result keeps the
// country calling code prefix (e.g. "33612345678").
func NormalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
