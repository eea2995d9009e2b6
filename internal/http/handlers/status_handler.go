// Health and stats handlers.
//
// GET /health is the liveness/readiness probe: always 200 once the process
// serves traffic, with cache freshness attached so operators can spot a
// content API outage before users do. GET /stats reports in-memory usage
// counters; both endpoints are read-only and never touch an upstream.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
)

// cacheStatus describes one content cache in the health payload.
type cacheStatus struct {
	Count int    `json:"count"`
	Age   string `json:"age"` // "never" before the first successful refresh
}

// channelStats reports one channel's counters in the stats payload.
type channelStats struct {
	Today      int    `json:"today"`
	Week       int    `json:"week"`
	Month      int    `json:"month"`
	LastActive string `json:"last_active,omitempty"`
}

// Health handles GET /health. Besides cache freshness it reports which
// upstreams have credentials, so a misdeployed environment is visible from
// the probe rather than from user-facing failures.
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
		"caches": gin.H{
			"recipes":  h.cacheStatus(h.Recipes.Len(), h.Recipes.Age()),
			"products": h.cacheStatus(h.Products.Len(), h.Products.Age()),
			"branding": h.cacheStatus(h.Branding.Len(), h.Branding.Age()),
		},
		"conversations": gin.H{
			"web":      h.WebConversations.Len(),
			"whatsapp": h.WAConversations.Len(),
		},
		"configured": gin.H{
			"llm":      h.LLM != nil && h.LLM.Configured(),
			"whatsapp": h.WA != nil && h.WA.Configured(),
			"tts":      h.TTS != nil && h.TTS.Configured(),
		},
	})
}

func (h *Handlers) cacheStatus(count int, age time.Duration) cacheStatus {
	s := cacheStatus{Count: count, Age: "never"}
	if age >= 0 {
		s.Age = age.Round(time.Second).String()
	}
	return s
}

// Stats handles GET /stats.
func (h *Handlers) Stats(c *gin.Context) {
	channels := gin.H{}
	for _, ch := range []string{domain.ChannelWeb, domain.ChannelWhatsApp, domain.ChannelVoice} {
		cs := channelStats{
			Today: h.Usage.RangeTotal(ch, 1),
			Week:  h.Usage.RangeTotal(ch, 7),
			Month: h.Usage.RangeTotal(ch, 30),
		}
		if last := h.Usage.LastActive(ch); !last.IsZero() {
			cs.LastActive = last.UTC().Format(time.RFC3339)
		}
		channels[ch] = cs
	}

	ok(c, http.StatusOK, gin.H{
		"channels":             channels,
		"active_conversations": h.WebConversations.Len() + h.WAConversations.Len(),
		"cached_recipes":       h.Recipes.Len(),
		"cached_products":      h.Products.Len(),
	})
}
