// Voice HTTP handler.
//
// POST /voice synthesizes caller-supplied text to audio. The widget obtains
// the reply text from /chat (voiceMode asks the composer for speakable
// prose); this endpoint only turns that text into speech, so it never calls
// the completion upstream and never touches conversation state.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
	"github.com/younesbotola/mdr-chatbot-server/internal/http/middleware"
	"github.com/younesbotola/mdr-chatbot-server/internal/lang"
	"github.com/younesbotola/mdr-chatbot-server/internal/prompt"
)

// VoiceRequest is the JSON payload for one synthesis request.
type VoiceRequest struct {
	Text string `json:"text" binding:"required"`
	Lang string `json:"lang"`
	// Provider selects the synthesis backend; empty uses the default.
	Provider string `json:"provider"`
}

// Voice handles POST /voice.
//
// Responses:
//   - 200 audio/mpeg with the synthesized speech
//   - 400 when text is empty or the requested synthesis provider is unknown
//     or unconfigured
//   - 500 when the synthesis upstream fails
func (h *Handlers) Voice(c *gin.Context) {
	var req VoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text must not be empty")
		return
	}

	provider, err := h.TTS.Lookup(req.Provider)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeTTSUnavailable, err.Error())
		return
	}

	code := lang.Normalize(req.Lang)

	// Strip any widget tags so they are not read aloud.
	speakable := prompt.StripTags(strings.TrimSpace(req.Text))

	audio, err := provider.Synthesize(c.Request.Context(), speakable, code)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("speech synthesis failed")
		middleware.ObserveChatMessage(domain.ChannelVoice, "error")
		fail(c, http.StatusInternalServerError, ErrCodeUpstream, lang.Apology(code))
		return
	}

	h.Usage.Record(domain.ChannelVoice)
	middleware.ObserveChatMessage(domain.ChannelVoice, "ok")
	c.Data(http.StatusOK, "audio/mpeg", audio)
}
