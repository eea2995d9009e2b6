// Chat HTTP handlers.
//
// This file exposes the primary conversational endpoint:
//   - POST /chat    (web widget messages)
//
// Handlers are transport-thin: they validate input, resolve the conversation
// identity and language, call the completion gateway, and translate results
// into HTTP responses. Quota exhaustion is not an error at this layer; the
// user gets a friendly localized notice with a 200.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/younesbotola/mdr-chatbot-server/internal/cache"
	"github.com/younesbotola/mdr-chatbot-server/internal/conversation"
	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
	"github.com/younesbotola/mdr-chatbot-server/internal/http/middleware"
	"github.com/younesbotola/mdr-chatbot-server/internal/lang"
	"github.com/younesbotola/mdr-chatbot-server/internal/prompt"
	"github.com/younesbotola/mdr-chatbot-server/internal/tts"
	"github.com/younesbotola/mdr-chatbot-server/internal/usage"
)

//
// Service contracts (context-aware)
//

// Completer is the completion gateway as the handlers consume it.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type Completer interface {
	Complete(ctx context.Context, system string, history []domain.Message) (string, error)
	Configured() bool
}

// Messenger delivers outbound messages on the messaging platform.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	Configured() bool
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints and the shared singletons they read:
// content caches, the conversation store, the prompt composer, and the
// upstream clients. It depends on interfaces for everything that performs
// network I/O so tests can substitute fakes.
type Handlers struct {
	Recipes  *cache.Collection[domain.Recipe]
	Products *cache.Collection[domain.Product]
	Branding *cache.Collection[domain.Branding]

	// One store per inbound channel: web sessions and WhatsApp threads have
	// different lifetimes and history caps and never share identities.
	WebConversations *conversation.Store
	WAConversations  *conversation.Store

	Composer *prompt.Composer
	Usage    *usage.Tracker

	LLM Completer
	TTS *tts.Registry
	WA  Messenger

	Orchestrator Broadcaster

	DailyQuota     int // user messages per identity per UTC day; 0 = unlimited
	PinnedRecipes  []string
	VerifyToken    string // webhook handshake secret
	BroadcastToken string // shared secret for POST /broadcast

	startedAt time.Time
}

// New constructs a Handlers bound to the given collaborators.
func New(h Handlers) *Handlers {
	h.startedAt = time.Now()
	return &h
}

//
// DTOs
//

// maxTranscriptTurns caps how many turns the widget may post at once. The
// server keeps its own bounded history; a transcript past this size is a
// malformed or abusive client, not a long conversation.
const maxTranscriptTurns = 50

// ChatTurn is one entry of the transcript the widget sends.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the JSON payload for one web widget exchange. The widget
// posts its visible transcript; only the most recent user turn is treated as
// the new message, server-side history provides the rest.
type ChatRequest struct {
	Messages  []ChatTurn `json:"messages"`
	Lang      string     `json:"lang"`
	PageTitle string     `json:"pageTitle"`
	IsRecipe  bool       `json:"isRecipe"`
	SessionID string     `json:"sessionId"`
	VoiceMode bool       `json:"voiceMode"`
}

// ChatResponse carries the assistant reply and the resolved conversation
// language so the widget can localize its chrome.
type ChatResponse struct {
	Reply    string `json:"reply"`
	Language string `json:"language"`
}

//
// Helpers
//

// identity resolves the conversation key for a web request: the caller's
// session ID when provided, else the client IP. Anonymous users on the same
// NAT share a conversation in the fallback case, which is acceptable for an
// unauthenticated widget.
func identity(c *gin.Context, sessionID string) string {
	if s := strings.TrimSpace(sessionID); s != "" {
		return "session:" + s
	}
	return "ip:" + c.ClientIP()
}

// lastUserTurn extracts the newest user entry from a posted transcript.
func lastUserTurn(msgs []ChatTurn) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if strings.EqualFold(strings.TrimSpace(msgs[i].Role), "user") {
			return strings.TrimSpace(msgs[i].Content)
		}
	}
	return ""
}

// resolveLanguage applies the stickiness rules for one inbound message:
// content detection always wins and pins the language; an explicit request
// language only fills the gap, and a record with no language yet resolves to
// the default so callers never see an empty code.
func (h *Handlers) resolveLanguage(store *conversation.Store, id, text, requested string) string {
	if code, ok := lang.DetectFromText(text); ok {
		store.SetDetectedLanguage(id, code)
		return store.Language(id)
	}
	if requested != "" {
		store.SuggestLanguage(id, lang.Normalize(requested))
	}
	if code := store.Language(id); code != "" {
		return code
	}
	return lang.Default
}

// composeInput assembles the prompt input from the current cache contents.
func (h *Handlers) composeInput(ctx context.Context, channel, language, query string, req ChatRequest) prompt.Input {
	var branding domain.Branding
	if bs := h.Branding.Get(ctx); len(bs) > 0 {
		branding = bs[0]
	}
	return prompt.Input{
		Channel:      channel,
		Language:     language,
		Query:        query,
		PageTitle:    req.PageTitle,
		IsRecipe:     req.IsRecipe,
		VoiceMode:    req.VoiceMode,
		Recipes:      h.Recipes.Get(ctx),
		Products:     h.Products.Get(ctx),
		Branding:     branding,
		PinnedTitles: h.PinnedRecipes,
	}
}

//
// Handlers
//

// Chat handles POST /chat: the widget's transcript in, one assistant reply
// out.
//
// Responses:
//   - 200 with the reply (or the localized quota notice)
//   - 400 when messages is missing, not an array, over the turn cap, or
//     carries no user turn
//   - 500 when the completion upstream fails; the message is a localized
//     apology, never the upstream error text
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 || len(req.Messages) > maxTranscriptTurns {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "messages must be a non-empty array of at most 50 turns")
		return
	}
	text := lastUserTurn(req.Messages)
	if text == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "messages must contain a user turn")
		return
	}

	id := identity(c, req.SessionID)
	code := h.resolveLanguage(h.WebConversations, id, text, req.Lang)

	count := h.WebConversations.AppendUser(id, text)
	if h.DailyQuota > 0 && count > h.DailyQuota {
		middleware.ObserveChatMessage(domain.ChannelWeb, "quota")
		ok(c, http.StatusOK, ChatResponse{Reply: lang.LimitReached(code), Language: code})
		return
	}

	ctx := c.Request.Context()
	system := h.Composer.Compose(h.composeInput(ctx, domain.ChannelWeb, code, text, req))

	start := time.Now()
	reply, err := h.LLM.Complete(ctx, system, h.WebConversations.History(id))
	middleware.ObserveCompletion(time.Since(start))
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("completion failed")
		middleware.ObserveChatMessage(domain.ChannelWeb, "error")
		fail(c, http.StatusInternalServerError, ErrCodeUpstream, lang.Apology(code))
		return
	}

	h.WebConversations.AppendAssistant(id, reply)
	h.Usage.Record(domain.ChannelWeb)
	middleware.ObserveChatMessage(domain.ChannelWeb, "ok")

	ok(c, http.StatusOK, ChatResponse{Reply: reply, Language: code})
}
