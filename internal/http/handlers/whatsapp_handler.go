// Messaging-platform webhook handlers.
//
// The platform's delivery contract drives the shape of these handlers:
//
//   - GET /whatsapp-webhook is the subscription handshake. The platform sends
//     hub.mode/hub.verify_token/hub.challenge; a matching token must be
//     answered with the raw challenge and a 200.
//   - POST /whatsapp-webhook delivers events. The platform expects a 200
//     within seconds regardless of processing outcome, otherwise it retries
//     and users receive duplicate replies. The handler therefore acknowledges
//     immediately and processes the payload in a detached goroutine with its
//     own timeout.
package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
	"github.com/younesbotola/mdr-chatbot-server/internal/http/middleware"
	"github.com/younesbotola/mdr-chatbot-server/internal/lang"
	"github.com/younesbotola/mdr-chatbot-server/internal/prompt"
	"github.com/younesbotola/mdr-chatbot-server/internal/whatsapp"
)

// webhookProcessTimeout bounds the detached processing of one webhook
// delivery, completion call included.
const webhookProcessTimeout = 60 * time.Second

// maxWebhookBody caps how much of a webhook payload is read.
const maxWebhookBody = 1 << 20

// WhatsAppVerify handles the GET handshake.
func (h *Handlers) WhatsAppVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.VerifyToken != "" && token == h.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	fail(c, http.StatusForbidden, ErrCodeForbidden, "webhook verification failed")
}

// WhatsAppWebhook handles POST deliveries: acknowledge first, work later.
func (h *Handlers) WhatsAppWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		// Still acknowledge; the platform will not resend anything useful.
		c.Status(http.StatusOK)
		return
	}
	c.Status(http.StatusOK)

	go h.processWebhook(body)
}

// processWebhook parses one delivery and answers each inbound text message.
// Runs detached from the HTTP request.
func (h *Handlers) processWebhook(body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	inbound, err := whatsapp.ParseWebhook(body)
	if err != nil {
		log.Warn().Err(err).Msg("unparseable webhook payload dropped")
		return
	}

	for _, msg := range inbound {
		h.handleInbound(ctx, msg)
	}
}

// handleInbound runs the conversational pipeline for one message.
func (h *Handlers) handleInbound(ctx context.Context, msg whatsapp.Inbound) {
	phone := domain.NormalizePhone(msg.From)
	if phone == "" {
		return
	}
	id := "wa:" + phone

	if msg.Type != "text" || strings.TrimSpace(msg.Text) == "" {
		log.Debug().Str("type", msg.Type).Msg("non-text webhook message ignored")
		return
	}
	text := strings.TrimSpace(msg.Text)

	h.WAConversations.SetDisplayName(id, msg.Name)
	h.WAConversations.SuggestLanguage(id, lang.GuessFromPhone(phone))
	code := h.resolveLanguage(h.WAConversations, id, text, "")

	// Subscription keywords short-circuit the pipeline and do not count
	// against the quota.
	switch strings.ToUpper(text) {
	case "STOP", "UNSUBSCRIBE":
		h.WAConversations.SetSubscribed(id, false)
		h.send(ctx, phone, lang.UnsubscribeConfirm(code))
		return
	case "START", "SUBSCRIBE":
		h.WAConversations.SetSubscribed(id, true)
		h.send(ctx, phone, lang.SubscribeConfirm(code))
		return
	}

	count := h.WAConversations.AppendUser(id, text)
	if h.DailyQuota > 0 && count > h.DailyQuota {
		middleware.ObserveChatMessage(domain.ChannelWhatsApp, "quota")
		h.send(ctx, phone, lang.LimitReached(code))
		return
	}

	in := h.composeInput(ctx, domain.ChannelWhatsApp, code, text, ChatRequest{})
	start := time.Now()
	reply, err := h.LLM.Complete(ctx, h.Composer.Compose(in), h.WAConversations.History(id))
	middleware.ObserveCompletion(time.Since(start))
	if err != nil {
		log.Error().Err(err).Msg("completion failed for webhook message")
		middleware.ObserveChatMessage(domain.ChannelWhatsApp, "error")
		h.send(ctx, phone, lang.Apology(code))
		return
	}

	h.WAConversations.AppendAssistant(id, reply)
	h.Usage.Record(domain.ChannelWhatsApp)
	middleware.ObserveChatMessage(domain.ChannelWhatsApp, "ok")

	// The platform renders plain text; strip any widget tags the model emitted.
	h.send(ctx, phone, prompt.StripTags(reply))
}

// send delivers one outbound text, logging failures. Webhook processing has
// no caller to report errors to.
func (h *Handlers) send(ctx context.Context, phone, body string) {
	if h.WA == nil || !h.WA.Configured() {
		log.Warn().Msg("outbound message dropped, messaging client not configured")
		return
	}
	if err := h.WA.SendText(ctx, phone, body); err != nil {
		log.Error().Err(err).Msg("outbound message failed")
	}
}
