// Package broadcast implements the outbound campaign dispatcher: weekly
// recipe digests and affiliate product recommendations pushed to WhatsApp
// subscribers.
//
// The orchestrator exists to bound two costs. Upstream model spend is bounded
// by generating at most one affiliate message per distinct subscriber
// language (not per subscriber) and by skipping generation entirely when an
// admin pins a product. Platform throttling is respected by pacing sends
// through a token bucket instead of bursting the whole list.
//
// Delivery is at-least-once with best-effort dedup: a per-type cool-down lock
// rejects re-triggers inside the lock window, and per-subscriber failures are
// logged and skipped rather than aborting the batch.
package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
	"github.com/younesbotola/mdr-chatbot-server/internal/lang"
	"github.com/younesbotola/mdr-chatbot-server/internal/sysutil"
)

// Broadcast types accepted by Run.
const (
	TypeWeeklyRecipes   = "weekly_recipes"
	TypeWeeklyAffiliate = "weekly_affiliate"
)

// Generator is the slice of the completion gateway the orchestrator needs.
type Generator interface {
	Complete(ctx context.Context, system string, history []domain.Message) (string, error)
}

// Sender delivers one text message to one phone number.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// Request describes one broadcast invocation.
type Request struct {
	Type          string              `json:"type"`
	Recipes       []domain.Recipe     `json:"recipes,omitempty"`
	Subscribers   []domain.Subscriber `json:"subscribers"`
	PinnedProduct string              `json:"pinned_product,omitempty"`
	BotName       string              `json:"botName,omitempty"`
}

// Result reports the outcome of one invocation.
type Result struct {
	Sent      int  `json:"sent"`
	Total     int  `json:"total"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// Orchestrator runs broadcasts. Safe for concurrent use; the lock table
// serializes same-type invocations by rejection rather than queueing.
type Orchestrator struct {
	gen    Generator
	sender Sender
	locks  *LockTable

	// Delivery window in the subscriber's local time, [StartHour, EndHour).
	StartHour int
	EndHour   int

	pace *rate.Limiter

	now       func() time.Time                      // test seam
	localHour func(phone string, now time.Time) int // test seam
}

// New constructs an Orchestrator. sendDelay is the minimum spacing between
// consecutive sends; lockTTL the duplicate-suppression window.
func New(gen Generator, sender Sender, lockTTL, sendDelay time.Duration, startHour, endHour int) *Orchestrator {
	if sendDelay <= 0 {
		sendDelay = 500 * time.Millisecond
	}
	return &Orchestrator{
		gen:       gen,
		sender:    sender,
		locks:     NewLockTable(lockTTL),
		StartHour: startHour,
		EndHour:   endHour,
		pace:      rate.NewLimiter(rate.Every(sendDelay), 1),
		now:       time.Now,
		localHour: resolveLocalHour,
	}
}

// Run executes one broadcast. A lock held for req.Type yields a zero-sent
// duplicate result immediately, before any work. An unknown type is rejected
// before the lock is touched, so a bad request never burns the cool-down
// window for the real campaign.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	total := len(req.Subscribers)

	if req.Type != TypeWeeklyRecipes && req.Type != TypeWeeklyAffiliate {
		return Result{Total: total}, fmt.Errorf("unknown broadcast type %q", req.Type)
	}

	if !o.locks.TryAcquire(req.Type) {
		log.Warn().Str("type", req.Type).Msg("broadcast suppressed, cool-down lock held")
		return Result{Sent: 0, Total: total, Duplicate: true}, nil
	}

	if req.Type == TypeWeeklyRecipes {
		return o.runRecipes(ctx, req)
	}
	return o.runAffiliate(ctx, req)
}

// runRecipes sends one personalized recipe digest per subscriber, skipping
// anyone whose local hour falls outside the delivery window.
func (o *Orchestrator) runRecipes(ctx context.Context, req Request) (Result, error) {
	res := Result{Total: len(req.Subscribers)}
	now := o.now()

	for _, sub := range req.Subscribers {
		hour := o.localHour(sub.Phone, now)
		if !o.inWindow(hour) {
			log.Debug().Str("phone", sub.Phone).Int("local_hour", hour).Msg("subscriber outside delivery window, skipped")
			continue
		}

		code := lang.Normalize(sysutil.FirstNonEmpty(sub.Language, lang.GuessFromPhone(sub.Phone)))
		body, err := o.gen.Complete(ctx, o.recipeDigestPrompt(req, sub, code), nil)
		if err != nil {
			log.Error().Err(err).Str("phone", sub.Phone).Msg("recipe digest generation failed, subscriber skipped")
			continue
		}

		if o.deliver(ctx, sub.Phone, body) {
			res.Sent++
		}
	}
	return res, nil
}

// runAffiliate fans one message per distinct language out to all subscribers
// of that language. The per-language cache is what bounds model spend: 100
// subscribers in 4 languages cost at most 4 generation calls.
func (o *Orchestrator) runAffiliate(ctx context.Context, req Request) (Result, error) {
	res := Result{Total: len(req.Subscribers)}
	byLang := make(map[string]string) // language -> generated body

	for _, sub := range req.Subscribers {
		code := lang.Normalize(sysutil.FirstNonEmpty(sub.Language, lang.GuessFromPhone(sub.Phone)))

		body, ok := byLang[code]
		if !ok {
			var err error
			body, err = o.affiliateBody(ctx, req, code)
			if err != nil {
				log.Error().Err(err).Str("lang", code).Msg("affiliate message generation failed, language skipped")
				byLang[code] = "" // do not retry this language within the batch
				continue
			}
			byLang[code] = body
		}
		if body == "" {
			continue
		}

		if o.deliver(ctx, sub.Phone, body+"\n\n"+lang.UnsubscribeFooter(code)) {
			res.Sent++
		}
	}
	return res, nil
}

// affiliateBody returns the message for one language: the pinned product
// formatted deterministically when supplied, otherwise one model generation.
func (o *Orchestrator) affiliateBody(ctx context.Context, req Request, code string) (string, error) {
	if p := strings.TrimSpace(req.PinnedProduct); p != "" {
		botName := req.BotName
		if botName == "" {
			botName = "Chef MDR"
		}
		return fmt.Sprintf("%s recommends this week: %s", botName, p), nil
	}
	return o.gen.Complete(ctx, o.affiliatePrompt(req, code), nil)
}

// deliver paces and sends one message. Failures are logged and reported as
// not-sent; they never abort the batch.
func (o *Orchestrator) deliver(ctx context.Context, phone, body string) bool {
	if err := o.pace.Wait(ctx); err != nil {
		log.Error().Err(err).Msg("broadcast pacing interrupted")
		return false
	}
	if err := o.sender.SendText(ctx, phone, body); err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("broadcast send failed, subscriber skipped")
		return false
	}
	return true
}

// inWindow reports whether hour falls in [StartHour, EndHour). A zero-width
// window disables the gate.
func (o *Orchestrator) inWindow(hour int) bool {
	if o.StartHour == o.EndHour {
		return true
	}
	if o.StartHour < o.EndHour {
		return hour >= o.StartHour && hour < o.EndHour
	}
	// Window wraps midnight, e.g. 20..8.
	return hour >= o.StartHour || hour < o.EndHour
}

// recipeDigestPrompt asks for a short, personal digest quoting only the
// supplied titles/URLs.
func (o *Orchestrator) recipeDigestPrompt(req Request, sub domain.Subscriber, code string) string {
	botName := req.BotName
	if botName == "" {
		botName = "Chef MDR"
	}
	name := strings.TrimSpace(sub.Name)
	if name != "" {
		name = cases.Title(language.Und).String(name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. Write one short, warm WhatsApp message (under 120 words) in the language with code %q", botName, code)
	if name != "" {
		fmt.Fprintf(&b, ", addressed to %s by name", name)
	}
	b.WriteString(", presenting this week's recipes. Quote each title and URL exactly as written, one URL per line. Do not add any other links.\n")
	for _, r := range req.Recipes {
		fmt.Fprintf(&b, "- %s | %s\n", r.Title, r.URL)
	}
	return b.String()
}

// affiliatePrompt asks for one product recommendation message per language.
func (o *Orchestrator) affiliatePrompt(req Request, code string) string {
	botName := req.BotName
	if botName == "" {
		botName = "Chef MDR"
	}
	return fmt.Sprintf(
		"You are %s. Write one short, friendly WhatsApp message (under 80 words) in the language with code %q recommending a useful kitchen product from our reviews. Mention that the full review is on our website. Do not include any URL.",
		botName, code)
}

// resolveLocalHour computes the subscriber's current local hour from their
// phone country code. Unknown zones fall back to UTC.
func resolveLocalHour(phone string, now time.Time) int {
	loc, err := time.LoadLocation(lang.ZoneFromPhone(phone))
	if err != nil {
		return now.UTC().Hour()
	}
	return now.In(loc).Hour()
}
