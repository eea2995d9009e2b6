package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/younesbotola/mdr-chatbot-server/internal/broadcast"
	"github.com/younesbotola/mdr-chatbot-server/internal/cache"
	"github.com/younesbotola/mdr-chatbot-server/internal/conversation"
	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
	"github.com/younesbotola/mdr-chatbot-server/internal/prompt"
	"github.com/younesbotola/mdr-chatbot-server/internal/tts"
	"github.com/younesbotola/mdr-chatbot-server/internal/usage"
)

//
// Fakes
//

type fakeLLM struct {
	mu      sync.Mutex
	systems []string
	reply   string
	err     error
}

func (f *fakeLLM) Complete(_ context.Context, system string, _ []domain.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.systems = append(f.systems, system)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) Configured() bool { return true }

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.systems)
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string // "phone|body"
	ch   chan string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{ch: make(chan string, 16)}
}

func (f *fakeMessenger) SendText(_ context.Context, to, body string) error {
	f.mu.Lock()
	f.sent = append(f.sent, to+"|"+body)
	f.mu.Unlock()
	f.ch <- to + "|" + body
	return nil
}

func (f *fakeMessenger) Configured() bool { return true }

// wait blocks until one send happens or the timeout fires.
func (f *fakeMessenger) wait(t *testing.T) string {
	t.Helper()
	select {
	case s := <-f.ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return ""
	}
}

type fakeBroadcaster struct {
	got broadcast.Request
	res broadcast.Result
	err error
}

func (f *fakeBroadcaster) Run(_ context.Context, req broadcast.Request) (broadcast.Result, error) {
	f.got = req
	return f.res, f.err
}

type fakeVoice struct {
	audio   []byte
	err     error
	gotText string
	gotLang string
}

func (f *fakeVoice) Synthesize(_ context.Context, text, lang string) ([]byte, error) {
	f.gotText, f.gotLang = text, lang
	return f.audio, f.err
}
func (f *fakeVoice) Configured() bool { return true }

//
// Fixture
//

type fixture struct {
	h     *Handlers
	llm   *fakeLLM
	wa    *fakeMessenger
	bc    *fakeBroadcaster
	voice *fakeVoice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recipes := cache.NewCollection("recipes", time.Hour, func(context.Context) ([]domain.Recipe, error) {
		return []domain.Recipe{
			{Title: "Tagine de Poulet", URL: "https://site.example/recettes/tagine"},
			{Title: "Couscous Royal", URL: "https://site.example/recettes/couscous"},
		}, nil
	})
	products := cache.NewCollection("products", time.Hour, func(context.Context) ([]domain.Product, error) {
		return []domain.Product{{Name: "Cast Iron Pot", ReviewURL: "https://site.example/avis/pot"}}, nil
	})
	branding := cache.NewCollection("branding", time.Hour, func(context.Context) ([]domain.Branding, error) {
		return []domain.Branding{{SiteName: "Mes Délices", SiteURL: "https://site.example", BotName: "Chef Délice"}}, nil
	})

	llm := &fakeLLM{reply: "Voici une recette !"}
	wa := newFakeMessenger()
	bc := &fakeBroadcaster{res: broadcast.Result{Sent: 2, Total: 3}}
	voice := &fakeVoice{audio: []byte("mp3-bytes")}

	reg := tts.NewRegistry("fake")
	reg.Register("fake", voice)

	h := New(Handlers{
		Recipes:          recipes,
		Products:         products,
		Branding:         branding,
		WebConversations: conversation.NewStore(20, time.Hour),
		WAConversations:  conversation.NewStore(30, time.Hour),
		Composer:         prompt.New(60, 10),
		Usage:            usage.NewTracker(),
		LLM:              llm,
		TTS:              reg,
		WA:               wa,
		Orchestrator:     bc,
		DailyQuota:       3,
		VerifyToken:      "verify-secret",
		BroadcastToken:   "broadcast-secret",
	})
	return &fixture{h: h, llm: llm, wa: wa, bc: bc, voice: voice}
}

func (f *fixture) router() *gin.Engine {
	r := gin.New()
	r.POST("/chat", f.h.Chat)
	r.POST("/voice", f.h.Voice)
	r.GET("/whatsapp-webhook", f.h.WhatsAppVerify)
	r.POST("/whatsapp-webhook", f.h.WhatsAppWebhook)
	r.POST("/broadcast", f.h.Broadcast)
	r.GET("/health", f.h.Health)
	r.GET("/stats", f.h.Stats)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return postRaw(t, r, path, b, header)
}

func postRaw(t *testing.T, r *gin.Engine, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

// chatBody builds the minimal widget payload: one user turn.
func chatBody(msg, session string) ChatRequest {
	return ChatRequest{
		Messages:  []ChatTurn{{Role: "user", Content: msg}},
		SessionID: session,
	}
}

//
// /chat
//

func TestChat_ReturnsReply(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := postJSON(t, r, "/chat", ChatRequest{
		Messages: []ChatTurn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "Bonjour !"},
			{Role: "user", Content: "hello, what recipe can I cook?"},
		},
		Lang:      "en",
		PageTitle: "Tagine de Poulet",
		IsRecipe:  true,
		SessionID: "s1",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "Voici une recette !" {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
	// The composed prompt must carry the cached catalog and the latest user
	// turn, not an older one.
	if f.llm.calls() != 1 || !strings.Contains(f.llm.systems[0], "Tagine de Poulet") {
		t.Fatalf("system prompt missing recipes: %v", f.llm.systems)
	}
}

func TestChat_TranscriptValidation(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	cases := []struct {
		name string
		body []byte
	}{
		{"missing messages", []byte(`{"sessionId":"s1"}`)},
		{"empty messages", []byte(`{"messages":[]}`)},
		{"messages not an array", []byte(`{"messages":"hello"}`)},
		{"no user turn", []byte(`{"messages":[{"role":"assistant","content":"hi"}]}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postRaw(t, r, "/chat", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body=%s)", w.Code, w.Body.String())
			}
			var e ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != ErrCodeBadRequest {
				t.Fatalf("unexpected error body: %s", w.Body.String())
			}
		})
	}
	if f.llm.calls() != 0 {
		t.Fatal("invalid transcripts must not reach the completion upstream")
	}
}

func TestChat_TranscriptOverTurnCap400(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	turns := make([]ChatTurn, maxTranscriptTurns+1)
	for i := range turns {
		turns[i] = ChatTurn{Role: "user", Content: "hi"}
	}
	w := postJSON(t, r, "/chat", ChatRequest{Messages: turns}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if f.llm.calls() != 0 {
		t.Fatal("oversized transcript must not reach the completion upstream")
	}
}

func TestChat_QuotaShortCircuitsUpstream(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	for i := 0; i < 3; i++ {
		if w := postJSON(t, r, "/chat", chatBody("hello recipe please", "s1"), nil); w.Code != http.StatusOK {
			t.Fatalf("message %d status = %d", i+1, w.Code)
		}
	}
	calls := f.llm.calls()

	w := postJSON(t, r, "/chat", chatBody("one more", "s1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("quota response status = %d, want 200", w.Code)
	}
	var resp ChatResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Reply, "limit") && !strings.Contains(resp.Reply, "limite") {
		t.Fatalf("expected quota notice, got %q", resp.Reply)
	}
	if f.llm.calls() != calls {
		t.Fatal("quota-limited request must not reach the completion upstream")
	}
}

func TestChat_QuotaZeroMeansUnlimited(t *testing.T) {
	f := newFixture(t)
	f.h.DailyQuota = 0
	r := f.router()

	for i := 0; i < 6; i++ {
		w := postJSON(t, r, "/chat", chatBody("hello recipe please", "s1"), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("message %d status = %d", i+1, w.Code)
		}
		var resp ChatResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Reply != "Voici une recette !" {
			t.Fatalf("message %d got a non-reply with quota disabled: %q", i+1, resp.Reply)
		}
	}
	if f.llm.calls() != 6 {
		t.Fatalf("every message must reach the upstream with quota disabled, got %d calls", f.llm.calls())
	}
}

func TestChat_LanguageStickyFromContent(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := postJSON(t, r, "/chat", chatBody("bonjour je voudrais une recette", "s2"), nil)
	var resp ChatResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Language != "fr" {
		t.Fatalf("language = %q, want fr", resp.Language)
	}

	// A later English-looking request language must not override the pin.
	req := chatBody("ok", "s2")
	req.Lang = "en"
	w = postJSON(t, r, "/chat", req, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Language != "fr" {
		t.Fatalf("detected language must stay sticky, got %q", resp.Language)
	}
}

func TestChat_UnresolvedLanguageFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	// Nothing to detect, no requested language: the response must still
	// carry a concrete code, never an empty string.
	w := postJSON(t, r, "/chat", chatBody("ok", "s9"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ChatResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Language != "en" {
		t.Fatalf("language = %q, want default en", resp.Language)
	}
}

func TestChat_UpstreamFailureLocalizedApology(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("upstream 503")
	r := f.router()

	w := postJSON(t, r, "/chat", chatBody("bonjour je voudrais une recette", "s3"), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var e ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Code != ErrCodeUpstream {
		t.Fatalf("code = %q, want %q", e.Code, ErrCodeUpstream)
	}
	if strings.Contains(e.Message, "503") {
		t.Fatalf("upstream detail leaked to client: %q", e.Message)
	}
	if !strings.Contains(e.Message, "Désolé") {
		t.Fatalf("expected French apology, got %q", e.Message)
	}
}

//
// /voice
//

func TestVoice_SynthesizesSuppliedText(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := postJSON(t, r, "/voice", VoiceRequest{Text: "hello world", Lang: "en"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "audio/mpeg") {
		t.Fatalf("content type = %q", ct)
	}
	if w.Body.String() != "mp3-bytes" {
		t.Fatalf("unexpected audio body: %q", w.Body.String())
	}
	if f.voice.gotText != "hello world" || f.voice.gotLang != "en" {
		t.Fatalf("synthesized %q/%q, want supplied text verbatim", f.voice.gotText, f.voice.gotLang)
	}
	// Synthesis is text-in, audio-out: no completion call, no conversation.
	if f.llm.calls() != 0 {
		t.Fatal("voice synthesis must not reach the completion upstream")
	}
	if f.h.WebConversations.Len() != 0 {
		t.Fatal("voice synthesis must not create conversation records")
	}
}

func TestVoice_StripsWidgetTags(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := postJSON(t, r, "/voice", VoiceRequest{
		Text: "Try [recipe-card]Tagine|https://site.example/tagine[/recipe-card] tonight",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(f.voice.gotText, "[recipe-card]") {
		t.Fatalf("widget tags must be stripped before synthesis: %q", f.voice.gotText)
	}
	if !strings.Contains(f.voice.gotText, "Tagine: https://site.example/tagine") {
		t.Fatalf("card payload must survive as plain text: %q", f.voice.gotText)
	}
}

func TestVoice_EmptyText400(t *testing.T) {
	f := newFixture(t)
	r := f.router()
	if w := postJSON(t, r, "/voice", VoiceRequest{Lang: "en"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestVoice_UnknownProvider400(t *testing.T) {
	f := newFixture(t)
	r := f.router()
	w := postJSON(t, r, "/voice", VoiceRequest{Text: "hi there", Provider: "nope"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var e ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Code != ErrCodeTTSUnavailable {
		t.Fatalf("code = %q, want %q", e.Code, ErrCodeTTSUnavailable)
	}
}

//
// /whatsapp-webhook
//

func TestWhatsAppVerify_Handshake(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/whatsapp-webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=12345", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "12345" {
		t.Fatalf("handshake failed: %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet,
		"/whatsapp-webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("wrong token status = %d, want 403", w.Code)
	}
}

func webhookPayload(from, name, text string) string {
	return `{"entry":[{"changes":[{"value":{
		"contacts":[{"profile":{"name":"` + name + `"},"wa_id":"` + from + `"}],
		"messages":[{"from":"` + from + `","type":"text","text":{"body":"` + text + `"}}]
	}}]}]}`
}

func postWebhook(t *testing.T, r *gin.Engine, payload string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWhatsAppWebhook_AcknowledgesAndReplies(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := postWebhook(t, r, webhookPayload("33612345678", "Amina", "bonjour je voudrais une recette"))
	if w.Code != http.StatusOK {
		t.Fatalf("webhook must always be acknowledged, got %d", w.Code)
	}

	sent := f.wa.wait(t)
	if !strings.HasPrefix(sent, "33612345678|") {
		t.Fatalf("reply went to wrong number: %q", sent)
	}
	if !strings.Contains(sent, "Voici une recette !") {
		t.Fatalf("unexpected reply body: %q", sent)
	}
}

func TestWhatsAppWebhook_StopKeywordUnsubscribes(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	postWebhook(t, r, webhookPayload("33612345678", "Amina", "STOP"))
	sent := f.wa.wait(t)
	if !strings.Contains(sent, "désinscrit") {
		t.Fatalf("expected French unsubscribe confirmation, got %q", sent)
	}
	if f.llm.calls() != 0 {
		t.Fatal("keyword must not reach the completion upstream")
	}

	rec, ok := f.h.WAConversations.Get("wa:33612345678")
	if !ok || rec.Subscribed {
		t.Fatalf("subscriber flag not cleared: %+v", rec)
	}
}

func TestWhatsAppWebhook_StartKeywordSubscribes(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	postWebhook(t, r, webhookPayload("4915112345678", "Jonas", "START"))
	sent := f.wa.wait(t)
	if !strings.Contains(sent, "angemeldet") {
		t.Fatalf("expected German subscribe confirmation, got %q", sent)
	}
	rec, ok := f.h.WAConversations.Get("wa:4915112345678")
	if !ok || !rec.Subscribed {
		t.Fatalf("subscriber flag not set: %+v", rec)
	}
}

func TestWhatsAppWebhook_StatusEventNoReply(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := postWebhook(t, r, `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.X","status":"delivered"}]}}]}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	select {
	case s := <-f.wa.ch:
		t.Fatalf("status event must not trigger a reply, sent %q", s)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConversationStores_IndependentPerChannel(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	postJSON(t, r, "/chat", chatBody("hello recipe please", "s1"), nil)
	postWebhook(t, r, webhookPayload("33612345678", "Amina", "bonjour je voudrais une recette"))
	f.wa.wait(t)

	if f.h.WebConversations.Len() != 1 {
		t.Fatalf("web store len = %d, want 1", f.h.WebConversations.Len())
	}
	if f.h.WAConversations.Len() != 1 {
		t.Fatalf("whatsapp store len = %d, want 1", f.h.WAConversations.Len())
	}
	if _, ok := f.h.WebConversations.Get("wa:33612345678"); ok {
		t.Fatal("whatsapp identity leaked into the web store")
	}
	if _, ok := f.h.WAConversations.Get("session:s1"); ok {
		t.Fatal("web identity leaked into the whatsapp store")
	}
}

//
// /broadcast
//

func TestBroadcast_RequiresTokenWhenConfigured(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := postJSON(t, r, "/broadcast", broadcast.Request{Type: broadcast.TypeWeeklyRecipes}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestBroadcast_OpenWhenNoTokenConfigured(t *testing.T) {
	f := newFixture(t)
	f.h.BroadcastToken = ""
	r := f.router()

	w := postJSON(t, r, "/broadcast", broadcast.Request{
		Type:        broadcast.TypeWeeklyRecipes,
		Subscribers: []domain.Subscriber{{Phone: "33612345678"}},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unset token must leave the endpoint open, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestBroadcast_RunsAndReportsResult(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := postJSON(t, r, "/broadcast", broadcast.Request{
		Type:        broadcast.TypeWeeklyRecipes,
		Subscribers: []domain.Subscriber{{Phone: "33612345678"}},
	}, map[string]string{"Authorization": "Bearer broadcast-secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var res broadcast.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || res.Sent != 2 || res.Total != 3 {
		t.Fatalf("unexpected result: %s", w.Body.String())
	}
	// Recipe list defaults from the cache when the caller omits it.
	if len(f.bc.got.Recipes) == 0 {
		t.Fatal("expected cached recipes injected into the request")
	}
	if f.bc.got.BotName != "Chef Délice" {
		t.Fatalf("bot name not defaulted from branding: %q", f.bc.got.BotName)
	}
}

func TestBroadcast_UnknownType400(t *testing.T) {
	f := newFixture(t)
	r := f.router()
	w := postJSON(t, r, "/broadcast", broadcast.Request{Type: "monthly"}, map[string]string{"X-Broadcast-Token": "broadcast-secret"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

//
// /health and /stats
//

func TestHealth_ReportsCachesAndConfiguration(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	// Populate the recipe cache first.
	postJSON(t, r, "/chat", chatBody("hello recipe please", "s1"), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Status string `json:"status"`
		Caches map[string]struct {
			Count int    `json:"count"`
			Age   string `json:"age"`
		} `json:"caches"`
		Conversations map[string]int  `json:"conversations"`
		Configured    map[string]bool `json:"configured"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status field = %q", body.Status)
	}
	if body.Caches["recipes"].Count != 2 {
		t.Fatalf("recipes count = %d, want 2", body.Caches["recipes"].Count)
	}
	if body.Conversations["web"] != 1 || body.Conversations["whatsapp"] != 0 {
		t.Fatalf("conversation counts unexpected: %+v", body.Conversations)
	}
	// All fakes report credentials present.
	for _, k := range []string{"llm", "whatsapp", "tts"} {
		if !body.Configured[k] {
			t.Fatalf("configured[%s] = false, want true (flags: %+v)", k, body.Configured)
		}
	}
}

func TestHealth_FlagsUnconfiguredTTS(t *testing.T) {
	f := newFixture(t)
	f.h.TTS = tts.NewRegistry("elevenlabs") // no providers registered
	r := f.router()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body struct {
		Configured map[string]bool `json:"configured"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Configured["tts"] {
		t.Fatal("tts must report unconfigured with no providers registered")
	}
}

func TestStats_CountsChannels(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	postJSON(t, r, "/chat", chatBody("hello recipe please", "s1"), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Channels map[string]struct {
			Today int `json:"today"`
		} `json:"channels"`
		ActiveConversations int `json:"active_conversations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Channels["web"].Today != 1 {
		t.Fatalf("web today = %d, want 1", body.Channels["web"].Today)
	}
	if body.ActiveConversations != 1 {
		t.Fatalf("active conversations = %d, want 1", body.ActiveConversations)
	}
}
