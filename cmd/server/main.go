// Command server runs the recipe-site chatbot backend: web chat, voice
// replies, the WhatsApp webhook, and operator-triggered broadcasts behind a
// single Gin engine.
//
// Startup order:
//  1. Load .env (best effort) and the validated configuration
//  2. Configure zerolog (level, optional pretty console)
//  3. Set up OpenTelemetry tracing (no-op unless enabled)
//  4. Build upstream clients, caches, and in-memory state
//  5. Serve HTTP with graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/younesbotola/mdr-chatbot-server/internal/broadcast"
	"github.com/younesbotola/mdr-chatbot-server/internal/cache"
	"github.com/younesbotola/mdr-chatbot-server/internal/cms"
	"github.com/younesbotola/mdr-chatbot-server/internal/config"
	"github.com/younesbotola/mdr-chatbot-server/internal/conversation"
	httpapi "github.com/younesbotola/mdr-chatbot-server/internal/http"
	"github.com/younesbotola/mdr-chatbot-server/internal/http/handlers"
	"github.com/younesbotola/mdr-chatbot-server/internal/llm"
	"github.com/younesbotola/mdr-chatbot-server/internal/observability"
	"github.com/younesbotola/mdr-chatbot-server/internal/prompt"
	"github.com/younesbotola/mdr-chatbot-server/internal/sysutil"
	"github.com/younesbotola/mdr-chatbot-server/internal/tts"
	"github.com/younesbotola/mdr-chatbot-server/internal/usage"
	"github.com/younesbotola/mdr-chatbot-server/internal/whatsapp"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

const sweepInterval = 5 * time.Minute

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Content caches over the site CMS. Each collection refreshes lazily on
	// its own TTL and keeps serving stale data when the CMS is down.
	cmsClient := cms.New(cfg.CMS.BaseURL, cfg.CMS.Timeout)
	recipes := cache.NewCollection("recipes", cfg.CMS.RecipeTTL, cmsClient.FetchRecipes)
	products := cache.NewCollection("products", cfg.CMS.ProductTTL, cmsClient.FetchProducts)
	branding := cache.NewCollection("branding", cfg.CMS.BrandingTTL, cmsClient.FetchBranding)

	// One conversation store per channel, each with its own history cap and
	// TTL, plus the background sweepers that evict idle entries.
	webConvs := conversation.NewStore(cfg.Conversation.Web.MaxHistory, cfg.Conversation.Web.TTL)
	waConvs := conversation.NewStore(cfg.Conversation.WhatsApp.MaxHistory, cfg.Conversation.WhatsApp.TTL)
	sweepStop := make(chan struct{})
	webConvs.StartSweeper(sweepInterval, sweepStop)
	waConvs.StartSweeper(sweepInterval, sweepStop)
	defer close(sweepStop)

	completer := llm.New(
		cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model,
		cfg.LLM.MaxTokens, cfg.LLM.MaxTurns, cfg.LLM.Temperature, cfg.LLM.Timeout,
	)
	if !completer.Configured() {
		log.Warn().Msg("LLM_API_KEY not set; completions will fail")
	}

	voices := tts.NewRegistry("elevenlabs")
	voices.Register("elevenlabs", tts.NewElevenLabs(cfg.TTS.ElevenLabsKey, cfg.TTS.ElevenLabsVoice, cfg.TTS.Timeout))
	voices.Register("openai", tts.NewOpenAI(cfg.TTS.OpenAIKey, cfg.LLM.BaseURL, cfg.TTS.Timeout))

	messenger := whatsapp.New(cfg.WhatsApp.BaseURL, cfg.WhatsApp.PhoneID, cfg.WhatsApp.AccessToken, cfg.WhatsApp.Timeout)
	if !messenger.Configured() {
		log.Warn().Msg("WhatsApp credentials not set; outbound messages disabled")
	}

	orchestrator := broadcast.New(
		completer, messenger,
		cfg.Broadcast.LockTTL, cfg.Broadcast.SendDelay,
		cfg.Broadcast.StartHour, cfg.Broadcast.EndHour,
	)

	h := handlers.New(handlers.Handlers{
		Recipes:          recipes,
		Products:         products,
		Branding:         branding,
		WebConversations: webConvs,
		WAConversations:  waConvs,
		Composer:         prompt.New(cfg.RecipeDisplayCap, cfg.RecipeRecent),
		Usage:            usage.NewTracker(),
		LLM:              completer,
		TTS:              voices,
		WA:               messenger,
		Orchestrator:     orchestrator,
		DailyQuota:       cfg.Conversation.DailyQuota,
		PinnedRecipes:    cfg.PinnedRecipes,
		VerifyToken:      cfg.WhatsApp.VerifyToken,
		BroadcastToken:   cfg.Broadcast.Token,
	})

	// Warm the recipe cache so the first visitor does not pay the CMS fetch.
	// Failures are logged by the cache itself and retried lazily.
	warmCtx, warmCancel := context.WithTimeout(ctx, cfg.CMS.Timeout)
	recipes.Get(warmCtx)
	warmCancel()

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, h, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("version", version).
			Str("addr", srv.Addr).
			Int("cached_recipes", recipes.Len()).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	// In-flight webhook goroutines get the same grace period as open sockets.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Int("active_conversations", webConvs.Len()+waConvs.Len()).Msg("server stopped")
}
