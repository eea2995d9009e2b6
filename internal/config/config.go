// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, upstream endpoints, cache TTLs, conversation
// limits, rate limiting, broadcast windows, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/younesbotola/mdr-chatbot-server/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "mdr-chatbot-server")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CMSConfig points at the content API serving recipes, products, and branding.
type CMSConfig struct {
	BaseURL     string        // CMS_BASE_URL
	Timeout     time.Duration // CMS_TIMEOUT
	RecipeTTL   time.Duration // RECIPE_CACHE_TTL
	ProductTTL  time.Duration // PRODUCT_CACHE_TTL
	BrandingTTL time.Duration // BRANDING_CACHE_TTL
}

// LLMConfig configures the chat-completion upstream.
type LLMConfig struct {
	BaseURL     string        // LLM_BASE_URL (OpenAI-compatible)
	APIKey      string        // LLM_API_KEY
	Model       string        // LLM_MODEL
	MaxTokens   int           // LLM_MAX_TOKENS
	Temperature float64       // LLM_TEMPERATURE
	MaxTurns    int           // LLM_MAX_TURNS sent upstream per request
	Timeout     time.Duration // LLM_TIMEOUT
}

// TTSConfig holds credentials for the speech-synthesis providers.
type TTSConfig struct {
	ElevenLabsKey   string // ELEVENLABS_API_KEY
	ElevenLabsVoice string // ELEVENLABS_VOICE_ID
	OpenAIKey       string // OPENAI_API_KEY (speech endpoint)
	Timeout         time.Duration
}

// WhatsAppConfig holds messaging-platform credentials.
type WhatsAppConfig struct {
	BaseURL     string // WHATSAPP_BASE_URL
	PhoneID     string // WHATSAPP_PHONE_ID
	AccessToken string // WHATSAPP_ACCESS_TOKEN
	VerifyToken string // WHATSAPP_VERIFY_TOKEN for the webhook handshake
	Timeout     time.Duration
}

// ChannelStoreConfig bounds one channel's conversation store.
type ChannelStoreConfig struct {
	MaxHistory int           // messages retained per identity
	TTL        time.Duration // idle time before an identity is evicted
}

// ConversationConfig bounds per-identity conversation state. Web and
// WhatsApp keep separate stores: web sessions are throwaway browser tabs
// while WhatsApp threads span days, so their caps and TTLs differ.
type ConversationConfig struct {
	Web        ChannelStoreConfig // WEB_CONV_MAX_HISTORY / WEB_CONV_TTL
	WhatsApp   ChannelStoreConfig // WA_CONV_MAX_HISTORY / WA_CONV_TTL
	DailyQuota int                // DAILY_MSG_QUOTA user messages per UTC day, 0 = unlimited
}

// BroadcastConfig controls outbound campaign behavior.
type BroadcastConfig struct {
	Token     string        // BROADCAST_TOKEN shared secret for /broadcast
	LockTTL   time.Duration // BROADCAST_LOCK_TTL duplicate-suppression window
	SendDelay time.Duration // BROADCAST_SEND_DELAY between sends
	StartHour int           // BROADCAST_START_HOUR local-time window start
	EndHour   int           // BROADCAST_END_HOUR local-time window end
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Upstreams
	CMS      CMSConfig
	LLM      LLMConfig
	TTS      TTSConfig
	WhatsApp WhatsAppConfig

	// Conversation state
	Conversation ConversationConfig

	// Rate limiting: fixed window per client address.
	RateMax    int           // RATE_MAX requests per window (0 disables)
	RateWindow time.Duration // RATE_WINDOW

	// Prompt composition
	RecipeDisplayCap int      // RECIPE_DISPLAY_CAP recipes shown per prompt
	RecipeRecent     int      // RECIPE_RECENT_BLOCK newest recipes always shown
	PinnedRecipes    []string // PINNED_RECIPES comma-separated titles

	// Broadcasts
	Broadcast BroadcastConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		CMS: CMSConfig{
			BaseURL:     getenv("CMS_BASE_URL", ""),
			Timeout:     getdur("CMS_TIMEOUT", 10*time.Second),
			RecipeTTL:   getdur("RECIPE_CACHE_TTL", time.Hour),
			ProductTTL:  getdur("PRODUCT_CACHE_TTL", 6*time.Hour),
			BrandingTTL: getdur("BRANDING_CACHE_TTL", 24*time.Hour),
		},
		LLM: LLMConfig{
			BaseURL:     getenv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getenv("LLM_API_KEY", ""),
			Model:       getenv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getint("LLM_MAX_TOKENS", 700),
			Temperature: getfloat("LLM_TEMPERATURE", 0.7),
			MaxTurns:    getint("LLM_MAX_TURNS", 12),
			Timeout:     getdur("LLM_TIMEOUT", 45*time.Second),
		},
		TTS: TTSConfig{
			ElevenLabsKey:   getenv("ELEVENLABS_API_KEY", ""),
			ElevenLabsVoice: getenv("ELEVENLABS_VOICE_ID", ""),
			OpenAIKey:       getenv("OPENAI_API_KEY", ""),
			Timeout:         getdur("TTS_TIMEOUT", 30*time.Second),
		},
		WhatsApp: WhatsAppConfig{
			BaseURL:     getenv("WHATSAPP_BASE_URL", "https://graph.facebook.com/v19.0"),
			PhoneID:     getenv("WHATSAPP_PHONE_ID", ""),
			AccessToken: getenv("WHATSAPP_ACCESS_TOKEN", ""),
			VerifyToken: getenv("WHATSAPP_VERIFY_TOKEN", ""),
			Timeout:     getdur("WHATSAPP_TIMEOUT", 15*time.Second),
		},

		Conversation: ConversationConfig{
			Web: ChannelStoreConfig{
				MaxHistory: getint("WEB_CONV_MAX_HISTORY", 20),
				TTL:        getdur("WEB_CONV_TTL", 6*time.Hour),
			},
			WhatsApp: ChannelStoreConfig{
				MaxHistory: getint("WA_CONV_MAX_HISTORY", 30),
				TTL:        getdur("WA_CONV_TTL", 24*time.Hour),
			},
			DailyQuota: getint("DAILY_MSG_QUOTA", 40),
		},

		RateMax:    getint("RATE_MAX", 20),
		RateWindow: getdur("RATE_WINDOW", time.Minute),

		RecipeDisplayCap: getint("RECIPE_DISPLAY_CAP", 60),
		RecipeRecent:     getint("RECIPE_RECENT_BLOCK", 10),
		PinnedRecipes:    splitCSV(getenv("PINNED_RECIPES", "")),

		Broadcast: BroadcastConfig{
			Token:     getenv("BROADCAST_TOKEN", ""),
			LockTTL:   getdur("BROADCAST_LOCK_TTL", 6*time.Hour),
			SendDelay: getdur("BROADCAST_SEND_DELAY", 500*time.Millisecond),
			StartHour: getint("BROADCAST_START_HOUR", 9),
			EndHour:   getint("BROADCAST_END_HOUR", 21),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "mdr-chatbot-server"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.CMS.RecipeTTL <= 0 || cfg.CMS.ProductTTL <= 0 || cfg.CMS.BrandingTTL <= 0 {
		return cfg, errors.New("cache TTLs must be positive durations")
	}
	if cfg.LLM.MaxTokens <= 0 {
		return cfg, errors.New("LLM_MAX_TOKENS must be > 0")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return cfg, errors.New("LLM_TEMPERATURE must be in [0,2]")
	}
	if cfg.LLM.MaxTurns < 1 {
		return cfg, errors.New("LLM_MAX_TURNS must be >= 1")
	}
	if cfg.Conversation.Web.MaxHistory < 2 {
		return cfg, errors.New("WEB_CONV_MAX_HISTORY must be >= 2")
	}
	if cfg.Conversation.WhatsApp.MaxHistory < 2 {
		return cfg, errors.New("WA_CONV_MAX_HISTORY must be >= 2")
	}
	if cfg.Conversation.Web.TTL <= 0 || cfg.Conversation.WhatsApp.TTL <= 0 {
		return cfg, errors.New("conversation TTLs must be positive durations")
	}
	if cfg.Conversation.DailyQuota < 0 {
		return cfg, errors.New("DAILY_MSG_QUOTA must be >= 0 (0 disables the quota)")
	}
	if cfg.RateMax < 0 {
		return cfg, errors.New("RATE_MAX must be >= 0")
	}
	if cfg.RateWindow <= 0 {
		return cfg, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.RecipeDisplayCap < 1 {
		return cfg, errors.New("RECIPE_DISPLAY_CAP must be >= 1")
	}
	if cfg.RecipeRecent < 0 || cfg.RecipeRecent > cfg.RecipeDisplayCap {
		return cfg, errors.New("RECIPE_RECENT_BLOCK must be in [0, RECIPE_DISPLAY_CAP]")
	}
	if cfg.Broadcast.LockTTL <= 0 {
		return cfg, errors.New("BROADCAST_LOCK_TTL must be > 0")
	}
	if cfg.Broadcast.StartHour < 0 || cfg.Broadcast.StartHour > 23 ||
		cfg.Broadcast.EndHour < 0 || cfg.Broadcast.EndHour > 23 {
		return cfg, errors.New("broadcast hours must be in [0,23]")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	if sysutil.IsTruthy(v) {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "n", "off":
		return false
	}
	// Unrecognized values keep the default rather than silently flipping off.
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
