package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")

	// Upstreams
	t.Setenv("CMS_BASE_URL", "https://cms.example/api")
	t.Setenv("RECIPE_CACHE_TTL", "30m")
	t.Setenv("PRODUCT_CACHE_TTL", "2h")
	t.Setenv("BRANDING_CACHE_TTL", "12h")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "test-model")
	t.Setenv("LLM_MAX_TOKENS", "500")
	t.Setenv("LLM_TEMPERATURE", "0.3")
	t.Setenv("LLM_MAX_TURNS", "8")
	t.Setenv("WHATSAPP_PHONE_ID", "12345")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "wa-token")
	t.Setenv("WHATSAPP_VERIFY_TOKEN", "verify-me")

	// Conversation state
	t.Setenv("WEB_CONV_MAX_HISTORY", "30")
	t.Setenv("WEB_CONV_TTL", "3h")
	t.Setenv("WA_CONV_MAX_HISTORY", "40")
	t.Setenv("WA_CONV_TTL", "48h")
	t.Setenv("DAILY_MSG_QUOTA", "25")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_MAX", "x")       // -> default 20
	t.Setenv("RATE_WINDOW", "nope") // -> default 1m

	// Prompt composition
	t.Setenv("RECIPE_DISPLAY_CAP", "40")
	t.Setenv("RECIPE_RECENT_BLOCK", "5")
	t.Setenv("PINNED_RECIPES", " Tagine de Poulet , , Couscous Royal ")

	// Broadcasts
	t.Setenv("BROADCAST_TOKEN", "secret")
	t.Setenv("BROADCAST_LOCK_TTL", "3h")
	t.Setenv("BROADCAST_SEND_DELAY", "250ms")
	t.Setenv("BROADCAST_START_HOUR", "10")
	t.Setenv("BROADCAST_END_HOUR", "20")

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging unexpected: %+v", cfg)
	}

	// Upstreams
	if cfg.CMS.BaseURL != "https://cms.example/api" ||
		cfg.CMS.RecipeTTL != 30*time.Minute ||
		cfg.CMS.ProductTTL != 2*time.Hour ||
		cfg.CMS.BrandingTTL != 12*time.Hour {
		t.Fatalf("cms fields unexpected: %+v", cfg.CMS)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.LLM.Model != "test-model" ||
		cfg.LLM.MaxTokens != 500 || cfg.LLM.Temperature != 0.3 || cfg.LLM.MaxTurns != 8 {
		t.Fatalf("llm fields unexpected: %+v", cfg.LLM)
	}
	if cfg.WhatsApp.PhoneID != "12345" || cfg.WhatsApp.AccessToken != "wa-token" || cfg.WhatsApp.VerifyToken != "verify-me" {
		t.Fatalf("whatsapp fields unexpected: %+v", cfg.WhatsApp)
	}

	// Conversation state
	if cfg.Conversation.Web.MaxHistory != 30 || cfg.Conversation.Web.TTL != 3*time.Hour {
		t.Fatalf("web conversation fields unexpected: %+v", cfg.Conversation.Web)
	}
	if cfg.Conversation.WhatsApp.MaxHistory != 40 || cfg.Conversation.WhatsApp.TTL != 48*time.Hour {
		t.Fatalf("whatsapp conversation fields unexpected: %+v", cfg.Conversation.WhatsApp)
	}
	if cfg.Conversation.DailyQuota != 25 {
		t.Fatalf("daily quota unexpected: %+v", cfg.Conversation)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateMax != 20 || cfg.RateWindow != time.Minute {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Prompt composition
	if cfg.RecipeDisplayCap != 40 || cfg.RecipeRecent != 5 {
		t.Fatalf("prompt fields unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.PinnedRecipes, []string{"Tagine de Poulet", "Couscous Royal"}) {
		t.Fatalf("pinned recipes unexpected: %#v", cfg.PinnedRecipes)
	}

	// Broadcasts
	if cfg.Broadcast.Token != "secret" || cfg.Broadcast.LockTTL != 3*time.Hour ||
		cfg.Broadcast.SendDelay != 250*time.Millisecond ||
		cfg.Broadcast.StartHour != 10 || cfg.Broadcast.EndHour != 20 {
		t.Fatalf("broadcast fields unexpected: %+v", cfg.Broadcast)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	t.Run("invalid LOG_LEVEL", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		if _, err := Load(); err == nil {
			t.Fatalf("expected LOG_LEVEL validation error")
		}
	})
	t.Run("empty PORT via spaces", func(t *testing.T) {
		t.Setenv("PORT", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "PORT must not be empty") {
			t.Fatalf("expected port validation error, got: %v", err)
		}
	})
	t.Run("non-positive timeouts", func(t *testing.T) {
		t.Setenv("READ_TIMEOUT", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "timeouts must be positive") {
			t.Fatalf("expected timeouts validation error, got: %v", err)
		}
	})
	t.Run("max header bytes <= 0", func(t *testing.T) {
		t.Setenv("MAX_HEADER_BYTES", "0")
		if _, err := Load(); err == nil || !containsErr(err, "MAX_HEADER_BYTES") {
			t.Fatalf("expected MAX_HEADER_BYTES validation error, got: %v", err)
		}
	})
	t.Run("non-positive cache TTL", func(t *testing.T) {
		t.Setenv("RECIPE_CACHE_TTL", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "cache TTLs") {
			t.Fatalf("expected cache TTL validation error, got: %v", err)
		}
	})
	t.Run("llm max tokens <= 0", func(t *testing.T) {
		t.Setenv("LLM_MAX_TOKENS", "0")
		if _, err := Load(); err == nil || !containsErr(err, "LLM_MAX_TOKENS") {
			t.Fatalf("expected LLM_MAX_TOKENS validation error, got: %v", err)
		}
	})
	t.Run("temperature out of range", func(t *testing.T) {
		t.Setenv("LLM_TEMPERATURE", "2.5")
		if _, err := Load(); err == nil || !containsErr(err, "LLM_TEMPERATURE") {
			t.Fatalf("expected LLM_TEMPERATURE validation error, got: %v", err)
		}
	})
	t.Run("web history too small", func(t *testing.T) {
		t.Setenv("WEB_CONV_MAX_HISTORY", "1")
		if _, err := Load(); err == nil || !containsErr(err, "WEB_CONV_MAX_HISTORY") {
			t.Fatalf("expected WEB_CONV_MAX_HISTORY validation error, got: %v", err)
		}
	})
	t.Run("whatsapp history too small", func(t *testing.T) {
		t.Setenv("WA_CONV_MAX_HISTORY", "0")
		if _, err := Load(); err == nil || !containsErr(err, "WA_CONV_MAX_HISTORY") {
			t.Fatalf("expected WA_CONV_MAX_HISTORY validation error, got: %v", err)
		}
	})
	t.Run("conversation ttl non-positive", func(t *testing.T) {
		t.Setenv("WA_CONV_TTL", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "conversation TTLs") {
			t.Fatalf("expected conversation TTL validation error, got: %v", err)
		}
	})
	t.Run("quota negative", func(t *testing.T) {
		t.Setenv("DAILY_MSG_QUOTA", "-1")
		if _, err := Load(); err == nil || !containsErr(err, "DAILY_MSG_QUOTA") {
			t.Fatalf("expected DAILY_MSG_QUOTA validation error, got: %v", err)
		}
	})
	t.Run("rate max negative", func(t *testing.T) {
		t.Setenv("RATE_MAX", "-1")
		if _, err := Load(); err == nil || !containsErr(err, "RATE_MAX") {
			t.Fatalf("expected RATE_MAX validation error, got: %v", err)
		}
	})
	t.Run("rate window non-positive", func(t *testing.T) {
		t.Setenv("RATE_WINDOW", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "RATE_WINDOW") {
			t.Fatalf("expected RATE_WINDOW validation error, got: %v", err)
		}
	})
	t.Run("recent block larger than display cap", func(t *testing.T) {
		t.Setenv("RECIPE_DISPLAY_CAP", "10")
		t.Setenv("RECIPE_RECENT_BLOCK", "11")
		if _, err := Load(); err == nil || !containsErr(err, "RECIPE_RECENT_BLOCK") {
			t.Fatalf("expected RECIPE_RECENT_BLOCK validation error, got: %v", err)
		}
	})
	t.Run("broadcast hour out of range", func(t *testing.T) {
		t.Setenv("BROADCAST_START_HOUR", "24")
		if _, err := Load(); err == nil || !containsErr(err, "broadcast hours") {
			t.Fatalf("expected broadcast hours validation error, got: %v", err)
		}
	})
	t.Run("broadcast lock ttl non-positive", func(t *testing.T) {
		t.Setenv("BROADCAST_LOCK_TTL", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "BROADCAST_LOCK_TTL") {
			t.Fatalf("expected BROADCAST_LOCK_TTL validation error, got: %v", err)
		}
	})
	t.Run("hsts max age negative", func(t *testing.T) {
		t.Setenv("HSTS_MAX_AGE", "-1s")
		if _, err := Load(); err == nil || !containsErr(err, "HSTS_MAX_AGE") {
			t.Fatalf("expected HSTS_MAX_AGE validation error, got: %v", err)
		}
	})
	t.Run("otel sample ratio out of range", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1.5")
		if _, err := Load(); err == nil || !containsErr(err, "OTEL_TRACES_SAMPLER_ARG") {
			t.Fatalf("expected OTEL_TRACES_SAMPLER_ARG validation error, got: %v", err)
		}
	})
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + config_strconv(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + config_strconv(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	// default on unset/empty
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	in := " a, ,b ,  c  ,"
	want := []string{"a", "b", "c"}
	if got := splitCSV(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV mismatch: got %#v want %#v", got, want)
	}
}

// small helper (avoid fmt just for ints)
func config_strconv(i int) string { return string('a' + rune(i)) }

// Ensure tests don't leak env to others.
func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}

func TestLoad_Defaults_OptionalCredentialsStayEmpty(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.APIKey != "" || cfg.WhatsApp.AccessToken != "" || cfg.TTS.ElevenLabsKey != "" {
		t.Fatalf("credentials must default to empty: %+v", cfg)
	}
	if cfg.Broadcast.Token != "" {
		t.Fatalf("broadcast token must default to empty")
	}
}

func TestLoad_QuotaZeroDisablesLimit(t *testing.T) {
	t.Setenv("DAILY_MSG_QUOTA", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("quota 0 must be accepted as unlimited, got: %v", err)
	}
	if cfg.Conversation.DailyQuota != 0 {
		t.Fatalf("daily quota = %d, want 0", cfg.Conversation.DailyQuota)
	}
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	// No special env needed; defaults are valid.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.RateWindow <= 0 {
		t.Fatalf("unexpected config from MustLoad: %+v", cfg)
	}
}
