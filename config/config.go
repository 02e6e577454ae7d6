package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Probe     ProbeConfig
	Fetch     FetchConfig
	Lexicon   LexiconConfig
	Store     StoreConfig
	History   HistoryConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ProbeConfig controls one probe run.
type ProbeConfig struct {
	// RunTimeout is the top-level deadline for a whole run.
	RunTimeout time.Duration // default: 3m

	// RequestTimeout bounds each individual channel fetch.
	RequestTimeout time.Duration // default: 15s

	// HTTPParallelism bounds the worker pool for HTTP-only channels.
	HTTPParallelism int // default: 3

	// DisableArchive skips the archive channel entirely, for targets
	// that must not be submitted to a third-party service.
	DisableArchive bool // default: false

	// ArchiveBase overrides the snapshot service root.
	ArchiveBase string

	// UserAgents and Referers override the identity-matrix lists.
	UserAgents []string
	Referers   []string
}

// FetchConfig controls the direct HTTP client.
type FetchConfig struct {
	// RequestsPerSecond is the per-host politeness rate.
	RequestsPerSecond float64 // default: 2

	// Burst is the per-host burst allowance.
	Burst int // default: 4
}

// LexiconConfig overrides the built-in paywall-prompt term lists, so
// locale-specific lexicons are swappable without a rebuild.
type LexiconConfig struct {
	PaywallTerms      []string
	SubscriptionTerms []string
}

// StoreConfig controls content-artifact persistence.
type StoreConfig struct {
	// Dir is the artifact directory. Default: XDG data dir.
	Dir string
}

// HistoryConfig controls the run-history database.
type HistoryConfig struct {
	// Enabled toggles run persistence.
	Enabled bool // default: true

	// Path is the SQLite database file. Default: XDG data dir.
	Path string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key API rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the report cache on the API server.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached run reports.
	MaxEntries int // default: 500
}

// WebhookConfig controls run-completion notification delivery.
type WebhookConfig struct {
	// URL receives a POST per completed run when non-empty.
	URL string

	// Secret signs the webhook payload (HMAC-SHA256).
	Secret string

	// Timeout bounds one delivery attempt.
	Timeout time.Duration // default: 10s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("LEAKGATE_HOST", "0.0.0.0"),
			Port: envIntOr("LEAKGATE_PORT", 8080),
			Mode: envOr("LEAKGATE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("LEAKGATE_HEADLESS", true),
			MaxPages:   envIntOr("LEAKGATE_MAX_PAGES", 4),
			Proxy:      os.Getenv("LEAKGATE_PROXY"),
			NoSandbox:  envBoolOr("LEAKGATE_NO_SANDBOX", false),
			BrowserBin: os.Getenv("LEAKGATE_BROWSER_BIN"),
		},
		Probe: ProbeConfig{
			RunTimeout:      envDurationOr("LEAKGATE_RUN_TIMEOUT", 3*time.Minute),
			RequestTimeout:  envDurationOr("LEAKGATE_REQUEST_TIMEOUT", 15*time.Second),
			HTTPParallelism: envIntOr("LEAKGATE_HTTP_PARALLELISM", 3),
			DisableArchive:  envBoolOr("LEAKGATE_DISABLE_ARCHIVE", false),
			ArchiveBase:     os.Getenv("LEAKGATE_ARCHIVE_BASE"),
			UserAgents:      envSliceOr("LEAKGATE_USER_AGENTS", nil),
			Referers:        envSliceOr("LEAKGATE_REFERERS", nil),
		},
		Fetch: FetchConfig{
			RequestsPerSecond: envFloatOr("LEAKGATE_FETCH_RPS", 2.0),
			Burst:             envIntOr("LEAKGATE_FETCH_BURST", 4),
		},
		Lexicon: LexiconConfig{
			PaywallTerms:      envSliceOr("LEAKGATE_PAYWALL_TERMS", nil),
			SubscriptionTerms: envSliceOr("LEAKGATE_SUBSCRIPTION_TERMS", nil),
		},
		Store: StoreConfig{
			Dir: envOr("LEAKGATE_ARTIFACT_DIR",
				filepath.Join(xdg.DataHome, "leakgate", "artifacts")),
		},
		History: HistoryConfig{
			Enabled: envBoolOr("LEAKGATE_HISTORY_ENABLED", true),
			Path: envOr("LEAKGATE_HISTORY_DB",
				filepath.Join(xdg.DataHome, "leakgate", "history.db")),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("LEAKGATE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("LEAKGATE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("LEAKGATE_RATE_RPS", 2.0),
			Burst:             envIntOr("LEAKGATE_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("LEAKGATE_CACHE_MAX_ENTRIES", 500),
		},
		Webhook: WebhookConfig{
			URL:     os.Getenv("LEAKGATE_WEBHOOK_URL"),
			Secret:  os.Getenv("LEAKGATE_WEBHOOK_SECRET"),
			Timeout: envDurationOr("LEAKGATE_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  envOr("LEAKGATE_LOG_LEVEL", "info"),
			Format: envOr("LEAKGATE_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
