package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Identity provider (Supabase) settings.
	SupabaseJWTSecret string
	JWTAudience       string

	// Profile store.
	DatabaseURL     string
	DatabaseMigrate bool

	// Voice agent provider.
	ElevenLabsAPIKey  string
	ElevenLabsAgentID string
	ElevenLabsVoiceID string
	ElevenLabsBaseURL string

	// Lifetime of a minted, unredeemed session credential. Clamped to
	// [30s, 10m] so a misconfigured deployment cannot mint near-immortal
	// or instantly-dead credentials.
	SessionTTL time.Duration

	// PublicWSBase overrides the scheme://host used when building the
	// socket upgrade URL returned to clients; empty derives it from the
	// request.
	PublicWSBase string

	// CORS allowlist; empty => disabled.
	CORSAllowedOrigins map[string]struct{}

	// Cap on inbound frames from the agent socket.
	UpstreamMaxMessageBytes int64

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP/WS client defaults.
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

const (
	minSessionTTL = 30 * time.Second
	maxSessionTTL = 10 * time.Minute
)

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("CONVO_ADDR", ":8080"),
		SupabaseJWTSecret:             strings.TrimSpace(os.Getenv("CONVO_SUPABASE_JWT_SECRET")),
		JWTAudience:                   envOr("CONVO_JWT_AUDIENCE", "authenticated"),
		DatabaseURL:                   strings.TrimSpace(os.Getenv("CONVO_DATABASE_URL")),
		DatabaseMigrate:               envBoolOr("CONVO_DATABASE_MIGRATE", false),
		ElevenLabsAPIKey:              strings.TrimSpace(os.Getenv("CONVO_ELEVENLABS_API_KEY")),
		ElevenLabsAgentID:             strings.TrimSpace(os.Getenv("CONVO_ELEVENLABS_AGENT_ID")),
		ElevenLabsVoiceID:             strings.TrimSpace(os.Getenv("CONVO_ELEVENLABS_VOICE_ID")),
		ElevenLabsBaseURL:             envOr("CONVO_ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		SessionTTL:                    envDurationOr("CONVO_SESSION_TTL", 2*time.Minute),
		PublicWSBase:                  strings.TrimSpace(os.Getenv("CONVO_PUBLIC_WS_BASE")),
		CORSAllowedOrigins:            make(map[string]struct{}),
		UpstreamMaxMessageBytes:       envInt64Or("CONVO_UPSTREAM_MAX_MESSAGE_BYTES", 16<<20), // 16 MiB
		ReadHeaderTimeout:             envDurationOr("CONVO_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:           envDurationOr("CONVO_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("CONVO_CONNECT_TIMEOUT", 10*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("CONVO_RESPONSE_HEADER_TIMEOUT", 20*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("CONVO_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.SupabaseJWTSecret == "" {
		return Config{}, fmt.Errorf("CONVO_SUPABASE_JWT_SECRET must be set")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("CONVO_DATABASE_URL must be set")
	}
	if cfg.ElevenLabsAPIKey == "" {
		return Config{}, fmt.Errorf("CONVO_ELEVENLABS_API_KEY must be set")
	}
	if cfg.ElevenLabsAgentID == "" {
		return Config{}, fmt.Errorf("CONVO_ELEVENLABS_AGENT_ID must be set")
	}
	if strings.TrimSpace(cfg.ElevenLabsBaseURL) == "" {
		return Config{}, fmt.Errorf("CONVO_ELEVENLABS_BASE_URL must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("CONVO_SESSION_TTL must be > 0")
	}
	if cfg.SessionTTL < minSessionTTL {
		cfg.SessionTTL = minSessionTTL
	}
	if cfg.SessionTTL > maxSessionTTL {
		cfg.SessionTTL = maxSessionTTL
	}
	if cfg.UpstreamMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("CONVO_UPSTREAM_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CONVO_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CONVO_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("CONVO_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CONVO_RESPONSE_HEADER_TIMEOUT must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
