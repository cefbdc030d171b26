// Package config loads gateway settings from the environment.
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

	// Upstream chat completions endpoint and its credential.
	UpstreamChatURL string
	UpstreamAPIKey  string
	Model           string

	// ElevenLabs synthesis credential and default voice.
	ElevenLabsAPIKey string
	DefaultVoiceID   string

	MaxBodyBytes int64
	MaxMessages  int

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => allow any origin

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration

	MetricsNamespace string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("TUTOR_GATEWAY_ADDR", ":8080"),
		UpstreamChatURL:               envOr("TUTOR_UPSTREAM_CHAT_URL", "https://ai.gateway.lovable.dev/v1/chat/completions"),
		UpstreamAPIKey:                strings.TrimSpace(os.Getenv("TUTOR_UPSTREAM_API_KEY")),
		Model:                         envOr("TUTOR_MODEL", "google/gemini-2.5-flash"),
		ElevenLabsAPIKey:              strings.TrimSpace(os.Getenv("TUTOR_ELEVENLABS_API_KEY")),
		DefaultVoiceID:                envOr("TUTOR_VOICE_ID", "EXAVITQu4vr4xnSDxMaL"),
		MaxBodyBytes:                  envInt64Or("TUTOR_GATEWAY_MAX_BODY_BYTES", 1<<20), // 1 MiB
		MaxMessages:                   envIntOr("TUTOR_GATEWAY_MAX_MESSAGES", 200),
		CORSAllowedOrigins:            make(map[string]struct{}),
		ReadHeaderTimeout:             envDurationOr("TUTOR_GATEWAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                   envDurationOr("TUTOR_GATEWAY_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:           envDurationOr("TUTOR_GATEWAY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("TUTOR_GATEWAY_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("TUTOR_GATEWAY_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
		MetricsNamespace:              envOr("TUTOR_GATEWAY_METRICS_NAMESPACE", "tutor"),
	}

	for _, origin := range splitCSV(os.Getenv("TUTOR_GATEWAY_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.UpstreamChatURL) == "" {
		return Config{}, fmt.Errorf("TUTOR_UPSTREAM_CHAT_URL must not be empty")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return Config{}, fmt.Errorf("TUTOR_MODEL must not be empty")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("TUTOR_GATEWAY_MAX_BODY_BYTES must be > 0")
	}
	if cfg.MaxMessages <= 0 {
		return Config{}, fmt.Errorf("TUTOR_GATEWAY_MAX_MESSAGES must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("TUTOR_GATEWAY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("TUTOR_GATEWAY_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("TUTOR_GATEWAY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("TUTOR_GATEWAY_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("TUTOR_GATEWAY_RESPONSE_HEADER_TIMEOUT must be > 0")
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

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
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
