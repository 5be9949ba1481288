package module

import (
	"time"

	"devlog/internal/platform/config"
)

// Options carries the enrich knobs; zero values defer to FromConfig/defaults
type Options struct {
	APIKey       string
	BaseURL      string
	ChatModel    string
	EmbedModel   string
	RatePerSec   float64
	Burst        int
	NarrativeTTL time.Duration
	WeeklyTTL    time.Duration
	TopK         int
}

// FromConfig loads options from ENRICH_* env vars
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("ENRICH_")
	return Options{
		APIKey:       c.MayString("API_KEY", ""),
		BaseURL:      c.MayString("BASE_URL", ""),
		ChatModel:    c.MayString("CHAT_MODEL", ""),
		EmbedModel:   c.MayString("EMBED_MODEL", ""),
		RatePerSec:   float64(c.MayInt("RATE_PER_SEC", 2)),
		Burst:        c.MayInt("BURST", 4),
		NarrativeTTL: c.MayDuration("NARRATIVE_TTL", 30*24*time.Hour),
		WeeklyTTL:    c.MayDuration("WEEKLY_TTL", 7*24*time.Hour),
		TopK:         c.MayInt("SIMILAR_TOP_K", 5),
	}
}
