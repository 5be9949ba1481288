package module

import (
	"devlog/internal/platform/config"
)

// Options controls ingest behavior
type Options struct {
	// WebhookSecret is the shared HMAC secret for inbound deliveries
	// empty means every delivery is rejected, which is the safe default
	WebhookSecret string

	// APIToken guards the repository management routes when set
	APIToken string
}

// FromConfig reads INGEST_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	ic := cfg.Prefix("INGEST_")
	return Options{
		WebhookSecret: ic.MayString("WEBHOOK_SECRET", ""),
		APIToken:      ic.MayString("API_TOKEN", ""),
	}
}
