package token

import (
	"errors"
	"time"

	"github.com/ovaphlow/pitchfork/service-social/pkg/utilities"
)

const devSigningKey = "dev-only-signing-key-change-me"

type Config struct {
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RenewalLookAhead is how far ahead of expiry a presented access token is
	// replaced. It is longer than AccessTTL, so every authenticated request
	// slides the pair forward.
	RenewalLookAhead time.Duration
}

// ConfigFromEnv reads AUTH_* variables. The signing key falls back to a fixed
// development value only when LOG_DEV=1.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		SigningKey:       utilities.EnvString("AUTH_SIGNING_KEY", ""),
		AccessTTL:        utilities.EnvDuration("AUTH_ACCESS_TTL", 5*time.Minute),
		RefreshTTL:       utilities.EnvDuration("AUTH_REFRESH_TTL", 24*time.Hour),
		RenewalLookAhead: utilities.EnvDuration("AUTH_RENEWAL_LOOKAHEAD", 6*time.Hour),
	}
	if cfg.SigningKey == "" {
		if utilities.EnvString("LOG_DEV", "") != "1" {
			return Config{}, errors.New("AUTH_SIGNING_KEY is required")
		}
		cfg.SigningKey = devSigningKey
	}
	return cfg, nil
}
