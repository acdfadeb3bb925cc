package enrichment

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-social/pkg/utilities"
)

type Config struct {
	APIKey      string
	GeoURL      string
	HolidayURL  string
	Workers     int
	QueueSize   int
	Timeout     time.Duration
	RetryBase   time.Duration
	MaxRetries  uint64
	RedisURL    string
	GeoCacheTTL time.Duration
}

// ConfigFromEnv reads the lookup endpoints, worker sizing and the optional
// Redis cache location.
func ConfigFromEnv() Config {
	return Config{
		APIKey:      utilities.EnvString("ABSTRACT_API_KEY", ""),
		GeoURL:      utilities.EnvString("GEO_API_URL", "https://ipgeolocation.abstractapi.com/v1"),
		HolidayURL:  utilities.EnvString("HOLIDAY_API_URL", "https://holidays.abstractapi.com/v1"),
		Workers:     utilities.EnvInt("ENRICH_WORKERS", 2),
		QueueSize:   utilities.EnvInt("ENRICH_QUEUE", 64),
		Timeout:     utilities.EnvDuration("ENRICH_TIMEOUT", 10*time.Second),
		RetryBase:   utilities.EnvDuration("ENRICH_RETRY_BASE", 500*time.Millisecond),
		MaxRetries:  uint64(utilities.EnvInt("ENRICH_MAX_RETRIES", 3)),
		RedisURL:    utilities.EnvString("REDIS_URL", ""),
		GeoCacheTTL: utilities.EnvDuration("GEO_CACHE_TTL", 24*time.Hour),
	}
}
