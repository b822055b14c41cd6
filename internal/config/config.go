package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	ApifyToken   string
	ApifyActorID string
	ApifyBaseURL string

	// Orchestration policy knobs. The quota overhead compensates for
	// providers that under-deliver per page; over-asking one source is
	// cheaper than an extra round trip.
	SourceQuotaOverhead int
	SourcePauseSeconds  int
	RetryAttempts       int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration

	DefaultCountryCode string

	StreamPollInterval time.Duration
	JobRetention       time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func Load() Config {
	cfg := Config{
		AppEnv:   getenv("APP_ENV", "development"),
		HTTPAddr: getenv("HTTP_ADDR", ":8081"),

		ApifyToken:   os.Getenv("APIFY_API_TOKEN"),
		ApifyActorID: getenv("APIFY_ACTOR_ID", "code_crafter~apollo-io-scraper"),
		ApifyBaseURL: getenv("APIFY_BASE_URL", "https://api.apify.com"),

		SourceQuotaOverhead: getenvInt("SOURCE_QUOTA_OVERHEAD", 100),
		SourcePauseSeconds:  getenvInt("SOURCE_PAUSE_SECONDS", 1),
		RetryAttempts:       getenvInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelay:      getenvDuration("RETRY_BASE_DELAY", 2*time.Second),
		RetryMaxDelay:       getenvDuration("RETRY_MAX_DELAY", 10*time.Second),

		DefaultCountryCode: getenv("DEFAULT_COUNTRY_CODE", "1"),

		StreamPollInterval: getenvDuration("STREAM_POLL_INTERVAL", 500*time.Millisecond),
		JobRetention:       getenvDuration("JOB_RETENTION", time.Hour),
	}
	if cfg.HTTPAddr == "" {
		panic(fmt.Errorf("HTTP_ADDR is required"))
	}
	return cfg
}
