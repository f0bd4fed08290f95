package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE", "service-role-key")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := FromEnv()
	assert.Nil(t, err)
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, "service-role-key", cfg.SupabaseKey)
	assert.Equal(t, DefaultConfidenceThreshold, cfg.ConfidenceThreshold)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryBackoff, cfg.RetryBackoff)
	assert.Equal(t, DefaultCallTimeout, cfg.CallTimeout)
	assert.Equal(t, []string{"openai", "gemini"}, cfg.ProviderOrder)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, "events", cfg.Table)
	assert.Equal(t, "events", cfg.Bucket)
}

func TestFromEnvMissingCredentials(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_ROLE", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	_, err := FromEnv()
	assert.NotNil(t, err)
}

func TestFromEnvAnonKeyFallback(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE", "")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")

	cfg, err := FromEnv()
	assert.Nil(t, err)
	assert.Equal(t, "anon-key", cfg.SupabaseKey)
}

func TestFromEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WAV_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("WAV_MAX_RETRIES", "5")
	t.Setenv("WAV_RETRY_BACKOFF", "2s")
	t.Setenv("WAV_CALL_TIMEOUT", "90s")
	t.Setenv("WAV_PROVIDER_ORDER", "gemini, openai")
	t.Setenv("WAV_CONCURRENCY", "4")
	t.Setenv("WAV_TABLE", "eventos")
	t.Setenv("WAV_BUCKET", "media")

	cfg, err := FromEnv()
	assert.Nil(t, err)
	assert.Equal(t, 0.75, cfg.ConfidenceThreshold)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoff)
	assert.Equal(t, 90*time.Second, cfg.CallTimeout)
	assert.Equal(t, []string{"gemini", "openai"}, cfg.ProviderOrder)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "eventos", cfg.Table)
	assert.Equal(t, "media", cfg.Bucket)
}

func TestFromEnvInvalidValues(t *testing.T) {
	tests := map[string]struct {
		key   string
		value string
	}{
		"threshold not a float":  {"WAV_CONFIDENCE_THRESHOLD", "high"},
		"threshold out of range": {"WAV_CONFIDENCE_THRESHOLD", "1.5"},
		"negative retries":       {"WAV_MAX_RETRIES", "-1"},
		"bad backoff":            {"WAV_RETRY_BACKOFF", "soon"},
		"zero concurrency":       {"WAV_CONCURRENCY", "0"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := FromEnv()
			assert.NotNil(t, err)
		})
	}
}
