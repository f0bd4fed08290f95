package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the pipeline tunables. Everything is overridable through the
// environment; none of these values is hidden in call sites.
const (
	DefaultConfidenceThreshold = 0.5
	DefaultMaxRetries          = 3
	DefaultRetryBackoff        = 500 * time.Millisecond
	DefaultCallTimeout         = 60 * time.Second
	DefaultProviderOrder       = "openai,gemini"
	DefaultConcurrency         = 2
	DefaultTable               = "events"
	DefaultBucket              = "events"
)

// Config holds everything the pipeline needs from the environment.
type Config struct {
	// SupabaseURL is the project base URL, e.g. https://xyz.supabase.co.
	SupabaseURL string
	// SupabaseKey is the service role key (preferred) or anon key.
	SupabaseKey string
	// GeminiAPIKey authenticates vision classification and the Gemini text
	// provider.
	GeminiAPIKey string
	// OpenAIAPIKey authenticates the OpenAI text provider. Optional when the
	// provider order does not include openai.
	OpenAIAPIKey string

	// ConfidenceThreshold is the classification confidence below which the
	// generated record is flagged for review.
	ConfidenceThreshold float64
	// MaxRetries bounds retries of a transient upstream failure.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration
	// CallTimeout applies per external call, not per run.
	CallTimeout time.Duration
	// ProviderOrder is the text-provider fallback chain, most preferred first.
	ProviderOrder []string
	// Concurrency bounds how many event runs execute at once.
	Concurrency int

	Table  string
	Bucket string
	DBPath string
}

// LoadEnvFile loads environment variables from .env in the working directory.
// Errors are ignored since the file may not exist.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// FromEnv builds a Config from environment variables, applying documented
// defaults for anything unset. It fails when the storage credentials are
// missing.
func FromEnv() (*Config, error) {
	cfg := &Config{
		SupabaseURL:         os.Getenv("SUPABASE_URL"),
		SupabaseKey:         os.Getenv("SUPABASE_SERVICE_ROLE"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MaxRetries:          DefaultMaxRetries,
		RetryBackoff:        DefaultRetryBackoff,
		CallTimeout:         DefaultCallTimeout,
		ProviderOrder:       splitList(DefaultProviderOrder),
		Concurrency:         DefaultConcurrency,
		Table:               DefaultTable,
		Bucket:              DefaultBucket,
		DBPath:              "wav-ingest.db",
	}

	if cfg.SupabaseKey == "" {
		cfg.SupabaseKey = os.Getenv("SUPABASE_ANON_KEY")
	}
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE (or SUPABASE_ANON_KEY) must be set")
	}

	if v := os.Getenv("WAV_CONFIDENCE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, fmt.Errorf("WAV_CONFIDENCE_THRESHOLD must be a float in [0,1], got %q", v)
		}
		cfg.ConfidenceThreshold = f
	}
	if v := os.Getenv("WAV_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("WAV_MAX_RETRIES must be a non-negative integer, got %q", v)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("WAV_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("WAV_RETRY_BACKOFF must be a duration, got %q", v)
		}
		cfg.RetryBackoff = d
	}
	if v := os.Getenv("WAV_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("WAV_CALL_TIMEOUT must be a duration, got %q", v)
		}
		cfg.CallTimeout = d
	}
	if v := os.Getenv("WAV_PROVIDER_ORDER"); v != "" {
		cfg.ProviderOrder = splitList(v)
	}
	if v := os.Getenv("WAV_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("WAV_CONCURRENCY must be a positive integer, got %q", v)
		}
		cfg.Concurrency = n
	}
	if v := os.Getenv("WAV_TABLE"); v != "" {
		cfg.Table = v
	}
	if v := os.Getenv("WAV_BUCKET"); v != "" {
		cfg.Bucket = v
	}
	if v := os.Getenv("WAV_DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
