// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubAppID       int64
	GitHubPrivateKey  []byte // PEM-encoded RSA private key for the GitHub App.
	WebhookSecret     string
	OpenAIAPIKey      string
	OpenAIModel       string
	ListenAddr        string
	LargeThreshold    int
	HugeThreshold     int
	ReviewConcurrency int
	RequestTimeout    time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. The GitHub App identity (REVIEWHOOK_GITHUB_APP_ID,
// REVIEWHOOK_GITHUB_PRIVATE_KEY or REVIEWHOOK_GITHUB_PRIVATE_KEY_FILE) and
// REVIEWHOOK_WEBHOOK_SECRET are required; secrets have no defaults.
// Optional variables with defaults: REVIEWHOOK_OPENAI_MODEL (gpt-4o-mini),
// REVIEWHOOK_LISTEN_ADDR (127.0.0.1:8080), REVIEWHOOK_LARGE_PR_THRESHOLD (100),
// REVIEWHOOK_HUGE_PR_THRESHOLD (200), REVIEWHOOK_REVIEW_CONCURRENCY (4),
// REVIEWHOOK_REQUEST_TIMEOUT (30s).
func Load() (*Config, error) {
	appIDStr := os.Getenv("REVIEWHOOK_GITHUB_APP_ID")
	if appIDStr == "" {
		return nil, fmt.Errorf("REVIEWHOOK_GITHUB_APP_ID is required")
	}
	appID, err := strconv.ParseInt(appIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("REVIEWHOOK_GITHUB_APP_ID has invalid value %q: %w", appIDStr, err)
	}

	privateKey, err := loadPrivateKey()
	if err != nil {
		return nil, err
	}

	webhookSecret := os.Getenv("REVIEWHOOK_WEBHOOK_SECRET")
	if webhookSecret == "" {
		return nil, fmt.Errorf("REVIEWHOOK_WEBHOOK_SECRET is required")
	}

	openAIKey := os.Getenv("REVIEWHOOK_OPENAI_API_KEY")

	openAIModel := "gpt-4o-mini"
	if v, ok := os.LookupEnv("REVIEWHOOK_OPENAI_MODEL"); ok {
		openAIModel = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("REVIEWHOOK_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	largeThreshold, err := intEnv("REVIEWHOOK_LARGE_PR_THRESHOLD", 100)
	if err != nil {
		return nil, err
	}

	hugeThreshold, err := intEnv("REVIEWHOOK_HUGE_PR_THRESHOLD", 200)
	if err != nil {
		return nil, err
	}

	concurrency, err := intEnv("REVIEWHOOK_REVIEW_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("REVIEWHOOK_REVIEW_CONCURRENCY must be at least 1, got %d", concurrency)
	}

	requestTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("REVIEWHOOK_REQUEST_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("REVIEWHOOK_REQUEST_TIMEOUT has invalid duration %q: %w", v, err)
		}
		requestTimeout = parsed
	}

	return &Config{
		GitHubAppID:       appID,
		GitHubPrivateKey:  privateKey,
		WebhookSecret:     webhookSecret,
		OpenAIAPIKey:      openAIKey,
		OpenAIModel:       openAIModel,
		ListenAddr:        listenAddr,
		LargeThreshold:    largeThreshold,
		HugeThreshold:     hugeThreshold,
		ReviewConcurrency: concurrency,
		RequestTimeout:    requestTimeout,
	}, nil
}

// loadPrivateKey reads the App private key from REVIEWHOOK_GITHUB_PRIVATE_KEY
// (inline PEM) or REVIEWHOOK_GITHUB_PRIVATE_KEY_FILE (path). The inline
// variable wins when both are set.
func loadPrivateKey() ([]byte, error) {
	if v := os.Getenv("REVIEWHOOK_GITHUB_PRIVATE_KEY"); v != "" {
		return []byte(v), nil
	}

	if path := os.Getenv("REVIEWHOOK_GITHUB_PRIVATE_KEY_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading REVIEWHOOK_GITHUB_PRIVATE_KEY_FILE: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("REVIEWHOOK_GITHUB_PRIVATE_KEY or REVIEWHOOK_GITHUB_PRIVATE_KEY_FILE is required")
}

// intEnv reads an integer environment variable with a default.
func intEnv(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid value %q: %w", key, v, err)
	}
	return n, nil
}
