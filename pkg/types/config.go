package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the upper bound for one request; a request that exceeds it
	// fails as a network error.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "okr-evaluator/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// DefaultTimeout is used when HTTPConfig.Timeout is not set.
const DefaultTimeout = 20 * time.Second

// ClientConfig holds settings for the evaluation service client.
type ClientConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the service root, e.g. "http://localhost:8000". API paths
	// (/api/v1/okrs/...) are appended to it.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// CacheSize bounds the number of objectives kept by FetchObjective (default 64).
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// MaxRetries is the number of 429 retries for list requests (default 3).
	// Evaluation requests are never retried.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// HistoryConfig holds settings for the local evaluation history.
type HistoryConfig struct {
	// Enabled controls whether evaluations are recorded locally.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the directory holding history.db.
	Dir string `json:"dir" yaml:"dir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default warn).
	Level string `json:"level" yaml:"level"`
}

// AppConfig groups all configuration for the CLI.
type AppConfig struct {
	Client  ClientConfig  `json:"api" yaml:"api"`
	History HistoryConfig `json:"history" yaml:"history"`
	Log     LogConfig     `json:"log" yaml:"log"`
}
