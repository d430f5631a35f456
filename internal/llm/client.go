package llm

import (
	"context"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is a single prompt sent to a provider.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Response contains the raw text returned by a provider.
type Response struct {
	Content string
}

// Config holds configuration for LLM providers and the gateway around them.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string // Overrides the provider endpoint, used by tests and proxies
	Timeout     time.Duration
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	MaxRetries  int
	RateLimit   int
	MaxTokens   int
	Temperature float64
}

// Default gateway settings.
const (
	DefaultTimeout    = 20 * time.Second
	DefaultMaxRetries = 1
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultCacheTTL   = 15 * time.Minute
)
