package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/dispute-assistant/internal/common"
)

// Completer returns the text completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Gateway wraps a provider client with rate limiting, caching and bounded retries.
type Gateway struct {
	client      Client
	cache       *responseCache
	rateLimiter *rateLimiter
	logger      *slog.Logger
	retryOpts   common.RetryOptions
	timeout     time.Duration
}

// NewGateway creates a gateway around client. MaxRetries counts attempts after the first.
func NewGateway(client Client, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	return &Gateway{
		client:      client,
		cache:       newResponseCache(cfg.CacheTTL),
		rateLimiter: newRateLimiter(cfg.RateLimit),
		logger:      logger,
		timeout:     timeout,
		retryOpts: common.RetryOptions{
			MaxAttempts:  retries + 1,
			InitialDelay: delay,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Complete returns the provider's answer for req. Failures after the last
// attempt wrap common.ErrModelUnavailable.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	key := cacheKey(req)
	if content, found := g.cache.get(key); found {
		g.logger.Debug("cache hit for prompt", "key", key[:12])
		return content, nil
	}

	var content string
	err := common.WithRetry(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		if err := g.rateLimiter.wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.client.Complete(attemptCtx, req)
		if err != nil {
			if ctx.Err() != nil {
				return &common.RetryableError{Err: ctx.Err(), Retryable: false}
			}
			return err
		}

		content = resp.Content
		return nil
	}, g.retryOpts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrModelUnavailable, err)
	}

	g.cache.set(key, content)
	return content, nil
}

// Close stops background goroutines.
func (g *Gateway) Close() {
	g.cache.Close()
	g.rateLimiter.Close()
}
