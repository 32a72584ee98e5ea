package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/metrics"
	"github.com/Veraticus/billsplit/internal/service"
)

// ResilientClient decorates a provider client with rate limiting, retries and
// a deadline on each attempt.
type ResilientClient struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	provider    string
	retryOpts   service.RetryOptions
	timeout     time.Duration
}

// NewResilientClient wraps client. A zero timeout defaults to 60s.
func NewResilientClient(client Client, provider string, retryOpts service.RetryOptions, timeout time.Duration, rateLimit int, logger *slog.Logger) *ResilientClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientClient{
		client:      client,
		logger:      logger,
		provider:    provider,
		retryOpts:   retryOpts,
		timeout:     timeout,
		rateLimiter: newRateLimiter(rateLimit),
	}
}

// Complete implements Client.
func (c *ResilientClient) Complete(ctx context.Context, req Request) (string, error) {
	var text string
	err := common.WithRetry(ctx, func() error {
		if err := c.rateLimiter.wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		out, err := c.client.Complete(callCtx, req)
		metrics.ObserveLLMCall(c.provider, time.Since(start), err)
		if err != nil {
			c.logger.Debug("LLM call failed", "provider", c.provider, "error", err)
			return err
		}
		text = out
		return nil
	}, c.retryOpts)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Close stops the rate limiter's refill goroutine.
func (c *ResilientClient) Close() error {
	c.rateLimiter.Close()
	return nil
}
