package llm

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/billsplit/internal/service"
)

// Provider names accepted by NewClient.
const (
	ProviderOpenAI = "openai"
	ProviderASI1   = "asi1"
	ProviderGemini = "gemini"
)

// NewClient creates an LLM client for the configured provider, wrapped with
// rate limiting, retries on transient failures and a per-call timeout.
func NewClient(cfg Config, logger *slog.Logger) (*ResilientClient, error) {
	provider := strings.ToLower(cfg.Provider)

	var client Client
	var err error
	switch provider {
	case ProviderOpenAI, ProviderASI1:
		client, err = newOpenAIClient(cfg)
	case ProviderGemini:
		client, err = newGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return NewResilientClient(client, provider, retryOpts, cfg.Timeout, cfg.RateLimit, logger), nil
}
