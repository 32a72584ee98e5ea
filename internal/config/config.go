package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
)

// Config is the typed view of the application settings.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Gemini    ProviderConfig  `mapstructure:"gemini"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Splitter  SplitterConfig  `mapstructure:"splitter"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr    string   `mapstructure:"addr"`
	CertDir string   `mapstructure:"cert_dir"`
	Hosts   []string `mapstructure:"hosts"`
	TLS     bool     `mapstructure:"tls"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProviderConfig holds one LLM provider's credentials and model settings.
type ProviderConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	AccessToken string  `mapstructure:"access_token"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMConfig configures the text models used for routing, splitting and chat
// normalization, plus the resilience settings shared by every provider.
type LLMConfig struct {
	OpenAI     ProviderConfig `mapstructure:"openai"`
	ASI1       ProviderConfig `mapstructure:"asi1"`
	Provider   string         `mapstructure:"provider"`
	Timeout    time.Duration  `mapstructure:"timeout"`
	RetryDelay time.Duration  `mapstructure:"retry_delay"`
	MaxRetries int            `mapstructure:"max_retries"`
	RateLimit  int            `mapstructure:"rate_limit"`
}

// AgentsConfig addresses the pipeline actors. An http(s) address is reached
// over HTTP; anything else is an in-process mailbox name.
type AgentsConfig struct {
	Router             string        `mapstructure:"router"`
	Extractor          string        `mapstructure:"extractor"`
	Splitter           string        `mapstructure:"splitter"`
	MailboxSize        int           `mapstructure:"mailbox_size"`
	ResponseTTL        time.Duration `mapstructure:"response_ttl"`
	CorrelationTimeout time.Duration `mapstructure:"correlation_timeout"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

// SplitterConfig tunes the bill splitter.
type SplitterConfig struct {
	DefaultRules   string `mapstructure:"default_rules"`
	OutputPath     string `mapstructure:"output_path"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	DefaultSplitID int64  `mapstructure:"default_split_id"`
}

// ExtractorConfig tunes bill image download.
type ExtractorConfig struct {
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
}

// SetDefaults registers every key with its default so that environment
// variables are honored by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", "$HOME/.local/share/billsplit/certs")
	v.SetDefault("server.hosts", []string{"localhost", "127.0.0.1", "::1"})
	v.SetDefault("database.path", "$HOME/.local/share/billsplit/billsplit.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("llm.provider", llm.ProviderOpenAI)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.rate_limit", 60)
	for _, p := range []string{"llm.openai", "llm.asi1", "gemini"} {
		v.SetDefault(p+".api_key", "")
		v.SetDefault(p+".access_token", "")
		v.SetDefault(p+".base_url", "")
		v.SetDefault(p+".model", "")
		v.SetDefault(p+".temperature", 0.0)
		v.SetDefault(p+".max_tokens", 0)
	}

	v.SetDefault("agents.router", "router")
	v.SetDefault("agents.extractor", "extractor")
	v.SetDefault("agents.splitter", "splitter")
	v.SetDefault("agents.mailbox_size", 64)
	v.SetDefault("agents.response_ttl", 30*time.Minute)
	v.SetDefault("agents.correlation_timeout", 2*time.Minute)
	v.SetDefault("agents.sweep_interval", 10*time.Second)

	v.SetDefault("splitter.default_rules", "")
	v.SetDefault("splitter.output_path", "output.json")
	v.SetDefault("splitter.max_attempts", 2)
	v.SetDefault("splitter.default_split_id", 1)

	v.SetDefault("extractor.max_image_bytes", 10<<20)
	v.SetDefault("extractor.fetch_timeout", 30*time.Second)
}

// BindEnv enables BILLSPLIT_* overrides (dots become underscores) and the
// conventional provider key variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("BILLSPLIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a Config, fills API keys from the provider environment
// variables when unset, expands paths and validates the result.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	fallbackEnv(&cfg.LLM.OpenAI.APIKey, "OPENAI_API_KEY")
	fallbackEnv(&cfg.LLM.ASI1.APIKey, "ASI1_API_KEY")
	fallbackEnv(&cfg.Gemini.APIKey, "GEMINI_API_KEY")

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Splitter.OutputPath = ExpandPath(cfg.Splitter.OutputPath)
	cfg.Server.CertDir = ExpandPath(cfg.Server.CertDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fallbackEnv(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case llm.ProviderOpenAI, llm.ProviderASI1:
	default:
		return fmt.Errorf("%w: llm.provider must be openai or asi1, got %q", common.ErrInvalidConfig, c.LLM.Provider)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", common.ErrInvalidConfig)
	}
	if c.Agents.MailboxSize <= 0 {
		return fmt.Errorf("%w: agents.mailbox_size must be positive", common.ErrInvalidConfig)
	}
	if c.Agents.CorrelationTimeout <= 0 {
		return fmt.Errorf("%w: agents.correlation_timeout must be positive", common.ErrInvalidConfig)
	}
	if c.Splitter.MaxAttempts <= 0 {
		return fmt.Errorf("%w: splitter.max_attempts must be positive", common.ErrInvalidConfig)
	}
	return nil
}

// TextLLM returns the client settings for the configured text provider.
func (c Config) TextLLM() llm.Config {
	provider := strings.ToLower(c.LLM.Provider)
	p := c.LLM.OpenAI
	if provider == llm.ProviderASI1 {
		p = c.LLM.ASI1
	}
	return c.llmConfig(provider, p)
}

// VisionLLM returns the Gemini client settings used for bill extraction.
func (c Config) VisionLLM() llm.Config {
	return c.llmConfig(llm.ProviderGemini, c.Gemini)
}

func (c Config) llmConfig(provider string, p ProviderConfig) llm.Config {
	return llm.Config{
		Provider:    provider,
		APIKey:      p.APIKey,
		AccessToken: p.AccessToken,
		BaseURL:     p.BaseURL,
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		MaxRetries:  c.LLM.MaxRetries,
		RetryDelay:  c.LLM.RetryDelay,
		Timeout:     c.LLM.Timeout,
		RateLimit:   c.LLM.RateLimit,
	}
}
