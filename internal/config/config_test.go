package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Server.TLS)
	assert.Equal(t, "/home/tester/.local/share/billsplit/certs", cfg.Server.CertDir)
	assert.Equal(t, []string{"localhost", "127.0.0.1", "::1"}, cfg.Server.Hosts)
	assert.Equal(t, "/home/tester/.local/share/billsplit/billsplit.db", cfg.Database.Path)
	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Agents.CorrelationTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Agents.ResponseTTL)
	assert.Equal(t, "extractor", cfg.Agents.Extractor)
	assert.Equal(t, 2, cfg.Splitter.MaxAttempts)
	assert.Equal(t, int64(1), cfg.Splitter.DefaultSplitID)
	assert.Equal(t, "output.json", cfg.Splitter.OutputPath)
	assert.Equal(t, int64(10<<20), cfg.Extractor.MaxImageBytes)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: 127.0.0.1:9000
llm:
  provider: asi1
  timeout: 15s
  asi1:
    api_key: file-key
    model: asi1-extended
gemini:
  model: gemini-1.5-flash
agents:
  splitter: http://splitter.internal:8000
  correlation_timeout: 45s
`), 0o600))

	t.Setenv("BILLSPLIT_SPLITTER_MAX_ATTEMPTS", "4")
	t.Setenv("GEMINI_API_KEY", "env-gemini")

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Splitter.MaxAttempts)
	assert.Equal(t, 45*time.Second, cfg.Agents.CorrelationTimeout)
	assert.Equal(t, "http://splitter.internal:8000", cfg.Agents.Splitter)

	text := cfg.TextLLM()
	assert.Equal(t, llm.ProviderASI1, text.Provider)
	assert.Equal(t, "file-key", text.APIKey)
	assert.Equal(t, "asi1-extended", text.Model)
	assert.Equal(t, 15*time.Second, text.Timeout)

	vision := cfg.VisionLLM()
	assert.Equal(t, llm.ProviderGemini, vision.Provider)
	assert.Equal(t, "env-gemini", vision.APIKey)
	assert.Equal(t, "gemini-1.5-flash", vision.Model)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"llm.provider", "gemini"},
		{"logging.level", "verbose"},
		{"agents.mailbox_size", 0},
		{"splitter.max_attempts", 0},
		{"agents.correlation_timeout", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("BILLS_DIR", "/srv/bills")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/home/tester", ExpandPath("~"))
	assert.Equal(t, "/home/tester/data/app.db", ExpandPath("~/data/app.db"))
	assert.Equal(t, "/srv/bills/out.json", ExpandPath("$BILLS_DIR/out.json"))
	assert.Equal(t, "relative/out.json", ExpandPath("relative/out.json"))
}
