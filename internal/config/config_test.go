package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "DATABASE_URL", "LLM_PROVIDER", "LLM_BASE_URL", "API_KEY",
		"GEMINI_API_KEY", "LLM_MODEL", "LLM_TIMEOUT_MS", "LIVE_URL", "LIVE_MODEL", "LIVE_VOICE",
		"WS_READ_TIMEOUT_MS", "WS_WRITE_TIMEOUT_MS", "WS_PING_INTERVAL_MS", "WS_MAX_MESSAGE_SIZE",
		"PERSONA_POLICY_FILE", "LOG_LEVEL", "LOG_FORMAT", "CHAT_TIMEOUT_MS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "Zephyr", cfg.Live.Voice)
	assert.Equal(t, 120*time.Second, cfg.ChatTimeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: 9000
llm:
  provider: openai
  base_url: http://localhost:11434/v1
  model: llama3
chat_timeout: 45s
persona:
  max_custom: 5
logging:
  level: debug
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.Equal(t, 45*time.Second, cfg.ChatTimeout)
	assert.Equal(t, 5, cfg.Persona.MaxCustom)
	assert.Equal(t, 6, cfg.Persona.MaxStarters)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"PORT": "70000"}},
		{"bad provider", map[string]string{"LLM_PROVIDER": "claude"}},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}},
		{"ping too slow", map[string]string{"WS_PING_INTERVAL_MS": "90000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	SetupLogging(LoggingConfig{Level: "warn", Format: "json"})
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)
}
