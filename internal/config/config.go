// Package config provides configuration for the persona chat service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	LLM     LLMConfig     `yaml:"llm"`
	Live    LiveConfig    `yaml:"live"`
	WS      WSConfig      `yaml:"ws"`
	Persona PersonaConfig `yaml:"persona"`
	Logging LoggingConfig `yaml:"logging"`

	// ChatTimeout bounds one streamed or single-shot reply.
	ChatTimeout time.Duration `yaml:"chat_timeout"`
}

// LLMConfig selects the text chat backend.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // gemini, openai or mock
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"` // overrides persona models for openai
	Timeout  time.Duration `yaml:"timeout"`
}

// LiveConfig configures the realtime voice upstream.
type LiveConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
	Voice string `yaml:"voice"`
}

// WSConfig tunes the browser device bridge.
type WSConfig struct {
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// PersonaConfig bounds user-created personas.
type PersonaConfig struct {
	PolicyFile     string `yaml:"policy_file"`
	MaxInstruction int    `yaml:"max_instruction"`
	MaxStarters    int    `yaml:"max_starters"`
	MaxCustom      int    `yaml:"max_custom"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:    8080,
		DatabaseURL: "file:personachat.db?cache=shared&mode=rwc",
		LLM: LLMConfig{
			Provider: "gemini",
			Timeout:  60 * time.Second,
		},
		Live: LiveConfig{
			Model: "gemini-2.5-flash-native-audio-preview-09-2025",
			Voice: "Zephyr",
		},
		WS: WSConfig{
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 1 << 20,
		},
		Persona: PersonaConfig{
			MaxInstruction: 8000,
			MaxStarters:    6,
			MaxCustom:      50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		ChatTimeout: 120 * time.Second,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.overlayEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.HTTPPort = getEnvInt("PORT", c.HTTPPort)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = getEnv("API_KEY", getEnv("GEMINI_API_KEY", c.LLM.APIKey))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.Timeout = getEnvMillis("LLM_TIMEOUT_MS", c.LLM.Timeout)

	c.Live.URL = getEnv("LIVE_URL", c.Live.URL)
	c.Live.Model = getEnv("LIVE_MODEL", c.Live.Model)
	c.Live.Voice = getEnv("LIVE_VOICE", c.Live.Voice)

	c.WS.ReadTimeout = getEnvMillis("WS_READ_TIMEOUT_MS", c.WS.ReadTimeout)
	c.WS.WriteTimeout = getEnvMillis("WS_WRITE_TIMEOUT_MS", c.WS.WriteTimeout)
	c.WS.PingInterval = getEnvMillis("WS_PING_INTERVAL_MS", c.WS.PingInterval)
	c.WS.MaxMessageSize = int64(getEnvInt("WS_MAX_MESSAGE_SIZE", int(c.WS.MaxMessageSize)))

	c.Persona.PolicyFile = getEnv("PERSONA_POLICY_FILE", c.Persona.PolicyFile)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.ChatTimeout = getEnvMillis("CHAT_TIMEOUT_MS", c.ChatTimeout)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url cannot be empty")
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "mock":
	default:
		return fmt.Errorf("llm provider must be gemini, openai or mock, got %q", c.LLM.Provider)
	}
	if c.ChatTimeout <= 0 {
		return fmt.Errorf("chat_timeout must be positive, got %s", c.ChatTimeout)
	}
	if c.WS.PingInterval <= 0 || c.WS.PingInterval >= c.WS.ReadTimeout {
		return fmt.Errorf("ws ping_interval (%s) must be positive and shorter than read_timeout (%s)",
			c.WS.PingInterval, c.WS.ReadTimeout)
	}
	if c.Persona.MaxCustom < 1 {
		return fmt.Errorf("persona max_custom must be at least 1, got %d", c.Persona.MaxCustom)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	return nil
}

// SetupLogging configures the global logrus logger.
func SetupLogging(l LoggingConfig) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if l.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvMillis(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
