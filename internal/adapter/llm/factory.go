package llm

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "PERSONACHAT_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Options select and configure a backend.
type Options struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// NewClient creates a chat client. PERSONACHAT_MODE=MOCK forces the mock
// client; otherwise Provider selects the backend, defaulting to Gemini.
func NewClient(opts Options) Client {
	if os.Getenv(EnvMode) == ModeMock {
		logrus.Info("PERSONACHAT_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}

	switch strings.ToLower(opts.Provider) {
	case ProviderOpenAI:
		logrus.WithField("base_url", opts.BaseURL).Info("Using OpenAI-compatible LLM client")
		return NewOpenAIClient(opts.BaseURL, opts.APIKey, opts.Model)
	case "mock":
		return NewMockClient()
	default:
		if opts.APIKey == "" {
			logrus.Warn("No API key configured for the Gemini client; requests will fail")
		}
		return NewGeminiClient(opts.BaseURL, opts.APIKey, opts.Timeout)
	}
}
