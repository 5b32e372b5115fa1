// Package llm provides an abstraction over generative chat backends.
package llm

import (
	"context"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
)

// Generation defaults applied to every chat request.
const (
	DefaultTemperature     float32 = 0.8
	DefaultTopP            float32 = 0.95
	DefaultMaxOutputTokens         = 800
)

// Request is one chat turn: prior history plus the new user text.
type Request struct {
	Model             string
	SystemInstruction string
	History           []domain.ChatMessage
	Prompt            string

	Temperature     float32
	TopP            float32
	MaxOutputTokens int
}

// NewRequest builds a request carrying the default generation settings.
func NewRequest(p domain.Personality, history []domain.ChatMessage, prompt string) *Request {
	return &Request{
		Model:             p.Model,
		SystemInstruction: p.Instruction(),
		History:           history,
		Prompt:            prompt,
		Temperature:       DefaultTemperature,
		TopP:              DefaultTopP,
		MaxOutputTokens:   DefaultMaxOutputTokens,
	}
}

// StreamCallback is called for each text fragment in arrival order.
// Returning an error aborts the stream.
type StreamCallback func(fragment string) error

// Client defines the chat operations the service needs.
type Client interface {
	// Generate returns the complete reply text.
	Generate(ctx context.Context, req *Request) (string, error)

	// Stream delivers the reply as fragments. It returns after the last
	// fragment, on cancellation, or on the first error.
	Stream(ctx context.Context, req *Request, callback StreamCallback) error
}

// Ensure the implementations satisfy Client.
var (
	_ Client = (*GeminiClient)(nil)
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*MockClient)(nil)
)
