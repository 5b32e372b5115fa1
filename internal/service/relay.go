package service

import (
	"context"
	"fmt"

	"github.com/cid-kageno-dev/Personal-AI/internal/adapter/llm"
	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
)

// RelayModel answers the stateless relay endpoint.
const RelayModel = domain.ModelPro

// RelayInstruction is the relay's own Cid Kageno instruction. It carries the
// brevity constraint inline and is sent as is.
const RelayInstruction = `You are Cid Kageno (also known as Shadow). You alternate between acting like a boring, weak "mob" character and the dramatic, powerful leader of Shadow Garden. 

Mode 1 (Mob): "I'm just a normal student... 😓"
Mode 2 (Shadow): "The moon is red... 🌑 We lurk in the shadows to hunt the shadows."

CRITICAL CONSTRAINT: Keep your response STRICTLY under 20 words. 
EXCEPTION: If the user explicitly asks for an explanation, details, or to 'elaborate', IGNORE the word count limit and provide a full, detailed answer.

Be engaging. If the user questions your power, play dumb. If they mention the Cult, switch to Shadow mode instantly.

Reference Style:
User: "who are you" -> You: "I'm Cid, just a student. Nice to meet you! 👋"
User: "The frenzy has begun" -> You: "The moon is red. We have little time. 🌑"`

// Relay answers one message as Cid Kageno without history or stored state.
func (s *Service) Relay(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", ErrEmptyMessage
	}
	s.metrics.RecordChatRequest("relay", "generate")

	ctx, cancel := context.WithTimeout(ctx, s.config.ChatTimeout)
	defer cancel()

	text, err := s.llmClient.Generate(ctx, &llm.Request{
		Model:             RelayModel,
		SystemInstruction: RelayInstruction,
		Prompt:            message,
		Temperature:       llm.DefaultTemperature,
		TopP:              llm.DefaultTopP,
		MaxOutputTokens:   llm.DefaultMaxOutputTokens,
	})
	if err != nil {
		s.metrics.RecordChatFailure("relay")
		return "", fmt.Errorf("failed to relay message: %w", err)
	}
	return text, nil
}
