package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient is a mock implementation of Client for local runs and tests.
// When Reply is empty it echoes the prompt.
type MockClient struct {
	Reply     string
	ChunkSize int
	Err       error
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{ChunkSize: 10}
}

// Generate returns the canned or echoed reply.
func (m *MockClient) Generate(ctx context.Context, req *Request) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.reply(req), nil
}

// Stream simulates streaming by sending the reply in chunks.
func (m *MockClient) Stream(ctx context.Context, req *Request, callback StreamCallback) error {
	if m.Err != nil {
		return m.Err
	}
	for _, chunk := range splitIntoChunks(m.reply(req), m.ChunkSize) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := callback(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockClient) reply(req *Request) string {
	if m.Reply != "" {
		return m.Reply
	}
	return fmt.Sprintf("[MOCK] Received your message: %q.", truncate(req.Prompt, 100))
}

// splitIntoChunks splits s into pieces of at most size runes.
func splitIntoChunks(s string, size int) []string {
	if size <= 0 {
		size = 10
	}
	runes := []rune(s)
	var chunks []string
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(runes[:maxLen])) + "..."
}
