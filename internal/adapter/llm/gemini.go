package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
)

// DefaultGeminiBaseURL is the hosted generative language API.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient calls the generateContent REST API.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewGeminiClient creates a client. An empty baseURL uses DefaultGeminiBaseURL.
// timeout bounds single-shot requests; streams are bounded by their context.
func NewGeminiClient(baseURL, apiKey string, timeout time.Duration) *GeminiClient {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	return &GeminiClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// text concatenates the parts of the first candidate.
func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

type geminiErrorResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func newGeminiRequest(req *Request) *geminiRequest {
	contents := make([]geminiContent, 0, len(req.History)+1)
	for _, m := range req.History {
		contents = append(contents, geminiContent{
			Role:  string(m.Role),
			Parts: []geminiPart{{Text: m.Text}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  string(domain.RoleUser),
		Parts: []geminiPart{{Text: req.Prompt}},
	})

	out := &geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	}
	if req.SystemInstruction != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	return out
}

func (c *GeminiClient) newHTTPRequest(ctx context.Context, req *Request, method string, query url.Values) (*http.Request, error) {
	body, err := json.Marshal(newGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:%s", c.baseURL, url.PathEscape(req.Model), method)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.apiKey)
	}
	return httpReq, nil
}

func apiError(status int, body []byte) error {
	var errResp geminiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		return fmt.Errorf("LLM API error [%d]: %s (status: %s)", status, errResp.Error.Message, errResp.Error.Status)
	}
	return fmt.Errorf("LLM API error [%d]: %s", status, string(body))
}

// Generate sends a single-shot generateContent request.
func (c *GeminiClient) Generate(ctx context.Context, req *Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := c.newHTTPRequest(ctx, req, "generateContent", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp.StatusCode, respBody)
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result.text(), nil
}

// Stream sends a streamGenerateContent request and parses the SSE body.
func (c *GeminiClient) Stream(ctx context.Context, req *Request, callback StreamCallback) error {
	httpReq, err := c.newHTTPRequest(ctx, req, "streamGenerateContent", url.Values{"alt": {"sse"}})
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, respBody)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
			var chunk geminiResponse
			if jsonErr := json.Unmarshal([]byte(data), &chunk); jsonErr == nil {
				if text := chunk.text(); text != "" {
					if cbErr := callback(text); cbErr != nil {
						return cbErr
					}
				}
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}
