package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/coax-games/coax-api/internal/domain"
)

// KimiOracle plays the angry character with Moonshot's (Kimi) OpenAI-style
// chat-completions API.
type KimiOracle struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// KimiOption configures a KimiOracle.
type KimiOption func(*KimiOracle)

// WithKimiModel sets the chat model (default: moonshot-v1-8k).
func WithKimiModel(model string) KimiOption {
	return func(o *KimiOracle) { o.model = model }
}

// WithKimiBaseURL sets the API base URL (default: https://api.moonshot.cn).
// Useful for proxies or compatible APIs.
func WithKimiBaseURL(url string) KimiOption {
	return func(o *KimiOracle) { o.baseURL = url }
}

// NewKimiOracle creates a Moonshot backed oracle. Call deadlines come from
// the caller's context; the engine bounds every call.
func NewKimiOracle(apiKey string, opts ...KimiOption) *KimiOracle {
	o := &KimiOracle{
		apiKey:  apiKey,
		model:   "moonshot-v1-8k",
		baseURL: "https://api.moonshot.cn",
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type kimiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type kimiChatRequest struct {
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Messages    []kimiChatMessage `json:"messages"`
}

type kimiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements domain.ReplyOracle.
func (o *KimiOracle) Generate(ctx context.Context, in domain.GenerateInput) (*domain.GenerateOutput, error) {
	if o.apiKey == "" {
		return nil, fmt.Errorf("no API key")
	}

	reqBody := kimiChatRequest{
		Model:       o.model,
		Temperature: 0.3,
		MaxTokens:   200,
		Messages: []kimiChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(in)},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("kimi chat %d: %s", resp.StatusCode, string(body[:min(len(body), 200)]))
	}

	var chatResp kimiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("kimi returned no choices")
	}

	return parseReply(chatResp.Choices[0].Message.Content)
}
