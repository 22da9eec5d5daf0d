package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-orb/internal/domain"
)

type ClaudeClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	persona    string
}

func NewClaudeClient(apiKey, model, persona string) *ClaudeClient {
	return NewClaudeClientWithURL(apiKey, model, persona, "https://api.anthropic.com/v1")
}

func NewClaudeClientWithURL(apiKey, model, persona, baseURL string) *ClaudeClient {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if persona == "" {
		persona = "Shealth.ai"
	}
	return &ClaudeClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		model:      model,
		persona:    persona,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *ClaudeClient) Ask(ctx context.Context, pending domain.PendingRequest) (string, error) {
	systemPrompt := fmt.Sprintf(`You are %s, a smart health insurance voice assistant.
You help members check coverage, book appointments with in-network providers and track claims.

IMPORTANT:
- Your answer will be read aloud, so reply in plain spoken sentences
- No markdown, lists, links or emoji
- Keep answers under three sentences unless the member asks for detail
- If you don't know the member's plan details, say so and suggest contacting support`, c.persona)

	reqBody := request{
		Model:     c.model,
		MaxTokens: 512,
		System:    systemPrompt,
		Messages: []message{
			{Role: "user", Content: pending.Transcript},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("claude API error %d: %s", resp.StatusCode, string(respBody))
	}

	var result response
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}

	return strings.TrimSpace(result.Content[0].Text), nil
}
