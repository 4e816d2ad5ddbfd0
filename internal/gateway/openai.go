package gateway

import (
	"context"
	"sort"
	"strings"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to the chat completions API
type OpenAIProvider struct {
	cfg ProviderConfig
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

type openAIModels struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewOpenAIProvider creates an OpenAI provider
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIBaseURL
	}
	return &OpenAIProvider{cfg: cfg}
}

// Name returns the registry key
func (p *OpenAIProvider) Name() ProviderName {
	return OpenAI
}

// Invoke sends a system and a user message
func (p *OpenAIProvider) Invoke(ctx context.Context, prompt, system string) (string, error) {
	var messages []openAIMessage
	if system != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: system})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: prompt})

	var resp openAIResponse
	err := doJSON(ctx, p.cfg.HTTPClient, jsonRequest{
		provider: OpenAI,
		op:       "invoke",
		method:   "POST",
		url:      joinURL(p.cfg.BaseURL, "chat/completions"),
		headers:  map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		body: openAIRequest{
			Model:       p.cfg.Model,
			Messages:    messages,
			Temperature: p.cfg.temperature(),
			MaxTokens:   p.cfg.MaxTokens,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", malformed(OpenAI, "invoke", "response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ListModels returns model ids sorted by name
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	var resp openAIModels
	err := doJSON(ctx, p.cfg.HTTPClient, jsonRequest{
		provider: OpenAI,
		op:       "list models",
		method:   "GET",
		url:      joinURL(p.cfg.BaseURL, "models"),
		headers:  map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
	}, &resp)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	sort.Strings(models)
	return models, nil
}
