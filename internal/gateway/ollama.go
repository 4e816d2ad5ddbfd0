package gateway

import (
	"context"
	"sort"
	"strings"
)

const ollamaBaseURL = "http://localhost:11434"

// OllamaProvider talks to a local Ollama server. No credentials are sent.
type OllamaProvider struct {
	cfg ProviderConfig
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaProvider creates an Ollama provider
func NewOllamaProvider(cfg ProviderConfig) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaBaseURL
	}
	return &OllamaProvider{cfg: cfg}
}

// Name returns the registry key
func (p *OllamaProvider) Name() ProviderName {
	return Ollama
}

// Invoke runs a non-streaming generation
func (p *OllamaProvider) Invoke(ctx context.Context, prompt, system string) (string, error) {
	var resp ollamaResponse
	err := doJSON(ctx, p.cfg.HTTPClient, jsonRequest{
		provider: Ollama,
		op:       "invoke",
		method:   "POST",
		url:      joinURL(p.cfg.BaseURL, "api/generate"),
		body: ollamaRequest{
			Model:  p.cfg.Model,
			Prompt: prompt,
			System: system,
			Stream: false,
			Options: ollamaOptions{
				Temperature: p.cfg.temperature(),
				NumPredict:  p.cfg.MaxTokens,
			},
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Response) == "" {
		return "", malformed(Ollama, "invoke", "empty response")
	}
	return resp.Response, nil
}

// ListModels returns locally pulled models sorted by name
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	var resp ollamaTags
	err := doJSON(ctx, p.cfg.HTTPClient, jsonRequest{
		provider: Ollama,
		op:       "list models",
		method:   "GET",
		url:      joinURL(p.cfg.BaseURL, "api/tags"),
	}, &resp)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		if m.Name != "" {
			models = append(models, m.Name)
		}
	}
	sort.Strings(models)
	return models, nil
}
