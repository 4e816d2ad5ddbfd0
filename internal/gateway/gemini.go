package gateway

import (
	"context"
	"net/url"
	"sort"
	"strings"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider talks to the generateContent API. The system instruction is
// prepended to the prompt.
type GeminiProvider struct {
	cfg ProviderConfig
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiModels struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewGeminiProvider creates a Gemini provider
func NewGeminiProvider(cfg ProviderConfig) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiBaseURL
	}
	return &GeminiProvider{cfg: cfg}
}

// Name returns the registry key
func (p *GeminiProvider) Name() ProviderName {
	return Gemini
}

// modelPath accepts both "gemini-pro" and "models/gemini-pro"
func (p *GeminiProvider) modelPath() string {
	if strings.HasPrefix(p.cfg.Model, "models/") {
		return p.cfg.Model
	}
	return "models/" + p.cfg.Model
}

// Invoke sends the combined prompt
func (p *GeminiProvider) Invoke(ctx context.Context, prompt, system string) (string, error) {
	text := prompt
	if system != "" {
		text = system + "\n\n" + prompt
	}

	var resp geminiResponse
	err := doJSON(ctx, p.cfg.HTTPClient, jsonRequest{
		provider: Gemini,
		op:       "invoke",
		method:   "POST",
		url:      joinURL(p.cfg.BaseURL, p.modelPath()+":generateContent") + "?key=" + url.QueryEscape(p.cfg.APIKey),
		body: geminiRequest{
			Contents: []geminiContent{{Parts: []geminiPart{{Text: text}}}},
			GenerationConfig: geminiGenerationConfig{
				Temperature:     p.cfg.temperature(),
				MaxOutputTokens: p.cfg.MaxTokens,
			},
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", malformed(Gemini, "invoke", "response has no candidates")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", malformed(Gemini, "invoke", "candidate has no text")
	}
	return out.String(), nil
}

// ListModels returns model names sorted, including the "models/" prefix the API uses
func (p *GeminiProvider) ListModels(ctx context.Context) ([]string, error) {
	var resp geminiModels
	err := doJSON(ctx, p.cfg.HTTPClient, jsonRequest{
		provider: Gemini,
		op:       "list models",
		method:   "GET",
		url:      joinURL(p.cfg.BaseURL, "models") + "?key=" + url.QueryEscape(p.cfg.APIKey),
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
