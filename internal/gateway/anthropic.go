package gateway

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"github.com/penwyp/go-pensieve/internal/core/failure"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// promptFunc performs one Messages API call and returns the first text block
type promptFunc func(system, user, apiKey string, settings types.RequestSettings) (string, error)

func llmkitPrompt(system, user, apiKey string, settings types.RequestSettings) (string, error) {
	resp, err := anthropic.PromptWithSettings(system, user, "", apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", nil
	}
	return resp.Content[0].Text, nil
}

// AnthropicProvider generates through the llmkit Messages client and lists
// models over plain HTTP.
type AnthropicProvider struct {
	cfg    ProviderConfig
	prompt promptFunc
}

type anthropicModels struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewAnthropicProvider creates an Anthropic provider
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicBaseURL
	}
	return &AnthropicProvider{cfg: cfg, prompt: llmkitPrompt}
}

// Name returns the registry key
func (p *AnthropicProvider) Name() ProviderName {
	return Anthropic
}

// Invoke sends one message. llmkit has no context support, so cancellation
// only stops the wait, not the request.
func (p *AnthropicProvider) Invoke(ctx context.Context, prompt, system string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &failure.Error{Kind: failure.Canceled, Op: "invoke", Provider: string(Anthropic), Err: err}
	}

	settings := types.RequestSettings{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.temperature(),
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := p.prompt(system, prompt, p.cfg.APIKey, settings)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", &failure.Error{Kind: failure.Canceled, Op: "invoke", Provider: string(Anthropic), Err: ctx.Err()}
	case r := <-done:
		if r.err != nil {
			return "", &failure.Error{Kind: classifyMessage(r.err), Op: "invoke", Provider: string(Anthropic), Err: r.err}
		}
		if strings.TrimSpace(r.text) == "" {
			return "", malformed(Anthropic, "invoke", "response has no text content")
		}
		return r.text, nil
	}
}

// ListModels returns model ids sorted by name
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]string, error) {
	var resp anthropicModels
	err := doJSON(ctx, p.cfg.HTTPClient, jsonRequest{
		provider: Anthropic,
		op:       "list models",
		method:   "GET",
		url:      joinURL(p.cfg.BaseURL, "models"),
		headers: map[string]string{
			"x-api-key":         p.cfg.APIKey,
			"anthropic-version": anthropicVersion,
		},
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

// classifyMessage maps llmkit's error text onto a failure kind. llmkit reports
// HTTP failures as formatted errors that embed the status code.
func classifyMessage(err error) failure.Kind {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "authentication") || strings.Contains(msg, "api key"):
		return failure.AuthFailure
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit"):
		return failure.RateLimited
	case strings.Contains(msg, "unmarshal") || strings.Contains(msg, "decode"):
		return failure.MalformedResponse
	default:
		return failure.TransportFailure
	}
}
