// Package gateway is the uniform call contract over the supported
// generation backends.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/util"
)

// Options configures a Gateway
type Options struct {
	BaseURLs       map[ProviderName]string
	Temperature    *float64
	MaxTokens      int
	Timeout        time.Duration
	HTTPClient     *http.Client
	ContextWindows map[string]map[string]int
	Cache          *ModelCache
}

// Gateway builds providers on demand and hides their differences from callers
type Gateway struct {
	opts    Options
	windows *ContextWindows
}

// New creates a gateway
func New(opts Options) *Gateway {
	return &Gateway{
		opts:    opts,
		windows: NewContextWindows(opts.ContextWindows),
	}
}

func (g *Gateway) provider(name ProviderName, model, apiKey string) (Provider, error) {
	return CreateProvider(name, ProviderConfig{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     g.opts.BaseURLs[name],
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
		Timeout:     g.opts.Timeout,
		HTTPClient:  g.opts.HTTPClient,
	})
}

// Call sends one prompt to the named provider and returns its text unchanged
func (g *Gateway) Call(ctx context.Context, name ProviderName, model, apiKey, system, user string) (string, error) {
	p, err := g.provider(name, model, apiKey)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := p.Invoke(ctx, user, system)
	if err != nil {
		util.LogWarnf("Generation call to %s/%s failed after %v: %v", name, model, time.Since(start), err)
		return "", err
	}
	util.LogDebugf("Generation call to %s/%s returned %d bytes in %v", name, model, len(text), time.Since(start))
	return text, nil
}

// ListModels returns the provider's models. When the provider cannot be
// reached a cached listing is returned instead, if one exists.
func (g *Gateway) ListModels(ctx context.Context, name ProviderName, apiKey string) ([]string, error) {
	p, err := g.provider(name, "", apiKey)
	if err != nil {
		return nil, err
	}

	models, err := p.ListModels(ctx)
	if err != nil {
		if g.opts.Cache != nil && failure.Is(err, failure.TransportFailure) {
			if listing, ok := g.opts.Cache.Load(name); ok {
				util.LogInfof("Provider %s unreachable, using %d cached models from %s",
					name, len(listing.Models), listing.UpdatedAt.Format("2006-01-02 15:04:05"))
				return listing.Models, nil
			}
		}
		return nil, err
	}

	if g.opts.Cache != nil {
		if err := g.opts.Cache.Save(name, models); err != nil {
			util.LogDebugf("Failed to cache %s models: %v", name, err)
		}
	}
	return models, nil
}

// ConnectionResult is the outcome of a connectivity check
type ConnectionResult struct {
	Provider ProviderName
	OK       bool
	Kind     failure.Kind
	Models   int
	Message  string
}

// TestConnection checks credentials by listing models. It never returns an
// error; the outcome carries the failure kind instead.
func (g *Gateway) TestConnection(ctx context.Context, name ProviderName, apiKey string) ConnectionResult {
	p, err := g.provider(name, "", apiKey)
	if err != nil {
		return ConnectionResult{Provider: name, Kind: failure.KindOf(err), Message: err.Error()}
	}
	models, err := p.ListModels(ctx)
	if err != nil {
		return ConnectionResult{Provider: name, Kind: failure.KindOf(err), Message: err.Error()}
	}
	return ConnectionResult{
		Provider: name,
		OK:       true,
		Models:   len(models),
		Message:  fmt.Sprintf("connected to %s, %d models available", name, len(models)),
	}
}

// ContextWindow returns the approximate context budget for a model
func (g *Gateway) ContextWindow(name ProviderName, model string) int {
	return g.windows.Lookup(name, model)
}

// Session binds a provider, model and key for repeated calls
type Session struct {
	gateway  *Gateway
	provider ProviderName
	model    string
	apiKey   string
}

// Session returns a bound caller
func (g *Gateway) Session(name ProviderName, model, apiKey string) *Session {
	return &Session{gateway: g, provider: name, model: model, apiKey: apiKey}
}

// Generate calls the bound provider
func (s *Session) Generate(ctx context.Context, system, user string) (string, error) {
	return s.gateway.Call(ctx, s.provider, s.model, s.apiKey, system, user)
}

// ContextWindow returns the bound model's context budget
func (s *Session) ContextWindow() int {
	return s.gateway.ContextWindow(s.provider, s.model)
}

// Describe returns "provider/model" for logs and checkpoints
func (s *Session) Describe() string {
	return fmt.Sprintf("%s/%s", s.provider, s.model)
}
