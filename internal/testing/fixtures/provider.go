package fixtures

import (
	"context"
	"strings"
	"sync"

	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/gateway"
)

// ScriptedProvider answers with canned text chosen by a marker found in the
// system prompt. It records every call.
type ScriptedProvider struct {
	name gateway.ProviderName

	mu        sync.Mutex
	responses []response
	fail      failure.Kind
	models    []string
	calls     []string
	onInvoke  func(ctx context.Context, call int)
}

type response struct {
	marker string
	text   string
}

// NewScriptedProvider creates a provider registered under name
func NewScriptedProvider(name gateway.ProviderName) *ScriptedProvider {
	return &ScriptedProvider{name: name}
}

// Register makes the provider constructible through the gateway registry
func (p *ScriptedProvider) Register() {
	gateway.Register(p.name, func(gateway.ProviderConfig) gateway.Provider { return p })
}

// Respond answers prompts whose system instruction contains marker. Markers
// are tried in the order they were added.
func (p *ScriptedProvider) Respond(marker, text string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, response{marker: marker, text: text})
	return p
}

// FailWith makes every call fail with kind; Unknown clears it
func (p *ScriptedProvider) FailWith(kind failure.Kind) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = kind
	return p
}

// WithModels sets the ListModels result
func (p *ScriptedProvider) WithModels(models ...string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = models
	return p
}

// OnInvoke runs fn at the start of every call with the 1-based call number
func (p *ScriptedProvider) OnInvoke(fn func(ctx context.Context, call int)) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onInvoke = fn
	return p
}

// Calls returns the system prompts seen so far
func (p *ScriptedProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Name implements gateway.Provider
func (p *ScriptedProvider) Name() gateway.ProviderName {
	return p.name
}

// Invoke implements gateway.Provider
func (p *ScriptedProvider) Invoke(ctx context.Context, _, system string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, system)
	call, hook := len(p.calls), p.onInvoke
	p.mu.Unlock()
	if hook != nil {
		hook(ctx, call)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != failure.Unknown {
		return "", &failure.Error{Kind: p.fail, Op: "invoke", Provider: string(p.name)}
	}
	for _, r := range p.responses {
		if strings.Contains(system, r.marker) {
			return r.text, nil
		}
	}
	return "", nil
}

// ListModels implements gateway.Provider
func (p *ScriptedProvider) ListModels(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != failure.Unknown {
		return nil, &failure.Error{Kind: p.fail, Op: "list models", Provider: string(p.name)}
	}
	return append([]string(nil), p.models...), nil
}
