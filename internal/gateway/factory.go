package gateway

import (
	"sort"
	"strings"
	"sync"

	"github.com/penwyp/go-pensieve/internal/core/failure"
	"github.com/penwyp/go-pensieve/internal/util"
)

// Constructor builds a provider from its configuration
type Constructor func(cfg ProviderConfig) Provider

var (
	registryMu sync.RWMutex
	registry   = map[ProviderName]Constructor{
		OpenAI:    func(cfg ProviderConfig) Provider { return NewOpenAIProvider(cfg) },
		Gemini:    func(cfg ProviderConfig) Provider { return NewGeminiProvider(cfg) },
		Ollama:    func(cfg ProviderConfig) Provider { return NewOllamaProvider(cfg) },
		Anthropic: func(cfg ProviderConfig) Provider { return NewAnthropicProvider(cfg) },
	}
)

// Register adds or replaces a provider constructor
func Register(name ProviderName, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// ParseProviderName normalizes a configured provider name
func ParseProviderName(s string) (ProviderName, error) {
	name := ProviderName(strings.ToLower(strings.TrimSpace(s)))
	registryMu.RLock()
	_, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return "", failure.Newf(failure.UnsupportedProvider, "parse provider", "unknown provider %q", s)
	}
	return name, nil
}

// CreateProvider builds the provider registered under name
func CreateProvider(name ProviderName, cfg ProviderConfig) (Provider, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &failure.Error{Kind: failure.UnsupportedProvider, Op: "create provider", Provider: string(name)}
	}
	util.LogDebugf("Creating %s provider (model=%s)", name, cfg.Model)
	return ctor(cfg.withDefaults()), nil
}

// ProviderNames lists registered providers in sorted order
func ProviderNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
