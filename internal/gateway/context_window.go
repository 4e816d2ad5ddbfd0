package gateway

import (
	"strings"
	"sync"

	"github.com/penwyp/go-pensieve/internal/core/constants"
)

// defaultContextWindows maps provider -> model prefix -> approximate window.
// Values are best effort and can be overridden from settings.
var defaultContextWindows = map[ProviderName]map[string]int{
	OpenAI: {
		"gpt-3.5":     4096,
		"gpt-4":       8192,
		"gpt-4-turbo": 128000,
		"gpt-4o":      128000,
	},
	Gemini: {
		"gemini-pro": 32768,
		"gemini-1.5": 1048576,
		"gemini-2.0": 32768,
	},
	Ollama: {
		"llama2":  4096,
		"mistral": 8192,
		"phi3":    8192,
	},
	Anthropic: {
		"claude-": 200000,
	},
}

// ContextWindows resolves the context budget of a provider/model pair
type ContextWindows struct {
	mu       sync.RWMutex
	table    map[ProviderName]map[string]int
	fallback int
}

// NewContextWindows builds the table from the defaults plus overrides. An
// override with the same prefix replaces the default entry.
func NewContextWindows(overrides map[string]map[string]int) *ContextWindows {
	table := make(map[ProviderName]map[string]int, len(defaultContextWindows))
	for provider, entries := range defaultContextWindows {
		table[provider] = make(map[string]int, len(entries))
		for prefix, units := range entries {
			table[provider][prefix] = units
		}
	}
	for provider, entries := range overrides {
		name := ProviderName(strings.ToLower(provider))
		if table[name] == nil {
			table[name] = make(map[string]int, len(entries))
		}
		for prefix, units := range entries {
			if units > 0 {
				table[name][strings.ToLower(prefix)] = units
			}
		}
	}
	return &ContextWindows{table: table, fallback: constants.DefaultContextWindow}
}

// Lookup returns the window of the longest prefix matching model, or the
// conservative default when nothing matches.
func (c *ContextWindows) Lookup(provider ProviderName, model string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	model = strings.ToLower(strings.TrimPrefix(model, "models/"))
	best, bestLen := c.fallback, -1
	for prefix, units := range c.table[provider] {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = units, len(prefix)
		}
	}
	return best
}
