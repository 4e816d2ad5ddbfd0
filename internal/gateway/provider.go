package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/penwyp/go-pensieve/internal/core/constants"
)

// ProviderName identifies a generation backend
type ProviderName string

const (
	OpenAI    ProviderName = "openai"
	Gemini    ProviderName = "gemini"
	Ollama    ProviderName = "ollama"
	Anthropic ProviderName = "anthropic"
)

// Provider is one generation backend. Implementations reduce the backend's
// reply to a single text and report failures as *failure.Error.
type Provider interface {
	// Name returns the registry key of this provider
	Name() ProviderName

	// Invoke sends one prompt with a system instruction and returns the generated text
	Invoke(ctx context.Context, prompt, system string) (string, error)

	// ListModels returns the model identifiers the credentials can use
	ListModels(ctx context.Context) ([]string, error)
}

// ProviderConfig carries the settings a provider adapter needs
type ProviderConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64 // nil selects the default, 0 is a valid setting
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

func (c ProviderConfig) temperature() float64 {
	if c.Temperature == nil {
		return constants.DefaultTemperature
	}
	return *c.Temperature
}

func (c ProviderConfig) withDefaults() ProviderConfig {
	if c.MaxTokens == 0 {
		c.MaxTokens = constants.DefaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = constants.RequestTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}
