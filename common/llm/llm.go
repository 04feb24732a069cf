package llm

import (
	"fmt"
	"time"
)

// Provider constants for backend provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTimeout bounds a single backend call when the catalog does not set one.
const DefaultTimeout = 45 * time.Second

// Config holds the connection settings for one backend.
type Config struct {
	ID          string        // ModelIdentifier, e.g. "openai/gpt-oss-20b"
	Provider    string        // "openai" (any OpenAI-compatible endpoint) or "anthropic"
	APIKey      string        // Required
	BaseURL     string        // Optional: custom API endpoint (Groq, OpenRouter, ...)
	Model       string        // Model name sent to the provider
	Timeout     time.Duration // Per-call timeout, DefaultTimeout when zero
	MaxTokens   int           // Default completion budget
	Temperature *float64      // nil = model default
}

// Message is one conversation turn. Slice order is chronological and is
// forwarded to the provider unchanged.
type Message struct {
	Role    string
	Content string
}

// Invocation is a single chat-completion request against one backend.
type Invocation struct {
	Messages    []Message
	MaxTokens   int      // 0 = backend default
	Temperature *float64 // nil = backend default
}

// UserTurn wraps a prompt as a single-turn conversation.
func UserTurn(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}

// NewBackend creates a Backend for cfg.Provider. Defaults to OpenAI when no
// provider is specified.
func NewBackend(cfg Config) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for backend %q", cfg.ID)
	}
	if cfg.ID == "" {
		cfg.ID = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIBackend(cfg), nil
	case ProviderAnthropic:
		return newAnthropicBackend(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// Temp returns a pointer to t, for Invocation.Temperature and Config.Temperature.
func Temp(t float64) *float64 {
	return &t
}
