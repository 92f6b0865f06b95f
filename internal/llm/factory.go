package llm

import (
	"fmt"
	"sort"
)

// ProviderConfig holds all configuration needed to create any LLM provider.
type ProviderConfig struct {
	Provider  string // "openai", "groq", "ollama", "together", "deepseek", "openrouter", "custom"
	APIKey    string
	Model     string
	BaseURL   string // Override for self-hosted / custom endpoints
	MaxTokens int
}

// DefaultProviderConfig returns a config with sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		MaxTokens: DefaultMaxTokens,
	}
}

// ProviderFactory creates Provider instances from config.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
	middleware   []Middleware
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// NewFactory creates an empty factory.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{
		constructors: make(map[string]ProviderConstructor),
	}
}

// Register adds a provider constructor under the given name.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Use appends middleware applied to every provider Create returns.
// The first middleware added is the outermost.
func (f *ProviderFactory) Use(mw ...Middleware) {
	f.middleware = append(f.middleware, mw...)
}

// Create builds a Provider from config. A missing API key is rejected with
// ErrMissingCredential before any constructor runs, except for "ollama"
// which serves locally without one.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}

	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q, registered: %v", cfg.Provider, f.Names())
	}
	if cfg.APIKey == "" && cfg.Provider != "ollama" {
		return nil, ErrMissingCredential
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Provider, err)
	}

	for i := len(f.middleware) - 1; i >= 0; i-- {
		provider = f.middleware[i](provider)
	}
	return provider, nil
}

// Names returns the registered provider names, sorted.
func (f *ProviderFactory) Names() []string {
	out := make([]string, 0, len(f.constructors))
	for k := range f.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownProviders documents the built-in OpenAI-compatible presets and their
// default base URLs. "custom" has none and requires base_url.
//
//	openai     → https://api.openai.com/v1
//	groq       → https://api.groq.com/openai/v1
//	ollama     → http://localhost:11434/v1
//	together   → https://api.together.xyz/v1
//	deepseek   → https://api.deepseek.com/v1
//	openrouter → https://openrouter.ai/api/v1
var KnownProviders = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"ollama":     "http://localhost:11434/v1",
	"together":   "https://api.together.xyz/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}
