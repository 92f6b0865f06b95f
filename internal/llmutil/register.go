// Package llmutil wires the built-in providers into an llm.ProviderFactory.
package llmutil

import (
	"fmt"

	"github.com/jgrana2/prompt-manager/internal/llm"
	"github.com/jgrana2/prompt-manager/internal/llm/openai"
)

// RegisterDefaultProviders registers openai and every OpenAI-compatible
// preset into factory. Both the CLI and the web server call this.
func RegisterDefaultProviders(factory *llm.ProviderFactory) {
	for name, url := range llm.KnownProviders {
		name, url := name, url
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = url
			}
			return openai.New(c.APIKey, c.Model, base, c.MaxTokens, openai.WithName(name)), nil
		})
	}
	factory.Register("custom", func(c llm.ProviderConfig) (llm.Provider, error) {
		if c.BaseURL == "" {
			return nil, fmt.Errorf("custom provider requires base_url")
		}
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.MaxTokens, openai.WithName("custom")), nil
	})
}
