package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestNewFactory(t *testing.T) {
	f := NewFactory()
	if f == nil {
		t.Fatal("expected non-nil factory")
	}
	if f.constructors == nil {
		t.Fatal("expected constructors map to be initialized")
	}
	if len(f.constructors) != 0 {
		t.Fatalf("expected empty factory, got %d constructors", len(f.constructors))
	}
}

func TestFactoryRegister(t *testing.T) {
	f := NewFactory()
	called := false
	ctor := func(cfg ProviderConfig) (Provider, error) {
		called = true
		return nil, nil
	}

	f.Register("test-provider", ctor)

	if len(f.constructors) != 1 {
		t.Fatalf("expected 1 constructor, got %d", len(f.constructors))
	}

	f.constructors["test-provider"](ProviderConfig{})
	if !called {
		t.Fatal("constructor was not called")
	}
}

func TestFactoryCreate_UnknownProvider(t *testing.T) {
	f := NewFactory()
	f.Register("provider1", func(cfg ProviderConfig) (Provider, error) { return nil, nil })
	f.Register("provider2", func(cfg ProviderConfig) (Provider, error) { return nil, nil })

	_, err := f.Create(ProviderConfig{Provider: "unknown", APIKey: "k"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "provider1") || !strings.Contains(err.Error(), "provider2") {
		t.Fatalf("expected registered providers in error, got: %v", err)
	}
}

func TestFactoryCreate_MissingCredential(t *testing.T) {
	f := NewFactory()
	called := false
	f.Register("openai", func(cfg ProviderConfig) (Provider, error) {
		called = true
		return &mockTestProvider{name: "openai"}, nil
	})

	_, err := f.Create(ProviderConfig{Provider: "openai"})
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if called {
		t.Fatal("constructor should not run without a credential")
	}
}

func TestFactoryCreate_OllamaWithoutCredential(t *testing.T) {
	f := NewFactory()
	f.Register("ollama", func(cfg ProviderConfig) (Provider, error) {
		return &mockTestProvider{name: "ollama"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "ollama"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "ollama" {
		t.Fatalf("expected ollama provider, got %s", p.Name())
	}
}

func TestFactoryCreate_EmptyProviderDefaultsToOpenAI(t *testing.T) {
	f := NewFactory()
	f.Register("openai", func(cfg ProviderConfig) (Provider, error) {
		return &mockTestProvider{name: cfg.Provider}, nil
	})

	p, err := f.Create(ProviderConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "openai" {
		t.Fatalf("expected openai, got %s", p.Name())
	}
}

func TestFactoryCreate_ConstructorError(t *testing.T) {
	f := NewFactory()
	expectedErr := errors.New("constructor failed")

	f.Register("failing", func(cfg ProviderConfig) (Provider, error) {
		return nil, expectedErr
	})

	p, err := f.Create(ProviderConfig{Provider: "failing", APIKey: "k"})
	if err == nil {
		t.Fatal("expected error from constructor")
	}
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected constructor error, got: %v", err)
	}
	if p != nil {
		t.Fatal("expected nil provider on error")
	}
}

func TestFactoryCreate_MiddlewareOrder(t *testing.T) {
	f := NewFactory()
	f.Register("test", func(cfg ProviderConfig) (Provider, error) {
		return &mockTestProvider{name: "inner"}, nil
	})

	var order []string
	wrap := func(tag string) Middleware {
		return func(next Provider) Provider {
			return &taggedProvider{Provider: next, tag: tag, order: &order}
		}
	}
	f.Use(wrap("outer"), wrap("middle"))

	p, err := f.Create(ProviderConfig{Provider: "test", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := p.Stream(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body.Close()

	if strings.Join(order, ",") != "outer,middle" {
		t.Fatalf("unexpected middleware order: %v", order)
	}
}

func TestDefaultProviderConfig(t *testing.T) {
	cfg := DefaultProviderConfig()

	if cfg.Provider != "openai" {
		t.Errorf("expected openai provider, got %s", cfg.Provider)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("expected gpt-4o-mini, got %s", cfg.Model)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("expected 4096 max tokens, got %d", cfg.MaxTokens)
	}
}

func TestKnownProviders(t *testing.T) {
	expectedProviders := map[string]string{
		"openai":     "https://api.openai.com/v1",
		"groq":       "https://api.groq.com/openai/v1",
		"ollama":     "http://localhost:11434/v1",
		"together":   "https://api.together.xyz/v1",
		"deepseek":   "https://api.deepseek.com/v1",
		"openrouter": "https://openrouter.ai/api/v1",
	}

	if len(KnownProviders) != len(expectedProviders) {
		t.Errorf("expected %d known providers, got %d", len(expectedProviders), len(KnownProviders))
	}

	for name, expectedURL := range expectedProviders {
		url, ok := KnownProviders[name]
		if !ok {
			t.Errorf("expected provider %q to be in KnownProviders", name)
			continue
		}
		if url != expectedURL {
			t.Errorf("provider %q: expected URL %q, got %q", name, expectedURL, url)
		}
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{Status: 401, Message: "bad key"}
	if err.Error() != "API error (401): bad key" {
		t.Fatalf("unexpected error text: %s", err.Error())
	}
}

func TestQuoteInput(t *testing.T) {
	if got := QuoteInput("hello"); got != `:"""hello"""` {
		t.Fatalf("unexpected quoting: %s", got)
	}
	if got := QuoteInput(""); got != `:""""""` {
		t.Fatalf("unexpected quoting of empty input: %s", got)
	}
}

// mockTestProvider is a simple mock for testing
type mockTestProvider struct {
	name string
}

func (m *mockTestProvider) Name() string {
	return m.name
}

func (m *mockTestProvider) Stream(_ context.Context, _ *Request) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("data: [DONE]\n")), nil
}

type taggedProvider struct {
	Provider
	tag   string
	order *[]string
}

func (p *taggedProvider) Stream(ctx context.Context, req *Request) (io.ReadCloser, error) {
	*p.order = append(*p.order, p.tag)
	return p.Provider.Stream(ctx, req)
}
