package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/jgrana2/prompt-manager/internal/llm"
)

// Config holds all application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// ProviderConfig converts the section into the factory's config.
func (c LLMConfig) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:  c.Provider,
		APIKey:    c.APIKey,
		Model:     c.Model,
		BaseURL:   c.BaseURL,
		MaxTokens: c.MaxTokens,
	}
}

type StorageConfig struct {
	// Provider is file, sqlite or memory.
	Provider string `mapstructure:"provider"`
	Path     string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Dir returns the per-user config directory.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".promptmgr"
	}
	return filepath.Join(base, "promptmgr")
}

// DefaultPath is the config file read when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	def := llm.DefaultProviderConfig()
	v.SetDefault("llm.provider", def.Provider)
	v.SetDefault("llm.model", def.Model)
	v.SetDefault("llm.max_tokens", def.MaxTokens)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")

	v.SetDefault("storage.provider", "file")
	v.SetDefault("storage.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("server.listen_addr", "127.0.0.1:8787")

	v.SetDefault("tracing.service_name", "promptmgr")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
}

func defaultStoragePath(provider string) string {
	if provider == "sqlite" {
		return filepath.Join(Dir(), "store.db")
	}
	return filepath.Join(Dir(), "store.json")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider != "" && !knownProvider(c.LLM.Provider) {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is not one of %s", c.LLM.Provider, strings.Join(providerNames(), ", ")))
	}
	if c.LLM.Provider == "custom" && c.LLM.BaseURL == "" {
		warnings = append(warnings, "LLM provider 'custom' needs base_url")
	}
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}

	switch c.Storage.Provider {
	case "", "file", "sqlite", "memory":
	default:
		warnings = append(warnings, fmt.Sprintf("storage provider '%s' is unknown, expected file, sqlite or memory", c.Storage.Provider))
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		warnings = append(warnings, fmt.Sprintf("log format '%s' is unknown, expected console or json", c.Log.Format))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

func providerNames() []string {
	names := make([]string, 0, len(llm.KnownProviders)+1)
	for name := range llm.KnownProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, "custom")
}

func knownProvider(name string) bool {
	for _, p := range providerNames() {
		if p == name {
			return true
		}
	}
	return false
}

// Load reads configuration from file and environment. An empty path uses
// DefaultPath. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PROMPTMGR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if explicit {
			fmt.Fprintf(os.Stderr, "Warning: config file %s not found, using defaults\n", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath(cfg.Storage.Provider)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
