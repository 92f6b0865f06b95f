package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultCredentialEnv lists the environment variables consulted, in order,
// when no credential has been stored.
var DefaultCredentialEnv = []string{"PROMPTMGR_API_KEY", "OPENAI_API_KEY"}

// ErrNoCredential is returned when neither the store nor the environment
// holds a credential.
var ErrNoCredential = errors.New("no API credential configured")

// Credentials resolves the bearer token: the stored value first, then the
// environment fallback.
type Credentials struct {
	store     Store
	envVars   []string
	lookupEnv func(string) (string, bool)
}

// NewCredentials wraps store. envVars defaults to DefaultCredentialEnv.
func NewCredentials(store Store, envVars ...string) *Credentials {
	if len(envVars) == 0 {
		envVars = DefaultCredentialEnv
	}
	return &Credentials{
		store:     store,
		envVars:   envVars,
		lookupEnv: os.LookupEnv,
	}
}

// Get returns the credential and where it came from ("store" or the env var name).
func (c *Credentials) Get(ctx context.Context) (value, source string, err error) {
	val, err := c.store.Get(ctx, KeyCredential)
	if err == nil && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val), c.store.Name(), nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", "", fmt.Errorf("read credential: %w", err)
	}

	for _, name := range c.envVars {
		if v, ok := c.lookupEnv(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), name, nil
		}
	}
	return "", "", ErrNoCredential
}

// Set stores the credential. Blank values are rejected.
func (c *Credentials) Set(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("credential is empty")
	}
	return c.store.Set(ctx, KeyCredential, value)
}

// Clear removes the stored credential. The environment fallback is untouched.
func (c *Credentials) Clear(ctx context.Context) error {
	return c.store.Delete(ctx, KeyCredential)
}

// Mask renders a credential for display, keeping only the last four characters.
func Mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", 8) + value[len(value)-4:]
}
