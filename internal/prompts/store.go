// Package prompts manages the saved prompt list: an ordered sequence of
// prompt texts persisted as a JSON array under storage.KeyPrompts.
package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jgrana2/prompt-manager/internal/storage"
)

// LabelWidth is the number of characters shown in list labels before
// truncation.
const LabelWidth = 50

var (
	// ErrEmptyPrompt is returned when adding a blank prompt.
	ErrEmptyPrompt = errors.New("prompt text is empty")
	// ErrInvalidFormat is returned by Import for files without a
	// string-array "prompts" field.
	ErrInvalidFormat = errors.New("invalid file format")
)

// Store is the in-memory view of the saved prompts. Every mutation is
// written through to the backing key/value store.
type Store struct {
	mu      sync.RWMutex
	kv      storage.Store
	prompts []string
	logger  *zap.Logger
}

// Load reads the saved prompts from kv. A missing key starts an empty list;
// an unparsable value is logged and also starts an empty list so the tool
// stays usable.
func Load(ctx context.Context, kv storage.Store, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{kv: kv, logger: logger}

	raw, err := kv.Get(ctx, storage.KeyPrompts)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		logger.Warn("saved prompts are not a JSON array of strings, starting empty",
			zap.String("backend", kv.Name()), zap.Error(err))
		return s, nil
	}
	s.prompts = list
	logger.Debug("loaded prompts", zap.Int("count", len(list)))
	return s, nil
}

// List returns a copy of the prompts in stored order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.prompts...)
}

// Len returns the number of saved prompts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prompts)
}

// Get returns the prompt at index i.
func (s *Store) Get(i int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.prompts) {
		return "", false
	}
	return s.prompts[i], true
}

// Add appends text (trimmed) and persists the list.
func (s *Store) Add(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.prompts
	s.prompts = append(append([]string(nil), prev...), text)
	if err := s.persist(ctx); err != nil {
		s.prompts = prev
		return err
	}
	return nil
}

// Delete removes every entry equal to text. It reports whether anything
// was removed.
func (s *Store) Delete(ctx context.Context, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]string, 0, len(s.prompts))
	for _, p := range s.prompts {
		if p != text {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(s.prompts) {
		return false, nil
	}

	prev := s.prompts
	s.prompts = kept
	if err := s.persist(ctx); err != nil {
		s.prompts = prev
		return false, err
	}
	return true, nil
}

// Search returns the prompts containing query, case-insensitively.
// An empty query returns every prompt.
func (s *Store) Search(query string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		return append([]string(nil), s.prompts...)
	}
	var out []string
	for _, p := range s.prompts {
		if Matches(p, query) {
			out = append(out, p)
		}
	}
	return out
}

// replace swaps the whole list. Callers hold s.mu.
func (s *Store) replace(ctx context.Context, list []string) error {
	prev := s.prompts
	s.prompts = list
	if err := s.persist(ctx); err != nil {
		s.prompts = prev
		return err
	}
	return nil
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context) error {
	list := s.prompts
	if list == nil {
		list = []string{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal prompts: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyPrompts, string(raw)); err != nil {
		return fmt.Errorf("save prompts: %w", err)
	}
	return nil
}

// Matches reports whether text contains query, ignoring case.
func Matches(text, query string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}

// Label is the single-line list label for a prompt: newlines collapsed and
// truncated to LabelWidth characters with a trailing "...".
func Label(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= LabelWidth {
		return text
	}
	return string(r[:LabelWidth]) + "..."
}
