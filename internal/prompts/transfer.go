package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// ExportFile is the on-disk shape of an exported prompt list.
type ExportFile struct {
	Prompts    []string `json:"prompts"`
	ExportDate string   `json:"exportDate"`
}

// Export snapshots the current prompts.
func (s *Store) Export(now time.Time) ExportFile {
	list := s.List()
	if list == nil {
		list = []string{}
	}
	return ExportFile{
		Prompts:    list,
		ExportDate: now.UTC().Format(time.RFC3339),
	}
}

// ExportFilename is the suggested name for an export written at now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("prompts-export-%s.json", now.Format("2006-01-02"))
}

// WriteExport encodes an export file to w.
func (s *Store) WriteExport(w io.Writer, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Export(now)); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// ParseImport decodes an import file. Anything other than an object with a
// "prompts" array of strings is ErrInvalidFormat.
func ParseImport(r io.Reader) ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	raw, ok := doc["prompts"]
	if !ok {
		return nil, fmt.Errorf("%w: missing prompts field", ErrInvalidFormat)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return nil, fmt.Errorf("%w: prompts must be an array of strings", ErrInvalidFormat)
	}
	return list, nil
}

// Import merges the prompts in r into the store and reports how many were
// new. A rejected file leaves the store untouched.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	incoming, err := ParseImport(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := Merge(s.prompts, incoming)
	added := len(merged) - len(s.prompts)
	if added == 0 {
		return 0, nil
	}
	if err := s.replace(ctx, merged); err != nil {
		return 0, err
	}
	s.logger.Info("imported prompts", zap.Int("added", added), zap.Int("total", len(merged)))
	return added, nil
}

// Merge is the set union of existing and incoming: existing order first,
// then unseen incoming entries in file order.
func Merge(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, p := range existing {
		out = append(out, p)
		seen[p] = struct{}{}
	}
	for _, p := range incoming {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
