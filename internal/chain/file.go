package chain

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// File is the YAML form of a chain used by the non-interactive CLI:
//
//	prompt: "You are a translator."
//	steps:
//	  - id: summary
//	    prompt: "Summarize for {{audience:engineers}}"
//	  - prompt: "Compare with {{first}}"
//	    variables:
//	      - {name: first, type: step, step: summary}
type File struct {
	Prompt string `yaml:"prompt,omitempty"`
	Steps  []Item `yaml:"steps"`
}

// LoadFile reads and validates a chain file.
func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain file: %w", err)
	}
	return Parse(bytes.NewReader(raw))
}

// Parse decodes a chain file. Steps without an id get a generated one;
// mappings are normalised and then validated.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("chain file is empty")
		}
		return nil, fmt.Errorf("parse chain file: %w", err)
	}

	for i := range f.Steps {
		step := &f.Steps[i]
		if step.Prompt == "" {
			return nil, fmt.Errorf("chain step %d has no prompt", Badge(i))
		}
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		for j := range step.Mappings {
			step.Mappings[j].Normalize()
		}
	}
	if err := Validate(f.Steps); err != nil {
		return nil, err
	}
	return &f, nil
}
