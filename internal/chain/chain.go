// Package chain holds the ordered list of prompts run after the main prompt
// and the runner that executes them.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jgrana2/prompt-manager/internal/vars"
)

// ErrInvalidStepRef is returned when a step mapping references something
// other than an earlier chain step.
var ErrInvalidStepRef = errors.New("step mapping must reference a prior chain step")

// Item is one chain entry: a prompt plus the variable mappings configured
// for it. ID is assigned when the item enters the chain.
type Item struct {
	ID       string         `json:"id" yaml:"id"`
	Prompt   string         `json:"prompt" yaml:"prompt"`
	Mappings []vars.Mapping `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// NewItem creates an item for prompt with a fresh step id.
func NewItem(prompt string) Item {
	return Item{ID: uuid.NewString(), Prompt: prompt}
}

// Placeholders returns the distinct variable names used by the prompt.
func (it Item) Placeholders() []string {
	return vars.Names(it.Prompt)
}

// Mapping returns the mapping for name, if any.
func (it Item) Mapping(name string) (vars.Mapping, bool) {
	for _, m := range it.Mappings {
		if m.Name == name {
			return m, true
		}
	}
	return vars.Mapping{}, false
}

// SetMapping adds or replaces the mapping for m.Name.
func (it *Item) SetMapping(m vars.Mapping) {
	m.Normalize()
	for i := range it.Mappings {
		if it.Mappings[i].Name == m.Name {
			it.Mappings[i] = m
			return
		}
	}
	it.Mappings = append(it.Mappings, m)
}

// RemoveMapping drops the mapping for name.
func (it *Item) RemoveMapping(name string) {
	out := it.Mappings[:0]
	for _, m := range it.Mappings {
		if m.Name != name {
			out = append(out, m)
		}
	}
	it.Mappings = out
}

func (it Item) clone() Item {
	it.Mappings = append([]vars.Mapping(nil), it.Mappings...)
	return it
}

// Chain is the mutable, ordered list of items edited by the UI. It is safe
// for concurrent use. Nothing here is persisted.
type Chain struct {
	mu    sync.RWMutex
	items []Item
}

// New returns an empty chain.
func New() *Chain {
	return &Chain{}
}

// Add appends a clone of prompt with a fresh step id and returns it.
func (c *Chain) Add(prompt string) Item {
	it := NewItem(prompt)
	c.mu.Lock()
	c.items = append(c.items, it)
	c.mu.Unlock()
	return it
}

// Insert places a new item for prompt at index i (clamped).
func (c *Chain) Insert(i int, prompt string) Item {
	it := NewItem(prompt)
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 {
		i = 0
	}
	if i > len(c.items) {
		i = len(c.items)
	}
	c.items = append(c.items, Item{})
	copy(c.items[i+1:], c.items[i:])
	c.items[i] = it
	return it
}

// Move relocates the item at from to index to. Step mappings that would
// now point at a later step are dropped.
func (c *Chain) Move(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if from < 0 || from >= len(c.items) || to < 0 || to >= len(c.items) {
		return fmt.Errorf("move %d -> %d: index out of range", from, to)
	}
	if from == to {
		return nil
	}
	it := c.items[from]
	c.items = append(c.items[:from], c.items[from+1:]...)
	c.items = append(c.items[:to], append([]Item{it}, c.items[to:]...)...)
	c.pruneRefs()
	return nil
}

// Remove deletes the item with id. Mappings in other items that referenced
// it are dropped.
func (c *Chain) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if it.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.pruneRefs()
			return true
		}
	}
	return false
}

// Update applies fn to a copy of the item with id and stores the result if
// it still validates. The id cannot be changed.
func (c *Chain) Update(id string, fn func(*Item)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID != id {
			continue
		}
		next := c.items[i].clone()
		fn(&next)
		next.ID = id

		candidate := append([]Item(nil), c.items...)
		candidate[i] = next
		if err := validateAt(candidate, i); err != nil {
			return err
		}
		c.items[i] = next
		return nil
	}
	return fmt.Errorf("chain item %s not found", id)
}

// Replace swaps the whole chain after validating it.
func (c *Chain) Replace(items []Item) error {
	if err := Validate(items); err != nil {
		return err
	}
	cp := make([]Item, len(items))
	for i, it := range items {
		cp[i] = it.clone()
	}
	c.mu.Lock()
	c.items = cp
	c.mu.Unlock()
	return nil
}

// Clear empties the chain.
func (c *Chain) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

// Len returns the number of items.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Items returns a deep copy of the items in order.
func (c *Chain) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, len(c.items))
	for i, it := range c.items {
		out[i] = it.clone()
	}
	return out
}

// PriorSteps returns the items before the one with id; these are the only
// valid targets of its step mappings.
func (c *Chain) PriorSteps(id string) []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Item
	for _, it := range c.items {
		if it.ID == id {
			return out
		}
		out = append(out, it.clone())
	}
	return nil
}

// Badge is the 1-based position label shown next to item i.
func Badge(i int) int { return i + 1 }

// pruneRefs must be called with c.mu held.
func (c *Chain) pruneRefs() {
	seen := make(map[string]bool, len(c.items))
	for i := range c.items {
		it := &c.items[i]
		kept := it.Mappings[:0]
		for _, m := range it.Mappings {
			if m.Type == vars.SourceStep && !seen[m.Step] {
				continue
			}
			kept = append(kept, m)
		}
		it.Mappings = kept
		seen[it.ID] = true
	}
}

// Validate checks every mapping; step mappings may only reference items
// that appear earlier in items.
func Validate(items []Item) error {
	ids := make(map[string]bool, len(items))
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("chain step %d has no id", Badge(i))
		}
		if ids[it.ID] {
			return fmt.Errorf("chain step %d: duplicate id %s", Badge(i), it.ID)
		}
		ids[it.ID] = true
		if err := validateAt(items, i); err != nil {
			return err
		}
	}
	return nil
}

func validateAt(items []Item, i int) error {
	prior := make(map[string]bool, i)
	for _, it := range items[:i] {
		prior[it.ID] = true
	}
	for _, m := range items[i].Mappings {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("chain step %d: %w", Badge(i), err)
		}
		if m.Type == vars.SourceStep && !prior[m.Step] {
			return fmt.Errorf("chain step %d, variable %q -> %q: %w", Badge(i), m.Name, m.Step, ErrInvalidStepRef)
		}
	}
	return nil
}
