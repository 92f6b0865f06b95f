package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/jgrana2/prompt-manager/internal/prompts"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

// promptItem adapts a stored prompt to list.Item
type promptItem struct {
	text string
}

func (i promptItem) Title() string { return prompts.Label(i.text) }

func (i promptItem) Description() string {
	names := vars.Names(i.text)
	if len(names) == 0 {
		return fmt.Sprintf("%d chars", len([]rune(i.text)))
	}
	return "vars: " + strings.Join(names, ", ")
}

func (i promptItem) FilterValue() string { return i.text }

func promptItems(texts []string) []list.Item {
	items := make([]list.Item, len(texts))
	for i, text := range texts {
		items[i] = promptItem{text: text}
	}
	return items
}

// substringFilter keeps the list order and matches case-insensitively,
// replacing the list's default fuzzy ranking.
func substringFilter(term string, targets []string) []list.Rank {
	var ranks []list.Rank
	for i, t := range targets {
		if prompts.Matches(t, term) {
			ranks = append(ranks, list.Rank{Index: i})
		}
	}
	return ranks
}
