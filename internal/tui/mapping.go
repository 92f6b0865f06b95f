package tui

import (
	"fmt"
	"strings"

	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/prompts"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

// mappingEditor edits the variable mappings of one chain step. Changes are
// written straight to the chain.
type mappingEditor struct {
	chain  *chain.Chain
	stepID string
	cursor int
}

func (e *mappingEditor) item() (chain.Item, int, bool) {
	for i, it := range e.chain.Items() {
		if it.ID == e.stepID {
			return it, i, true
		}
	}
	return chain.Item{}, 0, false
}

func (e *mappingEditor) names() []string {
	it, _, ok := e.item()
	if !ok {
		return nil
	}
	return it.Placeholders()
}

func (e *mappingEditor) current() (string, vars.Mapping, bool) {
	names := e.names()
	if e.cursor < 0 || e.cursor >= len(names) {
		return "", vars.Mapping{}, false
	}
	it, _, _ := e.item()
	m, mapped := it.Mapping(names[e.cursor])
	if !mapped {
		m = vars.Mapping{Name: names[e.cursor]}
	}
	return names[e.cursor], m, mapped
}

func (e *mappingEditor) move(delta int) {
	n := len(e.names())
	e.cursor += delta
	if e.cursor >= n {
		e.cursor = n - 1
	}
	if e.cursor < 0 {
		e.cursor = 0
	}
}

func (e *mappingEditor) set(m vars.Mapping) error {
	return e.chain.Update(e.stepID, func(it *chain.Item) { it.SetMapping(m) })
}

func (e *mappingEditor) unset(name string) error {
	return e.chain.Update(e.stepID, func(it *chain.Item) { it.RemoveMapping(name) })
}

// cycleType rotates the current variable through unmapped, manual, step and
// system. The step source is skipped for the first step.
func (e *mappingEditor) cycleType() error {
	name, m, mapped := e.current()
	if name == "" {
		return nil
	}
	prior := e.chain.PriorSteps(e.stepID)

	if !mapped {
		m.SetType(vars.SourceManual)
		return e.set(m)
	}
	switch m.Type {
	case vars.SourceManual:
		if len(prior) > 0 {
			m.SetType(vars.SourceStep)
			m.Step = prior[len(prior)-1].ID
			return e.set(m)
		}
		m.SetType(vars.SourceSystem)
		return e.set(m)
	case vars.SourceStep:
		m.SetType(vars.SourceSystem)
		return e.set(m)
	default:
		return e.unset(name)
	}
}

// cycleOption rotates the type-specific choice: the referenced step or the
// system value.
func (e *mappingEditor) cycleOption(delta int) error {
	name, m, mapped := e.current()
	if name == "" || !mapped {
		return nil
	}
	switch m.Type {
	case vars.SourceStep:
		prior := e.chain.PriorSteps(e.stepID)
		if len(prior) == 0 {
			return nil
		}
		i := 0
		for j, it := range prior {
			if it.ID == m.Step {
				i = j
			}
		}
		m.Step = prior[wrap(i+delta, len(prior))].ID
	case vars.SourceSystem:
		values := vars.SystemValues()
		i := 0
		for j, v := range values {
			if v == m.System {
				i = j
			}
		}
		m.System = values[wrap(i+delta, len(values))]
	default:
		return nil
	}
	return e.set(m)
}

func (e *mappingEditor) setDefault(value string) error {
	name, m, _ := e.current()
	if name == "" {
		return nil
	}
	m.SetType(vars.SourceManual)
	m.Default = value
	return e.set(m)
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

func (e *mappingEditor) view(styles *Styles) string {
	it, idx, ok := e.item()
	if !ok {
		return styles.Muted.Render("Step no longer exists.")
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("Variables for step %d", chain.Badge(idx))))
	b.WriteString("\n")
	b.WriteString(styles.Muted.Render(prompts.Label(it.Prompt)))
	b.WriteString("\n\n")

	names := it.Placeholders()
	if len(names) == 0 {
		b.WriteString(styles.Muted.Render("This prompt has no {{variables}}."))
		return b.String()
	}

	badges := make(map[string]int)
	for i, p := range e.chain.Items() {
		badges[p.ID] = chain.Badge(i)
	}

	for i, name := range names {
		cursor := "  "
		if i == e.cursor {
			cursor = styles.Cursor.Render("> ")
		}
		desc := styles.Muted.Render("unmapped (uses inline default or [" + name + "])")
		if m, ok := it.Mapping(name); ok {
			switch m.Type {
			case vars.SourceStep:
				desc = fmt.Sprintf("step → output of step %d", badges[m.Step])
			case vars.SourceSystem:
				desc = fmt.Sprintf("system → %s", m.System)
			default:
				desc = "manual"
				if m.Default != "" {
					desc += fmt.Sprintf(" (default %q)", m.Default)
				}
			}
		}
		fmt.Fprintf(&b, "%s{{%s}}  %s\n", cursor, name, desc)
	}
	b.WriteString("\n")
	b.WriteString(styles.Help.Render("t: source type · ←/→: option · enter: manual default · esc: close"))
	return b.String()
}
