package vars

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInputCancelled is returned by a Prompter when the user dismisses the
// input request.
var ErrInputCancelled = errors.New("input cancelled")

var placeholderRe = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Placeholder is one {{...}} occurrence in prompt text.
type Placeholder struct {
	Raw        string // the full "{{...}}" span
	Name       string
	Default    string
	HasDefault bool
	Start, End int // byte offsets of Raw within the text
}

// Extract returns the placeholders of text in order of appearance.
// Unterminated spans are not matched.
func Extract(text string) []Placeholder {
	locs := placeholderRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]Placeholder, 0, len(locs))
	for _, loc := range locs {
		inner := text[loc[2]:loc[3]]
		p := Placeholder{
			Raw:   text[loc[0]:loc[1]],
			Start: loc[0],
			End:   loc[1],
		}
		if name, def, ok := strings.Cut(inner, ":"); ok {
			p.Name = strings.TrimSpace(name)
			p.Default = def
			p.HasDefault = true
		} else {
			p.Name = strings.TrimSpace(inner)
		}
		out = append(out, p)
	}
	return out
}

// Names returns the distinct placeholder names of text in order of first
// appearance.
func Names(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range Extract(text) {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p.Name)
	}
	return out
}

// Prompter supplies values for manual variables. Prompt blocks until the
// user answers or ctx is done.
type Prompter interface {
	Prompt(ctx context.Context, name, def string) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, name, def string) (string, error)

func (f PrompterFunc) Prompt(ctx context.Context, name, def string) (string, error) {
	return f(ctx, name, def)
}

// Defaults is a Prompter that answers every request with the default value.
var Defaults = PrompterFunc(func(_ context.Context, _, def string) (string, error) {
	return def, nil
})

// Resolver substitutes placeholder values.
type Resolver struct {
	// Prompter answers manual mappings. Nil falls back to the default value.
	Prompter Prompter
	// Now is the clock for system values. Nil means time.Now.
	Now func() time.Time
}

// Resolve replaces every placeholder of text. Unmapped placeholders take
// their own default or "[name]"; step sources read responses (empty when
// absent); manual sources ask the Prompter once per name; system sources
// format the clock. Only a Prompter error fails the call.
func (r *Resolver) Resolve(ctx context.Context, text string, mappings []Mapping, responses Responses) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	placeholders := Extract(text)
	if len(placeholders) == 0 {
		return text, nil
	}

	byName := make(map[string]Mapping, len(mappings))
	for _, m := range mappings {
		byName[m.Name] = m
	}
	manual := make(map[string]string)

	var b strings.Builder
	last := 0
	for _, p := range placeholders {
		b.WriteString(text[last:p.Start])
		last = p.End

		m, ok := byName[p.Name]
		if !ok {
			b.WriteString(fallback(p))
			continue
		}

		switch m.Type {
		case SourceStep:
			b.WriteString(responses[m.Step])
		case SourceSystem:
			v, ok := m.System.Format(r.now())
			if !ok {
				v = fallback(p)
			}
			b.WriteString(v)
		default:
			v, cached := manual[p.Name]
			if !cached {
				def := m.Default
				if def == "" {
					def = p.Default
				}
				var err error
				v, err = r.ask(ctx, p.Name, def)
				if err != nil {
					return "", fmt.Errorf("variable %q: %w", p.Name, err)
				}
				manual[p.Name] = v
			}
			b.WriteString(v)
		}
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func (r *Resolver) ask(ctx context.Context, name, def string) (string, error) {
	if r.Prompter == nil {
		return def, nil
	}
	return r.Prompter.Prompt(ctx, name, def)
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func fallback(p Placeholder) string {
	if p.HasDefault {
		return p.Default
	}
	return "[" + p.Name + "]"
}
