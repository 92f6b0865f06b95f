package tui

import (
	"fmt"
	"strings"

	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/render"
	"github.com/jgrana2/prompt-manager/internal/session"
)

type entryKind int

const (
	entryNote entryKind = iota
	entryUser
	entryAssistant
	entryError
)

// entry is one rendered transcript message.
type entry struct {
	kind      entryKind
	step      int
	content   string
	streaming bool
}

// transcript folds session events into displayable entries and tracks the
// latest state of every chain step.
type transcript struct {
	entries []entry
	states  map[string]chain.State
	// selected is the entry the copy key acts on, -1 for the newest.
	selected int
}

func newTranscript() *transcript {
	return &transcript{states: make(map[string]chain.State), selected: -1}
}

func (t *transcript) apply(ev session.Event) {
	switch ev.Type {
	case session.EventConversationReset:
		t.entries = t.entries[:0]
		t.selected = -1
		t.states = make(map[string]chain.State)
		t.entries = append(t.entries, entry{kind: entryNote, content: "Prompt: " + ev.Content})
	case session.EventRunStarted:
		t.states = make(map[string]chain.State)
	case session.EventUserMessage:
		t.entries = append(t.entries, entry{kind: entryUser, step: ev.Step, content: ev.Content})
	case session.EventAssistantStart:
		t.entries = append(t.entries, entry{kind: entryAssistant, step: ev.Step, streaming: true})
	case session.EventAssistantDelta:
		if e := t.streamingEntry(); e != nil {
			e.content = ev.Text
		}
	case session.EventAssistantDone:
		if e := t.streamingEntry(); e != nil {
			e.content = ev.Text
			e.streaming = false
		}
	case session.EventError:
		t.dropEmptyStream()
		t.entries = append(t.entries, entry{kind: entryError, step: ev.Step, content: ev.Content})
	case session.EventChainStep:
		t.states[ev.StepID] = chain.State(ev.State)
	}
}

func (t *transcript) streamingEntry() *entry {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].streaming {
			return &t.entries[i]
		}
	}
	return nil
}

// dropEmptyStream removes a placeholder assistant entry whose request failed
// before any text arrived, and stops any other in-flight entry.
func (t *transcript) dropEmptyStream() {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if !t.entries[i].streaming {
			continue
		}
		if t.entries[i].content == "" {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
		} else {
			t.entries[i].streaming = false
		}
		return
	}
}

func (t *transcript) state(stepID string) chain.State {
	return t.states[stepID]
}

// copyable returns the indexes of entries that can be copied.
func (t *transcript) copyable() []int {
	var out []int
	for i, e := range t.entries {
		if e.kind != entryNote {
			out = append(out, i)
		}
	}
	return out
}

// moveSelection steps the copy cursor through copyable entries.
func (t *transcript) moveSelection(delta int) {
	idx := t.copyable()
	if len(idx) == 0 {
		t.selected = -1
		return
	}
	pos := len(idx) - 1
	for i, v := range idx {
		if v == t.selected {
			pos = i
		}
	}
	pos += delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(idx) {
		pos = len(idx) - 1
	}
	t.selected = idx[pos]
}

// selectedText returns the text the copy key would put on the clipboard.
func (t *transcript) selectedText() (string, bool) {
	if t.selected >= 0 && t.selected < len(t.entries) {
		return t.entries[t.selected].content, true
	}
	idx := t.copyable()
	if len(idx) == 0 {
		return "", false
	}
	return t.entries[idx[len(idx)-1]].content, true
}

func (t *transcript) render(styles *Styles, term *render.Terminal) string {
	if len(t.entries) == 0 {
		return styles.SystemNote.Render("Select a prompt, type some input and press enter.")
	}
	var b strings.Builder
	for i, e := range t.entries {
		block := t.renderEntry(styles, term, e)
		if i == t.selected {
			block = styles.Highlight.Render(block)
		}
		b.WriteString(block)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *transcript) renderEntry(styles *Styles, term *render.Terminal, e entry) string {
	label := ""
	if e.step > 0 {
		label = fmt.Sprintf(" · step %d", e.step)
	}
	switch e.kind {
	case entryUser:
		return styles.UserLabel.Render("You"+label) + "\n" + styles.UserContent.Render(e.content)
	case entryAssistant:
		body := e.content
		if term != nil && body != "" {
			body = term.Render(body)
		}
		if e.streaming {
			body += styles.Muted.Render(" ▍")
		}
		return styles.AssistantLabel.Render("Assistant"+label) + "\n" + body
	case entryError:
		return styles.StateFailed.Render("Error"+label) + "\n" + styles.ErrorContent.Render(e.content)
	default:
		return styles.SystemNote.Render(e.content)
	}
}
