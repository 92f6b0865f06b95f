package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jgrana2/prompt-manager/internal/session"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

// sender is the part of *tea.Program the bridge needs.
type sender interface {
	Send(msg tea.Msg)
}

// eventMsg carries a session event into the update loop.
type eventMsg session.Event

// inputRequestMsg asks the UI for a manual variable. Exactly one value is
// sent on reply.
type inputRequestMsg struct {
	name  string
	def   string
	reply chan<- inputReply
}

type inputReply struct {
	value     string
	cancelled bool
}

// Bridge connects the controller to a running program: it is the session
// sink and the manual-variable prompter. Both are called from run
// goroutines, never from Update.
type Bridge struct {
	mu sync.RWMutex
	p  sender
}

// NewBridge returns a bridge with no program attached. Events sent before
// Attach are dropped.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach routes messages to p.
func (b *Bridge) Attach(p sender) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) bool {
	b.mu.RLock()
	p := b.p
	b.mu.RUnlock()
	if p == nil {
		return false
	}
	p.Send(msg)
	return true
}

// Emit implements session.Sink.
func (b *Bridge) Emit(ev session.Event) {
	b.send(eventMsg(ev))
}

// Prompt implements vars.Prompter by opening the input dialog and waiting
// for the user.
func (b *Bridge) Prompt(ctx context.Context, name, def string) (string, error) {
	reply := make(chan inputReply, 1)
	if !b.send(inputRequestMsg{name: name, def: def, reply: reply}) {
		return def, nil
	}
	select {
	case r := <-reply:
		if r.cancelled {
			return "", vars.ErrInputCancelled
		}
		return r.value, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
