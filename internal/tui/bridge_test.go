package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jgrana2/prompt-manager/internal/session"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

// fakeProgram answers input requests with a fixed reply and records the
// rest.
type fakeProgram struct {
	mu     sync.Mutex
	msgs   []tea.Msg
	answer *inputReply
}

func (p *fakeProgram) Send(msg tea.Msg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	if req, ok := msg.(inputRequestMsg); ok && p.answer != nil {
		req.reply <- *p.answer
	}
}

func TestBridge_Emit(t *testing.T) {
	b := NewBridge()
	b.Emit(session.Event{Type: session.EventRunStarted}) // dropped, nothing attached

	p := &fakeProgram{}
	b.Attach(p)
	b.Emit(session.Event{Type: session.EventUserMessage, Content: "hi"})

	require.Len(t, p.msgs, 1)
	assert.Equal(t, eventMsg(session.Event{Type: session.EventUserMessage, Content: "hi"}), p.msgs[0])
}

func TestBridge_Prompt(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewBridge()
	b.Attach(&fakeProgram{answer: &inputReply{value: "formal"}})
	got, err := b.Prompt(context.Background(), "tone", "casual")
	require.NoError(t, err)
	assert.Equal(t, "formal", got)

	b.Attach(&fakeProgram{answer: &inputReply{cancelled: true}})
	_, err = b.Prompt(context.Background(), "tone", "")
	assert.ErrorIs(t, err, vars.ErrInputCancelled)
}

func TestBridge_PromptWithoutProgramUsesDefault(t *testing.T) {
	got, err := NewBridge().Prompt(context.Background(), "tone", "casual")
	require.NoError(t, err)
	assert.Equal(t, "casual", got)
}

func TestBridge_PromptContextDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewBridge()
	b.Attach(&fakeProgram{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := b.Prompt(ctx, "tone", "")
		done <- err
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTranscript_Apply(t *testing.T) {
	tr := newTranscript()
	for _, ev := range []session.Event{
		{Type: session.EventConversationReset, Content: "p"},
		{Type: session.EventUserMessage, Content: "in"},
		{Type: session.EventAssistantStart},
		{Type: session.EventAssistantDelta, Text: "par"},
		{Type: session.EventAssistantDone, Text: "partial"},
		{Type: session.EventChainStep, StepID: "s1", State: "awaiting-response"},
		{Type: session.EventUserMessage, Step: 1, Content: "step msg"},
		{Type: session.EventAssistantStart, Step: 1},
		{Type: session.EventError, Step: 1, Content: "API error (500): boom"},
	} {
		tr.apply(ev)
	}

	kinds := make([]entryKind, len(tr.entries))
	for i, e := range tr.entries {
		kinds[i] = e.kind
	}
	assert.Equal(t, []entryKind{entryNote, entryUser, entryAssistant, entryUser, entryError}, kinds,
		"the empty step placeholder is dropped on error")
	assert.Equal(t, "partial", tr.entries[2].content)
	assert.False(t, tr.entries[2].streaming)
	assert.EqualValues(t, "awaiting-response", tr.state("s1"))

	tr.apply(session.Event{Type: session.EventConversationReset, Content: "q"})
	assert.Len(t, tr.entries, 1)
	assert.Empty(t, tr.state("s1"))
}
