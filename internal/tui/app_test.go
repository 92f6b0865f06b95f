package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/llm"
	"github.com/jgrana2/prompt-manager/internal/prompts"
	"github.com/jgrana2/prompt-manager/internal/session"
	"github.com/jgrana2/prompt-manager/internal/storage"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

func newTestApp(t *testing.T, saved ...string) App {
	t.Helper()
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	store, err := prompts.Load(ctx, kv, nil)
	require.NoError(t, err)
	for _, p := range saved {
		require.NoError(t, store.Add(ctx, p))
	}
	ctrl, err := session.New(session.Options{
		Prompts:     store,
		Credentials: storage.NewCredentials(kv, "PROMPTMGR_TEST_UNSET_KEY"),
		Factory:     llm.NewFactory(),
	})
	require.NoError(t, err)
	app := NewApp(ctx, ctrl, nil, nil)
	app, _ = update(app, tea.WindowSizeMsg{Width: 120, Height: 40})
	return app
}

func update(m App, msg tea.Msg) (App, tea.Cmd) {
	model, cmd := m.Update(msg)
	return model.(App), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	ctrlS = tea.KeyMsg{Type: tea.KeyCtrlS}
)

func TestApp_NewPrompt(t *testing.T) {
	m := newTestApp(t)

	m, _ = update(m, runes("n"))
	require.Equal(t, modeNewPrompt, m.mode)

	m, _ = update(m, runes("Summarize {{topic}}"))
	m, _ = update(m, ctrlS)

	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, []string{"Summarize {{topic}}"}, m.ctrl.Prompts().List())
	assert.Len(t, m.prompts.Items(), 1)
}

func TestApp_NewPromptEmptyStaysOpen(t *testing.T) {
	m := newTestApp(t)
	m, _ = update(m, runes("n"))
	m, _ = update(m, ctrlS)
	assert.Equal(t, modeNewPrompt, m.mode)
	assert.Equal(t, "Prompt is empty", m.status)

	m, _ = update(m, esc)
	assert.Equal(t, modeNormal, m.mode)
	assert.Zero(t, m.ctrl.Prompts().Len())
}

func TestApp_DeletePrompt(t *testing.T) {
	m := newTestApp(t, "first", "second")
	m, _ = update(m, runes("d"))
	assert.Equal(t, []string{"second"}, m.ctrl.Prompts().List())
	assert.Len(t, m.prompts.Items(), 1)
}

func TestApp_SelectPrompt(t *testing.T) {
	m := newTestApp(t, "Translate to French")

	m, cmd := update(m, enter)
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(selectDoneMsg)
	require.True(t, ok, "got %T", msg)
	require.NoError(t, done.err)
	assert.Equal(t, "Translate to French", m.ctrl.Selected())

	m, _ = update(m, done)
	assert.Equal(t, PaneInput, m.focus)
}

func TestApp_RunValidation(t *testing.T) {
	m := newTestApp(t, "p")
	m.setFocus(PaneInput)

	m, _ = update(m, enter)
	require.Equal(t, modeAlert, m.mode)
	assert.Equal(t, session.ErrEmptyInput.Error(), m.alert)

	m, _ = update(m, enter)
	assert.Equal(t, modeNormal, m.mode)

	m, _ = update(m, runes("hello"))
	m, _ = update(m, enter)
	require.Equal(t, modeAlert, m.mode)
	assert.Equal(t, session.ErrNoPrompt.Error(), m.alert)
}

func TestApp_RunStarts(t *testing.T) {
	m := newTestApp(t, "p")
	require.NoError(t, m.ctrl.SelectPrompt("p"))
	m.setFocus(PaneInput)

	m, _ = update(m, runes("hello"))
	m, cmd := update(m, enter)
	assert.NotNil(t, cmd)
	assert.True(t, m.running)
	assert.Empty(t, m.input.Value(), "input cleared once the run starts")

	m, _ = update(m, runDoneMsg{err: llm.ErrMissingCredential})
	assert.False(t, m.running)
	assert.Equal(t, modeAlert, m.mode)
}

func TestApp_NewlineDoesNotRun(t *testing.T) {
	m := newTestApp(t, "p")
	m.setFocus(PaneInput)
	m, _ = update(m, runes("a"))
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	m, _ = update(m, runes("b"))
	assert.Equal(t, "a\nb", m.input.Value())
	assert.Equal(t, modeNormal, m.mode)
}

func TestApp_CloneAndEditChain(t *testing.T) {
	m := newTestApp(t, "one", "two {{x}}")

	m, _ = update(m, runes("c"))
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(m, runes("c"))
	require.Equal(t, 2, m.ctrl.Chain().Len())

	m, _ = update(m, tab)
	require.Equal(t, PaneChain, m.focus)
	assert.Equal(t, 1, m.chainIdx)

	m, _ = update(m, runes("K"))
	items := m.ctrl.Chain().Items()
	assert.Equal(t, "two {{x}}", items[0].Prompt)
	assert.Equal(t, 0, m.chainIdx)

	m, _ = update(m, runes("x"))
	assert.Equal(t, 1, m.ctrl.Chain().Len())
	assert.Equal(t, "one", m.ctrl.Chain().Items()[0].Prompt)

	m, _ = update(m, runes("C"))
	assert.Zero(t, m.ctrl.Chain().Len())
}

func TestApp_MappingEditor(t *testing.T) {
	m := newTestApp(t, "first", "use {{prev}} on {{day}}")
	m, _ = update(m, runes("c"))
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(m, runes("c"))
	m, _ = update(m, tab)
	m, _ = update(m, runes("m"))
	require.Equal(t, modeMapping, m.mode)

	second := m.ctrl.Chain().Items()[1]
	first := m.ctrl.Chain().Items()[0]

	// prev: unmapped -> manual -> step
	m, _ = update(m, runes("t"))
	m, _ = update(m, runes("t"))
	got, ok := m.ctrl.Chain().Items()[1].Mapping("prev")
	require.True(t, ok)
	assert.Equal(t, vars.Mapping{Name: "prev", Type: vars.SourceStep, Step: first.ID}, got)

	// day: unmapped -> manual, then set a default
	m, _ = update(m, runes("j"))
	m, _ = update(m, runes("t"))
	m, _ = update(m, enter)
	require.True(t, m.field.Focused())
	m, _ = update(m, runes("monday"))
	m, _ = update(m, enter)
	got, ok = m.ctrl.Chain().Items()[1].Mapping("day")
	require.True(t, ok)
	assert.Equal(t, vars.Mapping{Name: "day", Type: vars.SourceManual, Default: "monday"}, got)

	m, _ = update(m, esc)
	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, second.ID, m.mapper.stepID)
}

func TestMappingEditor_CycleOption(t *testing.T) {
	c := chain.New()
	a := c.Add("a")
	b := c.Add("b")
	target := c.Add("{{when}} {{ref}}")
	ed := mappingEditor{chain: c, stepID: target.ID}

	// when -> manual -> step -> system(date)
	for i := 0; i < 3; i++ {
		require.NoError(t, ed.cycleType())
	}
	require.NoError(t, ed.cycleOption(1))
	it := c.Items()[2]
	m, _ := it.Mapping("when")
	assert.Equal(t, vars.SystemTime, m.System)
	require.NoError(t, ed.cycleOption(-2))
	m, _ = c.Items()[2].Mapping("when")
	assert.Equal(t, vars.SystemDateTime, m.System, "wraps around")

	// fourth cycle removes the mapping
	require.NoError(t, ed.cycleType())
	_, ok := c.Items()[2].Mapping("when")
	assert.False(t, ok)

	ed.move(1)
	require.NoError(t, ed.cycleType())
	require.NoError(t, ed.cycleType())
	m, _ = c.Items()[2].Mapping("ref")
	assert.Equal(t, b.ID, m.Step, "defaults to the nearest prior step")
	require.NoError(t, ed.cycleOption(1))
	m, _ = c.Items()[2].Mapping("ref")
	assert.Equal(t, a.ID, m.Step)
}

func TestApp_ManualInput(t *testing.T) {
	m := newTestApp(t)
	reply := make(chan inputReply, 1)

	m, _ = update(m, inputRequestMsg{name: "tone", def: "formal", reply: reply})
	require.Equal(t, modeManualInput, m.mode)
	assert.Equal(t, "formal", m.field.Value())

	m, _ = update(m, runes("!"))
	m, _ = update(m, enter)
	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, inputReply{value: "formal!"}, <-reply)

	m, _ = update(m, inputRequestMsg{name: "tone", reply: reply})
	m, _ = update(m, esc)
	assert.Equal(t, inputReply{cancelled: true}, <-reply)
}

func TestApp_TranscriptAndCopy(t *testing.T) {
	m := newTestApp(t)
	var copied string
	orig := clipboardWriteAll
	clipboardWriteAll = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { clipboardWriteAll = orig })

	for _, ev := range []session.Event{
		{Type: session.EventConversationReset, Content: "p"},
		{Type: session.EventUserMessage, Content: "hello"},
		{Type: session.EventAssistantStart},
		{Type: session.EventAssistantDelta, Content: "Hi", Text: "Hi"},
		{Type: session.EventAssistantDone, Text: "Hi there"},
	} {
		m, _ = update(m, eventMsg(ev))
	}
	m.setFocus(PaneTranscript)

	m, _ = update(m, runes("y"))
	assert.Equal(t, "Hi there", copied)
	assert.Equal(t, "Copied!", m.status)

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyUp})
	m, _ = update(m, runes("y"))
	assert.Equal(t, "hello", copied)
}

func TestApp_SettingsSavesKey(t *testing.T) {
	m := newTestApp(t, "p")
	m, _ = update(m, runes("s"))
	require.Equal(t, modeSettings, m.mode)

	m, _ = update(m, runes("sk-abcdef1234"))
	m, cmd := update(m, enter)
	require.NotNil(t, cmd)
	assert.Equal(t, modeNormal, m.mode)

	m, _ = update(m, cmd())
	assert.Equal(t, "key: ********1234 (memory)", m.keyStatus)
}

func TestApp_ExportImport(t *testing.T) {
	dir := t.TempDir()
	m := newTestApp(t, "alpha", "beta")
	path := filepath.Join(dir, "out.json")

	m, _ = update(m, runes("e"))
	require.Equal(t, modePath, m.mode)
	m.field.SetValue(path)
	m, _ = update(m, enter)
	require.Equal(t, modeNormal, m.mode, m.alert)
	_, err := os.Stat(path)
	require.NoError(t, err)

	other := newTestApp(t, "beta", "gamma")
	other, _ = update(other, runes("i"))
	other.field.SetValue(path)
	other, _ = update(other, enter)
	assert.Equal(t, []string{"beta", "gamma", "alpha"}, other.ctrl.Prompts().List())
	assert.Equal(t, "Imported 1 new prompts", other.status)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"items":[]}`), 0o600))
	other, _ = update(other, runes("i"))
	other.field.SetValue(bad)
	other, _ = update(other, enter)
	assert.Equal(t, modeAlert, other.mode)
	assert.Contains(t, other.alert, "Invalid file format")
}

func TestSubstringFilter(t *testing.T) {
	targets := []string{"Translate to French", "Summarize", "french toast"}
	ranks := substringFilter("FRENCH", targets)
	require.Len(t, ranks, 2)
	assert.Equal(t, 0, ranks[0].Index)
	assert.Equal(t, 2, ranks[1].Index)
}

func TestPromptItem(t *testing.T) {
	it := promptItem{text: "Write a {{kind}} poem about {{topic:the sea}}"}
	assert.Equal(t, "vars: kind, topic", it.Description())
	assert.Equal(t, it.text, it.FilterValue())
}
