package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/prompts"
	"github.com/jgrana2/prompt-manager/internal/render"
	"github.com/jgrana2/prompt-manager/internal/session"
)

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

type Pane int

const (
	PanePrompts Pane = iota
	PaneChain
	PaneTranscript
	PaneInput
)

type mode int

const (
	modeNormal mode = iota
	modeNewPrompt
	modeSettings
	modePath
	modeMapping
	modeManualInput
	modeAlert
)

type pathAction int

const (
	pathExport pathAction = iota
	pathImport
)

type (
	runDoneMsg struct {
		reply string
		err   error
	}
	selectDoneMsg struct {
		text string
		err  error
	}
	apiKeyMsg struct {
		masked string
		source string
		err    error
	}
)

// App is the root model: prompt list, chain, transcript and input box on
// one screen, with dialogs layered on top.
type App struct {
	ctx    context.Context
	ctrl   *session.Controller
	logger *zap.Logger
	styles *Styles
	keys   keyMap
	help   help.Model
	term   *render.Terminal
	now    func() time.Time

	prompts    list.Model
	chainIdx   int
	transcript *transcript
	viewport   viewport.Model
	input      textarea.Model
	spinner    spinner.Model

	editor textarea.Model
	field  textinput.Model
	mapper mappingEditor

	focus      Pane
	mode       mode
	pathAction pathAction
	pending    *inputRequestMsg
	alert      string
	status     string
	keyStatus  string
	running    bool
	quitting   bool
	width      int
	height     int
}

// NewApp builds the model for ctrl. term may be nil to show raw Markdown.
func NewApp(ctx context.Context, ctrl *session.Controller, term *render.Terminal, logger *zap.Logger) App {
	if logger == nil {
		logger = zap.NewNop()
	}
	styles := DefaultStyles()

	l := list.New(promptItems(ctrl.Prompts().List()), list.NewDefaultDelegate(), 0, 0)
	l.Title = "Prompts"
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Filter = substringFilter
	l.DisableQuitKeybindings()
	l.Styles.Title = styles.Title

	in := textarea.New()
	in.Placeholder = "Type your input. Enter to run, alt+enter for a new line."
	in.ShowLineNumbers = false
	in.CharLimit = 0
	in.SetHeight(3)
	in.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))

	ed := textarea.New()
	ed.Placeholder = "Prompt text. Use {{name}} or {{name:default}} for variables."
	ed.ShowLineNumbers = false
	ed.CharLimit = 0
	ed.SetHeight(8)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.Spinner

	vp := viewport.New(0, 0)

	return App{
		ctx:        ctx,
		ctrl:       ctrl,
		logger:     logger,
		styles:     styles,
		keys:       newKeyMap(),
		help:       help.New(),
		term:       term,
		now:        time.Now,
		prompts:    l,
		transcript: newTranscript(),
		viewport:   vp,
		input:      in,
		spinner:    sp,
		editor:     ed,
		field:      textinput.New(),
		mapper:     mappingEditor{chain: ctrl.Chain()},
		focus:      PanePrompts,
		width:      100,
		height:     30,
	}
}

func (m App) Init() tea.Cmd {
	return tea.Batch(m.loadAPIKey(), textarea.Blink)
}

func (m App) loadAPIKey() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		masked, src, err := ctrl.APIKey(ctx)
		return apiKeyMsg{masked: masked, source: src, err: err}
	}
}

func (m App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case eventMsg:
		m.transcript.apply(session.Event(msg))
		m.refreshTranscript(true)
		return m, nil

	case inputRequestMsg:
		m.pending = &msg
		m.mode = modeManualInput
		m.field = m.newField("value for "+msg.name, false)
		m.field.SetValue(msg.def)
		m.field.CursorEnd()
		cmd := m.field.Focus()
		return m, cmd

	case runDoneMsg:
		m.running = false
		switch {
		case msg.err == nil:
			m.status = "Done"
		case session.IsAlert(msg.err):
			m.showAlert(msg.err)
		default:
			m.status = "Run failed"
		}
		return m, nil

	case selectDoneMsg:
		if msg.err != nil {
			m.showAlert(msg.err)
			return m, nil
		}
		m.status = "Selected: " + prompts.Label(msg.text)
		cmd := m.setFocus(PaneInput)
		return m, cmd

	case apiKeyMsg:
		switch {
		case msg.err != nil:
			m.keyStatus = "key: error"
			m.logger.Warn("reading api key", zap.Error(msg.err))
		case msg.masked == "":
			m.keyStatus = "key: not set"
		default:
			m.keyStatus = fmt.Sprintf("key: %s (%s)", msg.masked, msg.source)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Blink and filter messages go to every component that might want them.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.prompts, cmd = m.prompts.Update(msg)
	cmds = append(cmds, cmd)
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.field, cmd = m.field.Update(msg)
	cmds = append(cmds, cmd)
	m.editor, cmd = m.editor.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancelPending()
		m.quitting = true
		return m, tea.Quit
	}

	switch m.mode {
	case modeAlert:
		switch msg.String() {
		case "enter", "esc", " ":
			m.mode = modeNormal
			m.alert = ""
		}
		return m, nil
	case modeNewPrompt:
		return m.updateNewPrompt(msg)
	case modeSettings:
		return m.updateSettings(msg)
	case modePath:
		return m.updatePath(msg)
	case modeManualInput:
		return m.updateManualInput(msg)
	case modeMapping:
		return m.updateMapping(msg)
	}

	filtering := m.focus == PanePrompts && m.prompts.FilterState() == list.Filtering
	if !filtering {
		switch {
		case key.Matches(msg, m.keys.Tab):
			cmd := m.setFocus((m.focus + 1) % 4)
			return m, cmd
		case msg.String() == "shift+tab":
			cmd := m.setFocus((m.focus + 3) % 4)
			return m, cmd
		case key.Matches(msg, m.keys.Quit) && m.focus != PaneInput:
			m.cancelPending()
			m.quitting = true
			return m, tea.Quit
		}
	}

	switch m.focus {
	case PanePrompts:
		return m.updatePrompts(msg, filtering)
	case PaneChain:
		return m.updateChain(msg)
	case PaneTranscript:
		return m.updateTranscript(msg)
	default:
		return m.updateInput(msg)
	}
}

func (m App) updatePrompts(msg tea.KeyMsg, filtering bool) (tea.Model, tea.Cmd) {
	if !filtering {
		switch {
		case key.Matches(msg, m.keys.Select):
			text, ok := m.selectedPrompt()
			if !ok {
				return m, nil
			}
			ctrl := m.ctrl
			return m, func() tea.Msg {
				return selectDoneMsg{text: text, err: ctrl.SelectPrompt(text)}
			}
		case key.Matches(msg, m.keys.New):
			m.mode = modeNewPrompt
			m.editor.Reset()
			m.editor.SetWidth(m.dialogWidth())
			cmd := m.editor.Focus()
			return m, cmd
		case key.Matches(msg, m.keys.Delete):
			return m.deleteSelected()
		case key.Matches(msg, m.keys.Clone):
			text, ok := m.selectedPrompt()
			if !ok {
				return m, nil
			}
			m.ctrl.Chain().Add(text)
			m.chainIdx = m.ctrl.Chain().Len() - 1
			m.status = fmt.Sprintf("Added step %d", chain.Badge(m.chainIdx))
			return m, nil
		case key.Matches(msg, m.keys.Settings):
			return m.openSettings()
		case key.Matches(msg, m.keys.Export):
			return m.openPath(pathExport)
		case key.Matches(msg, m.keys.Import):
			return m.openPath(pathImport)
		}
	}
	var cmd tea.Cmd
	m.prompts, cmd = m.prompts.Update(msg)
	return m, cmd
}

func (m App) selectedPrompt() (string, bool) {
	sel, ok := m.prompts.SelectedItem().(promptItem)
	if !ok {
		return "", false
	}
	return sel.text, true
}

func (m App) deleteSelected() (tea.Model, tea.Cmd) {
	text, ok := m.selectedPrompt()
	if !ok {
		return m, nil
	}
	if _, err := m.ctrl.DeletePrompt(m.ctx, text); err != nil {
		m.showAlert(err)
		return m, nil
	}
	m.status = "Deleted: " + prompts.Label(text)
	cmd := m.reloadPrompts()
	return m, cmd
}

func (m *App) reloadPrompts() tea.Cmd {
	return m.prompts.SetItems(promptItems(m.ctrl.Prompts().List()))
}

func (m App) updateChain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.ctrl.Chain()
	items := c.Items()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.chainIdx > 0 {
			m.chainIdx--
		}
	case key.Matches(msg, m.keys.Down):
		if m.chainIdx < len(items)-1 {
			m.chainIdx++
		}
	case key.Matches(msg, m.keys.MoveUp):
		if m.chainIdx > 0 && m.chainIdx < len(items) {
			if err := c.Move(m.chainIdx, m.chainIdx-1); err == nil {
				m.chainIdx--
			}
		}
	case key.Matches(msg, m.keys.MoveDown):
		if m.chainIdx < len(items)-1 {
			if err := c.Move(m.chainIdx, m.chainIdx+1); err == nil {
				m.chainIdx++
			}
		}
	case key.Matches(msg, m.keys.Remove):
		if m.chainIdx < len(items) {
			c.Remove(items[m.chainIdx].ID)
			if m.chainIdx >= c.Len() && m.chainIdx > 0 {
				m.chainIdx--
			}
		}
	case key.Matches(msg, m.keys.Clear):
		c.Clear()
		m.chainIdx = 0
		m.status = "Chain cleared"
	case key.Matches(msg, m.keys.Map):
		if m.chainIdx < len(items) {
			m.mapper.stepID = items[m.chainIdx].ID
			m.mapper.cursor = 0
			m.mode = modeMapping
		}
	case key.Matches(msg, m.keys.Settings):
		return m.openSettings()
	}
	return m, nil
}

func (m App) updateTranscript(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.transcript.moveSelection(-1)
		m.refreshTranscript(false)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.transcript.moveSelection(1)
		m.refreshTranscript(false)
		return m, nil
	case key.Matches(msg, m.keys.Copy):
		text, ok := m.transcript.selectedText()
		if !ok {
			return m, nil
		}
		if err := clipboardWriteAll(text); err != nil {
			m.status = "Failed to copy message"
		} else {
			m.status = "Copied!"
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m App) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Run):
		return m.run()
	case key.Matches(msg, m.keys.Escape):
		cmd := m.setFocus(PanePrompts)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run validates in the UI first so the alert appears without a round trip,
// then hands the input to the controller on a command goroutine.
func (m App) run() (tea.Model, tea.Cmd) {
	if m.running || m.ctrl.Busy() {
		m.status = session.ErrBusy.Error()
		return m, nil
	}
	input := m.input.Value()
	if strings.TrimSpace(input) == "" {
		m.showAlert(session.ErrEmptyInput)
		return m, nil
	}
	if m.ctrl.Selected() == "" {
		m.showAlert(session.ErrNoPrompt)
		return m, nil
	}

	m.running = true
	m.status = "Running..."
	m.input.Reset()
	ctrl, ctx := m.ctrl, m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		reply, err := ctrl.Run(ctx, input)
		return runDoneMsg{reply: reply, err: err}
	})
}

func (m App) updateNewPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.editor.Blur()
		return m, nil
	case "ctrl+s":
		err := m.ctrl.AddPrompt(m.ctx, m.editor.Value())
		if errors.Is(err, prompts.ErrEmptyPrompt) {
			m.status = "Prompt is empty"
			return m, nil
		}
		if err != nil {
			m.showAlert(err)
			return m, nil
		}
		m.mode = modeNormal
		m.editor.Blur()
		m.status = "Prompt saved"
		cmd := m.reloadPrompts()
		return m, cmd
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m App) openSettings() (tea.Model, tea.Cmd) {
	m.mode = modeSettings
	m.field = m.newField("sk-...", true)
	cmd := m.field.Focus()
	return m, cmd
}

func (m App) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		return m, nil
	case "enter":
		if err := m.ctrl.SetAPIKey(m.ctx, m.field.Value()); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.mode = modeNormal
		m.status = "API key saved"
		return m, m.loadAPIKey()
	case "ctrl+d":
		if err := m.ctrl.ClearAPIKey(m.ctx); err != nil {
			m.showAlert(err)
			return m, nil
		}
		m.mode = modeNormal
		m.status = "API key cleared"
		return m, m.loadAPIKey()
	}
	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	return m, cmd
}

func (m App) openPath(action pathAction) (tea.Model, tea.Cmd) {
	m.mode = modePath
	m.pathAction = action
	m.field = m.newField("path/to/prompts.json", false)
	if action == pathExport {
		m.field.SetValue(prompts.ExportFilename(m.now()))
		m.field.CursorEnd()
	}
	cmd := m.field.Focus()
	return m, cmd
}

func (m App) updatePath(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.field.Value())
		if path == "" {
			return m, nil
		}
		m.mode = modeNormal
		if m.pathAction == pathExport {
			if err := m.exportTo(path); err != nil {
				m.showAlert(err)
				return m, nil
			}
			m.status = "Exported to " + path
			return m, nil
		}
		added, err := m.importFrom(path)
		if err != nil {
			m.showAlert(err)
			return m, nil
		}
		m.status = fmt.Sprintf("Imported %d new prompts", added)
		cmd := m.reloadPrompts()
		return m, cmd
	}
	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	return m, cmd
}

func (m App) exportTo(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := m.ctrl.Prompts().WriteExport(f, m.now()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m App) importFrom(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return m.ctrl.Prompts().Import(m.ctx, f)
}

func (m App) updateManualInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if m.pending != nil {
			m.pending.reply <- inputReply{value: m.field.Value()}
			m.pending = nil
		}
		m.mode = modeNormal
		return m, nil
	case "esc":
		m.cancelPending()
		m.mode = modeNormal
		return m, nil
	}
	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	return m, cmd
}

func (m *App) cancelPending() {
	if m.pending != nil {
		m.pending.reply <- inputReply{cancelled: true}
		m.pending = nil
	}
}

func (m App) updateMapping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.field.Focused() {
		switch msg.String() {
		case "enter":
			if err := m.mapper.setDefault(m.field.Value()); err != nil {
				m.status = err.Error()
			}
			m.field.Blur()
			return m, nil
		case "esc":
			m.field.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.field, cmd = m.field.Update(msg)
		return m, cmd
	}

	var err error
	switch msg.String() {
	case "esc", "q":
		m.mode = modeNormal
		return m, nil
	case "up", "k":
		m.mapper.move(-1)
	case "down", "j":
		m.mapper.move(1)
	case "t", " ":
		err = m.mapper.cycleType()
	case "left", "h":
		err = m.mapper.cycleOption(-1)
	case "right", "l":
		err = m.mapper.cycleOption(1)
	case "enter":
		name, mp, _ := m.mapper.current()
		if name == "" {
			return m, nil
		}
		m.field = m.newField("default for "+name, false)
		m.field.SetValue(mp.Default)
		m.field.CursorEnd()
		cmd := m.field.Focus()
		return m, cmd
	}
	if err != nil {
		m.status = err.Error()
	}
	return m, nil
}

func (m *App) newField(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Width = m.dialogWidth() - 4
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

func (m *App) showAlert(err error) {
	m.alert = err.Error()
	if errors.Is(err, prompts.ErrInvalidFormat) {
		m.alert = "Invalid file format: the file must contain a \"prompts\" array of strings."
	}
	m.mode = modeAlert
}

func (m *App) setFocus(p Pane) tea.Cmd {
	m.focus = p
	if p == PaneInput {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m App) dialogWidth() int {
	w := m.width * 2 / 3
	if w < 40 {
		w = 40
	}
	return w
}

func (m *App) leftWidth() int {
	w := m.width / 3
	if w < 28 {
		w = 28
	}
	return w
}

func (m *App) resize(width, height int) {
	m.width, m.height = width, height
	left := m.leftWidth()
	right := width - left - 4

	listHeight := (height - 4) * 3 / 5
	m.prompts.SetSize(left-4, listHeight-2)

	m.input.SetWidth(right - 4)
	m.viewport.Width = right - 4
	m.viewport.Height = height - m.input.Height() - 9
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	if m.term != nil {
		if err := m.term.SetWidth(m.viewport.Width - 2); err != nil {
			m.logger.Warn("resizing markdown renderer", zap.Error(err))
		}
	}
	m.refreshTranscript(false)
}

func (m *App) refreshTranscript(follow bool) {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcript.render(m.styles, m.term))
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

func (m App) View() string {
	if m.quitting {
		return ""
	}

	switch m.mode {
	case modeAlert:
		return m.overlay(m.styles.Alert.Render(m.alert + "\n\n" + m.styles.Help.Render("enter to dismiss")))
	case modeNewPrompt:
		return m.overlay(m.styles.Dialog.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.styles.Title.Render("New prompt"),
			"",
			m.editor.View(),
			"",
			m.styles.Help.Render("ctrl+s save · esc cancel"),
		)))
	case modeSettings:
		return m.overlay(m.styles.Dialog.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.styles.Title.Render("API key"),
			m.styles.Muted.Render(m.keyStatus),
			"",
			m.field.View(),
			"",
			m.styles.Help.Render("enter save · ctrl+d clear · esc cancel"),
		)))
	case modePath:
		title := "Export prompts to"
		if m.pathAction == pathImport {
			title = "Import prompts from"
		}
		return m.overlay(m.styles.Dialog.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.styles.Title.Render(title),
			"",
			m.field.View(),
			"",
			m.styles.Help.Render("enter confirm · esc cancel"),
		)))
	case modeManualInput:
		name := ""
		if m.pending != nil {
			name = m.pending.name
		}
		return m.overlay(m.styles.Dialog.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.styles.Title.Render(fmt.Sprintf("Enter value for {{%s}}", name)),
			"",
			m.field.View(),
			"",
			m.styles.Help.Render("enter confirm · esc cancel chain"),
		)))
	case modeMapping:
		body := m.mapper.view(m.styles)
		if m.field.Focused() {
			body += "\n\n" + m.field.View()
		}
		if m.status != "" {
			body += "\n" + m.styles.Status.Render(m.status)
		}
		return m.overlay(m.styles.Dialog.Render(body))
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.pane(PanePrompts, m.prompts.View(), m.leftWidth()),
		m.pane(PaneChain, m.chainView(), m.leftWidth()),
	)

	header := m.styles.Title.Render("promptmgr")
	if sel := m.ctrl.Selected(); sel != "" {
		header += "  " + m.styles.Muted.Render(prompts.Label(sel))
	}
	rightWidth := m.width - m.leftWidth() - 2
	right := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.pane(PaneTranscript, m.viewport.View(), rightWidth),
		m.pane(PaneInput, m.input.View(), rightWidth),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		m.statusLine(),
	)
}

func (m App) pane(p Pane, content string, width int) string {
	style := m.styles.Border
	if m.focus == p {
		style = m.styles.ActiveBorder
	}
	return style.Width(width - 2).Render(content)
}

func (m App) chainView() string {
	items := m.ctrl.Chain().Items()
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Chain"))
	b.WriteString("\n")
	if len(items) == 0 {
		b.WriteString(m.styles.Muted.Render("Press c on a prompt to add a step."))
		return b.String()
	}
	for i, it := range items {
		cursor := "  "
		if i == m.chainIdx && m.focus == PaneChain {
			cursor = m.styles.Cursor.Render("> ")
		}
		badge := m.styles.StateBadge(m.transcript.state(it.ID)).Render(fmt.Sprint(chain.Badge(i)))
		line := fmt.Sprintf("%s%s %s", cursor, badge, prompts.Label(it.Prompt))
		if n := len(it.Mappings); n > 0 {
			line += m.styles.Muted.Render(fmt.Sprintf(" (%d mapped)", n))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m App) statusLine() string {
	var parts []string
	if m.running {
		parts = append(parts, m.spinner.View()+" running")
	}
	if m.status != "" {
		parts = append(parts, m.styles.Status.Render(m.status))
	}
	if m.keyStatus != "" {
		parts = append(parts, m.styles.Muted.Render(m.keyStatus))
	}
	bindings := m.keys.ShortHelp()
	switch m.focus {
	case PaneChain:
		bindings = []key.Binding{m.keys.Tab, m.keys.MoveUp, m.keys.MoveDown, m.keys.Remove, m.keys.Map, m.keys.Clear}
	case PaneTranscript:
		bindings = []key.Binding{m.keys.Tab, m.keys.Up, m.keys.Down, m.keys.Copy}
	case PaneInput:
		bindings = []key.Binding{m.keys.Run, m.keys.Newline, m.keys.Escape}
	}
	parts = append(parts, m.help.ShortHelpView(bindings))
	return strings.Join(parts, "  ")
}

func (m App) overlay(box string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
