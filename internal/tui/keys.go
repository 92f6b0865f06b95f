package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Tab      key.Binding
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	New      key.Binding
	Delete   key.Binding
	Clone    key.Binding
	Remove   key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Map      key.Binding
	Clear    key.Binding
	Run      key.Binding
	Newline  key.Binding
	Copy     key.Binding
	Settings key.Binding
	Export   key.Binding
	Import   key.Binding
	Escape   key.Binding
	Quit     key.Binding
}

func (km keyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Tab, km.Select, km.New, km.Clone, km.Map, km.Settings, km.Quit}
}

func (km keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.Up, km.Down, km.Tab, km.Select},
		{km.New, km.Delete, km.Export, km.Import},
		{km.Clone, km.Remove, km.MoveUp, km.MoveDown, km.Map, km.Clear},
		{km.Run, km.Newline, km.Copy, km.Settings, km.Escape, km.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select prompt"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new prompt"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete prompt"),
		),
		Clone: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "add to chain"),
		),
		Remove: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "remove step"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys("K", "shift+up"),
			key.WithHelp("K", "move step up"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys("J", "shift+down"),
			key.WithHelp("J", "move step down"),
		),
		Map: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "map variables"),
		),
		Clear: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "clear chain"),
		),
		Run: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "newline"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy message"),
		),
		Settings: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "api key"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export"),
		),
		Import: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "import"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
	}
}
