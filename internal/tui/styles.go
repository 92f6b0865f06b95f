package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jgrana2/prompt-manager/internal/chain"
)

// Color constants matching the dark page theme
const (
	ColorBg     = "#0d1117"
	ColorCard   = "#161b22"
	ColorBorder = "#30363d"
	ColorBlue   = "#58a6ff"
	ColorGreen  = "#3fb950"
	ColorRed    = "#f85149"
	ColorYellow = "#d29922"
	ColorPurple = "#bc8cff"
	ColorGray   = "#8b949e"
	ColorText   = "#c9d1d9"
	ColorBright = "#f0f6fc"
)

// Styles holds all lipgloss styles for the TUI
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style
	Status   lipgloss.Style
	Muted    lipgloss.Style

	// Step state badges
	StatePending   lipgloss.Style
	StateResolving lipgloss.Style
	StateAwaiting  lipgloss.Style
	StateRecorded  lipgloss.Style
	StateFailed    lipgloss.Style

	// Transcript
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserContent    lipgloss.Style
	ErrorContent   lipgloss.Style
	SystemNote     lipgloss.Style
	Highlight      lipgloss.Style

	// Borders
	Border       lipgloss.Style
	ActiveBorder lipgloss.Style
	Dialog       lipgloss.Style
	Alert        lipgloss.Style

	Cursor  lipgloss.Style
	Spinner lipgloss.Style
}

// DefaultStyles creates the default style set
func DefaultStyles() *Styles {
	badge := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorBg)).
		Padding(0, 1).
		Bold(true)

	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorBright)),

		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)).
			Italic(true),

		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGreen)),

		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)),

		StatePending:   badge.Background(lipgloss.Color(ColorGray)),
		StateResolving: badge.Background(lipgloss.Color(ColorPurple)),
		StateAwaiting:  badge.Background(lipgloss.Color(ColorYellow)),
		StateRecorded:  badge.Background(lipgloss.Color(ColorGreen)),
		StateFailed:    badge.Background(lipgloss.Color(ColorRed)),

		UserLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBlue)).
			Bold(true),

		AssistantLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGreen)).
			Bold(true),

		UserContent: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)).
			PaddingLeft(2),

		ErrorContent: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorRed)).
			PaddingLeft(2),

		SystemNote: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)).
			Italic(true),

		Highlight: lipgloss.NewStyle().
			Background(lipgloss.Color(ColorCard)),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Padding(0, 1),

		ActiveBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBlue)).
			Padding(0, 1),

		Dialog: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBlue)).
			Padding(1, 2),

		Alert: lipgloss.NewStyle().
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color(ColorRed)).
			Foreground(lipgloss.Color(ColorBright)).
			Padding(1, 2),

		Cursor: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBlue)).
			Bold(true),

		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBlue)),
	}
}

// StateBadge returns the badge style for a chain step state. An empty state
// renders as pending.
func (s *Styles) StateBadge(state chain.State) lipgloss.Style {
	switch state {
	case chain.StateResolving:
		return s.StateResolving
	case chain.StateAwaiting:
		return s.StateAwaiting
	case chain.StateRecorded:
		return s.StateRecorded
	case chain.StateFailed:
		return s.StateFailed
	default:
		return s.StatePending
	}
}
