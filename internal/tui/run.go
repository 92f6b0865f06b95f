package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jgrana2/prompt-manager/internal/render"
	"github.com/jgrana2/prompt-manager/internal/session"
)

// Run starts the interactive program and blocks until the user quits.
// bridge must be the Sink and Prompter ctrl was built with.
func Run(ctx context.Context, ctrl *session.Controller, bridge *Bridge, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	term, err := render.NewTerminal(80)
	if err != nil {
		logger.Warn("markdown rendering disabled", zap.Error(err))
		term = nil
	}

	app := NewApp(ctx, ctrl, term, logger)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)
	defer bridge.Attach(nil)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
