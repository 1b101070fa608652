package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vtx/internal/services"
	"github.com/desertthunder/vtx/internal/shared"
	"github.com/desertthunder/vtx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive video browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.videotube == nil {
		return fmt.Errorf("%w: video service not initialized", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := cmd.String("log-file")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	r.logger.SetOutput(logFile)
	defer r.logger.SetOutput(os.Stderr)

	model := ui.NewModel(ctx, r.videotube, services.VideoQuery{Query: cmd.String("query")})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
